// internal/browser/capture_test.go
package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/detect"
	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/pkg/types"
)

// fakeSession replays a canned page: its traffic, bodies and markup.
type fakeSession struct {
	mu sync.Mutex

	navigateErr error
	clicked     string
	removed     int
	// signalAfter is the number of polls before the widget appears; a
	// negative value means never.
	signalAfter int
	polls       int

	entries []NetworkEntry
	bodies  map[string]string
	html    string

	closed int
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error { return f.navigateErr }

func (f *fakeSession) ClickFirstVisible(ctx context.Context, selectors []string) (string, error) {
	return f.clicked, nil
}

func (f *fakeSession) RemoveOverlays(ctx context.Context) (int, error) { return f.removed, nil }

func (f *fakeSession) WidgetSignal(ctx context.Context, signals []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.signalAfter >= 0 && f.polls > f.signalAfter {
		return signals[0], nil
	}
	return "", nil
}

func (f *fakeSession) NetworkEntries() []NetworkEntry { return f.entries }

func (f *fakeSession) ResponseBody(ctx context.Context, requestID string) ([]byte, error) {
	body, ok := f.bodies[requestID]
	if !ok {
		return nil, errors.New("no resource with given identifier found")
	}
	return []byte(body), nil
}

func (f *fakeSession) HTML(ctx context.Context) (string, error) { return f.html, nil }

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func factory(s *fakeSession) SessionFactory {
	return func(ctx context.Context, cfg config.BrowserConfig) (Session, error) {
		return s, nil
	}
}

type fakeResolver struct {
	got     []types.StoreLocatorSource
	records []types.RawLocationRecord
	err     error
}

func (r *fakeResolver) Fetch(ctx context.Context, src types.StoreLocatorSource) ([]types.RawLocationRecord, error) {
	r.got = append(r.got, src)
	return r.records, r.err
}

type stateRecorder struct {
	states []State
}

func (s *stateRecorder) ObserveState(state State, elapsed time.Duration, err error) {
	s.states = append(s.states, state)
}

func testConfig() config.BrowserConfig {
	cfg := config.Default().Browser
	cfg.SettleDelay = 0
	cfg.NavigateTimeout = time.Second
	cfg.StepTimeout = time.Second
	cfg.WidgetTimeout = 50 * time.Millisecond
	cfg.PollInterval = 5 * time.Millisecond
	return cfg
}

var stockistSource = types.StoreLocatorSource{
	URL: "https://brand.example/stores", Platform: types.PlatformStockist,
	Strategy: types.StrategyGeoSampling, InstanceID: "u1",
}

func TestCaptureHarvestsNetworkTraffic(t *testing.T) {
	s := &fakeSession{
		signalAfter: 0,
		entries: []NetworkEntry{
			{RequestID: "1", URL: "https://stockist.co/api/v1/u1/widget.js"},
			{RequestID: "2", URL: "https://www.google-analytics.com/collect"},
			{RequestID: "3", URL: "https://stockist.co/api/v1/u1/locations/search?tag=u1"},
			{RequestID: "4", URL: "https://stockist.co/api/v1/u1/locations/overview.json"},
		},
		bodies: map[string]string{
			"1": `(function(){ window.Stockist = {}; })();`,
			"2": `{"name": "not a store"}`,
			"3": `{"locations": [{"id": 1, "name": "A"}, {"id": 2, "name": "B"}]}`,
			"4": `[{"id": 2, "name": "B"}, {"id": 3, "name": "C"}]`,
		},
	}
	rec := &stateRecorder{}
	c := NewCapturer(testConfig(), factory(s), detect.New(nil), nil, nil)
	c.SetObserver(rec)

	capture, err := c.Capture(context.Background(), stockistSource.URL, stockistSource)
	require.NoError(t, err)

	assert.Equal(t, ViaNetwork, capture.Via)
	require.Len(t, capture.Records, 3, "responses are unioned and deduplicated")
	assert.Equal(t, types.PlatformStockist, capture.Records[0].Platform)

	want := []State{
		StateLaunch, StateNavigateAndSettle, StateDismissOverlays,
		StateAwaitWidgetSignal, StateHarvestNetworkTraffic, StateTeardown,
	}
	if diff := cmp.Diff(want, capture.States()); diff != "" {
		t.Errorf("state trace mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want, rec.states)
	assert.Equal(t, 1, s.closed)
}

func TestCaptureSkipsNonJSONResponses(t *testing.T) {
	s := &fakeSession{
		signalAfter: 0,
		entries: []NetworkEntry{
			{RequestID: "1", URL: "https://stockist.co/api/v1/u1/marker.png", MimeType: "image/png"},
			{RequestID: "2", URL: "https://stockist.co/api/v1/u1/locations/search", MimeType: "application/json; charset=utf-8"},
		},
		bodies: map[string]string{
			"1": `[{"id": 9, "name": "Not A Store"}]`,
			"2": `{"locations": [{"id": 1, "name": "A"}]}`,
		},
	}
	c := NewCapturer(testConfig(), factory(s), detect.New(nil), nil, nil)

	capture, err := c.Capture(context.Background(), stockistSource.URL, stockistSource)
	require.NoError(t, err)
	require.Len(t, capture.Records, 1)
	assert.Equal(t, "A", capture.Records[0].Name)
}

func TestCaptureRecoversPlatformFromTraffic(t *testing.T) {
	s := &fakeSession{
		signalAfter: 0,
		html:        "<html><body><div id=map></div></body></html>",
		entries: []NetworkEntry{
			{RequestID: "1", URL: "https://cdn.example/app.js"},
			{RequestID: "2", URL: "https://stockist.co/api/v1/u777/widget.js"},
		},
	}
	resolver := &fakeResolver{records: []types.RawLocationRecord{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}}
	c := NewCapturer(testConfig(), factory(s), detect.New(nil), resolver, nil)

	capture, err := c.Capture(context.Background(), "https://brand.example/stores",
		types.StoreLocatorSource{URL: "https://brand.example/stores", Strategy: types.StrategyBrowserFallback})
	require.NoError(t, err)

	assert.Equal(t, ViaAdapter, capture.Via)
	assert.Len(t, capture.Records, 2)
	assert.Equal(t, types.PlatformStockist, capture.Recovered.Platform)
	assert.Equal(t, "u777", capture.Recovered.InstanceID)
	assert.Equal(t, "https://brand.example/stores", capture.Recovered.URL)
	require.Len(t, resolver.got, 1)
	assert.Equal(t, "u777", resolver.got[0].InstanceID)
	assert.NotContains(t, capture.States(), StateHarvestDomScripts)
	assert.Equal(t, 1, s.closed)
}

func TestCaptureRecoversPlatformFromRenderedPage(t *testing.T) {
	s := &fakeSession{
		signalAfter: 0,
		html:        `<div data-storerocket-id="abc123"></div>`,
	}
	resolver := &fakeResolver{records: []types.RawLocationRecord{{ID: "9", Name: "Rendered"}}}
	c := NewCapturer(testConfig(), factory(s), detect.New(nil), resolver, nil)

	capture, err := c.Capture(context.Background(), "https://brand.example", types.StoreLocatorSource{})
	require.NoError(t, err)
	assert.Equal(t, types.PlatformStoreRocket, capture.Recovered.Platform)
	assert.Equal(t, "abc123", capture.Recovered.InstanceID)
	assert.Equal(t, ViaAdapter, capture.Via)
}

func TestCaptureContinuesWhenRecoveredAdapterFails(t *testing.T) {
	s := &fakeSession{
		signalAfter: 0,
		entries: []NetworkEntry{
			{RequestID: "1", URL: "https://stockist.co/api/v1/u5/locations/search"},
		},
		bodies: map[string]string{"1": `{"locations": [{"id": 4, "name": "Traffic"}]}`},
	}
	resolver := &fakeResolver{err: apperrors.Empty("stockist.search", "stockist", "")}
	c := NewCapturer(testConfig(), factory(s), detect.New(nil), resolver, nil)

	capture, err := c.Capture(context.Background(), "https://brand.example", types.StoreLocatorSource{})
	require.NoError(t, err)
	assert.Equal(t, ViaNetwork, capture.Via)
	require.Len(t, capture.Records, 1)
	assert.Equal(t, types.PlatformStockist, capture.Records[0].Platform)
}

func TestCaptureFallsBackToDomScripts(t *testing.T) {
	s := &fakeSession{
		signalAfter: -1,
		html: `<html><head>
<script>var analytics = {"name": "tracker"};</script>
<script>
  window.storeData = [
    {"name": "Script Shop", "city": "Portland", "state": "OR"},
    {"id": 7, "address": "7 Main St", "name": "Seven"},
    {"name": 'Single Quoted', "city": "Bend"},
    {"name": "Broken", city: }
  ];
</script>
</head><body></body></html>`,
	}
	c := NewCapturer(testConfig(), factory(s), nil, nil, nil)

	capture, err := c.Capture(context.Background(), "https://brand.example", types.StoreLocatorSource{})
	require.NoError(t, err)

	assert.Equal(t, ViaDomScripts, capture.Via)
	var got []string
	for _, r := range capture.Records {
		got = append(got, r.Name)
	}
	assert.Equal(t, []string{"Script Shop", "Seven", "Single Quoted"}, got)
	assert.Contains(t, capture.States(), StateHarvestDomScripts)
	assert.Equal(t, StateTeardown, capture.States()[len(capture.Trace)-1])
}

func TestCaptureWidgetTimeoutIsNonFatal(t *testing.T) {
	s := &fakeSession{signalAfter: -1}
	c := NewCapturer(testConfig(), factory(s), nil, nil, nil)

	capture, err := c.Capture(context.Background(), "https://brand.example", types.StoreLocatorSource{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrEmptyResult))

	var widget *Transition
	for i := range capture.Trace {
		if capture.Trace[i].State == StateAwaitWidgetSignal {
			widget = &capture.Trace[i]
		}
	}
	require.NotNil(t, widget)
	assert.Contains(t, widget.Err, "widget signal not observed")
	assert.Contains(t, capture.States(), StateHarvestNetworkTraffic)
	assert.Contains(t, capture.States(), StateHarvestDomScripts)
	assert.Greater(t, s.polls, 1)
	assert.Equal(t, 1, s.closed)
}

func TestCaptureWidgetSignalObserved(t *testing.T) {
	s := &fakeSession{signalAfter: 2, clicked: `button[aria-label*="Close"]`, removed: 2}
	c := NewCapturer(testConfig(), factory(s), nil, nil, nil)

	capture, _ := c.Capture(context.Background(), "https://brand.example", types.StoreLocatorSource{})

	notes := map[State]string{}
	for _, tr := range capture.Trace {
		notes[tr.State] = tr.Note
	}
	assert.Equal(t, "observed [data-stockist]", notes[StateAwaitWidgetSignal])
	assert.Equal(t, `clicked button[aria-label*="Close"], removed 2 overlays`, notes[StateDismissOverlays])
	assert.Equal(t, 3, s.polls)
}

func TestCaptureNavigationFailureTearsDown(t *testing.T) {
	s := &fakeSession{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	c := NewCapturer(testConfig(), factory(s), nil, nil, nil)

	capture, err := c.Capture(context.Background(), "https://nowhere.invalid", types.StoreLocatorSource{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrEndpointUnavailable))
	assert.Equal(t, []State{StateLaunch, StateNavigateAndSettle, StateTeardown}, capture.States())
	assert.Equal(t, 1, s.closed)
	assert.NotNil(t, capture.Records)
}

func TestCaptureLaunchFailure(t *testing.T) {
	c := NewCapturer(testConfig(), func(ctx context.Context, cfg config.BrowserConfig) (Session, error) {
		return nil, errors.New("chrome not found")
	}, nil, nil, nil)

	capture, err := c.Capture(context.Background(), "https://brand.example", types.StoreLocatorSource{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrEndpointUnavailable))
	assert.Equal(t, []State{StateLaunch}, capture.States())
	assert.Equal(t, "launch", capture.String())
}

func TestCaptureTearsDownOnPanic(t *testing.T) {
	s := &panicSession{fakeSession: fakeSession{signalAfter: 0}}
	c := NewCapturer(testConfig(), func(ctx context.Context, cfg config.BrowserConfig) (Session, error) {
		return s, nil
	}, nil, nil, nil)

	assert.Panics(t, func() {
		_, _ = c.Capture(context.Background(), "https://brand.example", types.StoreLocatorSource{})
	})
	assert.Equal(t, 1, s.closed)
}

type panicSession struct {
	fakeSession
}

func (p *panicSession) NetworkEntries() []NetworkEntry { panic("devtools connection lost") }

func TestCaptureCancelledContext(t *testing.T) {
	s := &fakeSession{signalAfter: -1}
	c := NewCapturer(testConfig(), factory(s), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Capture(ctx, "https://brand.example", types.StoreLocatorSource{})
	require.Error(t, err)
	assert.Equal(t, 1, s.closed)
}
