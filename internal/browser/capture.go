// internal/browser/capture.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/detect"
	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

var errWidgetTimeout = errors.New("widget signal not observed before timeout")

// Capturer runs the browser fallback state machine:
//
//	launch > navigate_and_settle > dismiss_overlays > await_widget_signal >
//	harvest_network_traffic > [harvest_dom_scripts] > teardown
//
// Every step is bounded by a timeout. Only launch and navigation failures
// end a run early; teardown always runs once a session exists.
type Capturer struct {
	cfg      config.BrowserConfig
	open     SessionFactory
	detector *detect.Detector
	resolver Resolver
	logger   utils.Logger
	observer StateObserver
}

// NewCapturer creates a capturer. detector and resolver may be nil, which
// disables mid-capture platform recovery.
func NewCapturer(cfg config.BrowserConfig, open SessionFactory, detector *detect.Detector, resolver Resolver, logger utils.Logger) *Capturer {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if open == nil {
		open = NewChromeSession
	}
	return &Capturer{
		cfg:      cfg,
		open:     open,
		detector: detector,
		resolver: resolver,
		logger:   logger,
	}
}

// SetObserver registers a state observer (metrics).
func (c *Capturer) SetObserver(o StateObserver) {
	c.observer = o
}

// run holds the state of one capture.
type run struct {
	*Capturer
	capture *Capture
	session Session
	known   types.StoreLocatorSource
	found   *collector
	log     utils.Logger
}

// Capture runs the fallback against pageURL. known is the detection result
// already obtained for the page; when it is undetected the capture tries to
// recover the platform from the rendered page and the observed traffic.
//
// The returned Capture is never nil and carries the state trace even when
// err is set. A run that finds nothing returns an EmptyResult error.
func (c *Capturer) Capture(ctx context.Context, pageURL string, known types.StoreLocatorSource) (*Capture, error) {
	r := &run{
		Capturer: c,
		capture:  &Capture{URL: pageURL, Records: []types.RawLocationRecord{}},
		known:    known,
		found:    newCollector(),
		log:      c.logger.WithField("url", pageURL),
	}

	err := r.step(ctx, StateLaunch, c.cfg.NavigateTimeout, func(ctx context.Context) (string, error) {
		s, err := c.open(ctx, c.cfg)
		if err != nil {
			return "", err
		}
		r.session = s
		return "", nil
	})
	if err != nil {
		return r.capture, apperrors.Endpoint("browser.launch", "", pageURL, 0, err)
	}
	defer r.step(context.Background(), StateTeardown, 0, func(context.Context) (string, error) {
		return "", r.session.Close()
	})

	err = r.step(ctx, StateNavigateAndSettle, c.cfg.NavigateTimeout+c.cfg.SettleDelay, r.navigateAndSettle)
	if err != nil {
		return r.capture, apperrors.Endpoint("browser.navigate", "", pageURL, 0, err)
	}

	// Overlay and widget steps are best effort.
	_ = r.step(ctx, StateDismissOverlays, c.cfg.StepTimeout, r.dismissOverlays)
	_ = r.step(ctx, StateAwaitWidgetSignal, c.cfg.WidgetTimeout, r.awaitWidgetSignal)

	if err := ctx.Err(); err != nil {
		return r.capture, apperrors.Endpoint("browser.capture", "", pageURL, 0, err)
	}
	_ = r.step(ctx, StateHarvestNetworkTraffic, 0, r.harvestNetworkTraffic)

	if len(r.found.records) == 0 && r.capture.Via == "" {
		_ = r.step(ctx, StateHarvestDomScripts, c.cfg.StepTimeout, r.harvestDomScripts)
	}

	if r.capture.Via != ViaAdapter {
		r.capture.Records = r.found.records
	}
	if len(r.capture.Records) == 0 {
		r.log.Warn("browser capture found no locations")
		return r.capture, apperrors.Empty("browser.capture", string(r.capture.Recovered.Platform), pageURL)
	}

	r.log.WithFields(map[string]interface{}{
		"via":    r.capture.Via,
		"stores": len(r.capture.Records),
	}).Info("browser capture complete")
	return r.capture, nil
}

// step runs fn under timeout (zero means unbounded) and records the transition.
func (r *run) step(ctx context.Context, state State, timeout time.Duration, fn func(context.Context) (string, error)) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	note, err := fn(ctx)
	elapsed := time.Since(started)

	t := Transition{State: state, Started: started, Duration: elapsed, Note: note}
	log := r.log.WithFields(map[string]interface{}{
		"state":   string(state),
		"elapsed": utils.FormatDuration(elapsed),
	})
	if err != nil {
		t.Err = err.Error()
		log.Warnf("%s: %v", state, err)
	} else if note != "" {
		log.Infof("%s: %s", state, note)
	} else {
		log.Debug(string(state))
	}

	r.capture.Trace = append(r.capture.Trace, t)
	if r.observer != nil {
		r.observer.ObserveState(state, elapsed, err)
	}
	return err
}

func (r *run) navigateAndSettle(ctx context.Context) (string, error) {
	if err := r.session.Navigate(ctx, r.capture.URL); err != nil {
		return "", err
	}
	if err := sleep(ctx, r.cfg.SettleDelay); err != nil {
		return "", fmt.Errorf("settle: %w", err)
	}
	return "", nil
}

func (r *run) dismissOverlays(ctx context.Context) (string, error) {
	var errs []error
	clicked, err := r.session.ClickFirstVisible(ctx, r.cfg.CloseSelectors)
	if err != nil {
		errs = append(errs, fmt.Errorf("close selectors: %w", err))
	}
	removed, err := r.session.RemoveOverlays(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("remove overlays: %w", err))
	}

	note := fmt.Sprintf("removed %d overlays", removed)
	if clicked != "" {
		note = fmt.Sprintf("clicked %s, %s", clicked, note)
	}
	return note, errors.Join(errs...)
}

func (r *run) awaitWidgetSignal(ctx context.Context) (string, error) {
	if len(r.cfg.WidgetSignals) == 0 {
		return "no signals configured", nil
	}
	interval := r.cfg.PollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	var lastErr error
	for {
		signal, err := r.session.WidgetSignal(ctx, r.cfg.WidgetSignals)
		if err == nil && signal != "" {
			return "observed " + signal, nil
		}
		if err != nil {
			lastErr = err
		}
		if sleep(ctx, interval) != nil {
			if lastErr != nil {
				return "", fmt.Errorf("%w: %v", errWidgetTimeout, lastErr)
			}
			return "", errWidgetTimeout
		}
	}
}

func (r *run) harvestNetworkTraffic(ctx context.Context) (string, error) {
	entries := r.session.NetworkEntries()

	if !r.known.Detected() && r.recover(ctx, entries) {
		return fmt.Sprintf("recovered %s, adapter returned %d locations", r.capture.Recovered, len(r.capture.Records)), nil
	}

	platform := r.platform()
	matched, malformed := 0, 0
	for _, entry := range entries {
		if !IsLocatorAPI(entry.URL, r.cfg.APIPatterns) {
			continue
		}
		// Widget assets (images, stylesheets) share the API hosts.
		if entry.MimeType != "" && !utils.IsJSONContent(entry.MimeType) {
			continue
		}
		matched++

		bodyCtx, cancel := r.stepContext(ctx)
		body, err := r.session.ResponseBody(bodyCtx, entry.RequestID)
		cancel()
		if err != nil {
			r.log.WithField("response", entry.URL).Debugf("response body unavailable: %v", err)
			continue
		}

		p := platform
		if p == types.PlatformUnknown {
			p = platformFromURL(entry.URL)
		}
		records, err := ResponseRecords(body, p)
		if err != nil {
			malformed++
			r.log.WithField("response", entry.URL).Debugf("skipping malformed response: %v",
				apperrors.Malformed("browser.harvest", string(p), entry.URL, err))
			continue
		}
		if n := r.found.add(records); n > 0 {
			r.log.WithField("response", entry.URL).Infof("extracted %d locations", n)
		}
	}

	if len(r.found.records) > 0 {
		r.capture.Via = ViaNetwork
	}
	return fmt.Sprintf("%d entries, %d API responses, %d malformed, %d locations",
		len(entries), matched, malformed, len(r.found.records)), nil
}

// recover identifies the platform from the rendered page or a captured URL
// and, when a resolver is set, fetches the locations through its adapter.
// It reports whether the adapter produced records.
func (r *run) recover(ctx context.Context, entries []NetworkEntry) bool {
	if r.detector == nil {
		return false
	}

	var src types.StoreLocatorSource
	htmlCtx, cancel := r.stepContext(ctx)
	markup, err := r.session.HTML(htmlCtx)
	cancel()
	if err == nil {
		src = r.detector.Detect(r.capture.URL, markup)
	}
	if !src.Detected() {
		for _, entry := range entries {
			if found, ok := r.detector.DetectURL(entry.URL); ok {
				src = found
				src.URL = r.capture.URL
				break
			}
		}
	}
	if !src.Detected() {
		return false
	}

	r.capture.Recovered = src
	r.log.WithFields(map[string]interface{}{
		"platform":    string(src.Platform),
		"instance_id": src.InstanceID,
		"rule":        src.Rule,
	}).Info("platform recovered during capture")

	if r.resolver == nil {
		return false
	}
	records, err := r.resolver.Fetch(ctx, src)
	if err != nil || len(records) == 0 {
		r.log.Warnf("adapter for recovered platform yielded nothing, continuing harvest: %v", err)
		return false
	}
	r.capture.Records = records
	r.capture.Via = ViaAdapter
	return true
}

func (r *run) harvestDomScripts(ctx context.Context) (string, error) {
	markup, err := r.session.HTML(ctx)
	if err != nil {
		return "", err
	}
	records, skipped := ScriptRecords(markup, r.platform())
	r.found.add(records)
	if len(r.found.records) > 0 {
		r.capture.Via = ViaDomScripts
	}
	return fmt.Sprintf("%d locations, %d unparseable objects", len(r.found.records), skipped), nil
}

func (r *run) platform() types.Platform {
	if r.known.Platform != types.PlatformUnknown {
		return r.known.Platform
	}
	return r.capture.Recovered.Platform
}

func (r *run) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.StepTimeout)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
