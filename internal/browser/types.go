// internal/browser/types.go

// Package browser recovers store locations from pages whose locator
// platform could not be identified, by driving a headless browser and
// reading the traffic and scripts the widget produces.
package browser

import (
	"context"
	"strings"
	"time"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/pkg/types"
)

// State is one step of a capture run.
type State string

const (
	StateLaunch                State = "launch"
	StateNavigateAndSettle     State = "navigate_and_settle"
	StateDismissOverlays       State = "dismiss_overlays"
	StateAwaitWidgetSignal     State = "await_widget_signal"
	StateHarvestNetworkTraffic State = "harvest_network_traffic"
	StateHarvestDomScripts     State = "harvest_dom_scripts"
	StateTeardown              State = "teardown"
)

// Transition records how a state ended.
type Transition struct {
	State    State         `json:"state"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	// Note is a short outcome such as the matched widget signal.
	Note string `json:"note,omitempty"`
	Err  string `json:"error,omitempty"`
}

// NetworkEntry is one response observed by the session.
type NetworkEntry struct {
	RequestID string
	URL       string
	Status    int
	MimeType  string
}

// Session is an exclusively owned browser tab. Implementations must be safe
// to Close more than once.
type Session interface {
	Navigate(ctx context.Context, url string) error
	// ClickFirstVisible clicks the first selector that matches a visible
	// element and returns it, or "" when none matched.
	ClickFirstVisible(ctx context.Context, selectors []string) (string, error)
	// RemoveOverlays deletes page-covering modal elements and returns how
	// many were removed.
	RemoveOverlays(ctx context.Context) (int, error)
	// WidgetSignal returns the first signal currently present on the page,
	// or "". Signals are CSS selectors or "window.<Name>" globals.
	WidgetSignal(ctx context.Context, signals []string) (string, error)
	NetworkEntries() []NetworkEntry
	ResponseBody(ctx context.Context, requestID string) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

// SessionFactory launches a session.
type SessionFactory func(ctx context.Context, cfg config.BrowserConfig) (Session, error)

// Resolver fetches locations for a source recovered mid-capture.
type Resolver interface {
	Fetch(ctx context.Context, src types.StoreLocatorSource) ([]types.RawLocationRecord, error)
}

// StateObserver is told about every completed transition.
type StateObserver interface {
	ObserveState(state State, elapsed time.Duration, err error)
}

// Harvest source names reported in Capture.Via.
const (
	ViaNetwork    = "network"
	ViaAdapter    = "adapter"
	ViaDomScripts = "dom_scripts"
)

// Capture is the result of one fallback run.
type Capture struct {
	URL     string
	Records []types.RawLocationRecord
	// Recovered is set when the platform was identified during capture.
	Recovered types.StoreLocatorSource
	Via       string
	Trace     []Transition
}

// States returns the visited states in order.
func (c *Capture) States() []State {
	out := make([]State, 0, len(c.Trace))
	for _, t := range c.Trace {
		out = append(out, t.State)
	}
	return out
}

// String renders the trace as "launch > navigate_and_settle > ...".
func (c *Capture) String() string {
	parts := make([]string, 0, len(c.Trace))
	for _, s := range c.States() {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, " > ")
}
