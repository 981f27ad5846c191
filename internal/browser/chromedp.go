// internal/browser/chromedp.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/device"

	"github.com/valpere/BrandLocator/internal/config"
)

// ChromeSession implements Session with chromedp. Network responses and
// native dialogs are handled by a target listener installed at launch.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu      sync.Mutex
	entries []NetworkEntry
	closed  sync.Once
}

// NewChromeSession launches a browser and opens one tab with network
// capture enabled.
func NewChromeSession(ctx context.Context, cfg config.BrowserConfig) (Session, error) {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}

	// The browser outlives the launch context; Close releases it.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	s := &ChromeSession{ctx: tabCtx, cancel: cancel, allocCancel: allocCancel}
	chromedp.ListenTarget(tabCtx, s.onEvent)

	// The first Run allocates the browser and must not carry a deadline.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	tasks := []chromedp.Action{network.Enable()}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		tasks = append(tasks, chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)))
	}
	// Add mobile emulation for narrow viewports
	if cfg.ViewportWidth > 0 && cfg.ViewportWidth < 768 {
		tasks = append(tasks, chromedp.Emulate(device.IPhone8))
	}
	if err := s.run(ctx, tasks...); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	return s, nil
}

func (s *ChromeSession) onEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil {
			return
		}
		s.mu.Lock()
		s.entries = append(s.entries, NetworkEntry{
			RequestID: string(e.RequestID),
			URL:       e.Response.URL,
			Status:    int(e.Response.Status),
			MimeType:  e.Response.MimeType,
		})
		s.mu.Unlock()
	case *page.EventJavascriptDialogOpening:
		// Listeners must not block; dismiss from a separate goroutine.
		go func() {
			_ = chromedp.Run(s.ctx, page.HandleJavaScriptDialog(false))
		}()
	}
}

// run executes actions on the tab, bounded by ctx.
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

const clickFirstVisibleJS = `(function(selectors) {
	for (const sel of selectors) {
		let el;
		try { el = document.querySelector(sel); } catch (e) { continue; }
		if (!el) continue;
		const r = el.getBoundingClientRect();
		const st = window.getComputedStyle(el);
		if (r.width === 0 || r.height === 0 || st.display === 'none' || st.visibility === 'hidden') continue;
		el.click();
		return sel;
	}
	return "";
})(%s)`

func (s *ChromeSession) ClickFirstVisible(ctx context.Context, selectors []string) (string, error) {
	if len(selectors) == 0 {
		return "", nil
	}
	arg, err := json.Marshal(selectors)
	if err != nil {
		return "", err
	}
	var clicked string
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickFirstVisibleJS, arg), &clicked)); err != nil {
		return "", err
	}
	return clicked, nil
}

// removeOverlaysJS drops large modal-like elements and any element stacked
// above z-index 1000 that covers a large part of the viewport.
const removeOverlaysJS = `(function() {
	let removed = 0;
	const w = window.innerWidth, h = window.innerHeight;
	document.querySelectorAll('[class*="modal"], [class*="popup"], [class*="overlay"], [id*="modal"], [id*="popup"]').forEach(el => {
		if (el.style.display === 'none' || el.offsetParent === null) return;
		const r = el.getBoundingClientRect();
		if (r.width > w * 0.5 || r.height > h * 0.5) { el.remove(); removed++; }
	});
	document.querySelectorAll('*').forEach(el => {
		const z = parseInt(window.getComputedStyle(el).zIndex);
		if (!(z > 1000)) return;
		const r = el.getBoundingClientRect();
		if (r.width > w * 0.3 && r.height > h * 0.3) { el.remove(); removed++; }
	});
	return removed;
})()`

func (s *ChromeSession) RemoveOverlays(ctx context.Context) (int, error) {
	var removed int
	if err := s.run(ctx, chromedp.Evaluate(removeOverlaysJS, &removed)); err != nil {
		return 0, err
	}
	return removed, nil
}

const widgetSignalJS = `(function(signals) {
	for (const sig of signals) {
		if (sig.startsWith('window.')) {
			if (typeof window[sig.slice(7)] !== 'undefined') return sig;
			continue;
		}
		try { if (document.querySelector(sig) !== null) return sig; } catch (e) {}
	}
	return "";
})(%s)`

func (s *ChromeSession) WidgetSignal(ctx context.Context, signals []string) (string, error) {
	arg, err := json.Marshal(signals)
	if err != nil {
		return "", err
	}
	var found string
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(widgetSignalJS, arg), &found)); err != nil {
		return "", err
	}
	return found, nil
}

func (s *ChromeSession) NetworkEntries() []NetworkEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]NetworkEntry(nil), s.entries...)
}

func (s *ChromeSession) ResponseBody(ctx context.Context, requestID string) ([]byte, error) {
	var body []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(network.RequestID(requestID)).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("get response body: %w", err)
	}
	return body, nil
}

func (s *ChromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Close shuts the tab and the browser process.
func (s *ChromeSession) Close() error {
	s.closed.Do(func() {
		s.cancel()
		s.allocCancel()
	})
	return nil
}
