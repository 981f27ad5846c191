// internal/pipeline/build.go
package pipeline

import (
	"github.com/valpere/BrandLocator/internal/adapters"
	"github.com/valpere/BrandLocator/internal/browser"
	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/detect"
	"github.com/valpere/BrandLocator/internal/filter"
	"github.com/valpere/BrandLocator/internal/scraper"
	"github.com/valpere/BrandLocator/internal/utils"
)

// Components are the concrete collaborators built from configuration. They
// are exposed so callers can attach observers.
type Components struct {
	Client   *scraper.Client
	Detector *detect.Detector
	Registry *adapters.Registry
	Capturer *browser.Capturer
	Chains   *filter.ChainFilter
}

// Build wires the HTTP client, detector, adapters, browser fallback and
// chain filter from cfg. open may be nil to use the chromedp session.
func Build(cfg *config.Config, open browser.SessionFactory, logger utils.Logger) (*Pipeline, *Components) {
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	c := &Components{
		Client: scraper.NewClient(scraper.ClientConfig{
			Timeout:      cfg.HTTP.Timeout,
			UserAgent:    cfg.HTTP.UserAgent,
			Headers:      cfg.HTTP.Headers,
			RequestDelay: cfg.HTTP.RequestDelay,
		}, logger),
		Detector: detect.New(logger),
		Chains:   filter.NewChainFilter(cfg.Chains.Denylist),
	}
	c.Registry = adapters.NewRegistry(cfg.Platforms, c.Client, logger)

	deps := Dependencies{
		Fetcher:  c.Client,
		Detector: c.Detector,
		Adapters: c.Registry,
		Chains:   c.Chains,
	}
	if cfg.Browser.Enabled {
		c.Capturer = browser.NewCapturer(cfg.Browser, open, c.Detector, c.Registry, logger)
		deps.Capturer = c.Capturer
	}

	return New(deps, logger), c
}
