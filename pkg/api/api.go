// pkg/api/api.go

// Package api embeds store locator aggregation in other programs: scrape
// brands, detect platforms and merge results without going through the CLI
// or per-brand files.
package api

import (
	"context"
	"io"
	"time"

	"github.com/valpere/BrandLocator/internal/config"
	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/merge"
	"github.com/valpere/BrandLocator/internal/pipeline"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// Re-export configuration types for callers outside the module
type (
	Config      = config.Config
	BrandTarget = config.BrandTarget
	// Stats are the cumulative counters of a client's scrapes.
	Stats = pipeline.PipelineMetrics
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config { return config.Default() }

// LoadConfig reads a YAML configuration layered over the defaults.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Option configures a Client.
type Option func(*Client)

// WithLogOutput sends structured logs at level (debug, info, warn, error) to w.
// Clients are silent otherwise.
func WithLogOutput(w io.Writer, level string) Option {
	return func(c *Client) {
		c.logger = utils.NewSlogLogger(utils.LoggerOptions{
			Level:   utils.ParseLogLevel(level),
			Output:  w,
			NoColor: true,
		})
	}
}

// Client scrapes brands with one shared, paced HTTP client. Calls on the same
// Client run one brand at a time.
type Client struct {
	cfg        *Config
	logger     utils.Logger
	pipeline   *pipeline.Pipeline
	components *pipeline.Components
}

// NewClient validates cfg and builds a client. A nil cfg uses the defaults.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, logger: utils.NewNopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	c.pipeline, c.components = pipeline.Build(cfg, nil, c.logger)
	return c, nil
}

// Detect fetches pageURL and identifies its store locator platform. An
// undetected page is not an error; its source reports the browser fallback.
func (c *Client) Detect(ctx context.Context, pageURL string) (types.StoreLocatorSource, error) {
	src, _, err := c.components.Detector.DetectPage(ctx, c.components.Client, pageURL)
	return src, err
}

// Scrape acquires one brand. The result is never nil: a brand nothing could
// be recovered for has zero stores, and err joins the stage failures.
func (c *Client) Scrape(ctx context.Context, target BrandTarget) (*types.ScrapeResult, error) {
	out := c.pipeline.Scrape(ctx, target)
	return out.Result, out.Err()
}

// ScrapeAll scrapes targets in order with the configured pause between
// brands. Only a cancelled context stops it early.
func (c *Client) ScrapeAll(ctx context.Context, targets []BrandTarget) ([]*types.ScrapeResult, error) {
	report, err := c.pipeline.ScrapeBatch(ctx, targets, c.cfg.HTTP.BrandDelay, nil)
	results := make([]*types.ScrapeResult, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		results = append(results, o.Result)
	}
	return results, err
}

// Stats returns the client's scrape counters.
func (c *Client) Stats() Stats { return c.pipeline.GetMetrics() }

// MergeResults merges in-memory scrape results in the order given. Records
// without a platform take the result's platform, else defaultPlatform.
func MergeResults(results []*types.ScrapeResult, defaultPlatform types.Platform) *types.MergedDirectory {
	engine := merge.NewEngine(defaultPlatform, nil)
	for _, r := range results {
		if r == nil {
			continue
		}
		ds := &merge.Dataset{
			Path:     r.SourceURL,
			Brand:    r.Brand,
			Platform: defaultPlatform,
		}
		if r.Platform.IsValid() {
			ds.Platform = r.Platform
		}
		ds.Records = make([]types.RawLocationRecord, len(r.Stores))
		for i, rec := range r.Stores {
			if rec.Platform == types.PlatformUnknown {
				rec.Platform = ds.Platform
			}
			ds.Records[i] = rec
		}
		engine.Add(ds)
	}
	return engine.Directory("", time.Now())
}

// MergeFiles merges per-brand files. overrides pins brand names by file path
// or base name. Unreadable files are skipped; they are returned joined in err
// alongside the directory of everything that could be read.
func MergeFiles(ctx context.Context, cfg *Config, paths []string, overrides map[string]string) (*types.MergedDirectory, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	namer := merge.NewBrandNamer(cfg.Brands)
	for file, brand := range overrides {
		namer.Override(file, brand)
	}

	report := merge.Run(ctx, paths, merge.Options{
		DefaultPlatform: types.Platform(cfg.Merge.DefaultPlatform),
		Namer:           namer,
	}, nil)

	errs := make([]error, 0, len(report.Failures))
	for _, f := range report.Failures {
		errs = append(errs, f)
	}
	return report.Directory, apperrors.Join(errs...)
}
