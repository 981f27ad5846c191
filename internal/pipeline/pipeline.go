// internal/pipeline/pipeline.go

// Package pipeline acquires one brand's store locations end to end:
// detect the locator platform, run its adapter, fall back to the browser,
// then deduplicate and drop chain stores.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valpere/BrandLocator/internal/browser"
	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/detect"
	"github.com/valpere/BrandLocator/internal/filter"
	"github.com/valpere/BrandLocator/internal/scraper"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// Stage names used in ProcessingError and logs.
const (
	StageFetchPage = "fetch_page"
	StageDetect    = "detect"
	StageAdapter   = "adapter"
	StageBrowser   = "browser"
	StageDedupe    = "dedupe"
	StageFilter    = "filter"
)

// AdapterSet fetches the locations of a detected source.
type AdapterSet interface {
	Fetch(ctx context.Context, src types.StoreLocatorSource) ([]types.RawLocationRecord, error)
}

// Capturer runs the browser fallback.
type Capturer interface {
	Capture(ctx context.Context, pageURL string, known types.StoreLocatorSource) (*browser.Capture, error)
}

// Observer is told about every finished scrape (metrics).
type Observer interface {
	ObserveScrape(o *Outcome)
}

// Dependencies are the collaborators of a Pipeline. Capturer may be nil,
// which disables the browser fallback.
type Dependencies struct {
	Fetcher  scraper.Fetcher
	Detector *detect.Detector
	Adapters AdapterSet
	Capturer Capturer
	Chains   *filter.ChainFilter
}

// ProcessingError represents a non-fatal failure in one stage
type ProcessingError struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
	Err     error     `json:"-"`
}

// Outcome is the result of scraping one brand.
type Outcome struct {
	Target   config.BrandTarget
	Source   types.StoreLocatorSource
	Result   *types.ScrapeResult
	Capture  *browser.Capture
	Errors   []ProcessingError
	Duration time.Duration
}

// Err joins the stage errors.
func (o *Outcome) Err() error {
	errs := make([]error, 0, len(o.Errors))
	for _, e := range o.Errors {
		errs = append(errs, e.Err)
	}
	return errors.Join(errs...)
}

// PipelineMetrics tracks pipeline performance
type PipelineMetrics struct {
	ProcessedCount  int64         `json:"processed_count"`
	EmptyCount      int64         `json:"empty_count"`
	StoresCount     int64         `json:"stores_count"`
	FallbackCount   int64         `json:"fallback_count"`
	AverageTime     time.Duration `json:"average_time"`
	TotalTime       time.Duration `json:"total_time"`
	LastProcessedAt time.Time     `json:"last_processed_at"`
}

// Pipeline scrapes brands one at a time.
type Pipeline struct {
	deps     Dependencies
	logger   utils.Logger
	observer Observer

	mu      sync.RWMutex
	metrics PipelineMetrics
}

// New creates a pipeline.
func New(deps Dependencies, logger utils.Logger) *Pipeline {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if deps.Chains == nil {
		deps.Chains = filter.NewChainFilter(nil)
	}
	if deps.Detector == nil {
		deps.Detector = detect.New(logger)
	}
	return &Pipeline{deps: deps, logger: logger}
}

// SetObserver registers a scrape observer.
func (p *Pipeline) SetObserver(o Observer) {
	p.observer = o
}

// Scrape acquires target's locations. It never fails: every stage error is
// recorded on the outcome, and a brand nothing could be recovered for yields
// a result with zero stores.
func (p *Pipeline) Scrape(ctx context.Context, target config.BrandTarget) *Outcome {
	started := time.Now()
	out := &Outcome{Target: target}
	log := p.logger.WithFields(map[string]interface{}{"brand": target.Name, "url": target.URL})

	fail := func(stage string, err error) {
		log.WithField("stage", stage).Warnf("%s failed: %v", stage, err)
		out.Errors = append(out.Errors, ProcessingError{
			Stage: stage, Message: err.Error(), Time: time.Now(), Err: err,
		})
	}

	// Stage 1: Detection
	out.Source = p.resolveSource(ctx, target, fail)

	// Stage 2: Protocol adapter
	var records []types.RawLocationRecord
	strategy := out.Source.Strategy
	if out.Source.Detected() && p.deps.Adapters != nil {
		recs, err := p.deps.Adapters.Fetch(ctx, out.Source)
		if err != nil {
			fail(StageAdapter, err)
		}
		records = recs
	}

	// Stage 3: Browser fallback
	if len(records) == 0 && p.deps.Capturer != nil && ctx.Err() == nil {
		log.Info("no records from adapter, starting browser capture")
		capture, err := p.deps.Capturer.Capture(ctx, target.URL, out.Source)
		if err != nil {
			fail(StageBrowser, err)
		}
		if capture != nil {
			out.Capture = capture
			records = capture.Records
			if !out.Source.Detected() && capture.Recovered.Detected() {
				out.Source = capture.Recovered
			}
			strategy = types.StrategyBrowserFallback
			if capture.Via == browser.ViaAdapter {
				strategy = out.Source.Strategy
			}
		}
	}

	// Stage 4: Within-source dedupe
	deduped, removed := Deduplicate(records)

	// Stage 5: Chain exclusion
	kept, excluded := p.deps.Chains.Apply(deduped)

	result := types.NewScrapeResult(target.URL)
	result.Brand = target.Name
	result.Platform = out.Source.Platform
	result.Strategy = strategy
	result.InstanceID = out.Source.InstanceID
	result.DuplicatesRemoved = removed
	result.ExcludedChains = excluded
	result.SetStores(kept)
	out.Result = result
	out.Duration = time.Since(started)

	log.WithFields(map[string]interface{}{
		"platform":           string(result.Platform),
		"strategy":           string(result.Strategy),
		"instance_id":        result.InstanceID,
		"stores":             result.TotalStores,
		"duplicates_removed": removed,
		"excluded_chains":    excluded,
		"elapsed":            utils.FormatDuration(out.Duration),
	}).Info("brand scraped")
	if result.TotalStores == 0 {
		log.Warn("no stores recovered, writing empty result")
	}

	p.updateMetrics(out)
	if p.observer != nil {
		p.observer.ObserveScrape(out)
	}
	return out
}

// resolveSource uses the configured platform when the target names one and
// detects it from the page otherwise.
func (p *Pipeline) resolveSource(ctx context.Context, target config.BrandTarget, fail func(string, error)) types.StoreLocatorSource {
	if target.Platform != "" && target.InstanceID != "" {
		platform := types.Platform(target.Platform)
		if platform.IsValid() {
			return types.StoreLocatorSource{
				URL:        target.URL,
				Platform:   platform,
				Strategy:   platform.Strategy(),
				InstanceID: target.InstanceID,
				Rule:       "configured",
			}
		}
		fail(StageDetect, fmt.Errorf("unsupported platform %q in brand list", target.Platform))
	}

	if p.deps.Fetcher == nil {
		return types.StoreLocatorSource{URL: target.URL, Strategy: types.StrategyBrowserFallback}
	}
	src, _, err := p.deps.Detector.DetectPage(ctx, p.deps.Fetcher, target.URL)
	if err != nil {
		fail(StageFetchPage, err)
	}
	return src
}

func (p *Pipeline) updateMetrics(out *Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m := &p.metrics
	m.ProcessedCount++
	m.StoresCount += int64(out.Result.TotalStores)
	if out.Result.TotalStores == 0 {
		m.EmptyCount++
	}
	if out.Capture != nil {
		m.FallbackCount++
	}
	m.TotalTime += out.Duration
	m.AverageTime = m.TotalTime / time.Duration(m.ProcessedCount)
	m.LastProcessedAt = time.Now()
}

// GetMetrics returns current pipeline metrics
func (p *Pipeline) GetMetrics() PipelineMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metrics
}
