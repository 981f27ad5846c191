// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valpere/BrandLocator/internal/adapters"
	"github.com/valpere/BrandLocator/internal/browser"
	"github.com/valpere/BrandLocator/internal/merge"
	"github.com/valpere/BrandLocator/internal/pipeline"
	"github.com/valpere/BrandLocator/pkg/types"
)

// MetricsManager holds the Prometheus metrics for scraping, merging and the
// directory API. Metrics live on a private registry so several managers can
// coexist in one process.
type MetricsManager struct {
	registry *prometheus.Registry

	// Request metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Acquisition metrics
	regionQueries   *prometheus.CounterVec
	regionRecords   *prometheus.CounterVec
	browserStates   *prometheus.HistogramVec
	browserFailures *prometheus.CounterVec
	scrapesTotal    *prometheus.CounterVec
	storesScraped   *prometheus.CounterVec
	scrapeDuration  *prometheus.HistogramVec
	chainsExcluded  prometheus.Counter
	duplicates      prometheus.Counter

	// Merge metrics
	mergeRuns        prometheus.Counter
	mergeSkipped     prometheus.Counter
	directoryStores  prometheus.Gauge
	multiBrandStores prometheus.Gauge
	brandStores      *prometheus.GaugeVec

	// Output and API metrics
	exportsTotal *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetricsManager creates the metrics under namespace.
func NewMetricsManager(namespace string) *MetricsManager {
	if namespace == "" {
		namespace = "brandlocator"
	}
	mm := &MetricsManager{registry: prometheus.NewRegistry()}

	mm.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http_client", Name: "requests_total",
		Help: "Outbound HTTP requests by host and status code (0 for transport errors)",
	}, []string{"host", "status_code"})
	mm.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http_client", Name: "request_duration_seconds",
		Help: "Outbound HTTP request duration in seconds", Buckets: prometheus.DefBuckets,
	}, []string{"host"})

	mm.regionQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "adapter", Name: "region_queries_total",
		Help: "Geographic sampling region queries by outcome",
	}, []string{"platform", "outcome"})
	mm.regionRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "adapter", Name: "region_records_total",
		Help: "Locations returned by region queries before deduplication",
	}, []string{"platform"})
	mm.browserStates = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "browser", Name: "state_duration_seconds",
		Help: "Time spent in each browser capture state", Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"state"})
	mm.browserFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "browser", Name: "state_failures_total",
		Help: "Browser capture states that ended with an error",
	}, []string{"state"})
	mm.scrapesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "scrape", Name: "brands_total",
		Help: "Brands scraped by strategy, platform and outcome",
	}, []string{"strategy", "platform", "outcome"})
	mm.storesScraped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "scrape", Name: "stores_total",
		Help: "Stores written to per-brand results",
	}, []string{"strategy"})
	mm.scrapeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "scrape", Name: "duration_seconds",
		Help: "Per-brand scrape duration in seconds", Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"strategy"})
	mm.chainsExcluded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "scrape", Name: "chains_excluded_total",
		Help: "Locations dropped by the chain denylist",
	})
	mm.duplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "scrape", Name: "duplicates_removed_total",
		Help: "Duplicate locations removed within a brand",
	})

	mm.mergeRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "merge", Name: "runs_total",
		Help: "Completed merge runs",
	})
	mm.mergeSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "merge", Name: "files_skipped_total",
		Help: "Input files skipped because they could not be read",
	})
	mm.directoryStores = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "directory", Name: "stores",
		Help: "Canonical stores in the current directory",
	})
	mm.multiBrandStores = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "directory", Name: "multi_brand_stores",
		Help: "Canonical stores carrying more than one brand",
	})
	mm.brandStores = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "directory", Name: "brand_stores",
		Help: "Canonical stores carrying each brand",
	}, []string{"brand"})

	mm.exportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "output", Name: "exports_total",
		Help: "Directory exports by format and outcome",
	}, []string{"format", "outcome"})
	mm.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "api", Name: "requests_total",
		Help: "Directory API requests by route and status code",
	}, []string{"route", "code"})
	mm.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "api", Name: "request_duration_seconds",
		Help: "Directory API request duration in seconds", Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	for _, c := range []prometheus.Collector{
		mm.requestsTotal, mm.requestDuration,
		mm.regionQueries, mm.regionRecords, mm.browserStates, mm.browserFailures,
		mm.scrapesTotal, mm.storesScraped, mm.scrapeDuration, mm.chainsExcluded, mm.duplicates,
		mm.mergeRuns, mm.mergeSkipped, mm.directoryStores, mm.multiBrandStores, mm.brandStores,
		mm.exportsTotal, mm.httpRequests, mm.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		mm.registry.MustRegister(c)
	}
	return mm
}

// Registry returns the registry backing the manager.
func (mm *MetricsManager) Registry() *prometheus.Registry { return mm.registry }

// Attach registers the manager as observer on a built pipeline.
func (mm *MetricsManager) Attach(p *pipeline.Pipeline, c *pipeline.Components) {
	p.SetObserver(mm)
	if c == nil {
		return
	}
	if c.Client != nil {
		c.Client.SetObserver(mm)
	}
	if c.Capturer != nil {
		c.Capturer.SetObserver(mm)
	}
	if c.Registry != nil {
		if a, ok := c.Registry.Get(types.PlatformStockist); ok {
			if s, ok := a.(*adapters.StockistAdapter); ok {
				s.SetObserver(mm)
			}
		}
	}
}

// ObserveRequest records one outbound HTTP request.
func (mm *MetricsManager) ObserveRequest(host string, status int, elapsed time.Duration, _ error) {
	mm.requestsTotal.WithLabelValues(host, strconv.Itoa(status)).Inc()
	mm.requestDuration.WithLabelValues(host).Observe(elapsed.Seconds())
}

// ObserveRegion records one geographic sampling query.
func (mm *MetricsManager) ObserveRegion(platform, _ string, returned, _ int, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "failed"
	case returned == 0:
		outcome = "empty"
	}
	mm.regionQueries.WithLabelValues(platform, outcome).Inc()
	mm.regionRecords.WithLabelValues(platform).Add(float64(returned))
}

// ObserveState records one browser capture state.
func (mm *MetricsManager) ObserveState(state browser.State, elapsed time.Duration, err error) {
	mm.browserStates.WithLabelValues(string(state)).Observe(elapsed.Seconds())
	if err != nil {
		mm.browserFailures.WithLabelValues(string(state)).Inc()
	}
}

// ObserveScrape records one brand scrape.
func (mm *MetricsManager) ObserveScrape(o *pipeline.Outcome) {
	if o.Result == nil {
		return
	}
	strategy := string(o.Result.Strategy)
	outcome := "ok"
	if o.Result.TotalStores == 0 {
		outcome = "empty"
	}
	mm.scrapesTotal.WithLabelValues(strategy, string(o.Result.Platform), outcome).Inc()
	mm.storesScraped.WithLabelValues(strategy).Add(float64(o.Result.TotalStores))
	mm.scrapeDuration.WithLabelValues(strategy).Observe(o.Duration.Seconds())
	mm.chainsExcluded.Add(float64(o.Result.ExcludedChains))
	mm.duplicates.Add(float64(o.Result.DuplicatesRemoved))
}

// ObserveMerge records a merge run.
func (mm *MetricsManager) ObserveMerge(report *merge.Report) {
	mm.mergeRuns.Inc()
	mm.mergeSkipped.Add(float64(len(report.Failures)))
	mm.ObserveDirectory(report.Directory)
}

// ObserveDirectory sets the directory gauges from dir.
func (mm *MetricsManager) ObserveDirectory(dir *types.MergedDirectory) {
	multi := 0
	perBrand := make(map[string]int)
	for _, s := range dir.Stores {
		if len(s.Brands) > 1 {
			multi++
		}
		for _, b := range s.Brands {
			perBrand[b]++
		}
	}
	mm.directoryStores.Set(float64(len(dir.Stores)))
	mm.multiBrandStores.Set(float64(multi))
	mm.brandStores.Reset()
	for brand, n := range perBrand {
		mm.brandStores.WithLabelValues(brand).Set(float64(n))
	}
}

// ObserveExport records a directory export.
func (mm *MetricsManager) ObserveExport(format string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	mm.exportsTotal.WithLabelValues(format, outcome).Inc()
}

// ObserveHTTP records one directory API request.
func (mm *MetricsManager) ObserveHTTP(route string, code int, elapsed time.Duration) {
	mm.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	mm.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// MetricsHandler returns the HTTP handler for metrics endpoint
func (mm *MetricsManager) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{})
}
