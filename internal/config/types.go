// internal/config/types.go

// Package config provides configuration types for BrandLocator: HTTP politeness,
// browser capture, per-platform endpoints, chain exclusion, brand naming,
// output and metrics.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" json:"log_level"`

	HTTP      HTTPConfig      `yaml:"http" json:"http"`
	Browser   BrowserConfig   `yaml:"browser" json:"browser"`
	Platforms PlatformsConfig `yaml:"platforms" json:"platforms"`
	Chains    ChainsConfig    `yaml:"chains" json:"chains"`
	Brands    BrandsConfig    `yaml:"brands" json:"brands"`
	Merge     MergeConfig     `yaml:"merge" json:"merge"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
	Server    ServerConfig    `yaml:"server" json:"server"`
}

// HTTPConfig defines request settings shared by the detector and adapters.
type HTTPConfig struct {
	// Timeout bounds each request. A timed-out call fails and is not retried.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	UserAgent string            `yaml:"user_agent" json:"user_agent"`
	Headers   map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// RequestDelay is the minimum spacing between consecutive requests.
	RequestDelay time.Duration `yaml:"request_delay" json:"request_delay"`

	// BrandDelay is the pause between brands in a batch scrape.
	BrandDelay time.Duration `yaml:"brand_delay" json:"brand_delay"`
}

// BrowserConfig defines the headless browser capture fallback.
type BrowserConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Headless  bool   `yaml:"headless" json:"headless"`
	ExecPath  string `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`

	ViewportWidth  int `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int `yaml:"viewport_height" json:"viewport_height"`

	// NavigateTimeout bounds the initial page load.
	NavigateTimeout time.Duration `yaml:"navigate_timeout" json:"navigate_timeout"`
	// StepTimeout bounds each later step (overlay dismissal, scrolling, harvest).
	StepTimeout time.Duration `yaml:"step_timeout" json:"step_timeout"`
	// WidgetTimeout bounds polling for widget initialization. Expiry is non-fatal.
	WidgetTimeout time.Duration `yaml:"widget_timeout" json:"widget_timeout"`
	PollInterval  time.Duration `yaml:"poll_interval" json:"poll_interval"`
	// SettleDelay lets late widget requests finish before capture is read.
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`

	CloseSelectors []string `yaml:"close_selectors" json:"close_selectors"`
	WidgetSignals  []string `yaml:"widget_signals" json:"widget_signals"`
	// APIPatterns are URL substrings that mark a captured response as a
	// locator API call.
	APIPatterns []string `yaml:"api_patterns" json:"api_patterns"`
}

// EndpointConfig lists candidate endpoint templates. "{id}" is replaced with
// the instance identifier.
type EndpointConfig struct {
	Endpoints []string `yaml:"endpoints" json:"endpoints"`
}

// Region is a geographic sampling point.
type Region struct {
	Name string  `yaml:"name" json:"name"`
	Lat  float64 `yaml:"lat" json:"lat"`
	Lon  float64 `yaml:"lon" json:"lon"`
}

// StockistConfig configures the geographic-sampling adapter.
type StockistConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	// RadiusKM is the search distance per region.
	RadiusKM    int           `yaml:"radius_km" json:"radius_km"`
	Sort        string        `yaml:"sort" json:"sort"`
	RegionDelay time.Duration `yaml:"region_delay" json:"region_delay"`
	Regions     []Region      `yaml:"regions" json:"regions"`
}

// PlatformsConfig holds per-platform adapter settings.
type PlatformsConfig struct {
	StoreRocket EndpointConfig `yaml:"storerocket" json:"storerocket"`
	Stockist    StockistConfig `yaml:"stockist" json:"stockist"`
	StorePoint  EndpointConfig `yaml:"storepoint" json:"storepoint"`
	Storemapper EndpointConfig `yaml:"storemapper" json:"storemapper"`
}

// ChainsConfig is the large-retailer denylist.
type ChainsConfig struct {
	Denylist []string `yaml:"denylist" json:"denylist"`
}

// BrandTarget is one brand to scrape in a batch.
type BrandTarget struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
	// Platform and InstanceID skip detection when both are set.
	Platform   string `yaml:"platform,omitempty" json:"platform,omitempty"`
	InstanceID string `yaml:"instance_id,omitempty" json:"instance_id,omitempty"`
}

// BrandsConfig controls brand naming and the batch brand list.
type BrandsConfig struct {
	// Aliases maps a file-name stem to a display name.
	Aliases map[string]string `yaml:"aliases" json:"aliases"`
	// StripSuffixes are removed from input file names before aliasing.
	StripSuffixes []string      `yaml:"strip_suffixes" json:"strip_suffixes"`
	Targets       []BrandTarget `yaml:"targets,omitempty" json:"targets,omitempty"`
}

// MergeConfig controls the merge engine extras.
type MergeConfig struct {
	// DefaultPlatform namespaces platform ids in files without a platform field.
	DefaultPlatform string `yaml:"default_platform" json:"default_platform"`
	// SimilarityThreshold is the Jaro-Winkler score for the suspected
	// duplicate report. Zero disables the report.
	SimilarityThreshold float64 `yaml:"similarity_threshold" json:"similarity_threshold"`
	TopStores           int     `yaml:"top_stores" json:"top_stores"`
}

// OutputConfig defines output settings.
type OutputConfig struct {
	Dir    string `yaml:"dir" json:"dir"`
	Indent bool   `yaml:"indent" json:"indent"`

	// Database holds SQL/Mongo export settings.
	Database DatabaseConfig `yaml:"database" json:"database"`
}

// DatabaseConfig configures SQL and MongoDB exports.
type DatabaseConfig struct {
	// Driver is sqlite3, postgres, mysql or mongodb
	Driver    string `yaml:"driver" json:"driver"`
	DSN       string `yaml:"dsn" json:"dsn"`
	Table     string `yaml:"table" json:"table"`
	Database  string `yaml:"database,omitempty" json:"database,omitempty"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	Truncate  bool   `yaml:"truncate" json:"truncate"`
}

// MetricsConfig defines Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// ServerConfig defines the read-only directory API.
type ServerConfig struct {
	Listen       string        `yaml:"listen" json:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	// RateLimit caps API requests per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
}
