// internal/config/config.go
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/valpere/BrandLocator/internal/errors"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultRegions are the sampling points covering the continental US, Alaska,
// Hawaii and Puerto Rico at a 5000 km radius.
func DefaultRegions() []Region {
	return []Region{
		{Name: "Pacific West", Lat: 45.0, Lon: -122.0},
		{Name: "Mountain West", Lat: 40.0, Lon: -111.0},
		{Name: "Southwest", Lat: 33.0, Lon: -112.0},
		{Name: "South Central", Lat: 32.0, Lon: -96.0},
		{Name: "Southeast", Lat: 33.0, Lon: -84.0},
		{Name: "Northeast", Lat: 41.0, Lon: -74.0},
		{Name: "New England", Lat: 43.0, Lon: -71.0},
		{Name: "Great Lakes", Lat: 43.0, Lon: -88.0},
		{Name: "Northern Plains", Lat: 46.0, Lon: -100.0},
		{Name: "California", Lat: 37.0, Lon: -121.0},
		{Name: "Hawaii", Lat: 21.3, Lon: -157.8},
		{Name: "Alaska", Lat: 64.2, Lon: -149.5},
		{Name: "Puerto Rico", Lat: 18.2, Lon: -66.5},
		{Name: "Florida South", Lat: 25.8, Lon: -80.2},
		{Name: "Maine North", Lat: 45.3, Lon: -69.0},
	}
}

// DefaultChains is the built-in large-retailer denylist.
func DefaultChains() []string {
	return []string{"Whole Foods", "Stop & Shop", "Target", "Walmart", "Kroger", "Safeway"}
}

// DefaultAliases maps file-name stems to display brand names.
func DefaultAliases() map[string]string {
	return map[string]string{
		"alice":       "Alice Mushrooms",
		"yolele":      "Yolele",
		"rooted_fare": "Rooted Fare",
		"rishi_tea":   "Rishi Tea",
		"only_bean":   "The Only Bean",
	}
}

// Default returns a fully populated configuration. The tool runs without a
// config file on these values.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			UserAgent:    defaultUserAgent,
			RequestDelay: 200 * time.Millisecond,
			BrandDelay:   time.Second,
		},
		Browser: BrowserConfig{
			Enabled:         true,
			Headless:        true,
			ViewportWidth:   1920,
			ViewportHeight:  1080,
			NavigateTimeout: 60 * time.Second,
			StepTimeout:     10 * time.Second,
			WidgetTimeout:   15 * time.Second,
			PollInterval:    500 * time.Millisecond,
			SettleDelay:     3 * time.Second,
			CloseSelectors: []string{
				`button[aria-label*="Close"]`,
				`button[class*="close"]`,
				`button[class*="modal-close"]`,
				`button[class*="popup-close"]`,
				`[class*="close-button"]`,
				`[class*="modal-close"]`,
				`.klaviyo-close-form`,
				`#klaviyo-close`,
				`[data-testid="close-button"]`,
				`[aria-label="Close dialog"]`,
				`[aria-label="Close modal"]`,
				`#onetrust-accept-btn-handler`,
				`button[id*="cookie-accept"]`,
				`button[class*="cookie-accept"]`,
			},
			WidgetSignals: []string{
				`[data-stockist]`,
				`.stockist-widget`,
				`#stockist-widget`,
				`window.Stockist`,
				`[data-storerocket-id]`,
				`#storerocket-widget`,
				`[data-map-id]`,
				`window.StoreRocket`,
			},
			APIPatterns: []string{
				"stockist.co",
				"storerocket.io",
				"storepoint.co",
				"storemapper.co",
			},
		},
		Platforms: PlatformsConfig{
			StoreRocket: EndpointConfig{Endpoints: []string{
				"https://storerocket.io/api/user/{id}/locations",
			}},
			Stockist: StockistConfig{
				Endpoint:    "https://stockist.co/api/v1/{id}/locations/search",
				RadiusKM:    5000,
				Sort:        "name",
				RegionDelay: 200 * time.Millisecond,
				Regions:     DefaultRegions(),
			},
			StorePoint: EndpointConfig{Endpoints: []string{
				"https://storepoint.co/api/get_locations?storepoint_id={id}",
				"https://api.storepoint.co/v1/locations?storepoint_id={id}",
			}},
			Storemapper: EndpointConfig{Endpoints: []string{
				"https://www.storemapper.co/api/get_stores?storemapper_id={id}",
			}},
		},
		Chains: ChainsConfig{Denylist: DefaultChains()},
		Brands: BrandsConfig{
			Aliases:       DefaultAliases(),
			StripSuffixes: []string{"_enriched.json", "_raw.json", "_google.json", ".json"},
		},
		Merge: MergeConfig{
			DefaultPlatform:     "stockist",
			SimilarityThreshold: 0.93,
			TopStores:           10,
		},
		Output: OutputConfig{
			Dir:    "output",
			Indent: true,
			Database: DatabaseConfig{
				Driver:    "sqlite3",
				DSN:       "brandlocator.db",
				Table:     "stores",
				Database:  "brandlocator",
				BatchSize: 500,
			},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "brandlocator",
		},
		Server: ServerConfig{
			Listen:       ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			RateLimit:    50,
		},
	}
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored so a bare checkout works without one.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return apperrors.New(apperrors.KindConfig, "config.env", fmt.Errorf("load %s: %w", p, err))
		}
	}
	return nil
}

// Load returns the configuration at filename, or the defaults when filename
// is empty.
func Load(filename string) (*Config, error) {
	if filename == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return LoadFromFile(filename)
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, apperrors.Newf(apperrors.KindConfig, "config.load", "configuration filename cannot be empty")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, apperrors.Newf(apperrors.KindConfig, "config.load", "configuration file not found: %s", filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfig, "config.load", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes layered over Default.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	expandedData := expandEnvironmentVariables(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, apperrors.New(apperrors.KindConfig, "config.parse", fmt.Errorf("failed to parse YAML configuration: %w", err))
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, apperrors.Newf(apperrors.KindConfig, "config.load", "reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfig, "config.load", err)
	}

	return LoadFromBytes(data)
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(cfg *Config, filename string) error {
	if cfg == nil {
		return apperrors.Newf(apperrors.KindConfig, "config.save", "configuration cannot be nil")
	}
	if filename == "" {
		return apperrors.Newf(apperrors.KindConfig, "config.save", "filename cannot be empty")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return apperrors.New(apperrors.KindConfig, "config.save", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return apperrors.New(apperrors.KindConfig, "config.save", err)
	}

	return os.WriteFile(filename, data, 0644)
}

// LoadBrandTargets reads a brand list file. Two layouts are accepted: a list
// of {name, url} entries, or a mapping of brand name to URL.
func LoadBrandTargets(filename string) ([]BrandTarget, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, apperrors.New(apperrors.KindConfig, "config.brands", err)
	}
	data = []byte(expandEnvironmentVariables(string(data)))

	var list []BrandTarget
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return list, validateTargets(list)
	}

	var wrapped struct {
		Targets []BrandTarget `yaml:"targets"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Targets) > 0 {
		return wrapped.Targets, validateTargets(wrapped.Targets)
	}

	var mapping map[string]string
	if err := yaml.Unmarshal(data, &mapping); err != nil {
		return nil, apperrors.New(apperrors.KindConfig, "config.brands", fmt.Errorf("failed to parse brand list: %w", err))
	}
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		list = append(list, BrandTarget{Name: name, URL: mapping[name]})
	}
	return list, validateTargets(list)
}

// expandEnvironmentVariables replaces ${VAR} and $VAR references
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyDefaults fills values a config file zeroed or emptied.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = def.HTTP.Timeout
	}
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = def.HTTP.UserAgent
	}

	b := &cfg.Browser
	if b.ViewportWidth == 0 {
		b.ViewportWidth = def.Browser.ViewportWidth
	}
	if b.ViewportHeight == 0 {
		b.ViewportHeight = def.Browser.ViewportHeight
	}
	if b.NavigateTimeout == 0 {
		b.NavigateTimeout = def.Browser.NavigateTimeout
	}
	if b.StepTimeout == 0 {
		b.StepTimeout = def.Browser.StepTimeout
	}
	if b.WidgetTimeout == 0 {
		b.WidgetTimeout = def.Browser.WidgetTimeout
	}
	if b.PollInterval == 0 {
		b.PollInterval = def.Browser.PollInterval
	}
	if len(b.APIPatterns) == 0 {
		b.APIPatterns = def.Browser.APIPatterns
	}

	p := &cfg.Platforms
	if len(p.StoreRocket.Endpoints) == 0 {
		p.StoreRocket = def.Platforms.StoreRocket
	}
	if len(p.StorePoint.Endpoints) == 0 {
		p.StorePoint = def.Platforms.StorePoint
	}
	if len(p.Storemapper.Endpoints) == 0 {
		p.Storemapper = def.Platforms.Storemapper
	}
	if p.Stockist.Endpoint == "" {
		p.Stockist.Endpoint = def.Platforms.Stockist.Endpoint
	}
	if p.Stockist.RadiusKM == 0 {
		p.Stockist.RadiusKM = def.Platforms.Stockist.RadiusKM
	}
	if p.Stockist.Sort == "" {
		p.Stockist.Sort = def.Platforms.Stockist.Sort
	}
	if len(p.Stockist.Regions) == 0 {
		p.Stockist.Regions = def.Platforms.Stockist.Regions
	}

	if cfg.Brands.Aliases == nil {
		cfg.Brands.Aliases = map[string]string{}
	}
	if len(cfg.Brands.StripSuffixes) == 0 {
		cfg.Brands.StripSuffixes = def.Brands.StripSuffixes
	}

	if cfg.Merge.DefaultPlatform == "" {
		cfg.Merge.DefaultPlatform = def.Merge.DefaultPlatform
	}
	if cfg.Merge.TopStores == 0 {
		cfg.Merge.TopStores = def.Merge.TopStores
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = def.Output.Dir
	}
	db := &cfg.Output.Database
	if db.Driver == "" {
		db.Driver = def.Output.Database.Driver
	}
	if db.Table == "" {
		db.Table = def.Output.Database.Table
	}
	if db.Database == "" {
		db.Database = def.Output.Database.Database
	}
	if db.BatchSize == 0 {
		db.BatchSize = def.Output.Database.BatchSize
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = def.Metrics.Namespace
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = def.Server.Listen
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = def.Server.WriteTimeout
	}
}
