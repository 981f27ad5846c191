// pkg/types/types.go
package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Strategy is the data-access strategy used to acquire a brand's locations.
type Strategy string

const (
	StrategyDirectAPI       Strategy = "direct-api"
	StrategyGeoSampling     Strategy = "geo-sampling-api"
	StrategyPrefixedAPI     Strategy = "prefixed-api"
	StrategyBrowserFallback Strategy = "browser-fallback"
)

// ValidStrategies returns all valid strategy values
func ValidStrategies() []Strategy {
	return []Strategy{
		StrategyDirectAPI, StrategyGeoSampling,
		StrategyPrefixedAPI, StrategyBrowserFallback,
	}
}

// IsValid checks if the strategy is a valid value
func (s Strategy) IsValid() bool {
	for _, valid := range ValidStrategies() {
		if s == valid {
			return true
		}
	}
	return false
}

// Platform names a supported store locator widget service.
type Platform string

const (
	PlatformUnknown     Platform = ""
	PlatformStoreRocket Platform = "storerocket"
	PlatformStockist    Platform = "stockist"
	PlatformStorePoint  Platform = "storepoint"
	PlatformStoremapper Platform = "storemapper"
)

// SupportedPlatforms returns the platforms that have a protocol adapter.
func SupportedPlatforms() []Platform {
	return []Platform{
		PlatformStoreRocket, PlatformStockist,
		PlatformStorePoint, PlatformStoremapper,
	}
}

// Strategy returns the acquisition strategy the platform's adapter uses.
func (p Platform) Strategy() Strategy {
	switch p {
	case PlatformStoreRocket, PlatformStoremapper:
		return StrategyDirectAPI
	case PlatformStockist:
		return StrategyGeoSampling
	case PlatformStorePoint:
		return StrategyPrefixedAPI
	default:
		return StrategyBrowserFallback
	}
}

// IsValid checks if the platform has an adapter
func (p Platform) IsValid() bool {
	for _, valid := range SupportedPlatforms() {
		if p == valid {
			return true
		}
	}
	return false
}

// StoreLocatorSource describes where a brand publishes its locations.
type StoreLocatorSource struct {
	URL        string   `json:"url" yaml:"url"`
	Platform   Platform `json:"platform,omitempty" yaml:"platform,omitempty"`
	Strategy   Strategy `json:"strategy" yaml:"strategy"`
	InstanceID string   `json:"instance_id,omitempty" yaml:"instance_id,omitempty"`
	// Rule is the name of the detection rule that produced the source.
	Rule string `json:"rule,omitempty" yaml:"-"`
}

// Detected reports whether a platform and instance identifier are known.
func (s StoreLocatorSource) Detected() bool {
	return s.Platform.IsValid() && s.InstanceID != ""
}

func (s StoreLocatorSource) String() string {
	if !s.Detected() {
		return fmt.Sprintf("%s (undetected)", s.URL)
	}
	return fmt.Sprintf("%s (%s:%s)", s.URL, s.Platform, s.InstanceID)
}

// RawLocationRecord is a platform-native location with the common fields
// lifted out of the untouched source payload.
type RawLocationRecord struct {
	ID          string
	Name        string
	AddressLine string
	City        string
	State       string
	PostalCode  string
	Country     string
	Latitude    *float64
	Longitude   *float64
	Platform    Platform
	Payload     map[string]interface{}
}

// MarshalJSON writes the source payload as-is so per-brand files keep every
// platform field. Records built without a payload are written from their fields.
func (r RawLocationRecord) MarshalJSON() ([]byte, error) {
	if r.Payload != nil {
		return json.Marshal(r.Payload)
	}
	out := map[string]interface{}{"name": r.Name}
	if r.ID != "" {
		out["id"] = r.ID
	}
	if r.AddressLine != "" {
		out["address_line_1"] = r.AddressLine
	}
	if r.City != "" {
		out["city"] = r.City
	}
	if r.State != "" {
		out["state"] = r.State
	}
	if r.PostalCode != "" {
		out["postal_code"] = r.PostalCode
	}
	if r.Country != "" {
		out["country"] = r.Country
	}
	if r.Latitude != nil {
		out["latitude"] = *r.Latitude
	}
	if r.Longitude != nil {
		out["longitude"] = *r.Longitude
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a payload object and lifts the common fields.
func (r *RawLocationRecord) UnmarshalJSON(data []byte) error {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*r = RecordFromPayload(r.Platform, payload)
	return nil
}

// CanonicalStoreRecord is one physical store in a merged directory.
type CanonicalStoreRecord struct {
	IdentityKey string
	Name        string
	AddressLine string
	City        string
	State       string
	Brands      []string
	BrandCount  int
	// Extra carries the source payload, including enrichment objects attached
	// by external collaborators. It is never interpreted by the merge engine.
	Extra map[string]interface{}
}

// canonicalFields are written by MarshalJSON on top of the passthrough payload.
var canonicalFields = []string{
	"identity_key", "name", "address_line", "city", "state", "brands", "brand_count",
}

// HasBrand reports whether brand is already recorded for the store.
func (c *CanonicalStoreRecord) HasBrand(brand string) bool {
	for _, b := range c.Brands {
		if b == brand {
			return true
		}
	}
	return false
}

// AddBrand appends brand if it is not already present and keeps BrandCount in
// step with Brands. It reports whether the brand was added.
func (c *CanonicalStoreRecord) AddBrand(brand string) bool {
	if c.HasBrand(brand) {
		return false
	}
	c.Brands = append(c.Brands, brand)
	c.BrandCount = len(c.Brands)
	return true
}

// MarshalJSON flattens the passthrough payload and the canonical fields into
// one object. Canonical fields win over payload keys of the same name.
func (c CanonicalStoreRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.Extra)+len(canonicalFields))
	for k, v := range c.Extra {
		out[k] = v
	}
	brands := c.Brands
	if brands == nil {
		brands = []string{}
	}
	out["identity_key"] = c.IdentityKey
	out["name"] = c.Name
	out["address_line"] = c.AddressLine
	out["city"] = c.City
	out["state"] = c.State
	out["brands"] = brands
	out["brand_count"] = len(brands)
	return json.Marshal(out)
}

// UnmarshalJSON reads a directory store entry back into canonical form.
func (c *CanonicalStoreRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rec := CanonicalStoreRecord{
		IdentityKey: stringValue(raw["identity_key"]),
		Name:        stringValue(raw["name"]),
		AddressLine: stringValue(raw["address_line"]),
		City:        stringValue(raw["city"]),
		State:       stringValue(raw["state"]),
	}
	if list, ok := raw["brands"].([]interface{}); ok {
		for _, b := range list {
			if s, ok := b.(string); ok {
				rec.AddBrand(s)
			}
		}
	}
	rec.BrandCount = len(rec.Brands)
	for _, k := range canonicalFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		rec.Extra = raw
	}
	*c = rec
	return nil
}

// BrandStats tracks how one brand's dataset contributed to a merge.
type BrandStats struct {
	TotalStores    int `json:"total_stores"`
	NewStores      int `json:"new_stores"`
	ExistingStores int `json:"existing_stores"`
}

// MergedDirectory is the terminal artifact of a merge run.
type MergedDirectory struct {
	RunID       string                  `json:"run_id,omitempty"`
	MergedAt    time.Time               `json:"merged_at"`
	SourceFiles []string                `json:"source_files"`
	TotalStores int                     `json:"total_stores"`
	BrandStats  map[string]*BrandStats  `json:"brand_stats"`
	Stores      []*CanonicalStoreRecord `json:"stores"`
}

// Brands returns the brand names in the directory, sorted.
func (d *MergedDirectory) Brands() []string {
	names := make([]string, 0, len(d.BrandStats))
	for name := range d.BrandStats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Index maps identity keys to stores.
func (d *MergedDirectory) Index() map[string]*CanonicalStoreRecord {
	idx := make(map[string]*CanonicalStoreRecord, len(d.Stores))
	for _, s := range d.Stores {
		idx[s.IdentityKey] = s
	}
	return idx
}

// ScrapeResult is the per-brand scrape output file.
type ScrapeResult struct {
	Brand             string              `json:"brand,omitempty"`
	SourceURL         string              `json:"source_url"`
	ScrapedAt         time.Time           `json:"scraped_at"`
	Platform          Platform            `json:"platform,omitempty"`
	Strategy          Strategy            `json:"strategy,omitempty"`
	InstanceID        string              `json:"instance_id,omitempty"`
	TotalStores       int                 `json:"total_stores"`
	DuplicatesRemoved int                 `json:"duplicates_removed"`
	ExcludedChains    int                 `json:"excluded_chains"`
	Stores            []RawLocationRecord `json:"stores"`
}

// NewScrapeResult returns an empty result for url. An empty result is a valid
// output: acquisition failure for one brand never blocks the others.
func NewScrapeResult(url string) *ScrapeResult {
	return &ScrapeResult{
		SourceURL: url,
		ScrapedAt: time.Now(),
		Stores:    []RawLocationRecord{},
	}
}

// SetStores replaces the stores and keeps TotalStores consistent.
func (r *ScrapeResult) SetStores(stores []RawLocationRecord) {
	if stores == nil {
		stores = []RawLocationRecord{}
	}
	r.Stores = stores
	r.TotalStores = len(stores)
}
