// internal/browser/harvest.go
package browser

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"

	"github.com/valpere/BrandLocator/internal/adapters"
	"github.com/valpere/BrandLocator/pkg/types"
)

// apiPathMarkers are path fragments that distinguish data calls from widget
// assets on a locator host.
var apiPathMarkers = []string{"/api/", "/locations", "get_locations", "get_stores"}

// IsLocatorAPI reports whether a captured URL is a locator data call: its
// URL contains one of patterns and one of the API path markers.
func IsLocatorAPI(rawURL string, patterns []string) bool {
	lower := strings.ToLower(rawURL)
	hostMatch := false
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			hostMatch = true
			break
		}
	}
	if !hostMatch {
		return false
	}
	for _, marker := range apiPathMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// platformFromURL guesses the platform from the response host.
func platformFromURL(rawURL string) types.Platform {
	u, err := url.Parse(rawURL)
	if err != nil {
		return types.PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range types.SupportedPlatforms() {
		if strings.Contains(host, string(p)) {
			return p
		}
	}
	return types.PlatformUnknown
}

// ResponseRecords parses a captured response body as JSON and extracts
// its location collection.
func ResponseRecords(body []byte, platform types.Platform) ([]types.RawLocationRecord, error) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return identified(platform, adapters.ExtractLocations(v)), nil
}

// scriptObject matches flat object literals with a location-like key.
var scriptObject = regexp.MustCompile(`\{[^\{\}]*"(?:name|address|city)"[^\{\}]*\}`)

// ScriptRecords scans inline scripts that mention stores or locations for
// object literals and parses each one independently. It returns the records
// found and how many candidate objects failed to parse.
func ScriptRecords(markup string, platform types.Platform) ([]types.RawLocationRecord, int) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, 0
	}

	var payloads []map[string]interface{}
	skipped := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		content := s.Text()
		lower := strings.ToLower(content)
		if !strings.Contains(lower, "location") && !strings.Contains(lower, "store") {
			return
		}
		for _, match := range scriptObject.FindAllString(content, -1) {
			var obj map[string]interface{}
			if err := json.Unmarshal([]byte(match), &obj); err != nil {
				if err := json5.Unmarshal([]byte(match), &obj); err != nil {
					skipped++
					continue
				}
			}
			payloads = append(payloads, obj)
		}
	})
	return identified(platform, payloads), skipped
}

func identified(platform types.Platform, payloads []map[string]interface{}) []types.RawLocationRecord {
	records := make([]types.RawLocationRecord, 0, len(payloads))
	for _, p := range payloads {
		rec := types.RecordFromPayload(platform, p)
		if rec.HasIdentity() {
			records = append(records, rec)
		}
	}
	return records
}

// collector accumulates records across harvest sources in first-seen order.
type collector struct {
	seen    map[string]bool
	records []types.RawLocationRecord
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool), records: []types.RawLocationRecord{}}
}

func (c *collector) add(records []types.RawLocationRecord) int {
	added := 0
	for _, rec := range records {
		key := rec.DedupeKey()
		if c.seen[key] {
			continue
		}
		c.seen[key] = true
		c.records = append(c.records, rec)
		added++
	}
	return added
}
