// pkg/types/types_test.go
package types

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformStrategy(t *testing.T) {
	tests := []struct {
		platform Platform
		want     Strategy
	}{
		{PlatformStoreRocket, StrategyDirectAPI},
		{PlatformStoremapper, StrategyDirectAPI},
		{PlatformStockist, StrategyGeoSampling},
		{PlatformStorePoint, StrategyPrefixedAPI},
		{PlatformUnknown, StrategyBrowserFallback},
		{Platform("wix"), StrategyBrowserFallback},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.platform.Strategy())
			assert.True(t, tt.platform.Strategy().IsValid())
		})
	}

	assert.False(t, Strategy("scrape-everything").IsValid())
	assert.Len(t, ValidStrategies(), 4)
}

func TestStoreLocatorSourceDetected(t *testing.T) {
	src := StoreLocatorSource{URL: "https://example.com/stores"}
	assert.False(t, src.Detected())
	assert.Contains(t, src.String(), "undetected")

	src.Platform = PlatformStockist
	assert.False(t, src.Detected(), "platform without instance id is not detected")

	src.InstanceID = "u12345"
	assert.True(t, src.Detected())
	assert.Equal(t, "https://example.com/stores (stockist:u12345)", src.String())
}

func TestRecordFromPayload(t *testing.T) {
	payload := map[string]interface{}{
		"id":             float64(4521),
		"name":           " Green Grocer ",
		"address_line_1": "12 Main St",
		"city":           "Portland",
		"state":          "OR",
		"postal_code":    "97201",
		"latitude":       "45.52",
		"longitude":      -122.68,
		"custom":         map[string]interface{}{"hours": "9-5"},
	}

	rec := RecordFromPayload(PlatformStockist, payload)

	assert.Equal(t, "4521", rec.ID)
	assert.Equal(t, "Green Grocer", rec.Name)
	assert.Equal(t, "12 Main St", rec.AddressLine)
	assert.Equal(t, "Portland", rec.City)
	assert.Equal(t, "OR", rec.State)
	assert.Equal(t, "97201", rec.PostalCode)
	require.NotNil(t, rec.Latitude)
	require.NotNil(t, rec.Longitude)
	assert.InDelta(t, 45.52, *rec.Latitude, 1e-9)
	assert.InDelta(t, -122.68, *rec.Longitude, 1e-9)
	assert.True(t, rec.HasIdentity())
	assert.Equal(t, "id:4521", rec.DedupeKey())
}

func TestRecordFromPayloadAlternateKeys(t *testing.T) {
	rec := RecordFromPayload(PlatformStorePoint, map[string]interface{}{
		"title":         "Corner Market",
		"streetaddress": "1 Elm Ave",
		"province":      "BC",
		"loc_lat":       49.28,
		"loc_long":      -123.12,
	})

	assert.Equal(t, "Corner Market", rec.Name)
	assert.Equal(t, "1 Elm Ave", rec.AddressLine)
	assert.Equal(t, "BC", rec.State)
	assert.Empty(t, rec.ID)
	assert.Equal(t, "corner market|1 elm ave|", rec.DedupeKey())
}

func TestRecordWithoutIdentity(t *testing.T) {
	rec := RecordFromPayload(PlatformStockist, map[string]interface{}{"city": "Boise"})
	assert.False(t, rec.HasIdentity())
}

func TestRawRecordMarshalKeepsPayload(t *testing.T) {
	payload := map[string]interface{}{
		"id":      "a1",
		"name":    "Shop",
		"website": "https://shop.example",
	}
	rec := RecordFromPayload(PlatformStoreRocket, payload)

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestLookupNested(t *testing.T) {
	rec := RecordFromPayload(PlatformStockist, map[string]interface{}{
		"name": "Shop",
		"google_places": map[string]interface{}{
			"id":               "ChIJ123",
			"formattedAddress": "5 Oak St, Salem, OR",
		},
	})

	assert.Equal(t, "ChIJ123", rec.LookupString("google_places.id"))
	assert.Equal(t, "5 Oak St, Salem, OR", rec.LookupString("google_places.formattedAddress"))
	assert.Empty(t, rec.LookupString("google_places.missing"))
	assert.Empty(t, rec.LookupString("name.id"))
}

func TestCanonicalAddBrand(t *testing.T) {
	rec := &CanonicalStoreRecord{IdentityKey: "google:x"}

	assert.True(t, rec.AddBrand("Yolele"))
	assert.True(t, rec.AddBrand("Rishi Tea"))
	assert.False(t, rec.AddBrand("Yolele"))

	assert.Equal(t, []string{"Yolele", "Rishi Tea"}, rec.Brands)
	assert.Equal(t, 2, rec.BrandCount)
}

func TestCanonicalMarshalRoundTrip(t *testing.T) {
	rec := CanonicalStoreRecord{
		IdentityKey: "stockist:42",
		Name:        "Shop",
		City:        "Salem",
		State:       "OR",
		Brands:      []string{"Alice Mushrooms"},
		BrandCount:  1,
		Extra: map[string]interface{}{
			"name":          "overridden",
			"google_places": map[string]interface{}{"rating": 4.5},
		},
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "Shop", flat["name"], "canonical fields win over payload")
	assert.Equal(t, float64(1), flat["brand_count"])
	assert.Contains(t, flat, "google_places")

	var back CanonicalStoreRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.IdentityKey, back.IdentityKey)
	assert.Equal(t, rec.Brands, back.Brands)
	assert.Equal(t, 1, back.BrandCount)
	assert.Contains(t, back.Extra, "google_places")
	assert.NotContains(t, back.Extra, "name")
}

func TestScrapeResultEmptyStores(t *testing.T) {
	res := NewScrapeResult("https://example.com")
	res.SetStores(nil)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stores":[]`)
	assert.Contains(t, string(data), `"total_stores":0`)
}
