// pkg/types/normalize.go
package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field name candidates, most specific first. Platforms disagree on naming
// (Stockist uses address_line_1, StorePoint uses streetaddress, etc).
var (
	idKeys      = []string{"id", "location_id", "store_id", "_id"}
	nameKeys    = []string{"name", "title", "store_name", "location_name"}
	addressKeys = []string{"address_line_1", "address1", "streetaddress", "street_address", "address", "street"}
	cityKeys    = []string{"city", "town", "locality"}
	stateKeys   = []string{"state", "province", "region", "state_code"}
	postalKeys  = []string{"postal_code", "postcode", "zip", "zipcode"}
	countryKeys = []string{"country", "country_code"}
	latKeys     = []string{"lat", "latitude", "loc_lat"}
	lngKeys     = []string{"lng", "lon", "long", "longitude", "loc_long"}
)

// RecordFromPayload lifts the common location fields out of a platform
// payload. The payload itself is kept unmodified on the record.
func RecordFromPayload(platform Platform, payload map[string]interface{}) RawLocationRecord {
	rec := RawLocationRecord{
		Platform: platform,
		Payload:  payload,
	}
	if payload == nil {
		return rec
	}
	rec.ID = firstString(payload, idKeys)
	rec.Name = firstString(payload, nameKeys)
	rec.AddressLine = firstString(payload, addressKeys)
	rec.City = firstString(payload, cityKeys)
	rec.State = firstString(payload, stateKeys)
	rec.PostalCode = firstString(payload, postalKeys)
	rec.Country = firstString(payload, countryKeys)
	rec.Latitude = firstFloat(payload, latKeys)
	rec.Longitude = firstFloat(payload, lngKeys)
	return rec
}

// HasIdentity reports whether the record carries a name or an id. Entries
// with neither are not locations.
func (r RawLocationRecord) HasIdentity() bool {
	return r.Name != "" || r.ID != ""
}

// DedupeKey is the within-source duplicate key: the platform id when present,
// otherwise name, address and city.
func (r RawLocationRecord) DedupeKey() string {
	if r.ID != "" {
		return "id:" + r.ID
	}
	return strings.ToLower(strings.Join([]string{
		strings.TrimSpace(r.Name),
		strings.TrimSpace(r.AddressLine),
		strings.TrimSpace(r.City),
	}, "|"))
}

// Lookup returns a nested payload value by dotted path, e.g. "google_places.id".
func (r RawLocationRecord) Lookup(path string) (interface{}, bool) {
	var cur interface{} = r.Payload
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// LookupString is Lookup for scalar values rendered as strings.
func (r RawLocationRecord) LookupString(path string) string {
	v, ok := r.Lookup(path)
	if !ok {
		return ""
	}
	return stringValue(v)
}

func firstString(m map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if s := stringValue(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstFloat(m map[string]interface{}, keys []string) *float64 {
	for _, k := range keys {
		if f, ok := floatValue(m[k]); ok {
			return &f
		}
	}
	return nil
}

// stringValue renders scalars as strings. Numeric ids come back from JSON as
// float64 and are written without a fractional part.
func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}

func floatValue(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
