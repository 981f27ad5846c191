// internal/adapters/shapes.go
package adapters

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/titanous/json5"
)

// embeddedObject finds the outermost brace-delimited span, which tolerates
// JSONP callbacks and assignment prefixes around the payload.
var embeddedObject = regexp.MustCompile(`(?s)\{.*\}`)

// DecodeLenient parses body as strict JSON, then as the first embedded
// object, then as JSON5 for relaxed syntax such as unquoted keys.
func DecodeLenient(body []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(body, &v); err == nil {
		return v, nil
	}

	match := embeddedObject.Find(body)
	if match == nil {
		return nil, fmt.Errorf("no JSON object found in %d byte body", len(body))
	}
	if err := json.Unmarshal(match, &v); err == nil {
		return v, nil
	}
	if err := json5.Unmarshal(match, &v); err != nil {
		return nil, fmt.Errorf("embedded object is not valid JSON or JSON5: %w", err)
	}
	return v, nil
}

// ExtractLocations pulls a location collection out of a decoded response.
// Recognized shapes: a bare list, {locations: [...]}, {stores: [...]},
// {data: [...]}, {data: {...}}, {results: {locations: [...]}}, and a single
// location object. Non-object list entries are skipped.
func ExtractLocations(v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		return objects(t)
	case map[string]interface{}:
		for _, key := range []string{"locations", "stores"} {
			if list, ok := t[key].([]interface{}); ok {
				return objects(list)
			}
		}
		if results, ok := t["results"].(map[string]interface{}); ok {
			if list, ok := results["locations"].([]interface{}); ok {
				return objects(list)
			}
		}
		switch data := t["data"].(type) {
		case []interface{}:
			return objects(data)
		case map[string]interface{}:
			if nested := ExtractLocations(data); len(nested) > 0 {
				return nested
			}
		}
		if looksLikeLocation(t) {
			return []map[string]interface{}{t}
		}
	}
	return nil
}

func objects(list []interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func looksLikeLocation(m map[string]interface{}) bool {
	for _, key := range []string{"name", "address", "address_line_1", "city"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}
