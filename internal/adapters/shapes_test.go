// internal/adapters/shapes_test.go
package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLenient(t *testing.T) {
	tests := []struct {
		name string
		body string
		key  string
	}{
		{"strict json", `{"locations": []}`, "locations"},
		{"jsonp wrapper", `cb({"locations": []});`, "locations"},
		{"assignment prefix", "window.__data = {\"stores\": []};\n", "stores"},
		{"json5 unquoted keys", `var x = {stores: [], count: 0}`, "stores"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeLenient([]byte(tt.body))
			require.NoError(t, err)
			m, ok := v.(map[string]interface{})
			require.True(t, ok)
			assert.Contains(t, m, tt.key)
		})
	}

	_, err := DecodeLenient([]byte("no object here"))
	assert.Error(t, err)

	_, err = DecodeLenient([]byte("{broken: ]"))
	assert.Error(t, err)
}

func TestExtractLocationsShapes(t *testing.T) {
	store := map[string]interface{}{"name": "A"}
	list := []interface{}{store, "junk", 3.0}

	tests := []struct {
		name string
		in   interface{}
		want int
	}{
		{"bare list", list, 1},
		{"locations", map[string]interface{}{"locations": list}, 1},
		{"stores", map[string]interface{}{"stores": list}, 1},
		{"data list", map[string]interface{}{"data": list}, 1},
		{"data object", map[string]interface{}{"data": map[string]interface{}{"name": "A", "city": "B"}}, 1},
		{"data wrapping locations", map[string]interface{}{"data": map[string]interface{}{"locations": list}}, 1},
		{"results locations", map[string]interface{}{"results": map[string]interface{}{"locations": list}}, 1},
		{"single object", map[string]interface{}{"address": "1 A St"}, 1},
		{"unrelated object", map[string]interface{}{"status": "ok"}, 0},
		{"scalar", "x", 0},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ExtractLocations(tt.in), tt.want)
		})
	}
}
