// internal/browser/harvest_test.go
package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/pkg/types"
)

func TestIsLocatorAPI(t *testing.T) {
	patterns := config.Default().Browser.APIPatterns

	tests := []struct {
		url  string
		want bool
	}{
		{"https://stockist.co/api/v1/u1/locations/search?tag=u1", true},
		{"https://STOCKIST.CO/API/V1/U1/widget.js", true},
		{"https://storerocket.io/api/user/abc/locations", true},
		{"https://storepoint.co/api/get_locations?storepoint_id=x", true},
		{"https://www.storemapper.co/api/get_stores?storemapper_id=1", true},
		{"https://stockist.co/widget.css", false},
		{"https://example.com/api/locations", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLocatorAPI(tt.url, patterns))
		})
	}
	assert.False(t, IsLocatorAPI("https://stockist.co/api/v1", nil))
}

func TestPlatformFromURL(t *testing.T) {
	assert.Equal(t, types.PlatformStockist, platformFromURL("https://stockist.co/api/v1/u1"))
	assert.Equal(t, types.PlatformStorePoint, platformFromURL("https://api.storepoint.co/v1/x"))
	assert.Equal(t, types.PlatformUnknown, platformFromURL("https://example.com/stockist"))
	assert.Equal(t, types.PlatformUnknown, platformFromURL("::bad"))
}

func TestResponseRecordsShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare list", `[{"name": "A"}, {"name": "B"}]`, 2},
		{"locations", `{"locations": [{"name": "A"}]}`, 1},
		{"stores", `{"stores": [{"id": 1}]}`, 1},
		{"data list", `{"data": [{"name": "A"}, {"name": "B"}, {"name": "C"}]}`, 3},
		{"data object", `{"data": {"name": "A", "city": "X"}}`, 1},
		{"entries without identity", `{"locations": [{"city": "X"}]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ResponseRecords([]byte(tt.body), types.PlatformStockist)
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
		})
	}

	_, err := ResponseRecords([]byte(`callback({"locations": []})`), types.PlatformStockist)
	assert.Error(t, err, "captured traffic is parsed as strict JSON")
}

func TestScriptRecordsSkipsUnparseable(t *testing.T) {
	markup := `<script>var locations = [{"name": "Ok"}, {"name": "Bad", "city": ]}];</script>`

	records, skipped := ScriptRecords(markup, types.PlatformUnknown)
	require.Len(t, records, 1)
	assert.Equal(t, "Ok", records[0].Name)
	assert.Equal(t, 1, skipped)
}

func TestScriptRecordsIgnoresUnrelatedScripts(t *testing.T) {
	markup := `<script>var cfg = {"name": "theme"};</script><p>{"name": "not a script"}</p>`

	records, skipped := ScriptRecords(markup, types.PlatformUnknown)
	assert.Empty(t, records)
	assert.Zero(t, skipped)
}
