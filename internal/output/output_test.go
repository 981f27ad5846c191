// internal/output/output_test.go
package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/valpere/BrandLocator/internal/config"
	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/pkg/types"
)

func sampleDirectory() *types.MergedDirectory {
	return &types.MergedDirectory{
		RunID:       "run-1",
		MergedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SourceFiles: []string{"alice.json", "yolele.json"},
		TotalStores: 2,
		BrandStats: map[string]*types.BrandStats{
			"Alice Mushrooms": {TotalStores: 2, NewStores: 2},
			"Yolele":          {TotalStores: 1, ExistingStores: 1},
		},
		Stores: []*types.CanonicalStoreRecord{
			{
				IdentityKey: "google:abc",
				Name:        "Green Grocer",
				AddressLine: "1 Main St",
				City:        "Austin",
				State:       "TX",
				Brands:      []string{"Alice Mushrooms", "Yolele"},
				BrandCount:  2,
				Extra: map[string]interface{}{
					"postal_code":   "78701",
					"lat":           30.27,
					"lng":           -97.74,
					"google_places": map[string]interface{}{"id": "abc", "rating": 4.5},
				},
			},
			{
				IdentityKey: "stockist:7",
				Name:        "Corner, Market",
				City:        "Dallas",
				State:       "TX",
				Brands:      []string{"Alice Mushrooms"},
				BrandCount:  1,
			},
		},
	}
}

func TestNewStoreRow(t *testing.T) {
	dir := sampleDirectory()

	row := NewStoreRow(dir.Stores[0])
	assert.Equal(t, "78701", row.PostalCode)
	require.NotNil(t, row.Latitude)
	assert.InDelta(t, 30.27, *row.Latitude, 1e-9)
	assert.Equal(t, 2, row.BrandCount)
	assert.Contains(t, row.Payload, `"rating":4.5`)
	assert.Equal(t, []string{
		"google:abc", "Green Grocer", "1 Main St", "Austin", "TX", "78701", "",
		"30.27", "-97.74", "2", "Alice Mushrooms; Yolele",
	}, row.Strings())

	bare := NewStoreRow(dir.Stores[1])
	assert.Nil(t, bare.Latitude)
	assert.Equal(t, "{}", bare.Payload)
	assert.Len(t, bare.Strings(), len(StoreColumns))
}

func TestWriteScrapeResult(t *testing.T) {
	dir := t.TempDir()
	result := types.NewScrapeResult("https://rishi-tea.example/stores")
	result.Brand = "Rishi Tea"
	result.Platform = types.PlatformStockist
	result.Strategy = types.StrategyGeoSampling
	result.SetStores([]types.RawLocationRecord{
		types.RecordFromPayload(types.PlatformStockist, map[string]interface{}{"id": float64(4), "name": "Tea Shop", "custom": "kept"}),
	})

	path, err := WriteScrapeResult(dir, result, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rishi_tea.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "https://rishi-tea.example/stores", out["source_url"])
	assert.Equal(t, "geo-sampling-api", out["strategy"])
	assert.EqualValues(t, 1, out["total_stores"])
	stores := out["stores"].([]interface{})
	assert.Equal(t, "kept", stores[0].(map[string]interface{})["custom"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteScrapeResultEmptyAndUnnamed(t *testing.T) {
	dir := t.TempDir()
	result := types.NewScrapeResult("https://www.example.com/locator")

	path, err := WriteScrapeResult(dir, result, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "www_example_com_locator.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stores":[]`)
	assert.Contains(t, string(data), `"total_stores":0`)
}

func TestManagerWriteScrapeResultKeepsEveryBrand(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default().Output
	cfg.Dir = dir
	m := NewManager(cfg, nil)

	write := func(brand, source string) string {
		t.Helper()
		result := types.NewScrapeResult(source)
		result.Brand = brand
		path, err := m.WriteScrapeResult(result)
		require.NoError(t, err)
		return path
	}

	paths := []string{
		write("Rishi Tea", "https://rishi.example/stores"),
		write("Rishi-Tea", "https://rishi-tea.example/stores"),
		write("", "https://shop.example/stockists"),
		write("", "https://shop.example/retailers"),
		write("", "https://shop.example/retailers/"),
	}
	assert.Equal(t, []string{
		filepath.Join(dir, "rishi_tea.json"),
		filepath.Join(dir, "rishi_tea_2.json"),
		filepath.Join(dir, "shop_example_stockists.json"),
		filepath.Join(dir, "shop_example_retailers.json"),
		filepath.Join(dir, "shop_example_retailers_2.json"),
	}, paths)

	var first types.ScrapeResult
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &first))
	assert.Equal(t, "Rishi Tea", first.Brand)

	// A new run starts from the base names again.
	again, err := NewManager(cfg, nil).WriteScrapeResult(types.NewScrapeResult("https://shop.example/stockists"))
	require.NoError(t, err)
	assert.Equal(t, paths[2], again)
}

func TestDirectoryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "directory.json")
	require.NoError(t, NewJSONExporter(path, true).Export(context.Background(), sampleDirectory()))

	got, err := ReadDirectory(path)
	require.NoError(t, err)
	want := sampleDirectory()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("directory changed on round trip (-want +got):\n%s", diff)
	}
}

func TestReadDirectoryErrors(t *testing.T) {
	_, err := ReadDirectory(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInput))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("[1,2"), 0o644))
	_, err = ReadDirectory(bad)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedResponse))

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"total_stores":0}`), 0o644))
	dir, err := ReadDirectory(empty)
	require.NoError(t, err)
	assert.NotNil(t, dir.Stores)
	assert.NotNil(t, dir.BrandStats)
}

func TestCSVExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVExporter(&buf).Export(context.Background(), sampleDirectory()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, StoreColumns, rows[0])
	assert.Equal(t, "Corner, Market", rows[2][1])
	assert.Equal(t, "Alice Mushrooms; Yolele", rows[1][10])
}

func TestExcelExporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExcelStreamExporter(&buf).Export(context.Background(), sampleDirectory()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{StoresSheet, BrandsSheet}, f.GetSheetList())

	rows, err := f.GetRows(StoresSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, StoreColumns, rows[0])
	assert.Equal(t, "google:abc", rows[1][0])
	assert.Equal(t, "Alice Mushrooms; Yolele", rows[1][10])

	brands, err := f.GetRows(BrandsSheet)
	require.NoError(t, err)
	require.Len(t, brands, 3)
	assert.Equal(t, []string{"Alice Mushrooms", "2", "2", "0"}, brands[1])
	assert.Equal(t, []string{"Yolele", "1", "0", "1"}, brands[2])
}

func TestExcelExporterRequiresPath(t *testing.T) {
	_, err := NewExcelExporter("")
	assert.True(t, apperrors.Is(err, apperrors.ErrOutput))
}

func TestSQLExporterSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{
		Driver:    "sqlite3",
		DSN:       filepath.Join(t.TempDir(), "db", "stores.db"),
		Table:     "stores",
		BatchSize: 1,
	}

	exporter, err := NewSQLExporter(ctx, cfg, nil)
	require.NoError(t, err)
	defer exporter.Close()

	dir := sampleDirectory()
	require.NoError(t, exporter.Export(ctx, dir))

	// A second export with a changed brand list updates in place.
	dir.Stores[1].AddBrand("Yolele")
	require.NoError(t, exporter.Export(ctx, dir))

	db := exporter.DB()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "stores"`).Scan(&count))
	assert.Equal(t, 2, count)

	var brandCount int
	var brands, payload string
	require.NoError(t, db.QueryRow(`SELECT brand_count, brands, payload FROM "stores" WHERE identity_key = ?`, "stockist:7").
		Scan(&brandCount, &brands, &payload))
	assert.Equal(t, 2, brandCount)
	assert.Equal(t, "Alice Mushrooms; Yolele", brands)
	assert.Equal(t, "{}", payload)

	rows, err := db.Query(`SELECT brand FROM "stores_brands" WHERE identity_key = ? ORDER BY position`, "stockist:7")
	require.NoError(t, err)
	defer rows.Close()
	var linked []string
	for rows.Next() {
		var b string
		require.NoError(t, rows.Scan(&b))
		linked = append(linked, b)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Alice Mushrooms", "Yolele"}, linked)
}

func TestSQLExporterTruncate(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "t.db"), Table: "shops", Truncate: true}

	exporter, err := NewSQLExporter(ctx, cfg, nil)
	require.NoError(t, err)
	defer exporter.Close()

	require.NoError(t, exporter.Export(ctx, sampleDirectory()))
	smaller := sampleDirectory()
	smaller.Stores = smaller.Stores[:1]
	require.NoError(t, exporter.Export(ctx, smaller))

	var count int
	require.NoError(t, exporter.DB().QueryRow(`SELECT COUNT(*) FROM "shops"`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLExporterConfigErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  config.DatabaseConfig
	}{
		{"unknown driver", config.DatabaseConfig{Driver: "oracle", DSN: "x", Table: "stores"}},
		{"missing dsn", config.DatabaseConfig{Driver: "sqlite3", Table: "stores"}},
		{"bad table", config.DatabaseConfig{Driver: "sqlite3", DSN: "x.db", Table: "drop table"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSQLExporter(ctx, tt.cfg, nil)
			assert.True(t, apperrors.Is(err, apperrors.ErrConfig))
		})
	}
}

func TestSQLStatements(t *testing.T) {
	pg := &SQLExporter{dialect: dialects["postgres"], table: "stores"}
	stmt := pg.insertStoreSQL()
	assert.True(t, strings.HasPrefix(stmt, `INSERT INTO "stores" ("identity_key", "name"`))
	assert.Contains(t, stmt, "$13)")
	assert.Contains(t, stmt, `ON CONFLICT ("identity_key") DO UPDATE SET "name" = excluded."name"`)

	my := &SQLExporter{dialect: dialects["mysql"], table: "stores"}
	stmt = my.insertStoreSQL()
	assert.Contains(t, stmt, "INSERT INTO `stores`")
	assert.Contains(t, stmt, "ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)")
	assert.NotContains(t, stmt, "$1")
}

func TestStoreDocument(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := sampleDirectory().Stores[0]
	store.Extra["name"] = "payload name"

	doc := StoreDocument(store, at)
	assert.Equal(t, "google:abc", doc["_id"])
	assert.Equal(t, "Green Grocer", doc["name"], "canonical fields win")
	assert.Equal(t, []string{"Alice Mushrooms", "Yolele"}, doc["brands"])
	assert.Equal(t, 2, doc["brand_count"])
	assert.Equal(t, at, doc["updated_at"])
	assert.Equal(t, "78701", doc["postal_code"])
}

func TestNewMongoExporterValidation(t *testing.T) {
	ctx := context.Background()
	for _, cfg := range []config.DatabaseConfig{
		{Database: "db", Table: "stores"},
		{DSN: "mongodb://localhost", Table: "stores"},
		{DSN: "mongodb://localhost", Database: "db"},
	} {
		_, err := NewMongoExporter(ctx, cfg, nil)
		assert.True(t, apperrors.Is(err, apperrors.ErrConfig))
	}
}

func TestManagerExport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default().Output
	cfg.Dir = dir
	cfg.Indent = false
	m := NewManager(cfg, nil)

	require.NoError(t, m.Export(ctx, FormatJSON, "", sampleDirectory()))
	_, err := os.Stat(filepath.Join(dir, "directory.json"))
	assert.NoError(t, err)

	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, m.Export(ctx, FormatCSV, csvPath, sampleDirectory()))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "identity_key,name,"))

	require.NoError(t, m.Export(ctx, FormatExcel, "", sampleDirectory()))
	_, err = os.Stat(filepath.Join(dir, "directory.xlsx"))
	assert.NoError(t, err)

	require.NoError(t, m.Export(ctx, FormatSQLite, filepath.Join(dir, "stores.db"), sampleDirectory()))

	err = m.Export(ctx, Format("pdf"), "", sampleDirectory())
	assert.True(t, apperrors.Is(err, apperrors.ErrConfig))

	path, err := m.WriteScrapeResult(types.NewScrapeResult("https://x.example"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "x_example.json"), path)
}

func TestValidateSQLIdentifier(t *testing.T) {
	tests := []struct {
		name        string
		identifier  string
		expectError bool
	}{
		{"valid identifier", "store_directory", false},
		{"starts with underscore", "_stores", false},
		{"empty string", "", true},
		{"starts with number", "1stores", true},
		{"contains space", "my stores", true},
		{"contains hyphen", "my-stores", true},
		{"reserved word", "select", true},
		{"too long", "a" + strings.Repeat("b", 63), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSQLIdentifier(tt.identifier)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatIsValid(t *testing.T) {
	assert.True(t, FormatExcel.IsValid())
	assert.True(t, Format("mongodb").IsValid())
	assert.False(t, Format("yaml").IsValid())
}
