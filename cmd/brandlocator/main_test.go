// cmd/brandlocator/main_test.go
package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/BrandLocator/internal/config"
	"github.com/valpere/BrandLocator/internal/output"
)

// execute runs the CLI in-process and returns the exit code and both streams.
func execute(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "--no-color"}, args...)
	code := run(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// locatorSite serves a brand page embedding a StoreRocket widget and the
// matching locations API.
func locatorSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/locator", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Find us</h1><div data-storerocket-id="abc123"></div></body></html>`)
	})
	mux.HandleFunc("/plain", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>No widget here</body></html>`)
	})
	mux.HandleFunc("/api/user/abc123/locations", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success": true, "results": {"locations": [
			{"id": 1, "name": "Green Market", "address": "1 Elm St", "city": "Austin", "state": "TX", "lat": 30.2, "lng": -97.7},
			{"id": 2, "name": "Corner Shop", "address": "9 Oak Ave", "city": "Dallas", "state": "TX"},
			{"id": 3, "name": "Walmart Supercenter", "address": "100 Main", "city": "Plano", "state": "TX"}
		]}}`)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func writeConfig(t *testing.T, dir, apiBase string) string {
	t.Helper()
	path := filepath.Join(dir, "brandlocator.yaml")
	body := fmt.Sprintf(`log_level: error
http:
  request_delay: 0s
  brand_delay: 0s
browser:
  enabled: false
platforms:
  storerocket:
    endpoints:
      - "%s/api/user/{id}/locations"
output:
  dir: %q
  indent: true
metrics:
  enabled: true
  namespace: brandlocator
`, apiBase, filepath.Join(dir, "out"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersionCommand(t *testing.T) {
	version, buildTime, gitCommit = "test-version", "2026-01-02", "abc123"
	t.Cleanup(func() { version, buildTime, gitCommit = "dev", "unknown", "unknown" })

	code, out, _ := execute(t, context.Background(), "version")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "brandlocator test-version")
	assert.Contains(t, out, "2026-01-02")
	assert.Contains(t, out, "abc123")
}

func TestHelpListsCommands(t *testing.T) {
	code, out, _ := execute(t, context.Background(), "--help")
	require.Equal(t, 0, code)
	for _, name := range []string{"scrape", "detect", "merge", "export", "serve", "validate", "init", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestInitThenValidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "brandlocator.yaml")

	code, out, _ := execute(t, context.Background(), "init", path)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Configuration written")

	code, _, errOut := execute(t, context.Background(), "init", path)
	assert.Equal(t, 6, code, "existing file without --force is an input error")
	assert.Contains(t, errOut, "Error")

	code, out, _ = execute(t, context.Background(), "--config", path, "validate")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "is valid")
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("merge:\n  similarity_threshold: 3\n"), 0o644))

	code, _, errOut := execute(t, context.Background(), "--config", path, "validate")
	assert.Equal(t, 2, code)
	assert.NotEmpty(t, errOut)
}

func TestValidateBrandList(t *testing.T) {
	dir := t.TempDir()
	brands := filepath.Join(dir, "brands.yaml")
	require.NoError(t, os.WriteFile(brands, []byte("Rishi Tea: https://rishi-tea.com/pages/store-locator\nYolele: https://yolele.com/pages/find-us\n"), 0o644))

	code, out, _ := execute(t, context.Background(), "validate", "--brands", brands)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "has 2 brand(s)")
}

func TestScrapeMergeExportWorkflow(t *testing.T) {
	ts := locatorSite(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, ts.URL)
	outDir := filepath.Join(dir, "out")
	metricsFile := filepath.Join(dir, "scrape.prom")

	code, out, errOut := execute(t, context.Background(),
		"--config", cfgPath, "--metrics-out", metricsFile,
		"scrape", ts.URL+"/locator", "--name", "Test Brand")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Test Brand")
	assert.Contains(t, out, "storerocket")

	brandFile := filepath.Join(outDir, "test_brand.json")
	require.FileExists(t, brandFile)
	data, err := os.ReadFile(brandFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Green Market")
	assert.NotContains(t, string(data), "Walmart", "chains are excluded before writing")

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "brandlocator_scrape_stores_total")

	second := filepath.Join(outDir, "other_brand.json")
	require.NoError(t, os.WriteFile(second, []byte(`{"brand": "Other Brand", "platform": "storerocket", "stores": [
		{"id": "1", "name": "Green Market", "city": "Austin", "state": "TX"},
		{"id": "77", "name": "Bean Barn", "city": "Waco", "state": "TX"}
	]}`), 0o644))

	code, out, errOut = execute(t, context.Background(), "--config", cfgPath, "merge", outDir)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Total unique stores: 3")

	directory, err := output.ReadDirectory(filepath.Join(outDir, "directory.json"))
	require.NoError(t, err)
	assert.Equal(t, 3, directory.TotalStores)
	store := directory.Index()["storerocket:1"]
	require.NotNil(t, store)
	assert.Equal(t, []string{"Other Brand", "Test Brand"}, store.Brands, "brands follow input order")

	code, _, errOut = execute(t, context.Background(), "--config", cfgPath, "merge", outDir, "--quiet")
	require.Equal(t, 0, code, errOut)
	directory, err = output.ReadDirectory(filepath.Join(outDir, "directory.json"))
	require.NoError(t, err)
	assert.Equal(t, 3, directory.TotalStores, "the previous directory file is not merged again")

	csvPath := filepath.Join(dir, "stores.csv")
	code, out, errOut = execute(t, context.Background(), "--config", cfgPath,
		"export", filepath.Join(outDir, "directory.json"), "--format", "csv", "--dest", csvPath)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "exported 3 stores as csv")
	csvData, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(csvData), strings.Join(output.StoreColumns, ",")))
}

func TestScrapeWithoutTargets(t *testing.T) {
	code, _, errOut := execute(t, context.Background(), "scrape")
	assert.Equal(t, 6, code)
	assert.Contains(t, errOut, "Error")
}

func TestScrapeTargets(t *testing.T) {
	cfg := config.Default()
	cfg.Brands.Targets = []config.BrandTarget{{Name: "Configured", URL: "https://configured.example"}}

	targets, err := scrapeTargets(cfg, []string{"https://a.example"}, &scrapeOptions{name: "A", platform: "stockist", instanceID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, []config.BrandTarget{{Name: "A", URL: "https://a.example", Platform: "stockist", InstanceID: "u1"}}, targets)

	targets, err = scrapeTargets(cfg, nil, &scrapeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Configured", targets[0].Name)

	_, err = scrapeTargets(cfg, []string{"https://a.example", "https://b.example"}, &scrapeOptions{name: "A"})
	assert.Error(t, err)
}

func TestDetectCommand(t *testing.T) {
	ts := locatorSite(t)
	cfgPath := writeConfig(t, t.TempDir(), ts.URL)

	code, out, errOut := execute(t, context.Background(), "--config", cfgPath, "detect", ts.URL+"/locator", ts.URL+"/plain")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "storerocket-attribute")
	assert.Contains(t, out, "browser-fallback")

	code, _, _ = execute(t, context.Background(), "--config", cfgPath, "detect", ts.URL+"/plain")
	assert.Equal(t, 7, code, "no detection at all is a detection failure")
}

func TestMergeRejectsBadBrandPin(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "alice.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"stores": []}`), 0o644))

	code, _, _ := execute(t, context.Background(), "merge", file, "--brand", "no-equals-sign")
	assert.Equal(t, 6, code)
}

func TestMergeAllFilesUnreadable(t *testing.T) {
	dir := t.TempDir()
	code, _, _ := execute(t, context.Background(), "merge", filepath.Join(dir, "missing.json"), "--out", filepath.Join(dir, "d.json"))
	assert.Equal(t, 6, code)
	assert.NoFileExists(t, filepath.Join(dir, "d.json"))
}

func TestExportValidatesFormats(t *testing.T) {
	dir := t.TempDir()
	code, _, _ := execute(t, context.Background(), "export", filepath.Join(dir, "d.json"), "--format", "pdf")
	assert.Equal(t, 2, code)

	code, _, _ = execute(t, context.Background(), "export", filepath.Join(dir, "d.json"), "--format", "csv,xlsx", "--dest", "x")
	assert.Equal(t, 6, code)
}

func TestServeStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "directory.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"merged_at": "2026-01-02T00:00:00Z", "source_files": [], "total_stores": 0, "brand_stats": {}, "stores": []}`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	code, _, errOut := execute(t, ctx, "serve", path, "--listen", "127.0.0.1:0", "--no-watch")
	assert.Equal(t, 0, code, errOut)
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.json", "a.json", "directory.json", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}

	paths, err := expandInputs([]string{"first.json", dir}, filepath.Join(dir, "directory.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"first.json", filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, paths)

	_, err = expandInputs([]string{t.TempDir()}, "")
	assert.Error(t, err)
}
