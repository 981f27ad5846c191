// internal/output/json.go
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// WriteJSONFile encodes v to path. The file is written next to its final
// name and renamed into place so readers never see a partial document.
func WriteJSONFile(path string, v interface{}, indent bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.New(apperrors.KindOutput, "output.json", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return apperrors.New(apperrors.KindOutput, "output.json", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	if indent {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		return apperrors.New(apperrors.KindOutput, "output.json", fmt.Errorf("encode %s: %w", path, err))
	}
	if err := tmp.Close(); err != nil {
		return apperrors.New(apperrors.KindOutput, "output.json", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return apperrors.New(apperrors.KindOutput, "output.json", err)
	}
	return nil
}

// ScrapeResultName returns the file stem for a result: the slugged brand,
// or the slugged host and path of the source page for unnamed targets.
func ScrapeResultName(result *types.ScrapeResult) string {
	if result.Brand != "" {
		return utils.Slugify(result.Brand)
	}
	if hp, err := utils.HostPath(result.SourceURL); err == nil && hp != "" {
		return utils.Slugify(hp)
	}
	return utils.Slugify(result.SourceURL)
}

// WriteScrapeResult writes one brand's scrape output and returns its path.
// An existing file of the same name is replaced.
func WriteScrapeResult(dir string, result *types.ScrapeResult, indent bool) (string, error) {
	path := filepath.Join(dir, ScrapeResultName(result)+".json")
	return path, WriteJSONFile(path, result, indent)
}

// ReadDirectory loads a merged directory file.
func ReadDirectory(path string) (*types.MergedDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInput, "output.read_directory", err)
	}
	var dir types.MergedDirectory
	if err := json.Unmarshal(data, &dir); err != nil {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "output.read_directory", fmt.Errorf("%s: %w", path, err))
	}
	if dir.Stores == nil {
		dir.Stores = []*types.CanonicalStoreRecord{}
	}
	if dir.BrandStats == nil {
		dir.BrandStats = map[string]*types.BrandStats{}
	}
	return &dir, nil
}

// JSONExporter writes the directory file.
type JSONExporter struct {
	path   string
	indent bool
}

// NewJSONExporter creates a directory file exporter.
func NewJSONExporter(path string, indent bool) *JSONExporter {
	return &JSONExporter{path: path, indent: indent}
}

// Export writes dir to the exporter's path.
func (e *JSONExporter) Export(_ context.Context, dir *types.MergedDirectory) error {
	return WriteJSONFile(e.path, dir, e.indent)
}

// Close is a no-op; each export is a complete file.
func (e *JSONExporter) Close() error { return nil }
