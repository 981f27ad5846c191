// internal/output/manager.go
package output

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/valpere/BrandLocator/internal/config"
	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/internal/utils"
	"github.com/valpere/BrandLocator/pkg/types"
)

// Manager resolves export formats to exporters from the output configuration.
type Manager struct {
	config config.OutputConfig
	logger utils.Logger

	mu      sync.Mutex
	claimed map[string]bool
}

// NewManager creates a new output manager
func NewManager(cfg config.OutputConfig, logger utils.Logger) *Manager {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Manager{config: cfg, logger: logger, claimed: make(map[string]bool)}
}

// Exporter returns the exporter for format. File formats write to dest, or
// to a default name under the output directory when dest is empty. Database
// formats take their connection from the configuration; dest overrides the DSN.
func (m *Manager) Exporter(ctx context.Context, format Format, dest string) (Exporter, error) {
	fileDest := func(ext string) string {
		if dest != "" {
			return dest
		}
		return filepath.Join(m.config.Dir, "directory."+ext)
	}

	db := m.config.Database
	if dest != "" {
		db.DSN = dest
	}

	switch format {
	case FormatJSON:
		return NewJSONExporter(fileDest("json"), m.config.Indent), nil
	case FormatCSV:
		return NewCSVFileExporter(fileDest("csv"))
	case FormatExcel:
		return NewExcelExporter(fileDest("xlsx"))
	case FormatSQLite, FormatPostgre, FormatMySQL:
		db.Driver = string(format)
		return NewSQLExporter(ctx, db, m.logger)
	case FormatMongoDB:
		return NewMongoExporter(ctx, db, m.logger)
	default:
		return nil, apperrors.Newf(apperrors.KindConfig, "output.manager", "unsupported output format: %s", format)
	}
}

// Export writes dir in format and closes the exporter.
func (m *Manager) Export(ctx context.Context, format Format, dest string, dir *types.MergedDirectory) (err error) {
	exporter, err := m.Exporter(ctx, format, dest)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := exporter.Close(); cerr != nil && err == nil {
			err = apperrors.New(apperrors.KindOutput, "output.manager", fmt.Errorf("close %s exporter: %w", format, cerr))
		}
	}()

	if err := exporter.Export(ctx, dir); err != nil {
		return err
	}
	m.logger.WithFields(map[string]interface{}{
		"format": format,
		"stores": len(dir.Stores),
	}).Info("directory exported")
	return nil
}

// WriteScrapeResult writes one brand's scrape output under the output
// directory. Every result written through the same Manager gets its own
// file: a name already used gets a numeric suffix.
func (m *Manager) WriteScrapeResult(result *types.ScrapeResult) (string, error) {
	stem := ScrapeResultName(result)
	path := m.claimPath(stem)
	if base := filepath.Join(m.config.Dir, stem+".json"); path != base {
		m.logger.WithFields(map[string]interface{}{
			"brand": result.Brand,
			"taken": base,
		}).Warn("result file name already used in this run")
	}
	if err := WriteJSONFile(path, result, m.config.Indent); err != nil {
		m.release(path)
		return "", err
	}
	m.logger.WithFields(map[string]interface{}{
		"file":   path,
		"stores": result.TotalStores,
	}).Info("scrape result written")
	return path, nil
}

func (m *Manager) claimPath(stem string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := filepath.Join(m.config.Dir, stem+".json")
	for n := 2; m.claimed[path]; n++ {
		path = filepath.Join(m.config.Dir, fmt.Sprintf("%s_%d.json", stem, n))
	}
	m.claimed[path] = true
	return path
}

func (m *Manager) release(path string) {
	m.mu.Lock()
	delete(m.claimed, path)
	m.mu.Unlock()
}
