// internal/output/csv.go
package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/pkg/types"
)

// CSVExporter writes one row per canonical store.
type CSVExporter struct {
	out  io.Writer
	file *os.File
}

// NewCSVExporter creates an exporter writing to w.
func NewCSVExporter(w io.Writer) *CSVExporter {
	return &CSVExporter{out: w}
}

// NewCSVFileExporter creates an exporter writing to filename.
func NewCSVFileExporter(filename string) (*CSVExporter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, apperrors.New(apperrors.KindOutput, "output.csv", err)
	}
	return &CSVExporter{out: file, file: file}, nil
}

// Export writes the header and every store.
func (e *CSVExporter) Export(ctx context.Context, dir *types.MergedDirectory) error {
	writer := csv.NewWriter(e.out)
	if err := writer.Write(StoreColumns); err != nil {
		return apperrors.New(apperrors.KindOutput, "output.csv", fmt.Errorf("failed to write header: %w", err))
	}
	for _, store := range dir.Stores {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writer.Write(NewStoreRow(store).Strings()); err != nil {
			return apperrors.New(apperrors.KindOutput, "output.csv", fmt.Errorf("failed to write record: %w", err))
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.New(apperrors.KindOutput, "output.csv", err)
	}
	return nil
}

// Close closes the underlying file when the exporter owns one.
func (e *CSVExporter) Close() error {
	if e.file != nil {
		err := e.file.Close()
		e.file = nil
		return err
	}
	return nil
}
