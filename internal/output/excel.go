// internal/output/excel.go
package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/valpere/BrandLocator/internal/errors"
	"github.com/valpere/BrandLocator/pkg/types"
)

// Sheet names written by ExcelExporter.
const (
	StoresSheet = "Stores"
	BrandsSheet = "Brands"
)

// maxCellLength is the Excel limit for a single cell.
const maxCellLength = 32767

// ExcelExporter writes a workbook with a stores sheet and a brands sheet.
type ExcelExporter struct {
	filePath string
	out      io.Writer
}

// NewExcelExporter creates an exporter saving to filePath.
func NewExcelExporter(filePath string) (*ExcelExporter, error) {
	if filePath == "" {
		return nil, apperrors.Newf(apperrors.KindOutput, "output.xlsx", "Excel file path is required")
	}
	return &ExcelExporter{filePath: filePath}, nil
}

// NewExcelStreamExporter creates an exporter writing the workbook to w.
func NewExcelStreamExporter(w io.Writer) *ExcelExporter {
	return &ExcelExporter{out: w}
}

// Export builds the workbook and saves it.
func (e *ExcelExporter) Export(ctx context.Context, dir *types.MergedDirectory) error {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName(file.GetSheetName(0), StoresSheet); err != nil {
		return apperrors.New(apperrors.KindOutput, "output.xlsx", err)
	}
	if err := e.writeStores(ctx, file, dir.Stores); err != nil {
		return apperrors.New(apperrors.KindOutput, "output.xlsx", err)
	}
	if _, err := file.NewSheet(BrandsSheet); err != nil {
		return apperrors.New(apperrors.KindOutput, "output.xlsx", err)
	}
	if err := e.writeBrands(file, dir); err != nil {
		return apperrors.New(apperrors.KindOutput, "output.xlsx", err)
	}

	var err error
	if e.out != nil {
		err = file.Write(e.out)
	} else {
		err = file.SaveAs(e.filePath)
	}
	if err != nil {
		return apperrors.New(apperrors.KindOutput, "output.xlsx", err)
	}
	return nil
}

func (e *ExcelExporter) writeStores(ctx context.Context, file *excelize.File, stores []*types.CanonicalStoreRecord) error {
	if err := writeHeader(file, StoresSheet, StoreColumns); err != nil {
		return err
	}
	for i, store := range stores {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := NewStoreRow(store)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			row.IdentityKey, row.Name, row.AddressLine, row.City, row.State, row.PostalCode,
			row.Country, coordValue(row.Latitude), coordValue(row.Longitude), row.BrandCount,
			clipCell(strings.Join(row.Brands, "; ")),
		}
		if err := file.SetSheetRow(StoresSheet, cell, &values); err != nil {
			return err
		}
	}

	if err := file.SetColWidth(StoresSheet, "A", "B", 32); err != nil {
		return err
	}
	if err := file.SetColWidth(StoresSheet, "C", "C", 40); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(StoreColumns))
	if err != nil {
		return err
	}
	if err := file.SetColWidth(StoresSheet, lastCol, lastCol, 60); err != nil {
		return err
	}
	if len(stores) > 0 {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(stores)+1)
		if err := file.AutoFilter(StoresSheet, ref, nil); err != nil {
			return err
		}
	}
	return file.SetPanes(StoresSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func (e *ExcelExporter) writeBrands(file *excelize.File, dir *types.MergedDirectory) error {
	if err := writeHeader(file, BrandsSheet, []string{"brand", "total_stores", "new_stores", "existing_stores"}); err != nil {
		return err
	}
	for i, brand := range dir.Brands() {
		stats := dir.BrandStats[brand]
		values := []interface{}{brand, stats.TotalStores, stats.NewStores, stats.ExistingStores}
		if err := file.SetSheetRow(BrandsSheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return err
		}
	}
	return file.SetColWidth(BrandsSheet, "A", "A", 30)
}

func writeHeader(file *excelize.File, sheet string, columns []string) error {
	if err := file.SetSheetRow(sheet, "A1", &columns); err != nil {
		return err
	}
	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	return file.SetCellStyle(sheet, "A1", last, style)
}

func clipCell(s string) string {
	if len(s) > maxCellLength {
		return s[:maxCellLength]
	}
	return s
}

// Close is a no-op; the workbook is written during Export.
func (e *ExcelExporter) Close() error { return nil }
