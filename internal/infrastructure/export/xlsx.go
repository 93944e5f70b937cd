package export

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
)

const defaultSheet = "Sheet1"

// XLSXExporter writes request listings as an Excel workbook, one sheet per table
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a new XLSXExporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// Export renders sheets in order and streams the workbook to w
func (x *XLSXExporter) Export(ctx context.Context, w io.Writer, sheets []port.ExportSheet) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if len(sheets) == 0 {
		sheets = []port.ExportSheet{{Name: defaultSheet}}
	}

	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i == 0 {
			if sheet.Name != defaultSheet {
				if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
					return fmt.Errorf("failed to rename sheet: %w", err)
				}
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet.Name, err)
		}

		if err := x.fillSheet(f, sheet, headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Debug("Workbook exported", zap.Int("sheets", len(sheets)))
	return nil
}

func (x *XLSXExporter) fillSheet(f *excelize.File, sheet port.ExportSheet, headerStyle int) error {
	if len(sheet.Headers) > 0 {
		header := make([]interface{}, len(sheet.Headers))
		for i, h := range sheet.Headers {
			header[i] = h
		}
		if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", sheet.Name, err)
		}
		if err := f.SetRowStyle(sheet.Name, 1, 1, headerStyle); err != nil {
			x.logger.Warn("Failed to style header row", zap.String("sheet", sheet.Name), zap.Error(err))
		}

		lastCol, err := excelize.ColumnNumberToName(len(sheet.Headers))
		if err == nil {
			if err := f.SetColWidth(sheet.Name, "A", lastCol, 20); err != nil {
				x.logger.Warn("Failed to set column width", zap.String("sheet", sheet.Name), zap.Error(err))
			}
		}
	}

	for i, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet.Name, cell, &r); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet.Name, err)
		}
	}
	return nil
}
