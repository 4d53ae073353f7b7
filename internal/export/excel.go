// Package export renders a session's scan records into a spreadsheet.
package export

import (
	"fmt"
	"io"

	"github.com/almashari/qrfatoora/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Config holds spreadsheet rendering options
type Config struct {
	SheetName   string
	CompanyName string
}

// ExcelExporter writes scan sessions as .xlsx workbooks
type ExcelExporter struct {
	cfg    Config
	logger *zap.Logger
}

// NewExcelExporter creates a new exporter
func NewExcelExporter(cfg Config, logger *zap.Logger) *ExcelExporter {
	if cfg.SheetName == "" {
		cfg.SheetName = "Invoices"
	}
	return &ExcelExporter{
		cfg:    cfg,
		logger: logger,
	}
}

var headerRow = []string{
	"Invoice #", "Seller", "VAT Number", "Date",
	"Subtotal", "VAT", "Total", "Source", "Notes",
}

// Write renders the session and its records to w
func (e *ExcelExporter) Write(w io.Writer, session *models.ScanSession, records []*models.ScanRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := e.cfg.SheetName
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	row := 1
	if e.cfg.CompanyName != "" {
		e.setCell(f, sheet, row, 0, e.cfg.CompanyName)
		row++
	}
	e.setCell(f, sheet, row, 0, fmt.Sprintf("Session: %s", session.Name))
	e.setCell(f, sheet, row, 1, session.CreatedAt.Format("2006-01-02"))
	row += 2

	for col, title := range headerRow {
		e.setCell(f, sheet, row, col, title)
	}
	row++

	var totalSum, vatSum float64
	for _, record := range records {
		source := "scan"
		if record.ManualEntry {
			source = "manual"
		}

		e.setCell(f, sheet, row, 0, record.InvoiceNumber)
		e.setCell(f, sheet, row, 1, record.SellerName)
		e.setCell(f, sheet, row, 2, record.VATNumber)
		e.setCell(f, sheet, row, 3, record.InvoiceDate)
		if record.Subtotal != nil {
			e.setCell(f, sheet, row, 4, *record.Subtotal)
		}
		if record.VATAmount != nil {
			e.setCell(f, sheet, row, 5, *record.VATAmount)
			vatSum += *record.VATAmount
		}
		e.setCell(f, sheet, row, 6, record.TotalAmount)
		e.setCell(f, sheet, row, 7, source)
		e.setCell(f, sheet, row, 8, record.Notes)

		totalSum += record.TotalAmount
		row++
	}

	// Totals footer
	e.setCell(f, sheet, row, 3, "Totals")
	e.setCell(f, sheet, row, 5, vatSum)
	e.setCell(f, sheet, row, 6, totalSum)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Session exported",
		zap.String("session_id", session.ID),
		zap.Int("records", len(records)))
	return nil
}

func (e *ExcelExporter) setCell(f *excelize.File, sheet string, row, col int, value interface{}) {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		e.logger.Warn("Invalid cell coordinates",
			zap.Int("row", row), zap.Int("col", col), zap.Error(err))
		return
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell", zap.String("cell", cell), zap.Error(err))
	}
}
