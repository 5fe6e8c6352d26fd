// Package export produces XLSX run reports for batch extraction runs.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

// FileOutcome is the per-file record of one batch run: what happened to the
// document and, for extracted files, the extraction payload.
type FileOutcome struct {
	Filename string
	Status   domain.InvoiceStatus
	Detail   string
	Result   *domain.ExtractionResult
}

// BuildRunReport returns an XLSX workbook (as bytes) with a summary sheet of
// per-file outcomes and a line-items sheet for all extracted invoices.
func BuildRunReport(outcomes []FileOutcome) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const summarySheet = "Summary"
	const itemsSheet = "Line Items"

	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("create line items sheet: %w", err)
	}

	summaryHeaders := []string{
		"File",
		"Status",
		"Detail",
		"Vendor",
		"Invoice Number",
		"Date",
		"Line Items",
	}
	for i, h := range summaryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(summarySheet, cell, h)
	}

	itemHeaders := []string{
		"File",
		"SKU",
		"Description",
		"Quantity",
		"Price",
		"Tax Rate %",
		"Total",
	}
	for i, h := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, h)
	}

	summaryRow := 2
	itemRow := 2
	for _, outcome := range outcomes {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, summaryRow)
			_ = f.SetCellValue(summarySheet, cell, v)
		}

		write(1, outcome.Filename)
		write(2, string(outcome.Status))
		write(3, truncate(outcome.Detail, 140))

		if outcome.Result != nil {
			write(4, outcome.Result.VendorName)
			write(5, outcome.Result.InvoiceNumber)
			write(6, outcome.Result.Date)
			write(7, len(outcome.Result.LineItems))

			for _, item := range outcome.Result.LineItems {
				writeItem := func(col int, v any) {
					cell, _ := excelize.CoordinatesToCellName(col, itemRow)
					_ = f.SetCellValue(itemsSheet, cell, v)
				}
				writeItem(1, outcome.Filename)
				writeItem(2, item.SKU)
				writeItem(3, truncate(item.Description, 140))
				writeItem(4, item.Quantity)
				writeItem(5, item.Price)
				writeItem(6, item.TaxRate)
				writeItem(7, item.Total)
				itemRow++
			}
		}

		summaryRow++
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 40)
	_ = f.SetColWidth(summarySheet, "B", "B", 12)
	_ = f.SetColWidth(summarySheet, "C", "C", 48)
	_ = f.SetColWidth(summarySheet, "D", "D", 28)
	_ = f.SetColWidth(summarySheet, "E", "F", 16)
	_ = f.SetColWidth(itemsSheet, "A", "A", 40)
	_ = f.SetColWidth(itemsSheet, "C", "C", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	slog.Info("export_report_built",
		"files", len(outcomes),
		"line_item_rows", itemRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
