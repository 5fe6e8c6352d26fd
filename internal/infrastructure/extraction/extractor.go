package extraction

import (
	"context"
	"log/slog"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

// Hybrid combines the OCR-text field heuristics, the structured-data
// reconciler and the line-item pipeline into one extractor. Field-level
// parse failures degrade to empty fields; Extract never fails a document
// over a single field.
type Hybrid struct{}

func NewHybrid() *Hybrid {
	return &Hybrid{}
}

func (h *Hybrid) Extract(ctx context.Context, ocrText string, structured *domain.StructuredData) (*domain.ExtractionResult, []domain.FieldDisagreement, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	header := ExtractHeaderFields(ocrText)
	merged, disagreements := ReconcileHeaderFields(header, structured)
	items := ExtractLineItems(ocrText, structured)

	slog.Debug("invoice_extracted",
		"vendor", merged.VendorName,
		"invoice_number", merged.InvoiceNumber,
		"line_items", len(items),
		"disagreements", len(disagreements),
	)

	return &domain.ExtractionResult{
		VendorName:    merged.VendorName,
		VendorAddress: merged.VendorAddress,
		BillToName:    merged.BillToName,
		InvoiceNumber: merged.InvoiceNumber,
		Date:          merged.Date,
		LineItems:     items,
	}, disagreements, nil
}
