package extraction

import (
	"log/slog"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

// ReconcileHeaderFields merges the provider's structured values into the
// OCR-derived header fields. The OCR value is authoritative when non-empty;
// structured values only fill gaps. When both sides are non-empty and
// disagree, the OCR value is kept and the disagreement is surfaced as a
// non-fatal observability event.
func ReconcileHeaderFields(ocr domain.HeaderFields, structured *domain.StructuredData) (domain.HeaderFields, []domain.FieldDisagreement) {
	if structured == nil {
		return ocr, nil
	}

	merged := ocr
	var disagreements []domain.FieldDisagreement

	reconcile := func(field string, ocrValue *string, structuredValue string) {
		switch {
		case structuredValue == "":
		case *ocrValue == "":
			*ocrValue = structuredValue
		case *ocrValue != structuredValue:
			slog.Warn("field_disagreement",
				"field", field,
				"ocr_value", *ocrValue,
				"structured_value", structuredValue,
			)
			disagreements = append(disagreements, domain.FieldDisagreement{
				Field:      field,
				OCRValue:   *ocrValue,
				Structured: structuredValue,
			})
		}
	}

	reconcile("vendor_name", &merged.VendorName, structured.VendorName)
	reconcile("vendor_address", &merged.VendorAddress, structured.VendorAddress)
	reconcile("bill_to_name", &merged.BillToName, structured.BillToName)
	reconcile("invoice_number", &merged.InvoiceNumber, structured.InvoiceNumber)
	reconcile("date", &merged.Date, structured.Date)

	return merged, disagreements
}
