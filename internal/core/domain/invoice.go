package domain

// ExtractionResult is the normalized invoice record emitted for accepted
// documents. Any header field may be empty; absence is a valid terminal
// state, not an error.
type ExtractionResult struct {
	VendorName    string     `json:"vendor_name"`
	VendorAddress string     `json:"vendor_address"`
	BillToName    string     `json:"bill_to_name"`
	InvoiceNumber string     `json:"invoice_number"`
	Date          string     `json:"date"`
	LineItems     []LineItem `json:"line_items"`
}

// LineItem is one row of the invoice's itemized charges. After the pipeline
// runs, TaxRate is identical across all items of one invoice.
type LineItem struct {
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	TaxRate     float64 `json:"tax_rate"`
	Total       float64 `json:"total"`
}

// HeaderFields are the five header values extracted independently from OCR
// text and from the provider's structured block before reconciliation.
type HeaderFields struct {
	VendorName    string
	VendorAddress string
	BillToName    string
	InvoiceNumber string
	Date          string
}

// FieldDisagreement records a header field where the OCR-derived value and
// the provider's structured value were both present and differed. The OCR
// value wins; the disagreement is surfaced for observability only.
type FieldDisagreement struct {
	Field      string
	OCRValue   string
	Structured string
}
