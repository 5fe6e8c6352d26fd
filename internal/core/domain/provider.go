package domain

// ProviderResponse is what the recognition provider returns for one document.
// It is produced once per distinct fingerprint and never mutated afterwards;
// the structured block is optional and may be partially populated.
type ProviderResponse struct {
	OCRText    string          `json:"ocr_text"`
	Structured *StructuredData `json:"structured,omitempty"`
}

// StructuredData carries the provider's own field extraction. Empty strings
// and zero amounts mean the provider did not report the field.
type StructuredData struct {
	VendorName    string               `json:"vendor,omitempty"`
	VendorAddress string               `json:"vendor_address,omitempty"`
	BillToName    string               `json:"bill_to,omitempty"`
	InvoiceNumber string               `json:"invoice_number,omitempty"`
	Date          string               `json:"date,omitempty"`
	Tax           float64              `json:"tax,omitempty"`
	Subtotal      float64              `json:"subtotal,omitempty"`
	LineItems     []StructuredLineItem `json:"line_items,omitempty"`
}

type StructuredLineItem struct {
	SKU         string  `json:"sku,omitempty"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	Price       float64 `json:"price,omitempty"`
	TaxRate     float64 `json:"tax_rate,omitempty"`
	Total       float64 `json:"total,omitempty"`
}
