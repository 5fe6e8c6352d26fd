// Package veryfi implements the raw recognition provider call against the
// Veryfi document OCR API. Caching, retries and circuit breaking live one
// layer up in the recognizer package.
package veryfi

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"net/http"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

type Client struct {
	baseURL    string
	clientID   string
	username   string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, clientID, username, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		clientID:   clientID,
		username:   username,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type documentRequest struct {
	FileName string `json:"file_name"`
	FileData string `json:"file_data"`
}

type documentResponse struct {
	OCRText       string         `json:"ocr_text"`
	Vendor        *vendorBlock   `json:"vendor"`
	BillTo        *billToBlock   `json:"bill_to"`
	InvoiceNumber string         `json:"invoice_number"`
	Date          string         `json:"date"`
	Tax           float64        `json:"tax"`
	Subtotal      float64        `json:"subtotal"`
	LineItems     []lineItemJSON `json:"line_items"`
}

type vendorBlock struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type billToBlock struct {
	Name string `json:"name"`
}

type lineItemJSON struct {
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	TaxRate     float64 `json:"tax_rate"`
	Total       float64 `json:"total"`
}

// Recognize submits the document bytes and maps the provider payload into
// the domain response shape.
func (c *Client) Recognize(ctx context.Context, doc domain.Document) (*domain.ProviderResponse, error) {
	request := documentRequest{
		FileName: doc.Fingerprint + ".pdf",
		FileData: base64.StdEncoding.EncodeToString(doc.Bytes),
	}

	var response documentResponse
	if err := c.postJSON(ctx, "/api/v8/partner/documents", request, &response, "process"); err != nil {
		return nil, err
	}
	return mapResponse(response), nil
}

func mapResponse(raw documentResponse) *domain.ProviderResponse {
	out := &domain.ProviderResponse{OCRText: raw.OCRText}

	structured := &domain.StructuredData{
		InvoiceNumber: strings.TrimSpace(raw.InvoiceNumber),
		Date:          strings.TrimSpace(raw.Date),
		Tax:           raw.Tax,
		Subtotal:      raw.Subtotal,
	}
	if raw.Vendor != nil {
		structured.VendorName = strings.TrimSpace(raw.Vendor.Name)
		structured.VendorAddress = strings.TrimSpace(raw.Vendor.Address)
	}
	if raw.BillTo != nil {
		structured.BillToName = strings.TrimSpace(raw.BillTo.Name)
	}
	for _, item := range raw.LineItems {
		structured.LineItems = append(structured.LineItems, domain.StructuredLineItem{
			SKU:         strings.TrimSpace(item.SKU),
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			Price:       item.Price,
			TaxRate:     item.TaxRate,
			Total:       item.Total,
		})
	}

	if structuredIsEmpty(structured) {
		return out
	}
	out.Structured = structured
	return out
}

func structuredIsEmpty(s *domain.StructuredData) bool {
	return s.VendorName == "" && s.VendorAddress == "" && s.BillToName == "" &&
		s.InvoiceNumber == "" && s.Date == "" && s.Tax == 0 && s.Subtotal == 0 &&
		len(s.LineItems) == 0
}
