package ports

import (
	"context"
	"io"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

// InvoiceRepository persists and reads invoice state.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, id string) (*domain.Invoice, error)
	UpdateStatus(ctx context.Context, id string, status domain.InvoiceStatus, detail string) error
	SaveResult(ctx context.Context, id string, result *domain.ExtractionResult) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes invoice ingestion events.
type MessageQueue interface {
	PublishInvoiceReceived(ctx context.Context, invoiceID string) error
	SubscribeInvoiceReceived(ctx context.Context, handler func(context.Context, string) error) error
}

// RecognitionProvider obtains OCR text and optional structured fields for a
// document. Implementations wrap the external call in caching, retry and
// circuit breaking; a raw provider implements only the call itself.
type RecognitionProvider interface {
	Recognize(ctx context.Context, doc domain.Document) (*domain.ProviderResponse, error)
}

// FormatValidator decides whether recognized text is eligible for extraction.
type FormatValidator interface {
	Validate(ocrText string) domain.Verdict
}

// InvoiceExtractor runs the hybrid extraction and correction pipeline over
// recognized text and optional structured fields.
type InvoiceExtractor interface {
	Extract(ctx context.Context, ocrText string, structured *domain.StructuredData) (*domain.ExtractionResult, []domain.FieldDisagreement, error)
}
