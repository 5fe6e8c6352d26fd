package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
	"github.com/kirillkom/invoice-pipeline/internal/core/ports"
)

type IngestInvoiceUseCase struct {
	repo    ports.InvoiceRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestInvoiceUseCase(
	repo ports.InvoiceRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestInvoiceUseCase {
	return &IngestInvoiceUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload stores the document bytes, records the invoice as received and
// publishes the event the worker consumes. The fingerprint is derived from
// the content so identical uploads share one provider cache entry.
func (uc *IngestInvoiceUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Invoice, error) {
	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(payload) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload body", errors.New("empty document"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	inv := &domain.Invoice{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Fingerprint: domain.FingerprintBytes(payload),
		Status:      domain.StatusReceived,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice record: %w", err)
	}

	if err := uc.queue.PublishInvoiceReceived(ctx, inv.ID); err != nil {
		return nil, fmt.Errorf("publish received event: %w", err)
	}

	return inv, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "invoice.bin"
	}
	return base
}
