package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
	"github.com/kirillkom/invoice-pipeline/internal/core/ports"
)

type ProcessInvoiceUseCase struct {
	repo       ports.InvoiceRepository
	storage    ports.ObjectStorage
	recognizer ports.RecognitionProvider
	validator  ports.FormatValidator
	extractor  ports.InvoiceExtractor
}

func NewProcessInvoiceUseCase(
	repo ports.InvoiceRepository,
	storage ports.ObjectStorage,
	recognizer ports.RecognitionProvider,
	validator ports.FormatValidator,
	extractor ports.InvoiceExtractor,
) *ProcessInvoiceUseCase {
	return &ProcessInvoiceUseCase{
		repo:       repo,
		storage:    storage,
		recognizer: recognizer,
		validator:  validator,
		extractor:  extractor,
	}
}

// ProcessByID drives one invoice through recognition, validation and
// extraction. Rejection by the validator is a designed terminal outcome
// (status=excluded, no error); provider and extraction errors mark the
// invoice failed and propagate.
func (uc *ProcessInvoiceUseCase) ProcessByID(ctx context.Context, invoiceID string) error {
	if err := uc.markStatus(ctx, invoiceID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	outcome, err := uc.processPipeline(ctx, invoiceID)
	if err != nil {
		if failErr := uc.markFailed(ctx, invoiceID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if outcome.rejected {
		if err := uc.markStatus(ctx, invoiceID, domain.StatusExcluded, outcome.reason); err != nil {
			return fmt.Errorf("set status=excluded: %w", err)
		}
		slog.Info("invoice_excluded", "invoice_id", invoiceID, "reason", outcome.reason)
		return nil
	}

	if err := uc.repo.SaveResult(ctx, invoiceID, outcome.result); err != nil {
		if failErr := uc.markFailed(ctx, invoiceID, err); failErr != nil {
			return fmt.Errorf("save result: %w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save result: %w", err)
	}

	if err := uc.markStatus(ctx, invoiceID, domain.StatusExtracted, ""); err != nil {
		return fmt.Errorf("set status=extracted: %w", err)
	}

	return nil
}

type processOutcome struct {
	rejected bool
	reason   string
	result   *domain.ExtractionResult
}

func (uc *ProcessInvoiceUseCase) processPipeline(ctx context.Context, invoiceID string) (processOutcome, error) {
	inv, err := uc.loadInvoice(ctx, invoiceID)
	if err != nil {
		return processOutcome{}, err
	}

	doc, err := uc.loadDocument(ctx, inv)
	if err != nil {
		return processOutcome{}, err
	}

	response, err := uc.recognize(ctx, doc)
	if err != nil {
		return processOutcome{}, err
	}

	verdict := uc.validator.Validate(response.OCRText)
	if !verdict.Accepted {
		return processOutcome{rejected: true, reason: verdict.Reason}, nil
	}

	result, disagreements, err := uc.extractor.Extract(ctx, response.OCRText, response.Structured)
	if err != nil {
		return processOutcome{}, fmt.Errorf("extract invoice fields: %w", err)
	}
	if len(disagreements) > 0 {
		slog.Info("invoice_field_disagreements",
			"invoice_id", invoiceID,
			"count", len(disagreements),
		)
	}

	return processOutcome{result: result}, nil
}

func (uc *ProcessInvoiceUseCase) loadInvoice(ctx context.Context, invoiceID string) (*domain.Invoice, error) {
	inv, err := uc.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("fetch invoice by id: %w", err)
	}
	return inv, nil
}

func (uc *ProcessInvoiceUseCase) loadDocument(ctx context.Context, inv *domain.Invoice) (domain.Document, error) {
	reader, err := uc.storage.Open(ctx, inv.StoragePath)
	if err != nil {
		return domain.Document{}, fmt.Errorf("open stored document: %w", err)
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read stored document: %w", err)
	}
	if len(payload) == 0 {
		return domain.Document{}, domain.WrapError(domain.ErrInvalidInput, "read stored document", errors.New("empty document"))
	}
	return domain.NewDocument(payload), nil
}

func (uc *ProcessInvoiceUseCase) recognize(ctx context.Context, doc domain.Document) (*domain.ProviderResponse, error) {
	response, err := uc.recognizer.Recognize(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("recognize document: %w", err)
	}
	if response.OCRText == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "recognize document", errors.New("empty recognized text"))
	}
	return response, nil
}

func (uc *ProcessInvoiceUseCase) markStatus(ctx context.Context, invoiceID string, status domain.InvoiceStatus, detail string) error {
	return uc.repo.UpdateStatus(ctx, invoiceID, status, detail)
}

func (uc *ProcessInvoiceUseCase) markFailed(ctx context.Context, invoiceID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, invoiceID, domain.StatusFailed, processErr.Error())
}
