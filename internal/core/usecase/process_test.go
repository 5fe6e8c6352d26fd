package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

type statusCall struct {
	status domain.InvoiceStatus
	detail string
}

type invoiceRepoFake struct {
	invoice     *domain.Invoice
	created     []*domain.Invoice
	getErr      error
	saveErr     error
	statusErr   error
	statusCalls []statusCall
	savedID     string
	savedResult *domain.ExtractionResult
}

func (f *invoiceRepoFake) Create(_ context.Context, inv *domain.Invoice) error {
	f.created = append(f.created, inv)
	return nil
}

func (f *invoiceRepoFake) GetByID(context.Context, string) (*domain.Invoice, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	cp := *f.invoice
	return &cp, nil
}

func (f *invoiceRepoFake) UpdateStatus(_ context.Context, _ string, status domain.InvoiceStatus, detail string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, detail: detail})
	return f.statusErr
}

func (f *invoiceRepoFake) SaveResult(_ context.Context, id string, result *domain.ExtractionResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.savedID = id
	f.savedResult = result
	return nil
}

type storageFake struct {
	data    map[string][]byte
	openErr error
	saveErr error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.data == nil {
		f.data = map[string][]byte{}
	}
	f.data[key] = payload
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	payload, ok := f.data[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

type recognizerFake struct {
	response *domain.ProviderResponse
	err      error
}

func (f *recognizerFake) Recognize(context.Context, domain.Document) (*domain.ProviderResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type validatorFake struct {
	verdict domain.Verdict
}

func (f *validatorFake) Validate(string) domain.Verdict { return f.verdict }

type pipelineExtractorFake struct {
	result        *domain.ExtractionResult
	disagreements []domain.FieldDisagreement
	err           error
}

func (f *pipelineExtractorFake) Extract(context.Context, string, *domain.StructuredData) (*domain.ExtractionResult, []domain.FieldDisagreement, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.result, f.disagreements, nil
}

func processFixture() (*invoiceRepoFake, *storageFake) {
	repo := &invoiceRepoFake{invoice: &domain.Invoice{
		ID:          "inv-1",
		StoragePath: "inv-1_invoice.pdf",
		Status:      domain.StatusReceived,
	}}
	storage := &storageFake{data: map[string][]byte{
		"inv-1_invoice.pdf": []byte("raw invoice bytes"),
	}}
	return repo, storage
}

func TestProcessByIDExtractsAndSavesResult(t *testing.T) {
	repo, storage := processFixture()
	result := &domain.ExtractionResult{VendorName: "Acme Telecom Inc"}
	uc := NewProcessInvoiceUseCase(
		repo,
		storage,
		&recognizerFake{response: &domain.ProviderResponse{OCRText: "Invoice Total Date $5.00"}},
		&validatorFake{verdict: domain.Accepted()},
		&pipelineExtractorFake{result: result},
	)

	if err := uc.ProcessByID(context.Background(), "inv-1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	if repo.savedID != "inv-1" || repo.savedResult != result {
		t.Errorf("result not saved: id=%q result=%+v", repo.savedID, repo.savedResult)
	}
	wantStatuses := []domain.InvoiceStatus{domain.StatusProcessing, domain.StatusExtracted}
	if len(repo.statusCalls) != len(wantStatuses) {
		t.Fatalf("status calls = %+v", repo.statusCalls)
	}
	for i, want := range wantStatuses {
		if repo.statusCalls[i].status != want {
			t.Errorf("status call %d = %s, want %s", i, repo.statusCalls[i].status, want)
		}
	}
}

func TestProcessByIDRejectionExcludesWithoutError(t *testing.T) {
	repo, storage := processFixture()
	uc := NewProcessInvoiceUseCase(
		repo,
		storage,
		&recognizerFake{response: &domain.ProviderResponse{OCRText: "short"}},
		&validatorFake{verdict: domain.Rejected("text too short")},
		&pipelineExtractorFake{},
	)

	if err := uc.ProcessByID(context.Background(), "inv-1"); err != nil {
		t.Fatalf("rejection must not be an error, got %v", err)
	}

	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusExcluded {
		t.Errorf("final status = %s, want excluded", last.status)
	}
	if last.detail != "text too short" {
		t.Errorf("rejection reason = %q", last.detail)
	}
	if repo.savedResult != nil {
		t.Error("excluded invoice must not persist a result")
	}
}

func TestProcessByIDProviderFailureMarksFailed(t *testing.T) {
	repo, storage := processFixture()
	providerErr := errors.New("provider unavailable")
	uc := NewProcessInvoiceUseCase(
		repo,
		storage,
		&recognizerFake{err: providerErr},
		&validatorFake{verdict: domain.Accepted()},
		&pipelineExtractorFake{},
	)

	err := uc.ProcessByID(context.Background(), "inv-1")
	if !errors.Is(err, providerErr) {
		t.Fatalf("expected provider error, got %v", err)
	}

	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed {
		t.Errorf("final status = %s, want failed", last.status)
	}
	if last.detail == "" {
		t.Error("failed status must carry the error detail")
	}
}

func TestProcessByIDExtractorFailureMarksFailed(t *testing.T) {
	repo, storage := processFixture()
	uc := NewProcessInvoiceUseCase(
		repo,
		storage,
		&recognizerFake{response: &domain.ProviderResponse{OCRText: "Invoice Total Date $5.00"}},
		&validatorFake{verdict: domain.Accepted()},
		&pipelineExtractorFake{err: errors.New("parse blew up")},
	)

	if err := uc.ProcessByID(context.Background(), "inv-1"); err == nil {
		t.Fatal("expected extraction error")
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed {
		t.Errorf("final status = %s, want failed", last.status)
	}
}

func TestProcessByIDEmptyOCRTextIsInvalidInput(t *testing.T) {
	repo, storage := processFixture()
	uc := NewProcessInvoiceUseCase(
		repo,
		storage,
		&recognizerFake{response: &domain.ProviderResponse{OCRText: ""}},
		&validatorFake{verdict: domain.Accepted()},
		&pipelineExtractorFake{},
	)

	err := uc.ProcessByID(context.Background(), "inv-1")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
