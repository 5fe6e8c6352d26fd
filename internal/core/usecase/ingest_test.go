package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishInvoiceReceived(_ context.Context, invoiceID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, invoiceID)
	return nil
}

func (f *queueFake) SubscribeInvoiceReceived(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestUploadStoresRecordsAndPublishes(t *testing.T) {
	repo := &invoiceRepoFake{}
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestInvoiceUseCase(repo, storage, queue)

	payload := []byte("%PDF-1.7 invoice body")
	inv, err := uc.Upload(context.Background(), "March Invoice.pdf", "application/pdf", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if inv.Status != domain.StatusReceived {
		t.Errorf("status = %s, want received", inv.Status)
	}
	if inv.Fingerprint != domain.FingerprintBytes(payload) {
		t.Errorf("fingerprint = %q", inv.Fingerprint)
	}
	if !strings.HasSuffix(inv.StoragePath, "_March_Invoice.pdf") {
		t.Errorf("storage path = %q", inv.StoragePath)
	}
	if got, ok := storage.data[inv.StoragePath]; !ok || !bytes.Equal(got, payload) {
		t.Error("payload not stored under the invoice's storage path")
	}
	if len(repo.created) != 1 || repo.created[0].ID != inv.ID {
		t.Errorf("created records = %+v", repo.created)
	}
	if len(queue.published) != 1 || queue.published[0] != inv.ID {
		t.Errorf("published events = %v", queue.published)
	}
}

func TestUploadRejectsEmptyBody(t *testing.T) {
	uc := NewIngestInvoiceUseCase(&invoiceRepoFake{}, &storageFake{}, &queueFake{})

	_, err := uc.Upload(context.Background(), "empty.pdf", "application/pdf", bytes.NewReader(nil))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUploadStorageFailureAborts(t *testing.T) {
	repo := &invoiceRepoFake{}
	queue := &queueFake{}
	uc := NewIngestInvoiceUseCase(repo, &storageFake{saveErr: errors.New("disk full")}, queue)

	if _, err := uc.Upload(context.Background(), "a.pdf", "application/pdf", strings.NewReader("data")); err == nil {
		t.Fatal("expected storage error")
	}
	if len(repo.created) != 0 || len(queue.published) != 0 {
		t.Error("nothing may be recorded or published after a storage failure")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"March Invoice.pdf", "March_Invoice.pdf"},
		{"../../etc/passwd", "passwd"},
		{"über rechnung.pdf", "_ber_rechnung.pdf"},
		{"", "invoice.bin"},
	}
	for _, tc := range cases {
		if got := sanitizeFilename(tc.in); got != tc.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
