package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
	"github.com/kirillkom/invoice-pipeline/internal/core/ports"
)

// ReadInvoiceUseCase serves invoice state and extraction results to the API.
type ReadInvoiceUseCase struct {
	repo ports.InvoiceRepository
}

func NewReadInvoiceUseCase(repo ports.InvoiceRepository) *ReadInvoiceUseCase {
	return &ReadInvoiceUseCase{repo: repo}
}

func (uc *ReadInvoiceUseCase) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch invoice by id: %w", err)
	}
	return inv, nil
}
