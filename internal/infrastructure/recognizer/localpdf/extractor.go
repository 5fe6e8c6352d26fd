// Package localpdf is an offline recognition provider that reads the text
// layer embedded in a PDF. It produces no structured fields; the extraction
// pipeline runs purely on the recovered text. Intended for batch runs and
// development without provider credentials.
package localpdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) Recognize(_ context.Context, doc domain.Document) (*domain.ProviderResponse, error) {
	reader, err := pdf.NewReader(bytes.NewReader(doc.Bytes), int64(len(doc.Bytes)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse pdf", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract pdf text", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}

	text := strings.TrimSpace(buf.String())
	return &domain.ProviderResponse{OCRText: text}, nil
}
