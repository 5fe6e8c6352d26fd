// Package validate decides whether recognized text looks like an
// invoice before the extraction pipeline spends any effort on it.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

var pricePattern = regexp.MustCompile(`[-+]?\$?\s*\d{1,3}(?:,\d{3})*(?:\.\d{2})?`)

// invoiceKeywords are matched case-insensitively as substrings.
var invoiceKeywords = []string{"invoice", "total", "date"}

type Config struct {
	MinTextLength        int
	RequiredKeywordCount int
	MinPricePatterns     int
}

func DefaultConfig() Config {
	return Config{
		MinTextLength:        100,
		RequiredKeywordCount: 2,
		MinPricePatterns:     1,
	}
}

// Validator implements ports.FormatValidator over plain OCR text.
type Validator struct {
	cfg Config
}

func NewValidator(cfg Config) *Validator {
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = DefaultConfig().MinTextLength
	}
	if cfg.RequiredKeywordCount <= 0 {
		cfg.RequiredKeywordCount = DefaultConfig().RequiredKeywordCount
	}
	if cfg.MinPricePatterns <= 0 {
		cfg.MinPricePatterns = DefaultConfig().MinPricePatterns
	}
	return &Validator{cfg: cfg}
}

// Validate runs the three admission checks independently; any failure
// rejects the document with a human-readable reason.
func (v *Validator) Validate(ocrText string) domain.Verdict {
	if len(ocrText) < v.cfg.MinTextLength {
		return domain.Rejected(fmt.Sprintf(
			"text too short: %d characters, need at least %d",
			len(ocrText), v.cfg.MinTextLength))
	}

	lower := strings.ToLower(ocrText)
	found := 0
	for _, kw := range invoiceKeywords {
		if strings.Contains(lower, kw) {
			found++
		}
	}
	if found < v.cfg.RequiredKeywordCount {
		return domain.Rejected(fmt.Sprintf(
			"missing invoice keywords: found %d of %v, need at least %d",
			found, invoiceKeywords, v.cfg.RequiredKeywordCount))
	}

	prices := 0
	for _, m := range pricePattern.FindAllString(ocrText, -1) {
		if strings.TrimSpace(m) != "" {
			prices++
		}
		if prices >= v.cfg.MinPricePatterns {
			break
		}
	}
	if prices < v.cfg.MinPricePatterns {
		return domain.Rejected(fmt.Sprintf(
			"no currency amounts found, need at least %d", v.cfg.MinPricePatterns))
	}

	return domain.Accepted()
}
