package extraction

import (
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

// ExtractLineItems runs the full line-item pipeline: rows come from the
// provider's structured block when it has any, otherwise from table parsing
// of the recognized text. Every row then goes through SKU repair,
// description cleanup and price-sign normalization, and the invoice-level
// tax rate is computed once and broadcast to all rows.
func ExtractLineItems(ocrText string, structured *domain.StructuredData) []domain.LineItem {
	var items []domain.LineItem
	if structured != nil && len(structured.LineItems) > 0 {
		items = fromStructured(structured.LineItems)
	} else {
		items = parseTableRows(ocrText)
	}

	for i := range items {
		repairItem(&items[i])
	}

	rate := calculateInvoiceTaxRate(structured, ocrText)
	for i := range items {
		items[i].TaxRate = rate
	}
	return items
}

func fromStructured(rows []domain.StructuredLineItem) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(rows))
	for _, row := range rows {
		sku := strings.TrimSpace(row.SKU)
		description := strings.TrimSpace(row.Description)
		if sku == "" && description == "" {
			continue
		}
		items = append(items, domain.LineItem{
			SKU:         sku,
			Description: description,
			Quantity:    row.Quantity,
			Price:       row.Price,
			Total:       row.Total,
		})
	}
	return items
}

// Table location and row parsing.

var tableHeaderKeywords = []string{"item", "description", "qty", "quantity", "price", "sku"}

var tableTerminators = []string{"subtotal", "tax", "total"}

var discountKeywords = []string{"discount", "credit", "refund", "deduction", "adjustment"}

func parseTableRows(ocrText string) []domain.LineItem {
	lines := strings.Split(ocrText, "\n")
	start := 0
	for i, line := range lines {
		if containsAny(strings.ToLower(line), tableHeaderKeywords) {
			start = i + 1
			break
		}
	}

	var items []domain.LineItem
	var current *domain.LineItem

	flush := func() {
		if current != nil && current.Description != "" && (current.Price != 0 || current.Total != 0) {
			items = append(items, *current)
		}
		current = nil
	}

	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			flush()
			continue
		}
		lower := strings.ToLower(line)
		if isTableTerminator(lower) {
			break
		}
		if current != nil && current.Description != "" && (current.Price != 0 || current.Total != 0) {
			flush()
		}
		if current == nil {
			current = &domain.LineItem{}
		}
		applyRow(line, lower, current)
	}
	flush()
	return items
}

// isTableTerminator reports whether a line ends the item table. Carrier tax
// and surcharge lines are pass-through line items, not totals, so they never
// terminate the table.
func isTableTerminator(lower string) bool {
	if strings.Contains(lower, "carrier") {
		return false
	}
	return containsAny(lower, tableTerminators)
}

// applyRow extracts quantity, amounts, a labeled SKU and description text
// from one table line into the row under construction.
func applyRow(line, lower string, item *domain.LineItem) {
	rest := line
	if item.Quantity == 0 {
		if m := leadingQuantityPattern.FindStringSubmatch(line); m != nil {
			if qty, err := strconv.ParseFloat(m[1], 64); err == nil && qty >= 0.01 && qty <= 1000000 {
				item.Quantity = qty
				rest = strings.TrimSpace(line[len(m[0]):])
			}
		}
	}

	amounts, stripped := extractAmounts(rest)
	if len(amounts) > 0 {
		if item.Price == 0 {
			item.Price = amounts[0]
		}
		if item.Total == 0 {
			item.Total = amounts[len(amounts)-1]
		}
	}

	if item.SKU == "" {
		for _, p := range skuLabelPatterns {
			if m := p.FindStringSubmatch(line); m != nil {
				item.SKU = m[1]
				break
			}
		}
	}

	if desc := descriptionText(stripped); desc != "" {
		if item.Description == "" {
			item.Description = desc
		} else {
			item.Description += " " + desc
		}
	}

	if containsAny(lower, discountKeywords) {
		if item.Price > 0 {
			item.Price = -item.Price
		}
		if item.Total > 0 {
			item.Total = -item.Total
		}
	}
}

// extractAmounts finds standalone currency amounts in a line and returns
// them along with the line with those amounts removed. Digit runs embedded
// in codes or date-shaped tokens (adjacent letters, digits, '/' or '-')
// are not amounts.
func extractAmounts(line string) (amounts []float64, stripped string) {
	matches := pricePattern.FindAllStringSubmatchIndex(line, -1)
	var spans [][2]int
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && isAmountBoundaryRune(line[start-1]) {
			continue
		}
		if end < len(line) && isAmountBoundaryRune(line[end]) {
			continue
		}
		raw := strings.ReplaceAll(line[m[2]:m[3]], ",", "")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line[start:end]), "-") {
			value = -value
		}
		amounts = append(amounts, value)
		spans = append(spans, [2]int{start, end})
	}

	stripped = line
	for i := len(spans) - 1; i >= 0; i-- {
		stripped = stripped[:spans[i][0]] + stripped[spans[i][1]:]
	}
	return amounts, stripped
}

func isAmountBoundaryRune(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z':
		return true
	case b == '/' || b == '-' || b == '.':
		return true
	}
	return false
}

// descriptionText keeps the prose parts of a table line after amounts were
// removed.
func descriptionText(s string) string {
	var parts []string
	for _, part := range strings.Split(s, "  ") {
		part = strings.TrimSpace(part)
		if len(part) <= 3 {
			continue
		}
		bare := strings.NewReplacer(".", "", ",", "").Replace(part)
		if isAllDigits(bare) || datelikePattern.MatchString(part) {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// SKU repair and description cleanup.

// repairItem finalizes one row: tax and discount rows never carry a SKU,
// product rows get their SKU recovered from parenthesized description
// tokens when the label-based attempt found nothing, parenthesized tokens
// are stripped from the description, and the price sign is made consistent
// with a negative total.
func repairItem(item *domain.LineItem) {
	if isTaxRow(item) || isDiscountRow(item) {
		item.SKU = ""
	} else if item.SKU == "" {
		item.SKU = extractSKUFromDescription(item.Description)
	}

	item.Description = cleanDescription(item.Description)

	if item.Total < 0 && item.Price > 0 {
		item.Price = -item.Price
	}
}

func isTaxRow(item *domain.LineItem) bool {
	return strings.Contains(strings.ToLower(item.Description), "tax")
}

func isDiscountRow(item *domain.LineItem) bool {
	if item.Total < 0 {
		return true
	}
	return containsAny(strings.ToLower(item.Description), discountKeywords)
}

// extractSKUFromDescription scans parenthesized tokens left to right and
// returns the first one that survives validation. Date-shaped tokens,
// tax markers, purely numeric codes and implausible lengths are rejected.
func extractSKUFromDescription(description string) string {
	for _, m := range skuCandidatePattern.FindAllStringSubmatch(description, -1) {
		if isValidSKUCandidate(m[1]) {
			return m[1]
		}
	}
	return ""
}

func isValidSKUCandidate(candidate string) bool {
	if strings.ContainsAny(candidate, "/-") {
		return false
	}
	if lower := strings.ToLower(candidate); lower == "tax" || lower == "taxes" {
		return false
	}
	if len(candidate) < 4 || len(candidate) > 12 {
		return false
	}
	if isAllDigits(candidate) {
		return false
	}
	return true
}

// cleanDescription strips every parenthesized token of the SKU candidate
// class, whether or not one was selected as the SKU.
func cleanDescription(description string) string {
	cleaned := skuCandidatePattern.ReplaceAllString(description, "")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return strings.TrimSpace(description)
	}
	return cleaned
}

// Invoice-level tax rate.

// calculateInvoiceTaxRate resolves the invoice's single tax rate in strict
// fallback order: structured tax and subtotal amounts, an explicit
// percentage next to a tax label in the text, amounts recovered from
// subtotal and tax lines, and finally zero.
func calculateInvoiceTaxRate(structured *domain.StructuredData, ocrText string) float64 {
	if structured != nil && structured.Tax > 0 && structured.Subtotal > 0 {
		return round2(structured.Tax / structured.Subtotal * 100)
	}

	for _, p := range taxRateLabelPatterns {
		m := p.FindStringSubmatch(ocrText)
		if m == nil {
			continue
		}
		rate, err := strconv.ParseFloat(m[1], 64)
		if err == nil && rate >= 0 && rate <= 100 {
			return round2(rate)
		}
	}

	lines := strings.Split(ocrText, "\n")
	subtotal, haveSubtotal := amountFromLines(lines, func(lower string) bool {
		return strings.Contains(lower, "subtotal") && !strings.Contains(lower, "tax")
	})
	tax, haveTax := amountFromLines(lines, func(lower string) bool {
		return strings.Contains(lower, "tax") &&
			!strings.Contains(lower, "carrier") &&
			!strings.Contains(lower, "subtotal") &&
			!strings.Contains(lower, "%")
	})
	if haveSubtotal && haveTax && subtotal > 0 && tax > 0 {
		return round2(tax / subtotal * 100)
	}

	return 0
}

// amountFromLines returns the last currency amount on the first line the
// predicate accepts.
func amountFromLines(lines []string, match func(lower string) bool) (float64, bool) {
	for _, line := range lines {
		if !match(strings.ToLower(strings.TrimSpace(line))) {
			continue
		}
		sub := pricePattern.FindAllStringSubmatch(line, -1)
		if len(sub) == 0 {
			continue
		}
		raw := strings.ReplaceAll(sub[len(sub)-1][1], ",", "")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return value, true
	}
	return 0, false
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
