package extraction

import (
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
)

// headerScanLines bounds how deep into the document the header-field
// heuristics look. Invoice metadata sits at the top of the page.
const headerScanLines = 30

// ExtractHeaderFields pulls the five header fields out of recognized text.
// Every field degrades to empty when its heuristics find nothing.
func ExtractHeaderFields(ocrText string) domain.HeaderFields {
	return domain.HeaderFields{
		VendorName:    extractVendorName(ocrText),
		VendorAddress: extractVendorAddress(ocrText),
		BillToName:    extractBillToName(ocrText),
		InvoiceNumber: extractInvoiceNumber(ocrText),
		Date:          extractDate(ocrText),
	}
}

// extractVendorName tries, in priority order: the payment-instructions
// section, the first lines of the document, then labeled vendor patterns.
func extractVendorName(ocrText string) string {
	for _, p := range paymentPatterns {
		m := p.FindStringSubmatch(ocrText)
		if m == nil {
			continue
		}
		candidate := strings.TrimRight(strings.TrimSpace(m[1]), ".,;")
		if len(candidate) <= 2 {
			continue
		}
		if cleaned := cleanVendorName(candidate); cleaned != "" {
			return cleaned
		}
	}

	if name := vendorFromFirstLines(ocrText); name != "" {
		return name
	}

	for _, p := range vendorPatterns {
		m := p.FindStringSubmatch(ocrText)
		if m == nil {
			continue
		}
		candidate := strings.TrimSpace(m[1])
		if len(candidate) > 3 {
			if cleaned := cleanVendorName(candidate); cleaned != "" {
				return cleaned
			}
		}
	}
	return ""
}

var vendorLineFalsePositives = []string{
	"page", "invoice", "date", "total", "amount", "due",
	"bill to", "ship to", "sold to", "please make payments",
}

func vendorFromFirstLines(ocrText string) string {
	lines := strings.Split(ocrText, "\n")
	for i, line := range lines {
		if i >= 8 {
			break
		}
		line = strings.TrimSpace(line)
		if !isVendorLineCandidate(line) {
			continue
		}
		if cleaned := cleanVendorName(line); cleaned != "" {
			return cleaned
		}
	}
	return ""
}

func isVendorLineCandidate(line string) bool {
	if line == "" || len(line) <= 3 || len(line) >= 100 {
		return false
	}
	lower := strings.ToLower(line)
	for _, fp := range vendorLineFalsePositives {
		if strings.Contains(lower, fp) {
			return false
		}
	}
	// Dates and invoice numbers never open a vendor block.
	if datelikePattern.MatchString(line) || leadingDigitsPattern.MatchString(line) {
		return false
	}
	return true
}

func cleanVendorName(name string) string {
	cleaned := strings.TrimRight(strings.TrimSpace(name), ".,;")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if len(cleaned) < 3 || len(cleaned) > 100 {
		return ""
	}
	first := rune(cleaned[0])
	if !((first >= 'A' && first <= 'Z') || (first >= 'a' && first <= 'z')) {
		return ""
	}
	return cleaned
}

// addressStopKeywords terminate address collection: once the text moves on
// to invoice metadata the vendor block is over.
var addressStopKeywords = []string{
	"invoice", "date", "bill to", "ship to", "item", "description",
	"account no", "account number", "p.o.", "po number",
}

var addressStreetKeywords = []string{
	"street", "st", "avenue", "ave", "road", "rd", "blvd", "drive", "dr",
}

// extractVendorAddress collects the lines that follow the vendor name,
// falling back to a single-shot address pattern over the whole text.
func extractVendorAddress(ocrText string) string {
	lines := strings.Split(ocrText, "\n")
	vendorName := extractVendorName(ocrText)

	start := -1
	if vendorName != "" {
		lowerVendor := strings.ToLower(vendorName)
		for i, line := range lines {
			if i >= 20 {
				break
			}
			if strings.Contains(strings.ToLower(line), lowerVendor) {
				start = i + 1
				break
			}
		}
	}

	if start >= 0 {
		if collected := collectAddressLines(lines, start); len(collected) > 0 {
			return strings.Join(collected, "\n")
		}
	}

	if m := addressPattern.FindString(ocrText); m != "" {
		return strings.TrimSpace(m)
	}
	return ""
}

func collectAddressLines(lines []string, start int) []string {
	var collected []string
	end := start + 15
	if end > len(lines) {
		end = len(lines)
	}
	for i := start; i < end; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			if len(collected) >= 2 {
				break
			}
			continue
		}
		lower := strings.ToLower(line)
		stopped := false
		for _, kw := range addressStopKeywords {
			if strings.Contains(lower, kw) {
				stopped = true
				break
			}
		}
		if stopped {
			break
		}
		if looksLikeAddressLine(line, lower) {
			collected = append(collected, strings.Join(strings.Fields(line), " "))
		} else if len(collected) > 0 {
			collected = append(collected, strings.Join(strings.Fields(line), " "))
		}
		if len(collected) >= 4 {
			break
		}
	}

	// Require at least one real address signal before trusting the block.
	for _, line := range collected {
		lower := strings.ToLower(line)
		if zipPattern.MatchString(line) || looksLikeAddressLine(line, lower) {
			return collected
		}
	}
	return nil
}

func looksLikeAddressLine(line, lower string) bool {
	if zipPattern.MatchString(line) || containsWord(lower, addressStreetKeywords) {
		return true
	}
	return strings.ContainsAny(line, "0123456789")
}

var billToLabels = []string{"bill to", "billto", "sold to", "customer:"}

var companyNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9\s&,.\-']+$`)

var billToFalsePositives = []string{
	"date", "invoice", "total", "amount", "quantity", "description",
}

// extractBillToName finds the customer block: first a labeled section scan,
// then the labeled patterns over the full text.
func extractBillToName(ocrText string) string {
	lines := strings.Split(ocrText, "\n")

	sectionStart := -1
	for i, line := range lines {
		if i >= 50 {
			break
		}
		lower := strings.ToLower(strings.TrimSpace(line))
		for _, label := range billToLabels {
			if strings.Contains(lower, label) {
				sectionStart = i
				break
			}
		}
		if sectionStart >= 0 {
			break
		}
	}

	if sectionStart >= 0 {
		end := sectionStart + 10
		if end > len(lines) {
			end = len(lines)
		}
		for i := sectionStart + 1; i < end; i++ {
			line := strings.TrimSpace(lines[i])
			if line == "" || leadingDigitsPattern.MatchString(line) {
				continue
			}
			lower := strings.ToLower(line)
			if containsWord(lower, addressStreetKeywords) ||
				containsWord(lower, []string{"account", "po", "p.o", "invoice", "date"}) {
				continue
			}
			if companyNamePattern.MatchString(line) && len(line) >= 3 && len(line) <= 100 {
				if cleaned := cleanCompanyName(line); cleaned != "" {
					return cleaned
				}
			}
		}
	}

	for _, p := range billToPatterns {
		m := p.FindStringSubmatch(ocrText)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if idx := strings.IndexByte(name, ','); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}
		if len(name) < 3 || len(name) > 100 {
			continue
		}
		if containsAny(strings.ToLower(name), billToFalsePositives) {
			continue
		}
		if cleaned := cleanCompanyName(name); cleaned != "" {
			return cleaned
		}
	}
	return ""
}

var companyNamePrefixPattern = regexp.MustCompile(`(?i)^(bill\s+to|sold\s+to|customer)\s*:?\s*`)

func cleanCompanyName(name string) string {
	cleaned := companyNamePrefixPattern.ReplaceAllString(strings.TrimSpace(name), "")
	cleaned = strings.TrimRight(strings.TrimSpace(cleaned), ",;")
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) < 3 || len(cleaned) > 100 {
		return ""
	}
	first := cleaned[0]
	if !((first >= 'A' && first <= 'Z') || (first >= 'a' && first <= 'z')) {
		return ""
	}
	return cleaned
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// containsWord matches whole words only, so "Corporation" does not trip a
// "po" keyword and "Industries" does not look like a street line.
func containsWord(lower string, words []string) bool {
	for _, field := range strings.Fields(lower) {
		trimmed := strings.Trim(field, ".,:;#")
		for _, w := range words {
			if trimmed == w {
				return true
			}
		}
	}
	return false
}

// extractInvoiceNumber tries labeled patterns in the header area, then bare
// numeric candidates with invoice-keyword context, then all patterns over
// the full text.
func extractInvoiceNumber(ocrText string) string {
	lines := strings.Split(ocrText, "\n")
	headerEnd := headerScanLines
	if headerEnd > len(lines) {
		headerEnd = len(lines)
	}
	header := strings.Join(lines[:headerEnd], "\n")

	for _, p := range invoiceNumberPatterns[:2] {
		for _, m := range p.FindAllStringSubmatch(header, -1) {
			if candidate := strings.TrimSpace(m[1]); isValidInvoiceNumber(candidate) {
				return candidate
			}
		}
	}

	for _, m := range numericCandidatePattern.FindAllStringSubmatchIndex(header, -1) {
		candidate := header[m[2]:m[3]]
		if !isValidInvoiceNumber(candidate) {
			continue
		}
		ctxStart := m[0] - 50
		if ctxStart < 0 {
			ctxStart = 0
		}
		ctxEnd := m[1] + 50
		if ctxEnd > len(header) {
			ctxEnd = len(header)
		}
		context := strings.ToLower(header[ctxStart:ctxEnd])
		if containsAny(context, []string{"invoice", "inv", "no.", "number"}) {
			return candidate
		}
	}

	for _, p := range invoiceNumberPatterns {
		for _, m := range p.FindAllStringSubmatch(ocrText, -1) {
			if candidate := strings.TrimSpace(m[1]); isValidInvoiceNumber(candidate) {
				return candidate
			}
		}
	}
	return ""
}

var alnumDashPattern = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)

func isValidInvoiceNumber(candidate string) bool {
	if len(candidate) < 6 || len(candidate) > 20 {
		return false
	}
	lower := strings.ToLower(candidate)
	if _, excluded := invoiceNumberExclusions[lower]; excluded {
		return false
	}
	// All-lowercase words caught by the alphanumeric patterns are prose.
	if lower == candidate && !strings.ContainsAny(candidate, "0123456789") {
		return false
	}
	if datelikePattern.MatchString(candidate) {
		return false
	}
	return alnumDashPattern.MatchString(candidate)
}

// extractDate finds the invoice date, preferring labeled date sections in
// the header, then scored pattern hits (invoice/date context up, "due"
// context down), then a full-text sweep.
func extractDate(ocrText string) string {
	lines := strings.Split(ocrText, "\n")
	headerEnd := headerScanLines
	if headerEnd > len(lines) {
		headerEnd = len(lines)
	}
	header := strings.Join(lines[:headerEnd], "\n")

	for _, p := range dateSectionPatterns {
		m := p.FindStringSubmatch(header)
		if m == nil {
			continue
		}
		section := strings.TrimSpace(m[1])
		for _, dp := range datePatterns {
			if hit := dp.FindString(section); hit != "" {
				if parsed, ok := parseDate(hit); ok {
					return parsed
				}
			}
		}
		if parsed, ok := parseDate(section); ok {
			return parsed
		}
	}

	type candidate struct {
		score int
		pos   int
		date  string
	}
	var best *candidate
	for _, p := range datePatterns {
		for _, loc := range p.FindAllStringIndex(header, -1) {
			parsed, ok := parseDate(header[loc[0]:loc[1]])
			if !ok {
				continue
			}
			ctxStart := loc[0] - 30
			if ctxStart < 0 {
				ctxStart = 0
			}
			ctxEnd := loc[1] + 30
			if ctxEnd > len(header) {
				ctxEnd = len(header)
			}
			context := strings.ToLower(header[ctxStart:ctxEnd])
			score := 0
			if containsAny(context, []string{"invoice", "date", "bill"}) {
				score += 10
			}
			if !strings.Contains(context, "due") {
				score += 5
			}
			c := candidate{score: score, pos: loc[0], date: parsed}
			if best == nil || c.score > best.score || (c.score == best.score && c.pos < best.pos) {
				best = &c
			}
		}
	}
	if best != nil {
		return best.date
	}

	for _, p := range datePatterns {
		for _, hit := range p.FindAllString(ocrText, -1) {
			if parsed, ok := parseDate(hit); ok {
				return parsed
			}
		}
	}
	return ""
}

// dateLayouts covers the formats seen across provider output. US month-first
// ordering is tried before day-first.
var dateLayouts = []string{
	"1/2/2006", "1/2/06", "2006/1/2",
	"1-2-2006", "2006-1-2",
	"January 2, 2006", "Jan 2, 2006",
	"January 2 2006", "Jan 2 2006",
	"2 January 2006", "2 Jan 2006",
	"2/1/2006", "2-1-2006",
}

// parseDate normalizes a date string to YYYY-MM-DD.
func parseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() < 2000 || t.Year() > 2100 {
			return "", false
		}
		return t.Format("2006-01-02"), true
	}
	return "", false
}
