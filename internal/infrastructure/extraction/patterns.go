// Package extraction pulls invoice fields out of recognized text and
// reconciles them with the provider's structured block. Text-derived
// values are the source of truth; structured data fills gaps.
package extraction

import "regexp"

// Amount and rate patterns. The price pattern tolerates an optional sign,
// dollar sign and thousands separators; two decimal places are optional
// because OCR frequently drops them.
var (
	pricePattern   = regexp.MustCompile(`[-+]?\$?\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`)
	taxRatePattern = regexp.MustCompile(`(\d+\.?\d*)\s*%`)
)

// Explicit tax-rate phrasings, most specific first.
var taxRateLabelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)tax\s*:?\s*rate\s*:?\s*\(?(\d+\.?\d*)\s*%\)?`),
	regexp.MustCompile(`(?i)tax\s*:?\s*\(?(\d+\.?\d*)\s*%\)?`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*%\s*sales\s*tax`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*%\s*tax`),
}

// Date patterns in decreasing order of specificity.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}[/-]\d{1,2}[/-]\d{1,2}`),
	regexp.MustCompile(`\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`),
	regexp.MustCompile(`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}`),
}

// Labeled date sections, e.g. "Invoice Date: 3/15/2024".
var dateSectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)invoice\s+date\s*:?\s*([^\n]+)`),
	regexp.MustCompile(`(?i)bill\s+date\s*:?\s*([^\n]+)`),
	regexp.MustCompile(`(?i)date\s*:?\s*([^\n]+)`),
}

// Invoice-number patterns. Labeled forms come first; the bare numeric form
// is only trusted when invoice-related keywords appear nearby.
var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)invoice\s+(?:no\.?|number)\s*:?\s*([0-9]{6,20})`),
	regexp.MustCompile(`(?i)(?:invoice|inv)\s*#\s*:?\s*([0-9]{6,20})`),
	regexp.MustCompile(`(?i)(?:invoice|inv|#)\s*:?\s*([A-Z0-9\-]{6,20})`),
	regexp.MustCompile(`(?i)invoice\s+number\s*:?\s*([A-Z0-9\-]{6,20})`),
}

var numericCandidatePattern = regexp.MustCompile(`\b([0-9]{6,20})\b`)

// invoiceNumberExclusions lists words the candidate patterns occasionally
// capture that are never invoice numbers.
var invoiceNumberExclusions = map[string]struct{}{
	"page": {}, "switch": {}, "date": {}, "invoice": {}, "total": {},
	"amount": {}, "quantity": {}, "description": {}, "sku": {}, "item": {},
	"account": {}, "number": {}, "po": {}, "services": {},
}

// Vendor and bill-to patterns.
var (
	paymentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)please\s+make\s+payments\s+to\s*:?\s*(.+?)$`),
		regexp.MustCompile(`(?im)make\s+payments\s+to\s*:?\s*(.+?)$`),
		regexp.MustCompile(`(?im)payments\s+should\s+be\s+made\s+to\s*:?\s*(.+?)$`),
	}
	vendorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(?:from|vendor|supplier)\s*:?\s*(.+?)$`),
		regexp.MustCompile(`(?m)^([A-Z][A-Za-z\s&]+(?:Inc|LLC|Corp|Ltd|Company|Co)\.?)`),
	}
	billToPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)bill\s+to\s*:?\s*(.+?)$`),
		regexp.MustCompile(`(?im)sold\s+to\s*:?\s*(.+?)$`),
		regexp.MustCompile(`(?im)customer\s*:?\s*(.+?)$`),
	}
	addressPattern = regexp.MustCompile(`(?i)(\d+\s+[A-Za-z0-9\s,]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Drive|Dr)[\s\S]{0,200}?(?:\d{5}(?:-\d{4})?))`)
	zipPattern     = regexp.MustCompile(`\d{5}(?:-\d{4})?`)
)

// Labeled SKU forms found inside table rows.
var skuLabelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)sku\s*:?\s*([A-Z0-9\-]+)`),
	regexp.MustCompile(`(?i)item\s*#\s*:?\s*([A-Z0-9\-]+)`),
	regexp.MustCompile(`(?i)product\s*code\s*:?\s*([A-Z0-9\-]+)`),
}

// skuCandidatePattern matches parenthesized alphanumeric tokens such as
// "(X6HCHK1C)" or "(10/2023)". Candidates are validated separately; the
// same class also drives description cleanup.
var skuCandidatePattern = regexp.MustCompile(`\(([A-Za-z0-9/\-]+)\)`)

var (
	leadingQuantityPattern = regexp.MustCompile(`^(\d+\.?\d*)\s+`)
	datelikePattern        = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	leadingDigitsPattern   = regexp.MustCompile(`^#?\s*\d+`)
)
