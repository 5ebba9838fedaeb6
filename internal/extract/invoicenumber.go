package extract

import (
	"regexp"
	"strings"

	"invoicer/pkg/models"
)

// genericNumberPatterns are label-anchored invoice number patterns,
// ordered most specific first. The first match wins.
var genericNumberPatterns = []*regexp.Regexp{
	// Document/Tax Invoice Number with explicit label
	regexp.MustCompile(`(?i)Document\s*Number\s*:\s*([A-Za-z0-9-]+)`),
	regexp.MustCompile(`(?i)Tax\s*Invoice\s*Number\s*:?\s*([A-Za-z0-9-]+)`),
	regexp.MustCompile(`(?i)Tax\s*Invoice\s*No\.?\s*:?\s*([A-Za-z0-9-]+)`),
	regexp.MustCompile(`(?i)Tax\s*Invoice#\s*([A-Za-z0-9-]+)`),

	// Standard invoice labels
	regexp.MustCompile(`(?i)Invoice\s*number\s*:?\s*([A-Za-z0-9/-]+)`),
	regexp.MustCompile(`(?i)Invoice\s*#\s*([A-Za-z0-9/-]+)`),
	regexp.MustCompile(`(?i)Invoice\s*No\.?\s*:?\s*([A-Za-z0-9/-]+)`),
	regexp.MustCompile(`(?i)Invoice\s*ID\s*:?\s*([A-Za-z0-9-]+)`),

	// French labels
	regexp.MustCompile(`(?i)Num[ée]ro\s*(?:de\s*)?(?:la\s*)?facture\s*:?\s*([A-Za-z0-9/-]+)`),
	regexp.MustCompile(`(?i)Facture\s*(?:n[o°]|#)\s*:?\s*([A-Za-z0-9/-]+)`),

	// Bill labels
	regexp.MustCompile(`(?i)Bill\s*number\s*:?\s*([A-Za-z0-9]+)`),
	regexp.MustCompile(`(?i)Your\s*bill\s*number\s*:?\s*([0-9]+)`),

	// Receipt
	regexp.MustCompile(`(?i)Receipt\s*#?\s*:?\s*([A-Za-z0-9-]+)`),

	// Customer invoice
	regexp.MustCompile(`(?i)Customer\s*Invoices?\s*([A-Za-z0-9/]+)`),
}

var (
	nonDigitRe     = regexp.MustCompile(`[^0-9]`)
	phoneShapeRe   = regexp.MustCompile(`^\+\d{10,}$`)
	countryCodeRe  = regexp.MustCompile(`^00\d{3}$`)
	maxNumberLen   = 30
	minNumberLen   = 3
	maxDigitsInNum = 15
)

// ExtractInvoiceNumber pulls the invoice number from text, trying a
// template-supplied pattern before the generic label cascade. The result
// always carries a leading "#"; an empty string means not found.
func ExtractInvoiceNumber(text string, tmpl *models.SupplierTemplate) string {
	// Template pattern gets light validation only: template context
	// already confirms this is the supplier's invoice number field.
	if tmpl != nil && tmpl.InvoiceNumberPattern != "" {
		if re, err := regexp.Compile(`(?i)` + tmpl.InvoiceNumberPattern); err == nil {
			if m := re.FindStringSubmatch(text); len(m) > 1 {
				num := strings.TrimSpace(m[1])
				if validTemplateNumber(num) {
					return "#" + num
				}
			}
		}
	}

	for _, re := range genericNumberPatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			num := strings.TrimSpace(m[1])
			if validGenericNumber(num) {
				return "#" + num
			}
		}
	}

	return ""
}

func validTemplateNumber(num string) bool {
	return len(num) >= minNumberLen && len(num) <= maxNumberLen
}

// validGenericNumber rejects phone numbers, tax IDs, and other long
// numeric codes that generic label patterns tend to latch onto.
func validGenericNumber(num string) bool {
	if len(num) < minNumberLen || len(num) > maxNumberLen {
		return false
	}
	if len(nonDigitRe.ReplaceAllString(num, "")) > maxDigitsInNum {
		return false
	}
	if phoneShapeRe.MatchString(num) || countryCodeRe.MatchString(num) {
		return false
	}
	return true
}
