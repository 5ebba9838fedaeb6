package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"invoicer/pkg/models"
)

// amountContexts are the total-amount label patterns, most specific
// first. Every occurrence of a label is scanned, not just the first, so
// a "Total" in a table header cannot shadow the real total further down.
var amountContexts = []string{
	`Total\s*Amount\s*Due`,
	`Amount\s*Due`,
	`Grand\s*[Tt]otal`,
	`Total\s*Amount\s*(?:Due|Payable)`,
	`Total\s*Payable`,
	`Balance`,
	`Total\s*(?:incl|inc|with).*?(?:VAT|Tax)`,
	`Total\s*(?:TTC|[àa]\s*payer)`,
	`Total\s*Contribution`,
	`Total\s*Premium`,
	`Montant\s*total`,
	`Total`,
	`Subtotal`,
}

// symbolPrecedence maps currency symbols to ISO codes, in the order they
// are tried during containment matching. Multi-char symbols come first so
// "US$" wins over the bare "$".
var symbolPrecedence = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"﷼", "SAR"},
}

// currencyKeywords is the full-text detection precedence. Moroccan dirham
// is checked before the generic dirham so "Dirham Marocain" resolves to
// MAD, and AED before any "$" so UAE invoices quoting dollars in footnotes
// still come out as dirhams. A bare "$" resolves to USD last.
var currencyKeywords = []struct {
	re   *regexp.Regexp
	code string
}{
	{regexp.MustCompile(`(?i)\bMAD\b|Dirham\s*Marocain`), "MAD"},
	{regexp.MustCompile(`(?i)\bAED\b|Dirham`), "AED"},
	{regexp.MustCompile(`(?i)\bUSD\b|US\s*\$|Dollars?\b`), "USD"},
	{regexp.MustCompile(`(?i)\bEUR\b|Euros?\b|€`), "EUR"},
	{regexp.MustCompile(`(?i)\bGBP\b|£|Pound\s*Sterling`), "GBP"},
	{regexp.MustCompile(`(?i)\bINR\b|₹|Rupee`), "INR"},
	{regexp.MustCompile(`(?i)\bSAR\b|﷼|Saudi\s*Riyal`), "SAR"},
	{regexp.MustCompile(`(?i)\bCHF\b|Swiss\s*Franc`), "CHF"},
	{regexp.MustCompile(`\$`), "USD"},
}

var (
	// OCR artifact repairs. Order matters: decimal-point repairs run
	// before the thousands-space collapse.
	ocrSpaceBeforeDotRe = regexp.MustCompile(`(\d)\s+\.(\d)`)
	ocrSpaceAfterDotRe  = regexp.MustCompile(`(\d)\.\s+(\d)`)
	ocrThousandsRe      = regexp.MustCompile(`(\d)\s+(\d{3})(?:([.,\s])|$)`)

	// Thousands-spaces are collapsed by CleanOCRAmount before any
	// candidate scan, so a space always separates distinct numbers here.
	numberInStringRe = regexp.MustCompile(`\d(?:[\d.,]*\d)?`)
	isoCodeInTextRe  = regexp.MustCompile(`\b([A-Z]{3})\b`)

	// fallbackAmountRe finds currency-tagged decimals anywhere: symbol or
	// code either before or after the number.
	fallbackAmountRe = regexp.MustCompile(`(?i)(?:[$€£₹]|US\$|AED|USD|EUR|INR)\s*(\d{1,3}(?:[,.]?\d{3})*[.,]\d{2})|(\d{1,3}(?:[,.]?\d{3})*[.,]\d{2})\s*(?:[$€£₹]|AED|USD|EUR|INR)`)

	contextValueWindow = 80
)

// ExtractAmount pulls the invoice total and currency from text.
//
// Phase 1 runs template amount patterns in priority order. Phase 2 scans
// contextual total labels. Phase 3 falls back to the largest
// currency-tagged number on the page. Whichever phase wins, a matched
// template's default currency covers a currency the text never names.
// Amount and currency are returned independently: either may be its zero
// value.
func ExtractAmount(text string, tmpl *models.SupplierTemplate) (decimal.Decimal, string) {
	amount, currency := amountCascade(text, tmpl)
	if tmpl != nil && tmpl.DefaultCurrency != "" &&
		(currency == "" || currency == models.UnknownCurrency) {
		currency = tmpl.DefaultCurrency
	}
	return amount, currency
}

func amountCascade(text string, tmpl *models.SupplierTemplate) (decimal.Decimal, string) {
	if tmpl != nil && len(tmpl.AmountPatterns) > 0 {
		if amount, ok := templateAmount(text, tmpl); ok {
			currency := tmpl.DefaultCurrency
			if currency == "" {
				currency = DetectCurrency(text)
			}
			return amount, currency
		}
	}

	if amount, currency, ok := contextualAmount(text); ok {
		return amount, currency
	}

	return fallbackLargestAmount(text)
}

// templateAmount tries the template's amount patterns, lowest priority
// value first.
func templateAmount(text string, tmpl *models.SupplierTemplate) (decimal.Decimal, bool) {
	patterns := make([]models.AmountPattern, len(tmpl.AmountPatterns))
	copy(patterns, tmpl.AmountPatterns)
	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Priority < patterns[j].Priority
	})

	for _, p := range patterns {
		re, err := regexp.Compile(`(?is)` + p.Pattern)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		raw := CleanOCRAmount(strings.TrimSpace(m[1]))
		if amount, ok := parseAmount(raw); ok && amount.IsPositive() {
			return amount, true
		}
	}
	return decimal.Decimal{}, false
}

// contextualAmount scans the total-label cascade.
func contextualAmount(text string) (decimal.Decimal, string, bool) {
	for _, ctx := range amountContexts {
		re := regexp.MustCompile(`(?i)` + ctx + `[\s:]*(.+?)(?:\n|$)`)
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			raw := strings.TrimSpace(m[1])
			if len(raw) > contextValueWindow {
				raw = raw[:contextValueWindow]
			}
			raw = CleanOCRAmount(raw)
			amount, hint, ok := parsePrice(raw)
			if ok && amount.IsPositive() {
				return amount, resolveCurrency(hint, text), true
			}
		}
	}
	return decimal.Decimal{}, "", false
}

// fallbackLargestAmount returns the largest currency-tagged amount found
// anywhere. The grand total is usually the largest number on the page.
func fallbackLargestAmount(text string) (decimal.Decimal, string) {
	var best decimal.Decimal
	bestCurrency := ""
	found := false

	for _, m := range fallbackAmountRe.FindAllString(text, -1) {
		raw := CleanOCRAmount(m)
		amount, hint, ok := parsePrice(raw)
		if !ok || !amount.IsPositive() {
			continue
		}
		if !found || amount.GreaterThan(best) {
			best = amount
			bestCurrency = resolveCurrency(hint, text)
			found = true
		}
	}

	if !found {
		return decimal.Decimal{}, ""
	}
	return best, bestCurrency
}

// CleanOCRAmount repairs character-level OCR artifacts in numeric text:
// "960 .34" and "960. 34" become "960.34", and a space used as a
// thousands separator is collapsed ("1 499.70" -> "1499.70").
// Cleaning an already-clean string returns it unchanged.
func CleanOCRAmount(raw string) string {
	raw = ocrSpaceBeforeDotRe.ReplaceAllString(raw, "$1.$2")
	raw = ocrSpaceAfterDotRe.ReplaceAllString(raw, "$1.$2")
	raw = ocrThousandsRe.ReplaceAllString(raw, "$1$2$3")
	return strings.TrimSpace(raw)
}

// parsePrice extracts an amount and a currency hint from a free-form
// price string like "AED 694.08", "US$2,100.00" or "263,97 €".
//
// When several numbers are present, percentages are skipped ("Incl 5%
// VAT 960.34" must yield 960.34) and a number with a two-digit fraction
// is preferred over a bare integer.
func parsePrice(raw string) (decimal.Decimal, string, bool) {
	hint := currencyHint(raw)

	num := pickAmountCandidate(raw)
	if num == "" {
		return decimal.Decimal{}, hint, false
	}
	amount, ok := parseAmount(num)
	return amount, hint, ok
}

var twoDecimalsRe = regexp.MustCompile(`[.,]\d{2}$`)

func pickAmountCandidate(raw string) string {
	locs := numberInStringRe.FindAllStringIndex(raw, -1)
	var candidates []string
	for _, loc := range locs {
		rest := strings.TrimLeft(raw[loc[1]:], " ")
		if strings.HasPrefix(rest, "%") {
			continue // a percentage, never an amount
		}
		candidates = append(candidates, raw[loc[0]:loc[1]])
	}
	if len(candidates) == 0 {
		return ""
	}
	for _, c := range candidates {
		if twoDecimalsRe.MatchString(c) {
			return c
		}
	}
	return candidates[0]
}

// parseAmount converts a raw numeric string to a decimal, handling both
// "1,234.56" and the European "1234,56" convention (comma decimal when
// exactly two fractional digits follow).
func parseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			return r
		default:
			return -1
		}
	}, raw)
	if cleaned == "" {
		return decimal.Decimal{}, false
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && !hasDot:
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			// European decimal comma: "263,97"
			cleaned = parts[0] + "." + parts[1]
		} else {
			// Comma thousands without decimals: "2,100"
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma && hasDot:
		// "1,234.56"
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// currencyHint finds a currency marker embedded in the price string
// itself: a 3-letter code, or a known symbol.
func currencyHint(raw string) string {
	for _, m := range isoCodeInTextRe.FindAllStringSubmatch(raw, -1) {
		// Only known codes count: "VAT" or "TTC" in a total line is not
		// a currency.
		if models.ValidCurrencies[m[1]] && m[1] != models.UnknownCurrency {
			return m[1]
		}
	}
	for _, s := range symbolPrecedence {
		if strings.Contains(raw, s.symbol) {
			return s.symbol
		}
	}
	return ""
}

// resolveCurrency turns a hint from the price string into an ISO code,
// falling back to full-text detection when the hint is empty or unknown.
func resolveCurrency(hint, text string) string {
	hint = strings.TrimSpace(hint)
	if len(hint) == 3 && isAlpha(hint) {
		return strings.ToUpper(hint)
	}
	for _, s := range symbolPrecedence {
		if hint != "" && strings.Contains(hint, s.symbol) {
			return s.code
		}
	}
	return DetectCurrency(text)
}

// DetectCurrency scans the whole text with the fixed keyword precedence,
// returning the "XXX" sentinel when nothing matches.
func DetectCurrency(text string) string {
	for _, kw := range currencyKeywords {
		if kw.re.MatchString(text) {
			return kw.code
		}
	}
	return models.UnknownCurrency
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
