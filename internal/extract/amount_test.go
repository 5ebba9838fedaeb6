package extract

import (
	"testing"

	"github.com/shopspring/decimal"

	"invoicer/pkg/models"
)

func TestCleanOCRAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"space before dot", "960 .34", "960.34"},
		{"space after dot", "960. 34", "960.34"},
		{"thousands space", "1 499.70", "1499.70"},
		{"multiple thousands groups", "1 234 567.89", "1234567.89"},
		{"already clean", "2,100.00", "2,100.00"},
		{"plain integer", "500", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanOCRAmount(tt.in); got != tt.want {
				t.Errorf("CleanOCRAmount(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanOCRAmountIdempotent(t *testing.T) {
	once := CleanOCRAmount("1 499 .70")
	twice := CleanOCRAmount(once)
	if once != twice {
		t.Errorf("not idempotent: first %q, second %q", once, twice)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1,234.56", "1234.56", true},
		{"263,97", "263.97", true},
		{"2,100", "2100", true},
		{"960.34", "960.34", true},
		{"1234567.89", "1234567.89", true},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseAmount(tt.in)
			if ok != tt.ok {
				t.Fatalf("parseAmount(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got.String() != tt.want {
				t.Errorf("parseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractAmountContextual(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantAmount   string
		wantCurrency string
	}{
		{
			name:         "amount due with code",
			text:         "Tax Invoice\nTotal Amount Due AED 694.08\nThank you",
			wantAmount:   "694.08",
			wantCurrency: "AED",
		},
		{
			name:         "french decimal comma with euro sign",
			text:         "Facture\nTotal à payer 263,97 €",
			wantAmount:   "263.97",
			wantCurrency: "EUR",
		},
		{
			name:         "skips vat percentage on total line",
			text:         "Total (Incl 5% VAT): AED 960.34",
			wantAmount:   "960.34",
			wantCurrency: "AED",
		},
		{
			name:         "ocr thousands space",
			text:         "Grand Total USD 1 499.70",
			wantAmount:   "1499.7",
			wantCurrency: "USD",
		},
		{
			name:         "us dollar prefix",
			text:         "Amount Due US$2,100.00",
			wantAmount:   "2100",
			wantCurrency: "USD",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, currency := ExtractAmount(tt.text, nil)
			if amount.String() != tt.wantAmount {
				t.Errorf("amount = %s, want %s", amount, tt.wantAmount)
			}
			if currency != tt.wantCurrency {
				t.Errorf("currency = %q, want %q", currency, tt.wantCurrency)
			}
		})
	}
}

func TestExtractAmountFallbackLargest(t *testing.T) {
	text := "Line item 100.00 AED\nAnother item 250.50 AED\nShipping 2,500.00 AED"
	amount, currency := ExtractAmount(text, nil)
	if amount.String() != "2500" {
		t.Errorf("amount = %s, want 2500", amount)
	}
	if currency != "AED" {
		t.Errorf("currency = %q, want AED", currency)
	}
}

func TestExtractAmountTemplatePriority(t *testing.T) {
	tmpl := &models.SupplierTemplate{
		DefaultCurrency: "AED",
		AmountPatterns: []models.AmountPattern{
			{Pattern: `Amount\s+due\s*([\d,.]+)`, Priority: 2},
			{Pattern: `Total\s+incl\.\s+VAT\s*([\d,.]+)`, Priority: 1},
		},
	}
	text := "Amount due 500.00\nTotal incl. VAT 525.00"

	amount, currency := ExtractAmount(text, tmpl)
	if amount.String() != "525" {
		t.Errorf("amount = %s, want 525 (priority 1 pattern)", amount)
	}
	if currency != "AED" {
		t.Errorf("currency = %q, want AED", currency)
	}
}

func TestExtractAmountTemplateDefaultCurrency(t *testing.T) {
	// No template amount patterns: the contextual phase finds the total,
	// and the template default supplies the currency the text never names.
	tmpl := &models.SupplierTemplate{DefaultCurrency: "AED"}
	amount, currency := ExtractAmount("Grand total (Incl 5% VAT)960 .34\n", tmpl)
	if amount.String() != "960.34" {
		t.Errorf("amount = %s, want 960.34", amount)
	}
	if currency != "AED" {
		t.Errorf("currency = %q, want AED from the template default", currency)
	}

	// A currency named in the text still wins over the default.
	_, currency = ExtractAmount("Grand total EUR 120.00\n", tmpl)
	if currency != "EUR" {
		t.Errorf("currency = %q, want EUR from the text", currency)
	}
}

func TestExtractAmountNotFound(t *testing.T) {
	amount, currency := ExtractAmount("no numbers in this document", nil)
	if !amount.IsZero() {
		t.Errorf("amount = %s, want zero", amount)
	}
	if currency != "" {
		t.Errorf("currency = %q, want empty", currency)
	}
}

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"moroccan dirham beats generic dirham", "Montant en Dirham Marocain", "MAD"},
		{"generic dirham", "Amount in Dirham", "AED"},
		{"aed code", "Total AED 500", "AED"},
		{"aed beats dollar sign", "Total AED 500 ($136)", "AED"},
		{"bare dollar sign", "Total $ 500", "USD"},
		{"euro word", "50 Euros", "EUR"},
		{"nothing", "no currency here", models.UnknownCurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectCurrency(tt.text); got != tt.want {
				t.Errorf("DetectCurrency(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestPickAmountCandidate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"prefers two-decimal number", "(Incl 5% VAT): AED 960.34", "960.34"},
		{"skips pure percentage", "5% of 200.00", "200.00"},
		{"single number", "694.08", "694.08"},
		{"integer only", "AED 500", "500"},
		{"nothing", "no digits", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pickAmountCandidate(tt.in); got != tt.want {
				t.Errorf("pickAmountCandidate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePriceCurrencyHint(t *testing.T) {
	amount, hint, ok := parsePrice("AED 694.08")
	if !ok {
		t.Fatal("parsePrice failed")
	}
	if !amount.Equal(decimal.RequireFromString("694.08")) {
		t.Errorf("amount = %s", amount)
	}
	if hint != "AED" {
		t.Errorf("hint = %q, want AED", hint)
	}

	// "VAT" looks like an ISO code but is not a currency.
	_, hint, _ = parsePrice("VAT 960.34")
	if hint != "" {
		t.Errorf("hint = %q, want empty for VAT", hint)
	}
}

func TestCurrencySymbolPrecedence(t *testing.T) {
	// "US$" must always beat the bare "$" it contains.
	if hint := currencyHint("US$2,100.00"); hint != "US$" {
		t.Errorf("hint = %q, want US$", hint)
	}

	tests := []struct {
		hint string
		want string
	}{
		{"US$", "USD"},
		{"$", "USD"},
		{"€", "EUR"},
		{"£", "GBP"},
		{"₹", "INR"},
	}
	for _, tt := range tests {
		if got := resolveCurrency(tt.hint, ""); got != tt.want {
			t.Errorf("resolveCurrency(%q) = %q, want %q", tt.hint, got, tt.want)
		}
	}
}
