package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxAmount is the upper bound for a plausible invoice total.
// Anything above this is treated as an extraction false positive.
var MaxAmount = decimal.NewFromInt(10_000_000)

// UnknownSupplier is the sentinel supplier name when recognition fails.
const UnknownSupplier = "Unknown"

// UnknownCurrency is the sentinel ISO-4217 code for an undetected currency.
const UnknownCurrency = "XXX"

// ValidCurrencies is the allow-list of currency codes the extractor may emit.
var ValidCurrencies = map[string]bool{
	"USD": true, "EUR": true, "AED": true, "GBP": true, "INR": true,
	"SAR": true, "MAD": true, "CHF": true, "CAD": true, "AUD": true,
	"JPY": true, "SGD": true, "QAR": true, "KWD": true, "BHD": true,
	"OMR": true, "EGP": true, "PKR": true, UnknownCurrency: true,
}

// InvoiceData holds the structured fields extracted from one invoice document.
//
// Absent fields are represented by zero values: an empty InvoiceNumber or
// Currency, a nil InvoiceDate, and a zero Amount all mean "not found".
// Amount and Currency are independently optional.
type InvoiceData struct {
	// Supplier is the detected supplier display name, or "Unknown".
	Supplier string `json:"supplier"`

	// InvoiceNumber carries a leading "#" whenever present.
	InvoiceNumber string `json:"invoice_number,omitempty"`

	// InvoiceDate is the invoice issue date, nil when not found.
	InvoiceDate *time.Time `json:"invoice_date,omitempty"`

	// Amount is the invoice total. Zero means not found.
	Amount decimal.Decimal `json:"amount"`

	// Currency is an ISO-4217-like code from ValidCurrencies, or "".
	Currency string `json:"currency,omitempty"`

	// Confidence is a weighted field-completeness score in [0,1].
	Confidence float64 `json:"confidence"`

	// ExtractionMethod records how the raw text was obtained
	// ("native", "ocr", or "text" for pre-extracted input).
	ExtractionMethod string `json:"extraction_method"`
}

// NewInvoiceData returns an empty InvoiceData with the Unknown supplier.
func NewInvoiceData() InvoiceData {
	return InvoiceData{Supplier: UnknownSupplier}
}

// HasAmount reports whether a positive amount was extracted.
func (d *InvoiceData) HasAmount() bool {
	return d.Amount.IsPositive()
}

// FormatDate returns the invoice date as DD-MM-YYYY, or "NoDate".
func (d *InvoiceData) FormatDate() string {
	if d.InvoiceDate == nil {
		return "NoDate"
	}
	return d.InvoiceDate.Format("02-01-2006")
}

// FormatAmount returns "<amount><currency>" with two decimals, for filenames.
// Both amount and currency must be present, otherwise "0.00XXX".
func (d *InvoiceData) FormatAmount() string {
	if !d.HasAmount() || d.Currency == "" {
		return "0.00" + UnknownCurrency
	}
	return d.Amount.StringFixed(2) + d.Currency
}

// Sanitize drops fields that fail data-model validation, returning a
// message per dropped field. The record itself is never discarded.
func (d *InvoiceData) Sanitize() []string {
	var notes []string
	if !d.Amount.IsZero() {
		if !d.Amount.IsPositive() {
			notes = append(notes, "amount must be positive, dropped")
			d.Amount = decimal.Decimal{}
		} else if d.Amount.GreaterThan(MaxAmount) {
			notes = append(notes, "amount unrealistically high, dropped")
			d.Amount = decimal.Decimal{}
		}
	}
	if d.Currency != "" && !ValidCurrencies[d.Currency] {
		notes = append(notes, "unknown currency "+d.Currency+", dropped")
		d.Currency = ""
	}
	return notes
}

// AmountPattern is one template-supplied amount regex with its try order.
// Lower priority values are tried first.
type AmountPattern struct {
	Pattern  string `json:"pattern"`
	Priority int    `json:"priority"`
}

// SupplierTemplate describes how to recognize one supplier and, optionally,
// how to extract its fields. Templates are data, never code: all
// supplier-specific behavior lives in these records.
type SupplierTemplate struct {
	ID                   string          `json:"id"`
	DisplayName          string          `json:"display_name"`
	DetectionPatterns    []string        `json:"detection_patterns"`
	DefaultCurrency      string          `json:"default_currency,omitempty"`
	InvoiceNumberPattern string          `json:"invoice_number_pattern,omitempty"`
	AmountPatterns       []AmountPattern `json:"amount_patterns,omitempty"`
	DateContext          []string        `json:"date_context,omitempty"`
	Notes                string          `json:"notes,omitempty"`
}

// VATCalendar names the fiscal-quarter rule a company files under.
type VATCalendar struct {
	Type string `json:"type"`
}

// CompanyConfig maps a company to its VAT calendar.
type CompanyConfig struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	VATCalendar *VATCalendar `json:"vat_calendar,omitempty"`
}

// ExtractionResult is the full outcome of processing one document.
type ExtractionResult struct {
	InvoiceData      InvoiceData       `json:"invoice_data"`
	SupplierTemplate *SupplierTemplate `json:"supplier_template,omitempty"`
	OriginalFilename string            `json:"original_filename"`
	NewFilename      string            `json:"new_filename"`
	AccountingPrefix string            `json:"accounting_prefix,omitempty"`
	VATQuarter       string            `json:"vat_quarter,omitempty"`
	Errors           []string          `json:"errors"`

	// RawText is kept only when the supplier is Unknown, so callers can
	// preview the document and feed the supplier learner.
	RawText string `json:"-"`
}

// NewExtractionResult builds a result with a fresh, non-shared error list.
func NewExtractionResult(originalFilename string) *ExtractionResult {
	return &ExtractionResult{
		InvoiceData:      NewInvoiceData(),
		OriginalFilename: originalFilename,
		Errors:           []string{},
	}
}

// AddError appends a per-document error without aborting the pipeline.
func (r *ExtractionResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}
