package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"invoicer/internal/classify"
	"invoicer/internal/template"
	"invoicer/internal/textextract"
	"invoicer/pkg/models"
)

const testSuppliers = `{
  "suppliers": [
    {
      "id": "etisalat",
      "display_name": "Etisalat",
      "detection_patterns": ["Etisalat", "eand.com"],
      "default_currency": "AED",
      "invoice_number_pattern": "Invoice\\s*(?:No|Number)[.:]?\\s*(INV\\d+)",
      "amount_patterns": [
        {"pattern": "Total\\s*Amount\\s*Due\\s*(?:AED)?\\s*([\\d.,\\s]+)", "priority": 1},
        {"pattern": "Grand\\s*total[^\\n]*?([\\d][\\d.,\\s]*\\d)", "priority": 2}
      ],
      "date_context": ["Invoice\\s+Date", "Bill\\s+Date"]
    }
  ],
  "own_companies": ["Horizon Trading FZE"]
}`

const testCompanies = `{
  "companies": [
    {"id": "horizon_fze", "name": "Horizon Trading FZE", "vat_calendar": {"type": "uae_trn"}}
  ],
  "default_company": "horizon_fze"
}`

const etisalatText = `etisalat by e&
TAX INVOICE
Bill To: Horizon Trading FZE
Invoice No: INV1965257146
Bill issue date 15 Jan 2025
Total Amount Due AED 960.34
`

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	dir := t.TempDir()

	suppliersPath := filepath.Join(dir, "suppliers.json")
	if err := os.WriteFile(suppliersPath, []byte(testSuppliers), 0644); err != nil {
		t.Fatal(err)
	}
	companiesPath := filepath.Join(dir, "companies.json")
	if err := os.WriteFile(companiesPath, []byte(testCompanies), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := template.Load(suppliersPath)
	if err != nil {
		t.Fatal(err)
	}
	classifier, err := classify.Load(companiesPath, "")
	if err != nil {
		t.Fatal(err)
	}
	return New(store, classifier, textextract.New(nil))
}

func TestProcessTextKnownSupplier(t *testing.T) {
	p := newTestPipeline(t)

	result := p.ProcessText(etisalatText, "PUR 25-0024_scan001.pdf", Options{IncludeVATQuarter: true})
	data := result.InvoiceData

	if data.Supplier != "Etisalat" {
		t.Errorf("supplier = %q, want Etisalat", data.Supplier)
	}
	if data.InvoiceNumber != "#INV1965257146" {
		t.Errorf("number = %q, want #INV1965257146", data.InvoiceNumber)
	}
	if data.InvoiceDate == nil || data.InvoiceDate.Format("2006-01-02") != "2025-01-15" {
		t.Errorf("date = %v, want 2025-01-15", data.InvoiceDate)
	}
	if data.Amount.String() != "960.34" || data.Currency != "AED" {
		t.Errorf("amount = %s %s, want 960.34 AED", data.Amount, data.Currency)
	}
	if data.Confidence != 1.0 {
		t.Errorf("confidence = %f, want 1.0", data.Confidence)
	}
	if data.ExtractionMethod != "text" {
		t.Errorf("method = %q, want text", data.ExtractionMethod)
	}
	if result.VATQuarter != "Q4-2024" {
		t.Errorf("quarter = %q, want Q4-2024 (January rule)", result.VATQuarter)
	}
	if result.AccountingPrefix != "PUR 25-0024_" {
		t.Errorf("prefix = %q, want PUR 25-0024_", result.AccountingPrefix)
	}
	want := "PUR 25-0024_Etisalat_#INV1965257146_15-01-2025_960.34AED_Q4-2024.pdf"
	if result.NewFilename != want {
		t.Errorf("filename = %q, want %q", result.NewFilename, want)
	}
	if result.RawText != "" {
		t.Error("raw text must not be kept for recognized suppliers")
	}
	if len(result.Errors) != 0 {
		t.Errorf("errors = %v, want none", result.Errors)
	}
}

// TestProcessTextScannedBill feeds a minimal scanned telecom bill with an
// OCR-mangled total ("960 .34") and no currency named anywhere: the
// template's amount pattern must pick up the total and its default
// currency must supply the AED.
func TestProcessTextScannedBill(t *testing.T) {
	p := newTestPipeline(t)

	text := "etisalat\nBill issue date 15/01/2025\nGrand total (Incl 5% VAT)960 .34\n"
	result := p.ProcessText(text, "PUR 25-0024_x.pdf", Options{IncludeVATQuarter: true})
	data := result.InvoiceData

	if data.InvoiceDate == nil || data.InvoiceDate.Format("2006-01-02") != "2025-01-15" {
		t.Errorf("date = %v, want 2025-01-15", data.InvoiceDate)
	}
	if data.Amount.String() != "960.34" {
		t.Errorf("amount = %s, want 960.34", data.Amount)
	}
	if data.Currency != "AED" {
		t.Errorf("currency = %q, want AED from the template default", data.Currency)
	}
	if result.AccountingPrefix != "PUR 25-0024_" {
		t.Errorf("prefix = %q", result.AccountingPrefix)
	}
	if result.VATQuarter != "Q4-2024" {
		t.Errorf("quarter = %q, want Q4-2024", result.VATQuarter)
	}
	if !strings.HasPrefix(result.NewFilename, "PUR 25-0024_Etisalat_") {
		t.Errorf("filename = %q, want PUR 25-0024_Etisalat_ prefix", result.NewFilename)
	}
	if !strings.Contains(result.NewFilename, "960.34AED") {
		t.Errorf("filename = %q, want 960.34AED part", result.NewFilename)
	}
}

func TestProcessTextHeuristicSupplier(t *testing.T) {
	p := newTestPipeline(t)

	text := `Zenith Marketing LLC
Invoice number: ZM-1001
Invoice Date: 10/03/2025
Total USD 1,250.00
`
	result := p.ProcessText(text, "scan.pdf", Options{})
	data := result.InvoiceData

	if data.Supplier != "Zenith_Marketing_LLC" {
		t.Errorf("supplier = %q", data.Supplier)
	}
	if result.SupplierTemplate != nil {
		t.Error("template must be nil for heuristic supplier")
	}
	if result.RawText != "" {
		t.Error("raw text kept for a named supplier")
	}
}

func TestProcessTextUnknownKeepsRawText(t *testing.T) {
	p := newTestPipeline(t)

	// Every line is invoice boilerplate, so no supplier candidate survives.
	text := "Invoice number: OV-77\nInvoice Date: 05/02/2025\nTotal AED 100.00\n"
	result := p.ProcessText(text, "scan.pdf", Options{})

	if result.InvoiceData.Supplier != models.UnknownSupplier {
		t.Errorf("supplier = %q, want %s", result.InvoiceData.Supplier, models.UnknownSupplier)
	}
	if result.RawText != text {
		t.Error("raw text not kept for unknown supplier")
	}
}

func TestProcessTextUnreadable(t *testing.T) {
	p := newTestPipeline(t)

	result := p.ProcessText("   \n  ", "blank.pdf", Options{})
	if len(result.Errors) != 1 || result.Errors[0] != "No text could be extracted from file" {
		t.Errorf("errors = %v", result.Errors)
	}
	if result.NewFilename != "" {
		t.Errorf("filename = %q, want empty for unreadable document", result.NewFilename)
	}
}

func TestProcessTextPartialFields(t *testing.T) {
	p := newTestPipeline(t)

	// Supplier and amount only; number and date missing.
	result := p.ProcessText("Zenith Marketing LLC\nGrand Total AED 500.00\n", "scan.pdf", Options{})
	data := result.InvoiceData

	if data.InvoiceNumber != "" || data.InvoiceDate != nil {
		t.Errorf("unexpected fields: number=%q date=%v", data.InvoiceNumber, data.InvoiceDate)
	}
	// supplier 0.25 + amount 0.20 + currency 0.10
	if data.Confidence != 0.55 {
		t.Errorf("confidence = %f, want 0.55", data.Confidence)
	}
	if data.FormatDate() != "NoDate" {
		t.Errorf("FormatDate = %q", data.FormatDate())
	}
	if !strings.Contains(strings.Join(result.Errors, ";"), "invoice number not found") {
		t.Errorf("errors = %v", result.Errors)
	}
	if !strings.Contains(result.NewFilename, "NoNum_NoDate_500.00AED") {
		t.Errorf("filename = %q", result.NewFilename)
	}
}

func TestConfidenceMonotonic(t *testing.T) {
	p := newTestPipeline(t)

	less := p.ProcessText("Zenith Marketing LLC\nsome body text follows\n", "a.pdf", Options{})
	more := p.ProcessText("Zenith Marketing LLC\nGrand Total AED 500.00\n", "a.pdf", Options{})
	if less.InvoiceData.Confidence >= more.InvoiceData.Confidence {
		t.Errorf("confidence %f should be below %f",
			less.InvoiceData.Confidence, more.InvoiceData.Confidence)
	}
}

func TestProcessTextNoQuarterWithoutDate(t *testing.T) {
	p := newTestPipeline(t)

	result := p.ProcessText("Zenith Marketing LLC\nGrand Total AED 500.00\n", "x.pdf", Options{IncludeVATQuarter: true})
	if result.VATQuarter != "" {
		t.Errorf("quarter = %q, want empty without a date", result.VATQuarter)
	}
}

func TestReprocessWithSupplier(t *testing.T) {
	p := newTestPipeline(t)

	text := "Invoice number: OV-77\nInvoice Date: 05/02/2025\nTotal AED 100.00\n"
	first := p.ProcessText(text, "scan.pdf", Options{})
	if first.RawText == "" {
		t.Fatal("raw text not kept for unknown supplier")
	}

	tmpl := &models.SupplierTemplate{
		ID:              "obscure_vendor",
		DisplayName:     "Obscure_Vendor",
		DefaultCurrency: "AED",
	}
	second := p.ReprocessWithSupplier(first, tmpl, Options{})
	if second.InvoiceData.Supplier != "Obscure_Vendor" {
		t.Errorf("supplier = %q", second.InvoiceData.Supplier)
	}
	if second.InvoiceData.InvoiceNumber != "#OV-77" {
		t.Errorf("number = %q", second.InvoiceData.InvoiceNumber)
	}
}

func TestProcessBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	p := newTestPipeline(t)
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.pdf")
	empty := filepath.Join(dir, "empty.pdf")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}

	results, err := p.ProcessBatch(context.Background(), []string{missing, empty}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].OriginalFilename != "missing.pdf" || results[1].OriginalFilename != "empty.pdf" {
		t.Errorf("order not preserved: %s, %s", results[0].OriginalFilename, results[1].OriginalFilename)
	}
	for i, r := range results {
		if len(r.Errors) == 0 {
			t.Errorf("result %d has no error", i)
		}
	}
}

func TestProcessBatchCancellation(t *testing.T) {
	p := newTestPipeline(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ProcessBatch(ctx, []string{"a.pdf", "b.pdf"}, Options{}); err == nil {
		t.Error("canceled context must abort the batch")
	}
}

func TestConfidenceRounding(t *testing.T) {
	d := &models.InvoiceData{Supplier: "X", InvoiceNumber: "#1"}
	got := confidence(d)
	if got != 0.45 {
		t.Errorf("confidence = %v, want 0.45", got)
	}

	now := time.Now()
	d.InvoiceDate = &now
	if got := confidence(d); got != 0.7 {
		t.Errorf("confidence = %v, want 0.7", got)
	}
}
