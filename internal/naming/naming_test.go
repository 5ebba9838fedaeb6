package naming

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"invoicer/pkg/models"
)

func sampleData() *models.InvoiceData {
	d := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	return &models.InvoiceData{
		Supplier:      "Etisalat",
		InvoiceNumber: "#INV1965257146",
		InvoiceDate:   &d,
		Amount:        decimal.RequireFromString("960.34"),
		Currency:      "AED",
	}
}

func TestGenerateFullName(t *testing.T) {
	got := Generate(sampleData(), "PUR 25-0024_scan001.pdf", "PUR 25-0024_", "Q4-2024", "")
	want := "PUR 25-0024_Etisalat_#INV1965257146_15-01-2025_960.34AED_Q4-2024.pdf"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestGenerateMissingFields(t *testing.T) {
	data := &models.InvoiceData{Supplier: models.UnknownSupplier}
	got := Generate(data, "scan.pdf", "", "", "")
	want := "Unknown_NoNum_NoDate_0.00XXX.pdf"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(sampleData(), "x.pdf", "", "", "")
	b := Generate(sampleData(), "x.pdf", "", "", "")
	if a != b {
		t.Errorf("not deterministic: %q vs %q", a, b)
	}
}

func TestGenerateUniqueCounter(t *testing.T) {
	dir := t.TempDir()
	first := Generate(sampleData(), "x.pdf", "", "", dir)

	// Simulate a collision and regenerate.
	if err := os.WriteFile(filepath.Join(dir, first), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	second := Generate(sampleData(), "x.pdf", "", "", dir)
	if second == first {
		t.Error("collision not resolved")
	}
	if want := "Etisalat_#INV1965257146_15-01-2025_960.34AED_1.pdf"; second != want {
		t.Errorf("got %q, want %q", second, want)
	}
}

func TestCleanForFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		def  string
		want string
	}{
		{"spaces to underscores", "Acme Trading Co", "x", "Acme_Trading_Co"},
		{"unsafe chars", `A/B\C:D*E?"F<G>H|I`, "x", "A_B_C_D_E_F_G_H_I"},
		{"diacritics folded", "Société Générale", "x", "Societe_Generale"},
		{"collapsed underscores", "A  __  B", "x", "A_B"},
		{"empty falls back", "   ", "Unknown", "Unknown"},
		{"punctuation only falls back", "...,,,", "NoNum", "NoNum"},
		{"hash preserved", "#INV-42", "x", "#INV-42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanForFilename(tt.in, tt.def); got != tt.want {
				t.Errorf("CleanForFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanForFilenameIdempotent(t *testing.T) {
	inputs := []string{"Société Générale", "A/B C", "#INV-42", "Acme & Sons (Dubai)"}
	for _, in := range inputs {
		once := CleanForFilename(in, "x")
		twice := CleanForFilename(once, "x")
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestExtractAccountingPrefix(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"purchase order", "PUR 25-0024_Etisalat_bill.pdf", "PUR 25-0024_"},
		{"payment voucher", "Pyt Vch 2023-1386_receipt.pdf", "Pyt Vch 2023-1386_"},
		{"no prefix", "scan001.pdf", ""},
		{"prefix not at start", "copy of PUR 25-0024_x.pdf", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractAccountingPrefix(tt.in); got != tt.want {
				t.Errorf("ExtractAccountingPrefix(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
