package extract

import (
	"testing"
	"time"

	"invoicer/pkg/models"
)

func wantDate(t *testing.T, got *time.Time, year int, month time.Month, day int) {
	t.Helper()
	if got == nil {
		t.Fatalf("date = nil, want %d-%02d-%02d", year, month, day)
	}
	if got.Year() != year || got.Month() != month || got.Day() != day {
		t.Errorf("date = %s, want %d-%02d-%02d", got.Format("2006-01-02"), year, month, day)
	}
}

func TestExtractDateFormats(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		year  int
		month time.Month
		day   int
	}{
		{"dd/mm/yyyy", "Invoice Date: 24/11/2023", 2023, time.November, 24},
		{"ordinal day", "Invoice Date: 22nd Dec 2024", 2024, time.December, 22},
		{"full month name", "Tax Invoice Issue Date 19 February 2025", 2025, time.February, 19},
		{"iso format", "Date: 2025-03-15", 2025, time.March, 15},
		{"dot separator", "Date: 15.03.2025", 2025, time.March, 15},
		{"date of issue", "Date of issue April 10, 2025", 2025, time.April, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantDate(t, ExtractDate(tt.text, nil), tt.year, tt.month, tt.day)
		})
	}
}

func TestExtractDateDayFirst(t *testing.T) {
	// 05/01 is ambiguous; day-first parsing must win.
	wantDate(t, ExtractDate("Invoice Date: 05/01/2025", nil), 2025, time.January, 5)
}

func TestExtractDateFrench(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		year  int
		month time.Month
		day   int
	}{
		{"french month", "Date de la facture : 15 mars 2024", 2024, time.March, 15},
		{"premier ordinal", "Date: 1er mars 2024", 2024, time.March, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantDate(t, ExtractDate(tt.text, nil), tt.year, tt.month, tt.day)
		})
	}
}

func TestExtractDateTemplateContext(t *testing.T) {
	tmpl := &models.SupplierTemplate{
		DateContext: []string{`Bill\s+issue\s+date`},
	}
	text := "Account 1234\nBill issue date 15 Jan 2025\nDue date 05 Feb 2025"
	wantDate(t, ExtractDate(text, tmpl), 2025, time.January, 15)
}

func TestExtractDatePrefersInvoiceDate(t *testing.T) {
	text := "Due Date: 15/03/2025\nInvoice Date: 15/02/2025\nPayment Date: 20/03/2025"
	wantDate(t, ExtractDate(text, nil), 2025, time.February, 15)
}

func TestExtractDateGlobalFallback(t *testing.T) {
	// No date label at all; phase 2 finds the bare date.
	wantDate(t, ExtractDate("Issued on 15 January 2025 in Dubai", nil), 2025, time.January, 15)
}

func TestExtractDateNone(t *testing.T) {
	if d := ExtractDate("No date information here at all", nil); d != nil {
		t.Errorf("date = %s, want nil", d)
	}
}

func TestExtractDateUnreasonableRejected(t *testing.T) {
	// OCR garbage years fall outside the accepted range.
	if d := ExtractDate("Invoice Date: 15/03/1999", nil); d != nil {
		t.Errorf("date = %s, want nil for year 1999", d)
	}
}

func TestCleanOrdinals(t *testing.T) {
	tests := []struct{ in, want string }{
		{"22nd Dec 2024", "22 Dec 2024"},
		{"1st January 2025", "1 January 2025"},
		{"3rd Feb 2025", "3 Feb 2025"},
		{"15 March 2024", "15 March 2024"},
	}
	for _, tt := range tests {
		if got := cleanOrdinals(tt.in); got != tt.want {
			t.Errorf("cleanOrdinals(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReasonableDate(t *testing.T) {
	ok := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !reasonableDate(ok) {
		t.Error("2024-06-01 should be reasonable")
	}
	old := time.Date(2014, 12, 31, 0, 0, 0, 0, time.UTC)
	if reasonableDate(old) {
		t.Error("2014-12-31 should be rejected")
	}
	future := time.Date(time.Now().Year()+5, 1, 1, 0, 0, 0, 0, time.UTC)
	if reasonableDate(future) {
		t.Error("far future year should be rejected")
	}
}
