// Package naming derives canonical, filesystem-safe invoice filenames
// from extracted invoice data.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"invoicer/pkg/models"
)

var (
	// unsafeCharRe covers filesystem-reserved characters plus punctuation
	// that reads badly in filenames.
	unsafeCharRe = regexp.MustCompile("[/\\\\:*?\"<>|,.&;'()@!%^~`{}\\[\\]+=$]")

	whitespaceRe  = regexp.MustCompile(`\s+`)
	underscoresRe = regexp.MustCompile(`_+`)

	purPrefixRe = regexp.MustCompile(`^(PUR\s+\d{2}-\d{4}_)`)
	pytPrefixRe = regexp.MustCompile(`^(Pyt\s+Vch\s+\d{4}-\d{4}_)`)

	asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
)

// Generate builds the canonical invoice filename:
//
//	[Prefix_]Supplier_#InvoiceNumber_DD-MM-YYYY_AmountCurrency[_Q1-2025].ext
//
// When dir is non-empty the name is made unique within that directory by
// appending an incrementing counter part. Output is deterministic for
// identical inputs and an empty directory.
func Generate(data *models.InvoiceData, originalFilename, accountingPrefix, vatQuarter, dir string) string {
	ext := filepath.Ext(originalFilename)

	parts := make([]string, 0, 6)
	if accountingPrefix != "" {
		// The prefix already ends with "_"; strip it for joining.
		parts = append(parts, strings.TrimRight(accountingPrefix, "_"))
	}
	parts = append(parts,
		CleanForFilename(data.Supplier, models.UnknownSupplier),
		CleanForFilename(data.InvoiceNumber, "NoNum"),
		data.FormatDate(),
		data.FormatAmount(),
	)
	if vatQuarter != "" {
		parts = append(parts, vatQuarter)
	}

	filename := strings.Join(parts, "_") + ext
	if dir != "" {
		filename = ensureUnique(filename, dir, parts, ext)
	}
	return filename
}

// CleanForFilename sanitizes one field for filename use: diacritics are
// stripped to ASCII, unsafe characters and whitespace become single
// underscores, and repeated or edge underscores collapse away. A string
// that cleans to nothing falls back to def. Idempotent.
func CleanForFilename(s, def string) string {
	if strings.TrimSpace(s) == "" {
		s = def
	}

	if folded, _, err := transform.String(asciiFold, s); err == nil {
		s = folded
	}
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)

	s = unsafeCharRe.ReplaceAllString(s, "_")
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), "_")
	s = underscoresRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")

	if s == "" {
		return def
	}
	return s
}

// ExtractAccountingPrefix pulls a bookkeeping reference from the head of
// a filename. Supported shapes: "PUR 25-0024_" purchase orders and
// "Pyt Vch 2023-1386_" payment vouchers. Returns "" when absent.
func ExtractAccountingPrefix(filename string) string {
	if m := purPrefixRe.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	if m := pytPrefixRe.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	return ""
}

// ensureUnique appends an incrementing counter part while the candidate
// name collides with an existing file in dir.
func ensureUnique(filename, dir string, parts []string, ext string) string {
	candidate := filepath.Join(dir, filename)
	counter := 1
	for {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return filename
		}
		filename = strings.Join(parts, "_") + fmt.Sprintf("_%d", counter) + ext
		candidate = filepath.Join(dir, filename)
		counter++
	}
}
