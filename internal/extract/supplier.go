// Package extract implements the layered field-extraction heuristics for
// invoice documents: supplier identity, invoice number, issue date, and
// amount/currency.
//
// Every extractor follows the same shape: a prioritized cascade of
// strategies, each returning an optional result, where the first success
// wins. Template-supplied patterns are tried before contextual label
// patterns, which are tried before global fallbacks. Extraction misses are
// normal outcomes, not errors.
package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"invoicer/internal/logger"
	"invoicer/internal/template"
	"invoicer/pkg/models"
)

// Heuristic scoring weights for supplier candidate lines. Empirically
// tuned; preserved as constants so they can be adjusted in one place.
const (
	scoreLegalSuffix  = 15 // line carries a legal-entity suffix (LLC, GmbH, ...)
	scoreEarlyLineMax = 5  // first line gets +5, decaying by 1 per line
	scoreGoodLength   = 5  // line length within [5,50]
	scoreUppercase    = 3  // first character is uppercase

	headerLines   = 20 // only the document header is scanned
	minLineLen    = 3
	maxLineLen    = 80
	goodLenLow    = 5
	goodLenHigh   = 50
	minAlphaRatio = 0.5
)

var legalSuffixRe = regexp.MustCompile(`(?i)\b(Inc\.?|LLC|Ltd\.?|Limited|Corp\.?|Corporation|Company|Co\.?|Group|PJSC|GmbH|S\.?A\.?R\.?L\.?|Pvt\.?|PLC|SAS|SARL|SA|Srl|B\.?V\.?)\b`)

// boilerplateRe matches invoice-boilerplate lines that can never be a
// supplier name (labels, contact details, bank coordinates).
var boilerplateRe = regexp.MustCompile(`(?i)^\s*(Invoice|Receipt|Bill\b|Statement|Tax\s|Date|Total|Amount|Page\s|Tel\b|Phone|Email|Address|Street|P\.?O\.?\s*Box|www\.|http|Subtotal|Due\s|Payment|Description|Quantity|Unit|Price|Item|Service|IBAN|SWIFT|Account|Bank|Reference)`)

var whitespaceRe = regexp.MustCompile(`\s+`)

// SupplierRecognizer identifies the supplier behind a document in two
// phases: template matching against the store, then a heuristic scan of
// the document header for unknown suppliers.
type SupplierRecognizer struct {
	store *template.Store
	log   zerolog.Logger
}

// NewSupplierRecognizer builds a recognizer over the given template store.
func NewSupplierRecognizer(store *template.Store) *SupplierRecognizer {
	return &SupplierRecognizer{
		store: store,
		log:   logger.WithComponent("supplier"),
	}
}

// Recognize returns the supplier display name and, for known suppliers,
// the matched template. Unknown suppliers get a heuristic name (or
// "Unknown") and a nil template.
func (r *SupplierRecognizer) Recognize(text string) (string, *models.SupplierTemplate) {
	if t := r.matchTemplate(text); t != nil {
		r.log.Debug().Str("supplier", t.DisplayName).Msg("Template match")
		return t.DisplayName, t
	}
	name := r.heuristicExtract(text)
	r.log.Debug().Str("supplier", name).Msg("Heuristic supplier")
	return name, nil
}

// matchTemplate scans all stored templates in store order; within a
// template, detection patterns are tried in declared order. The first
// case-insensitive substring hit wins outright.
func (r *SupplierRecognizer) matchTemplate(text string) *models.SupplierTemplate {
	upper := strings.ToUpper(text)
	for _, t := range r.store.Templates() {
		for _, pattern := range t.DetectionPatterns {
			if pattern != "" && strings.Contains(upper, strings.ToUpper(pattern)) {
				matched := t
				return &matched
			}
		}
	}
	return nil
}

// heuristicExtract scores company-like lines from the document header.
// Lines belonging to the caller's own companies are excluded so the
// "Bill To" block is never mistaken for the supplier.
func (r *SupplierRecognizer) heuristicExtract(text string) string {
	lines := nonBlankLines(text)
	if len(lines) > headerLines {
		lines = lines[:headerLines]
	}

	own := r.store.OwnCompanies()

	bestScore := -1
	bestLine := ""
	for i, line := range lines {
		if len(line) < minLineLen || len(line) > maxLineLen {
			continue
		}
		if boilerplateRe.MatchString(line) {
			continue
		}
		if containsOwnCompany(line, own) {
			continue
		}
		if alphaRatio(line) < minAlphaRatio {
			continue
		}

		score := 0
		if legalSuffixRe.MatchString(line) {
			score += scoreLegalSuffix
		}
		if i < scoreEarlyLineMax {
			score += scoreEarlyLineMax - i
		}
		if len(line) >= goodLenLow && len(line) <= goodLenHigh {
			score += scoreGoodLength
		}
		if first := []rune(line)[0]; unicode.IsUpper(first) {
			score += scoreUppercase
		}

		// Strict greater-than keeps the earliest line on ties.
		if score > bestScore {
			bestScore = score
			bestLine = line
		}
	}

	if bestLine == "" {
		return models.UnknownSupplier
	}
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(bestLine), "_")
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func containsOwnCompany(line string, own []string) bool {
	upper := strings.ToUpper(line)
	for _, c := range own {
		if c != "" && strings.Contains(upper, c) {
			return true
		}
	}
	return false
}

// alphaRatio is the share of alphabetic-or-space bytes in the line.
// Lines dominated by digits and symbols are addresses, IBANs, or totals.
func alphaRatio(line string) float64 {
	if line == "" {
		return 0
	}
	count := 0
	for _, c := range line {
		if unicode.IsLetter(c) || c == ' ' {
			count++
		}
	}
	return float64(count) / float64(len([]rune(line)))
}
