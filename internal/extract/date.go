package extract

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"invoicer/pkg/models"
)

// dateContexts are the label phrases searched for the issue date, most
// specific first. Template-supplied contexts are prepended at runtime.
var dateContexts = []string{
	`Invoice\s*Date\s*:?\s*`,
	`Bill\s*(?:issue\s*)?[Dd]ate\s*:?\s*`,
	`Date\s*of\s*issue\s*:?\s*`,
	`Tax\s*Invoice\s*(?:Issue\s*)?Date\s*:?\s*`,
	`Invoice\s*issued\s*:?\s*`,
	`Facture\s*[Dd]ate\s*:?\s*`,
	`Date\s*(?:de\s*)?(?:la\s*)?facture\s*:?\s*`,
	`Date\s*:?\s*`,
}

// negativeContexts mark dates that must not be mistaken for the issue
// date. A candidate preceded by one of these within 40 chars is skipped.
var negativeContexts = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Due\s*Date`),
	regexp.MustCompile(`(?i)Payment\s*Date`),
	regexp.MustCompile(`(?i)Delivery\s*Date`),
	regexp.MustCompile(`(?i)Expiry\s*Date`),
	regexp.MustCompile(`(?i)Ship\s*Date`),
}

const (
	dateSearchWindow  = 2000 // chars scanned in the global phase
	negativeLookback  = 40
	contextValueLimit = 50
)

var (
	ordinalRe = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)\b`)
	isoDateRe = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)

	// Candidate shapes for the global search phase.
	numericDateRe = regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b`)
	isoLikeRe     = regexp.MustCompile(`\b\d{4}[/-]\d{1,2}[/-]\d{1,2}\b`)
	dayMonthRe    = regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th|er)?\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec|Janv|Févr|Fevr|Mars|Avr|Mai|Juin|Juil|Août|Aout|Sept|Octo|Nove|Déce|Dece)[a-zéû]*\.?,?\s+\d{4}\b`)
	monthDayRe    = regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}\b`)
	monthYearRe   = regexp.MustCompile(`(?i)^([A-Za-zéû]+)\s+(\d{4})$`)
)

// frenchMonths maps French month names (and the 1er ordinal) to English so
// the shared parser handles both languages.
var frenchMonths = []struct{ fr, en string }{
	{"janvier", "January"}, {"février", "February"}, {"fevrier", "February"},
	{"mars", "March"}, {"avril", "April"}, {"mai", "May"},
	{"juin", "June"}, {"juillet", "July"}, {"août", "August"},
	{"aout", "August"}, {"septembre", "September"}, {"octobre", "October"},
	{"novembre", "November"}, {"décembre", "December"}, {"decembre", "December"},
}

// ExtractDate pulls the invoice issue date from text.
//
// Phase 1 searches near date labels (template-supplied contexts first).
// Phase 2 scans the first 2000 chars for any date-like substring,
// skipping candidates preceded by a due/payment/delivery label.
// Returns nil when no reasonable date is found.
func ExtractDate(text string, tmpl *models.SupplierTemplate) *time.Time {
	contexts := dateContexts
	if tmpl != nil && len(tmpl.DateContext) > 0 {
		custom := make([]string, 0, len(tmpl.DateContext)+len(dateContexts))
		for _, c := range tmpl.DateContext {
			custom = append(custom, c+`\s*:?\s*`)
		}
		contexts = append(custom, dateContexts...)
	}

	// Phase 1: contextual search near labels.
	for _, ctx := range contexts {
		re, err := regexp.Compile(`(?i)` + ctx + `(.+?)(?:\n|$)`)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		raw := strings.TrimSpace(m[1])
		if len(raw) > contextValueLimit {
			raw = raw[:contextValueLimit]
		}
		raw = cleanOrdinals(raw)
		if d, ok := parseDateText(raw); ok && reasonableDate(d) {
			return &d
		}
	}

	// Phase 2: global search over the document head.
	window := text
	if len(window) > dateSearchWindow {
		window = window[:dateSearchWindow]
	}
	for _, cand := range findDateCandidates(window) {
		start := cand.index - negativeLookback
		if start < 0 {
			start = 0
		}
		if hasNegativeContext(window[start:cand.index]) {
			continue
		}
		if d, ok := parseDateText(cleanOrdinals(cand.text)); ok && reasonableDate(d) {
			return &d
		}
	}

	return nil
}

type dateCandidate struct {
	index int
	text  string
}

// findDateCandidates collects date-like substrings from all shape
// patterns, ordered by position in the text.
func findDateCandidates(text string) []dateCandidate {
	var cands []dateCandidate
	for _, re := range []*regexp.Regexp{isoLikeRe, numericDateRe, dayMonthRe, monthDayRe} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			cands = append(cands, dateCandidate{index: loc[0], text: text[loc[0]:loc[1]]})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].index < cands[j].index })
	return cands
}

func hasNegativeContext(preceding string) bool {
	for _, re := range negativeContexts {
		if re.MatchString(preceding) {
			return true
		}
	}
	return false
}

// parseDateText parses one date string. Strict ISO comes first because
// generic day-first parsing misreads YYYY-MM-DD. Everything else goes
// through dateparse with day-before-month preference, retrying without
// that preference as a last resort.
func parseDateText(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if m := isoDateRe.FindStringSubmatch(raw); m != nil {
		if d, err := time.Parse("2006-1-2", m[1]+"-"+m[2]+"-"+m[3]); err == nil {
			return d, true
		}
	}

	norm := normalizeFrench(raw)

	// Bare "March 2024" style values default the day to the 1st.
	if m := monthYearRe.FindStringSubmatch(norm); m != nil {
		if d, err := dateparse.ParseAny("1 " + norm); err == nil {
			return d, true
		}
	}

	if d, err := dateparse.ParseAny(norm, dateparse.PreferMonthFirst(false)); err == nil {
		return d, true
	}
	if d, err := dateparse.ParseAny(norm); err == nil {
		return d, true
	}
	return time.Time{}, false
}

func normalizeFrench(s string) string {
	lower := strings.ToLower(s)
	for _, m := range frenchMonths {
		if strings.Contains(lower, m.fr) {
			idx := strings.Index(lower, m.fr)
			s = s[:idx] + m.en + s[idx+len(m.fr):]
			lower = strings.ToLower(s)
		}
	}
	// French first-of-month ordinal: "1er mars" -> "1 mars".
	s = strings.Replace(s, "1er ", "1 ", 1)
	return s
}

func cleanOrdinals(s string) string {
	return ordinalRe.ReplaceAllString(s, "$1")
}

// reasonableDate bounds candidates to a realistic invoice date range,
// filtering OCR garbage like year 0202 or 3015.
func reasonableDate(d time.Time) bool {
	lower := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	upper := time.Date(time.Now().Year()+2, 12, 31, 23, 59, 59, 0, time.UTC)
	return !d.Before(lower) && !d.After(upper)
}
