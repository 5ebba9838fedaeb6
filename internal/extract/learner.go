package extract

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"invoicer/pkg/models"
)

const (
	learnerScanLines   = 15 // header lines scanned for detection patterns
	maxLearnedPatterns = 5
	previewLines       = 10
)

var (
	templateIDRe = regexp.MustCompile(`[^a-z0-9]+`)
	wwwRe        = regexp.MustCompile(`(?i)www\.\S+`)

	// learnerSkipRe is a lighter stoplist than the recognizer's: table
	// column labels are kept since they never reach pattern shape anyway.
	learnerSkipRe = regexp.MustCompile(`(?i)^\s*(Invoice|Receipt|Bill\b|Statement|Tax\s|Date|Total|Amount|Page\s|Tel\b|Phone|Email|Address|Street|P\.?O\.?\s*Box|www\.|http|Subtotal|Due\s|Payment)`)
)

// BuildDetectionPatterns auto-generates detection patterns for a new
// supplier from the document header: legal-entity lines, www. URLs, and
// lines containing the supplier's name. At most five, deduplicated,
// declaration order preserved.
func BuildDetectionPatterns(text, supplierName string) []string {
	var patterns []string
	lines := nonBlankLines(text)
	if len(lines) > learnerScanLines {
		lines = lines[:learnerScanLines]
	}

	nameNeedle := strings.ToLower(strings.ReplaceAll(supplierName, "_", " "))
	for _, line := range lines {
		if len(line) < minLineLen || len(line) > maxLineLen {
			continue
		}
		if learnerSkipRe.MatchString(line) {
			// www. lines are boilerplate for recognition but make good
			// detection patterns.
			if m := wwwRe.FindString(line); m != "" {
				patterns = append(patterns, m)
			}
			continue
		}
		if legalSuffixRe.MatchString(line) {
			patterns = append(patterns, line)
		} else if nameNeedle != "" && strings.Contains(strings.ToLower(line), nameNeedle) {
			patterns = append(patterns, line)
		}
	}

	seen := make(map[string]bool)
	unique := patterns[:0]
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	if len(unique) > maxLearnedPatterns {
		unique = unique[:maxLearnedPatterns]
	}
	return unique
}

// NewSupplierTemplate builds a template ready for the store. The ID is
// the lowercased name with non-alphanumeric runs collapsed to "_"; the
// supplier name itself is always among the detection patterns.
func NewSupplierTemplate(supplierName, text, defaultCurrency string, detectionPatterns []string) models.SupplierTemplate {
	id := strings.Trim(templateIDRe.ReplaceAllString(strings.ToLower(supplierName), "_"), "_")
	displayName := whitespaceRe.ReplaceAllString(strings.TrimSpace(supplierName), "_")

	if len(detectionPatterns) == 0 {
		detectionPatterns = BuildDetectionPatterns(text, supplierName)
	}
	hasName := false
	for _, p := range detectionPatterns {
		if strings.Contains(strings.ToLower(p), strings.ToLower(supplierName)) {
			hasName = true
			break
		}
	}
	if !hasName {
		detectionPatterns = append([]string{supplierName}, detectionPatterns...)
	}

	return models.SupplierTemplate{
		ID:                id,
		DisplayName:       displayName,
		DetectionPatterns: detectionPatterns,
		DefaultCurrency:   defaultCurrency,
	}
}

// SupplierCollector gathers supplier details when recognition fails.
// One implementation prompts a human at the terminal; programmatic
// callers supply the details up front instead.
type SupplierCollector interface {
	// CollectSupplierInfo returns a template for the unrecognized
	// document, or nil when the caller declines to provide one.
	CollectSupplierInfo(text string) (*models.SupplierTemplate, error)
}

// TerminalCollector implements SupplierCollector with interactive
// prompts, showing the first document lines for context.
type TerminalCollector struct {
	In  io.Reader
	Out io.Writer
}

// CollectSupplierInfo walks the operator through naming the supplier and
// confirming the auto-detected patterns.
func (c *TerminalCollector) CollectSupplierInfo(text string) (*models.SupplierTemplate, error) {
	scanner := bufio.NewScanner(c.In)

	lines := nonBlankLines(text)
	if len(lines) > previewLines {
		lines = lines[:previewLines]
	}
	fmt.Fprintln(c.Out, "\n--- Supplier not recognized ---")
	fmt.Fprintln(c.Out, "Invoice preview (first lines):")
	for _, l := range lines {
		fmt.Fprintf(c.Out, "  %s\n", l)
	}
	fmt.Fprintln(c.Out)

	name := c.ask(scanner, "Supplier name (or Enter to skip): ")
	if name == "" {
		return nil, nil
	}

	currency := strings.ToUpper(c.ask(scanner, "Default currency (e.g. USD, EUR, AED) [optional]: "))

	patterns := BuildDetectionPatterns(text, name)
	if len(patterns) > 0 {
		fmt.Fprintln(c.Out, "\nAuto-detected patterns:")
		for i, p := range patterns {
			fmt.Fprintf(c.Out, "  %d. %s\n", i+1, p)
		}
		if strings.EqualFold(c.ask(scanner, "Use these patterns? (Y/n): "), "n") {
			custom := c.ask(scanner, "Enter detection patterns (comma-separated): ")
			patterns = nil
			for _, p := range strings.Split(custom, ",") {
				if p = strings.TrimSpace(p); p != "" {
					patterns = append(patterns, p)
				}
			}
		}
	}

	tmpl := NewSupplierTemplate(name, text, currency, patterns)
	return &tmpl, nil
}

func (c *TerminalCollector) ask(scanner *bufio.Scanner, prompt string) string {
	fmt.Fprint(c.Out, prompt)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

// StaticCollector implements SupplierCollector with a pre-supplied
// payload, for HTTP and scripted callers.
type StaticCollector struct {
	Template *models.SupplierTemplate
}

func (c *StaticCollector) CollectSupplierInfo(string) (*models.SupplierTemplate, error) {
	return c.Template, nil
}
