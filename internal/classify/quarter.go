// Package classify maps invoice dates to VAT reporting quarters using
// per-company calendar configuration.
package classify

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"invoicer/internal/logger"
	"invoicer/pkg/models"
)

// CalendarUAETRN is the UAE tax-registration-number filing calendar:
// quarters start in February, and January belongs to Q4 of the previous
// year.
const CalendarUAETRN = "uae_trn"

// configDocument is the persisted shape of the calendar config file.
type configDocument struct {
	Companies      []models.CompanyConfig `json:"companies"`
	DefaultCompany string                 `json:"default_company"`
}

// QuarterClassifier resolves VAT quarter labels like "Q1-2025" from
// invoice dates. Loaded once at construction, read-only thereafter.
type QuarterClassifier struct {
	companies      map[string]models.CompanyConfig
	defaultCompany string
	log            zerolog.Logger
}

// Load reads the company calendar configuration from path. A non-empty
// defaultCompany overrides the file's default_company, so deployments can
// switch the filing entity without editing the config file.
func Load(path, defaultCompany string) (*QuarterClassifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classify: load calendar config: %w", err)
	}
	var doc configDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("classify: malformed calendar config: %w", err)
	}
	if defaultCompany != "" {
		doc.DefaultCompany = defaultCompany
	}

	companies := make(map[string]models.CompanyConfig, len(doc.Companies))
	for _, c := range doc.Companies {
		companies[c.ID] = c
	}

	return &QuarterClassifier{
		companies:      companies,
		defaultCompany: doc.DefaultCompany,
		log:            logger.WithComponent("classify"),
	}, nil
}

// Classify returns the VAT quarter label for the given date under the
// named company's calendar, or "" when the company is unknown or files
// under an unrecognized calendar type. An empty companyID selects the
// configured default company.
func (q *QuarterClassifier) Classify(date time.Time, companyID string) string {
	if companyID == "" {
		companyID = q.defaultCompany
	}

	company, ok := q.companies[companyID]
	if !ok || company.VATCalendar == nil {
		q.log.Debug().Str("company", companyID).Msg("No VAT calendar for company")
		return ""
	}

	switch company.VATCalendar.Type {
	case CalendarUAETRN:
		return uaeTRNQuarter(date)
	default:
		q.log.Warn().
			Str("company", companyID).
			Str("calendar", company.VATCalendar.Type).
			Msg("Unrecognized VAT calendar type")
		return ""
	}
}

// uaeTRNQuarter implements the UAE TRN bucketing:
// Feb-Apr Q1, May-Jul Q2, Aug-Oct Q3, Nov-Jan Q4, with January counted
// into Q4 of the previous year.
func uaeTRNQuarter(date time.Time) string {
	month := int(date.Month())
	year := date.Year()

	switch {
	case month >= 2 && month <= 4:
		return fmt.Sprintf("Q1-%d", year)
	case month >= 5 && month <= 7:
		return fmt.Sprintf("Q2-%d", year)
	case month >= 8 && month <= 10:
		return fmt.Sprintf("Q3-%d", year)
	case month == 1:
		return fmt.Sprintf("Q4-%d", year-1)
	default: // Nov, Dec
		return fmt.Sprintf("Q4-%d", year)
	}
}
