package models

import (
	"fmt"
	"regexp"
)

// idPattern rejects identifiers with characters that could be abused in
// Drive queries or file paths.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ProcessRequest is the payload accepted by the HTTP process endpoint.
type ProcessRequest struct {
	FileID            string `json:"file_id,omitempty"`
	FolderID          string `json:"folder_id,omitempty"`
	CompanyID         string `json:"company_id,omitempty"`
	DryRun            bool   `json:"dry_run"`
	Rename            bool   `json:"rename"`
	MoveTo            string `json:"move_to,omitempty"`
	IncludeVATQuarter bool   `json:"include_vat_quarter"`
	Debug             bool   `json:"debug"`
}

// Validate checks all identifier fields against the allowed shape.
// A malformed identifier is a request-level rejection, not a per-document
// error.
func (r *ProcessRequest) Validate() error {
	for name, v := range map[string]string{
		"file_id":    r.FileID,
		"folder_id":  r.FolderID,
		"company_id": r.CompanyID,
		"move_to":    r.MoveTo,
	} {
		if v != "" && !idPattern.MatchString(v) {
			return fmt.Errorf("invalid %s: must be alphanumeric, max 128 chars", name)
		}
	}
	return nil
}

// LearnRequest is the payload accepted by the HTTP learn endpoint.
type LearnRequest struct {
	SupplierName      string   `json:"supplier_name"`
	Text              string   `json:"text,omitempty"`
	DefaultCurrency   string   `json:"default_currency,omitempty"`
	DetectionPatterns []string `json:"detection_patterns,omitempty"`
}

// Validate enforces the supplier name constraints.
func (r *LearnRequest) Validate() error {
	if r.SupplierName == "" {
		return fmt.Errorf("supplier_name required")
	}
	if len(r.SupplierName) > 100 {
		return fmt.Errorf("supplier_name too long (max 100 chars)")
	}
	return nil
}
