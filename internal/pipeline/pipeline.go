// Package pipeline orchestrates the full invoice processing flow: text
// acquisition, field extraction, quarter classification, and filename
// generation.
//
// The pipeline never fails a document outright. Every stage that comes
// up empty records a note on the result and the remaining stages run on
// whatever was found, so a half-readable invoice still yields a usable
// filename.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"invoicer/internal/classify"
	"invoicer/internal/extract"
	"invoicer/internal/logger"
	"invoicer/internal/naming"
	"invoicer/internal/template"
	"invoicer/internal/textextract"
	"invoicer/pkg/models"
)

// minUsableTextLength is the threshold below which a document is treated
// as unreadable.
const minUsableTextLength = 10

// batchConcurrency caps parallel documents in ProcessBatch.
const batchConcurrency = 4

// Confidence weights per extracted field. They sum to 1.0.
const (
	weightSupplier = 0.25
	weightNumber   = 0.20
	weightDate     = 0.25
	weightAmount   = 0.20
	weightCurrency = 0.10
)

// Options control per-run processing behavior.
type Options struct {
	// CompanyID selects the VAT calendar. Empty uses the default company.
	CompanyID string

	// IncludeVATQuarter appends the fiscal quarter to generated names.
	IncludeVATQuarter bool

	// Debug logs intermediate extraction values.
	Debug bool
}

// Pipeline processes invoice documents end to end.
type Pipeline struct {
	store      *template.Store
	recognizer *extract.SupplierRecognizer
	classifier *classify.QuarterClassifier
	extractor  *textextract.Extractor
	log        zerolog.Logger
}

// New assembles a pipeline. The classifier may be nil when quarter
// classification is not configured; the extractor may be nil for
// text-only callers.
func New(store *template.Store, classifier *classify.QuarterClassifier, extractor *textextract.Extractor) *Pipeline {
	return &Pipeline{
		store:      store,
		recognizer: extract.NewSupplierRecognizer(store),
		classifier: classifier,
		extractor:  extractor,
		log:        logger.WithComponent("pipeline"),
	}
}

// ProcessFile runs the full pipeline on a document on disk.
func (p *Pipeline) ProcessFile(ctx context.Context, path string, opts Options) *models.ExtractionResult {
	result := models.NewExtractionResult(filepath.Base(path))

	if err := textextract.ValidateFile(path); err != nil {
		result.AddError(err.Error())
		return result
	}

	text, method, err := p.extractor.ExtractFromPath(ctx, path)
	if err != nil {
		result.AddError(fmt.Sprintf("text extraction failed: %v", err))
		return result
	}
	result.InvoiceData.ExtractionMethod = string(method)

	p.extractFields(text, result, opts, filepath.Dir(path))
	return result
}

// ProcessText runs field extraction on pre-extracted text, for callers
// that already have the document content (API requests, tests).
func (p *Pipeline) ProcessText(text, originalFilename string, opts Options) *models.ExtractionResult {
	result := models.NewExtractionResult(originalFilename)
	result.InvoiceData.ExtractionMethod = string(textextract.MethodText)
	p.extractFields(text, result, opts, "")
	return result
}

// ProcessBatch processes several documents concurrently. The result
// slice is ordered like paths. Individual failures land in each
// document's Errors; the only error returned is context cancellation.
func (p *Pipeline) ProcessBatch(ctx context.Context, paths []string, opts Options) ([]*models.ExtractionResult, error) {
	results := make([]*models.ExtractionResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.ProcessFile(gctx, path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ReprocessWithSupplier re-runs field extraction on a kept raw text
// using a freshly learned template. Used by the learning flow after an
// Unknown-supplier result.
func (p *Pipeline) ReprocessWithSupplier(result *models.ExtractionResult, tmpl *models.SupplierTemplate, opts Options) *models.ExtractionResult {
	if result.RawText == "" {
		return result
	}
	next := models.NewExtractionResult(result.OriginalFilename)
	next.InvoiceData.ExtractionMethod = result.InvoiceData.ExtractionMethod
	p.extractTemplated(result.RawText, next, tmpl, opts, "")
	return next
}

func (p *Pipeline) extractFields(text string, result *models.ExtractionResult, opts Options, dir string) {
	if len(strings.TrimSpace(text)) < minUsableTextLength {
		result.AddError("No text could be extracted from file")
		return
	}

	supplier, tmpl := p.recognizer.Recognize(text)
	result.InvoiceData.Supplier = supplier
	result.SupplierTemplate = tmpl
	if supplier == models.UnknownSupplier {
		result.RawText = text
	}
	p.finishExtraction(text, result, tmpl, opts, dir)
}

// extractTemplated skips recognition and uses the supplied template.
func (p *Pipeline) extractTemplated(text string, result *models.ExtractionResult, tmpl *models.SupplierTemplate, opts Options, dir string) {
	if len(strings.TrimSpace(text)) < minUsableTextLength {
		result.AddError("No text could be extracted from file")
		return
	}
	result.InvoiceData.Supplier = tmpl.DisplayName
	result.SupplierTemplate = tmpl
	p.finishExtraction(text, result, tmpl, opts, dir)
}

func (p *Pipeline) finishExtraction(text string, result *models.ExtractionResult, tmpl *models.SupplierTemplate, opts Options, dir string) {
	data := &result.InvoiceData

	data.InvoiceNumber = extract.ExtractInvoiceNumber(text, tmpl)
	if data.InvoiceNumber == "" {
		result.AddError("invoice number not found")
	}

	data.InvoiceDate = extract.ExtractDate(text, tmpl)
	if data.InvoiceDate == nil {
		result.AddError("invoice date not found")
	}

	amount, currency := extract.ExtractAmount(text, tmpl)
	data.Amount = amount
	if currency != models.UnknownCurrency {
		data.Currency = currency
	}
	if !data.HasAmount() {
		result.AddError("amount not found")
	}

	for _, note := range data.Sanitize() {
		result.AddError(note)
	}

	data.Confidence = confidence(data)

	if opts.Debug {
		p.log.Debug().
			Str("file", result.OriginalFilename).
			Str("supplier", data.Supplier).
			Str("invoice_number", data.InvoiceNumber).
			Str("date", data.FormatDate()).
			Str("amount", data.FormatAmount()).
			Float64("confidence", data.Confidence).
			Msg("Extraction complete")
	}

	result.AccountingPrefix = naming.ExtractAccountingPrefix(result.OriginalFilename)

	if opts.IncludeVATQuarter && p.classifier != nil && data.InvoiceDate != nil {
		result.VATQuarter = p.classifier.Classify(*data.InvoiceDate, opts.CompanyID)
	}

	result.NewFilename = naming.Generate(data, result.OriginalFilename, result.AccountingPrefix, result.VATQuarter, dir)
}

// confidence scores field completeness, weighted by how much each field
// contributes to a usable filename. Rounded to two decimals.
func confidence(d *models.InvoiceData) float64 {
	score := 0.0
	if d.Supplier != models.UnknownSupplier && d.Supplier != "" {
		score += weightSupplier
	}
	if d.InvoiceNumber != "" {
		score += weightNumber
	}
	if d.InvoiceDate != nil {
		score += weightDate
	}
	if d.HasAmount() {
		score += weightAmount
	}
	if d.Currency != "" && d.Currency != models.UnknownCurrency {
		score += weightCurrency
	}
	return math.Round(score*100) / 100
}
