package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"invoicer/internal/classify"
	"invoicer/internal/config"
	"invoicer/internal/ocr"
	"invoicer/internal/pipeline"
	"invoicer/internal/template"
	"invoicer/internal/textextract"
)

// loadConfig loads process configuration, shared by all subcommands.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// loadStore reads the supplier template file. A missing file yields an
// empty store so the heuristics still run.
func loadStore(cfg *config.Config) (*template.Store, error) {
	store, err := template.Load(cfg.SuppliersConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier templates: %w", err)
	}
	return store, nil
}

// loadClassifier reads the company VAT calendars, with DEFAULT_COMPANY
// overriding the file's default entity. A missing file disables quarter
// classification.
func loadClassifier(cfg *config.Config, log zerolog.Logger) *classify.QuarterClassifier {
	classifier, err := classify.Load(cfg.CompaniesConfig, cfg.DefaultCompany)
	if err != nil {
		log.Warn().
			Err(err).
			Str("path", cfg.CompaniesConfig).
			Msg("Company config unavailable, VAT quarters disabled")
		return nil
	}
	return classifier
}

// newOCRService creates the Vision OCR backend when credentials are
// configured, nil otherwise.
func newOCRService(ctx context.Context, cfg *config.Config, log zerolog.Logger) ocr.Service {
	if cfg.GoogleCredentialsFile == "" && cfg.GoogleCredentialsJSON == "" {
		log.Debug().Msg("No Google credentials, OCR disabled")
		return nil
	}
	svc, err := ocr.NewVisionService(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("OCR service unavailable, native text only")
		return nil
	}
	return svc
}

// newPipeline assembles the processing pipeline from loaded config.
func newPipeline(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pipeline.Pipeline, *template.Store, error) {
	store, err := loadStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	classifier := loadClassifier(cfg, log)
	extractor := textextract.New(newOCRService(ctx, cfg, log))
	return pipeline.New(store, classifier, extractor), store, nil
}
