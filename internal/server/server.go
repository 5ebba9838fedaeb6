// Package server exposes the invoice pipeline over HTTP.
package server

import (
	"crypto/subtle"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicer/internal/config"
	"invoicer/internal/drive"
	"invoicer/internal/extract"
	"invoicer/internal/pipeline"
	"invoicer/internal/template"
	"invoicer/pkg/models"
)

// Server wires the pipeline, template store, and Drive connector behind
// a small JSON API.
type Server struct {
	app   *fiber.App
	cfg   *config.Config
	pipe  *pipeline.Pipeline
	store *template.Store
	drive *drive.Service
	log   zerolog.Logger
}

// New builds the HTTP server. driveSvc may be nil; the process endpoint
// then reports Drive as unavailable.
func New(cfg *config.Config, pipe *pipeline.Pipeline, store *template.Store, driveSvc *drive.Service, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "invoicer",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          5 * time.Minute,
		BodyLimit:             1 * 1024 * 1024,
	})

	s := &Server{
		app:   app,
		cfg:   cfg,
		pipe:  pipe,
		store: store,
		drive: driveSvc,
		log:   log,
	}

	app.Use(s.requestID)
	app.Get("/health", s.handleHealth)

	api := app.Group("", s.auth)
	api.Post("/process", s.handleProcess)
	api.Post("/learn", s.handleLearn)

	return s
}

// Listen serves until Shutdown is called or the listener fails.
func (s *Server) Listen() error {
	s.log.Info().Str("addr", s.cfg.ListenAddr).Msg("HTTP server listening")
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// requestID tags every request with a correlation ID, echoed in the
// response and in all log lines for the request.
func (s *Server) requestID(c *fiber.Ctx) error {
	id := c.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("X-Request-ID", id)
	c.Locals("request_id", id)
	return c.Next()
}

// auth enforces the X-API-Key header. An empty configured key disables
// authentication for local development.
func (s *Server) auth(c *fiber.Ctx) error {
	if s.cfg.APIKey == "" {
		return c.Next()
	}
	provided := c.Get("X-API-Key")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.APIKey)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid or missing API key",
		})
	}
	return c.Next()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"templates": len(s.store.Templates()),
	})
}

// processFileResult is one document's outcome in a process response.
type processFileResult struct {
	FileID string                   `json:"file_id"`
	Result *models.ExtractionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

func (s *Server) handleProcess(c *fiber.Ctx) error {
	log := s.requestLogger(c)

	var req models.ProcessRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}
	if (req.FileID == "") == (req.FolderID == "") {
		return badRequest(c, "exactly one of file_id or folder_id is required")
	}
	if s.drive == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Google Drive is not configured",
		})
	}

	ctx := c.Context()

	fileIDs := []string{req.FileID}
	if req.FolderID != "" {
		files, err := s.drive.ListInvoices(ctx, req.FolderID)
		if err != nil {
			log.Error().Err(err).Str("folder_id", req.FolderID).Msg("Folder listing failed")
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": fmt.Sprintf("failed to list folder: %v", err),
			})
		}
		if len(files) > s.cfg.BatchLimit {
			return badRequest(c, fmt.Sprintf("folder has %d files, exceeds batch limit of %d", len(files), s.cfg.BatchLimit))
		}
		fileIDs = fileIDs[:0]
		for _, f := range files {
			fileIDs = append(fileIDs, f.ID)
		}
	}

	opts := pipeline.Options{
		CompanyID:         req.CompanyID,
		IncludeVATQuarter: req.IncludeVATQuarter,
		Debug:             req.Debug,
	}

	tmpDir, err := os.MkdirTemp("", "invoicer-*")
	if err != nil {
		log.Error().Err(err).Msg("Temp dir creation failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
	defer os.RemoveAll(tmpDir)

	results := make([]processFileResult, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		entry := processFileResult{FileID: fileID}

		localPath, err := s.drive.Download(ctx, fileID, tmpDir)
		if err != nil {
			entry.Error = fmt.Sprintf("download failed: %v", err)
			results = append(results, entry)
			continue
		}

		result := s.pipe.ProcessFile(ctx, localPath, opts)
		entry.Result = result

		if !req.DryRun {
			if req.Rename && result.NewFilename != "" {
				if err := s.drive.Rename(ctx, fileID, result.NewFilename); err != nil {
					result.AddError(fmt.Sprintf("rename failed: %v", err))
				}
			}
			if req.MoveTo != "" {
				if err := s.drive.Move(ctx, fileID, req.MoveTo); err != nil {
					result.AddError(fmt.Sprintf("move failed: %v", err))
				}
			}
		}
		results = append(results, entry)
	}

	log.Info().Int("documents", len(results)).Bool("dry_run", req.DryRun).Msg("Process request complete")

	return c.JSON(fiber.Map{
		"request_id": c.Locals("request_id"),
		"count":      len(results),
		"dry_run":    req.DryRun,
		"results":    results,
	})
}

func (s *Server) handleLearn(c *fiber.Ctx) error {
	log := s.requestLogger(c)

	var req models.LearnRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	patterns := req.DetectionPatterns
	if len(patterns) == 0 && req.Text != "" {
		patterns = extract.BuildDetectionPatterns(req.Text, req.SupplierName)
	}

	tmpl := extract.NewSupplierTemplate(req.SupplierName, req.Text, req.DefaultCurrency, patterns)

	added, err := s.store.Append(tmpl)
	if err != nil {
		log.Error().Err(err).Str("template_id", tmpl.ID).Msg("Template save failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to save template: %v", err),
		})
	}
	if !added {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":       "template already exists",
			"template_id": tmpl.ID,
		})
	}

	log.Info().Str("template_id", tmpl.ID).Msg("Learned supplier template")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"request_id": c.Locals("request_id"),
		"template":   tmpl,
	})
}

func (s *Server) requestLogger(c *fiber.Ctx) zerolog.Logger {
	id, _ := c.Locals("request_id").(string)
	return s.log.With().Str("request_id", id).Logger()
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
