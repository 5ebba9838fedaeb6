package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"invoicer/internal/drive"
	"invoicer/internal/logger"
	"invoicer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the invoice processing HTTP API",
	Long: `Start the HTTP server exposing invoice processing over JSON:

  POST /process  process a Drive file or folder
  POST /learn    register a supplier template
  GET  /health   liveness check

Requests must carry the X-API-Key header matching INVOICE_API_KEY.
An empty key disables authentication for local development.`,
	Example: `  # Serve on the configured address (default :8080)
  invoicer serve

  # Override the listen address
  invoicer serve --listen :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "Listen address (overrides LISTEN_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.ListenAddr = listen
	}
	if cfg.APIKey == "" {
		log.Warn().Msg("INVOICE_API_KEY not set, API authentication disabled")
	}

	ctx := context.Background()

	pipe, store, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	var driveSvc *drive.Service
	if cfg.GoogleCredentialsFile != "" || cfg.GoogleCredentialsJSON != "" {
		driveSvc, err = drive.NewService(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Google Drive unavailable, process endpoint disabled")
		}
	}

	srv := server.New(cfg, pipe, store, driveSvc, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		if err := srv.Shutdown(); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
