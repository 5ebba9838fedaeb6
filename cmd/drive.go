package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"invoicer/internal/drive"
	"invoicer/internal/logger"
	"invoicer/internal/pipeline"
)

var driveCmd = &cobra.Command{
	Use:   "drive [folder-id-or-url]",
	Short: "Process invoices in a Google Drive folder",
	Long: `List the invoice documents in a Google Drive folder, download each
one, run extraction, and optionally rename the files in Drive and move
them to a processed folder.

The folder argument accepts either a bare folder ID or a full Drive URL.
Without --rename or --move-to this is a dry run that only reports what
would happen.`,
	Example: `  # Preview what a folder would produce
  invoicer drive 1AbCdEfGh_folder_id

  # Rename in place with VAT quarters, then archive
  invoicer drive 1AbCdEfGh_folder_id --rename --vat-quarter --move-to 1XyZ_processed`,
	Args: cobra.ExactArgs(1),
	RunE: runDrive,
}

func init() {
	rootCmd.AddCommand(driveCmd)

	driveCmd.Flags().Bool("rename", false, "Rename files in Drive to their canonical names")
	driveCmd.Flags().String("move-to", "", "Folder ID to move processed files into")
	driveCmd.Flags().Bool("vat-quarter", false, "Append the VAT quarter to generated names")
	driveCmd.Flags().String("company", "", "Company ID for VAT calendar selection")
	driveCmd.Flags().Int("limit", 0, "Process at most this many files (0 = batch limit)")
	driveCmd.Flags().Bool("json", false, "Output results as JSON")
	driveCmd.Flags().Int("timeout", 600, "Processing timeout in seconds")
}

func runDrive(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("drive-cmd")

	rename, _ := cmd.Flags().GetBool("rename")
	moveTo, _ := cmd.Flags().GetString("move-to")
	vatQuarter, _ := cmd.Flags().GetBool("vat-quarter")
	company, _ := cmd.Flags().GetString("company")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	folderID := drive.ResolveFolderID(args[0])

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if limit <= 0 || limit > cfg.BatchLimit {
		limit = cfg.BatchLimit
	}

	ctx, cancel := signalContext(time.Duration(timeoutSecs) * time.Second)
	defer cancel()

	driveSvc, err := drive.NewService(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to Google Drive: %w", err)
	}

	pipe, _, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	files, err := driveSvc.ListInvoices(ctx, folderID)
	if err != nil {
		return fmt.Errorf("failed to list folder: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No processable documents in folder.")
		return nil
	}
	if len(files) > limit {
		log.Warn().
			Int("files", len(files)).
			Int("limit", limit).
			Msg("Folder exceeds limit, processing newest files only")
		files = files[:limit]
	}

	tmpDir, err := os.MkdirTemp("", "invoicer-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	opts := pipeline.Options{
		CompanyID:         company,
		IncludeVATQuarter: vatQuarter,
		Debug:             false,
	}

	log.Info().
		Str("folder_id", folderID).
		Int("files", len(files)).
		Bool("rename", rename).
		Msg("Processing Drive folder")

	type driveResult struct {
		FileID string      `json:"file_id"`
		Name   string      `json:"name"`
		Result interface{} `json:"result,omitempty"`
		Error  string      `json:"error,omitempty"`
	}

	var out []driveResult
	for _, f := range files {
		entry := driveResult{FileID: f.ID, Name: f.Name}

		localPath, err := driveSvc.Download(ctx, f.ID, tmpDir)
		if err != nil {
			log.Error().Err(err).Str("file", f.Name).Msg("Download failed")
			entry.Error = err.Error()
			out = append(out, entry)
			continue
		}

		result := pipe.ProcessFile(ctx, localPath, opts)
		entry.Result = result

		if rename && result.NewFilename != "" && result.NewFilename != f.Name {
			if err := driveSvc.Rename(ctx, f.ID, result.NewFilename); err != nil {
				result.AddError(fmt.Sprintf("rename failed: %v", err))
			}
		}
		if moveTo != "" {
			if err := driveSvc.Move(ctx, f.ID, moveTo); err != nil {
				result.AddError(fmt.Sprintf("move failed: %v", err))
			}
		}

		if !jsonOutput {
			printResult(result)
		}
		out = append(out, entry)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return nil
}
