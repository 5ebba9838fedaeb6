package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"invoicer/internal/logger"
	"invoicer/internal/pipeline"
	"invoicer/internal/textextract"
	"invoicer/pkg/models"
)

var processCmd = &cobra.Command{
	Use:   "process [file-or-directory]...",
	Short: "Extract invoice data from local documents",
	Long: `Process one or more invoice documents (PDF or image) and print the
extracted supplier, invoice number, date, amount, and the canonical
filename each document should carry.

Directories are expanded to their processable files. Pass --rename to
apply the new filenames in place.`,
	Example: `  # Inspect a single invoice
  invoicer process invoice.pdf

  # Process a whole folder and rename the files
  invoicer process ./inbox --rename --vat-quarter

  # Machine-readable output
  invoicer process invoice.pdf --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().Bool("rename", false, "Rename files to their canonical names")
	processCmd.Flags().Bool("vat-quarter", false, "Append the VAT quarter to generated names")
	processCmd.Flags().String("company", "", "Company ID for VAT calendar selection")
	processCmd.Flags().Bool("json", false, "Output results as JSON")
	processCmd.Flags().Bool("debug", false, "Log intermediate extraction values")
	processCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	rename, _ := cmd.Flags().GetBool("rename")
	vatQuarter, _ := cmd.Flags().GetBool("vat-quarter")
	company, _ := cmd.Flags().GetString("company")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	debug, _ := cmd.Flags().GetBool("debug")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	paths, err := collectDocuments(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no processable documents found (supported: pdf, jpg, png, tiff, bmp)")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(time.Duration(timeoutSecs) * time.Second)
	defer cancel()

	pipe, _, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		CompanyID:         company,
		IncludeVATQuarter: vatQuarter,
		Debug:             debug,
	}

	log.Info().Int("documents", len(paths)).Bool("rename", rename).Msg("Starting processing")

	results, err := pipe.ProcessBatch(ctx, paths, opts)
	if err != nil {
		return fmt.Errorf("batch processing aborted: %w", err)
	}

	if rename {
		for i, result := range results {
			applyLocalRename(paths[i], result, log)
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, result := range results {
		printResult(result)
	}
	return nil
}

// collectDocuments expands arguments into a sorted list of processable
// files. Directories are walked one level deep.
func collectDocuments(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !textextract.IsSupported(entry.Name()) {
				continue
			}
			paths = append(paths, filepath.Join(arg, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// applyLocalRename moves the file to its canonical name within the same
// directory. Failures become per-document notes, not command failures.
func applyLocalRename(path string, result *models.ExtractionResult, log zerolog.Logger) {
	if result.NewFilename == "" || result.NewFilename == result.OriginalFilename {
		return
	}
	target := filepath.Join(filepath.Dir(path), result.NewFilename)
	if err := os.Rename(path, target); err != nil {
		log.Error().Err(err).Str("file", path).Msg("Rename failed")
		result.AddError(fmt.Sprintf("rename failed: %v", err))
		return
	}
	log.Info().
		Str("from", result.OriginalFilename).
		Str("to", result.NewFilename).
		Msg("Renamed file")
}

// printResult writes a human-readable summary for one document.
func printResult(result *models.ExtractionResult) {
	data := result.InvoiceData

	fmt.Printf("%s\n", result.OriginalFilename)
	fmt.Printf("  Supplier:   %s\n", data.Supplier)
	fmt.Printf("  Number:     %s\n", orDash(data.InvoiceNumber))
	fmt.Printf("  Date:       %s\n", data.FormatDate())
	fmt.Printf("  Amount:     %s\n", data.FormatAmount())
	fmt.Printf("  Confidence: %.2f\n", data.Confidence)
	if result.VATQuarter != "" {
		fmt.Printf("  Quarter:    %s\n", result.VATQuarter)
	}
	if result.NewFilename != "" {
		fmt.Printf("  New name:   %s\n", result.NewFilename)
	}
	if len(result.Errors) > 0 {
		fmt.Printf("  Notes:      %s\n", strings.Join(result.Errors, "; "))
	}
	fmt.Println()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// signalContext returns a context canceled by SIGINT/SIGTERM or timeout.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
