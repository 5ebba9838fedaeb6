package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"invoicer/internal/extract"
	"invoicer/internal/logger"
	"invoicer/internal/pipeline"
	"invoicer/pkg/models"
)

var learnCmd = &cobra.Command{
	Use:   "learn [file]",
	Short: "Teach the extractor a new supplier from a sample invoice",
	Long: `Process a sample invoice and, when the supplier is not recognized,
interactively capture a supplier template: display name, default
currency, and detection patterns suggested from the document text.

The template is appended to the supplier config file and used for all
subsequent processing. Learning an already-known supplier is a no-op.`,
	Example: `  # Learn from an unrecognized invoice
  invoicer learn samples/new-vendor.pdf

  # Non-interactive: supply everything up front
  invoicer learn samples/new-vendor.pdf --name "Acme Media" --currency USD`,
	Args: cobra.ExactArgs(1),
	RunE: runLearn,
}

func init() {
	rootCmd.AddCommand(learnCmd)

	learnCmd.Flags().String("name", "", "Supplier display name (skips the prompt)")
	learnCmd.Flags().String("currency", "", "Default currency for the supplier")
	learnCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
}

func runLearn(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("learn")

	name, _ := cmd.Flags().GetString("name")
	currency, _ := cmd.Flags().GetString("currency")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	path := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(time.Duration(timeoutSecs) * time.Second)
	defer cancel()

	pipe, store, err := newPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}

	opts := pipeline.Options{}
	result := pipe.ProcessFile(ctx, path, opts)
	if result.RawText == "" {
		if result.InvoiceData.Supplier != models.UnknownSupplier {
			fmt.Printf("Supplier already recognized as %q, nothing to learn.\n", result.InvoiceData.Supplier)
			return nil
		}
		return fmt.Errorf("no text could be extracted from %s: %s", path, strings.Join(result.Errors, "; "))
	}

	var collector extract.SupplierCollector
	if name != "" {
		patterns := extract.BuildDetectionPatterns(result.RawText, name)
		tmpl := extract.NewSupplierTemplate(name, result.RawText, strings.ToUpper(currency), patterns)
		collector = &extract.StaticCollector{Template: &tmpl}
	} else {
		collector = &extract.TerminalCollector{In: os.Stdin, Out: os.Stdout}
	}

	tmpl, err := collector.CollectSupplierInfo(result.RawText)
	if err != nil {
		return fmt.Errorf("failed to collect supplier info: %w", err)
	}
	if tmpl == nil {
		fmt.Println("Aborted, no template saved.")
		return nil
	}

	added, err := store.Append(*tmpl)
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	if !added {
		fmt.Printf("Template %q already exists, nothing saved.\n", tmpl.ID)
		return nil
	}

	log.Info().Str("template_id", tmpl.ID).Msg("Learned supplier template")
	fmt.Printf("Saved supplier template %q.\n\n", tmpl.ID)

	// Show what the new template extracts from the sample.
	reprocessed := pipe.ReprocessWithSupplier(result, tmpl, opts)
	printResult(reprocessed)
	return nil
}
