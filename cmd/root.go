package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"invoicer/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Invoicer - extract structured data from invoice documents",
	Long: `Invoicer reads invoice PDFs and images, extracts the supplier,
invoice number, date, and amount, and renames each file to a canonical
bookkeeping-friendly name like:

  PUR 25-0024_Etisalat_#INV1965257146_15-01-2025_960.34AED_Q4-2024.pdf

Supplier-specific extraction rules live in a JSON template file and can
be learned interactively from documents the heuristics cannot handle.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
