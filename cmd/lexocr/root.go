package main

import (
	"github.com/spf13/cobra"

	"github.com/lexsuite/lexocr/internal/api"
	"github.com/lexsuite/lexocr/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "lexocr",
	Short: "OCR extraction pipeline for scanned legal documents",
	Long: `lexocr extracts text from scanned legal documents (contracts,
leases, court filings) using a hybrid OCR strategy.

The pipeline includes:
  - Fast local OCR with a remote fallback for difficult pages
  - Deterministic cleanup of common OCR artifacts
  - Optional AI grammar refinement with a safety gate
  - An audit trail of every run, page, and correction`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.lexocr/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "lexocr home directory (default: ~/.lexocr)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
