package main

import (
	"github.com/spf13/cobra"

	"github.com/aosman25/islam-ai/internal/api"
	"github.com/aosman25/islam-ai/version"
)

var (
	cfgFile      string
	outputFormat string
	serverURL    string
)

var rootCmd = &cobra.Command{
	Use:   "islamlib",
	Short: "Classical Arabic book export and retrieval service",
	Long: `Islamlib exports classical Arabic books from the upstream catalogue into
clean chunked text with dense and sparse embeddings, and answers questions
over the exported corpus.

The pipeline includes:
  - HTML extraction and cleaning of crawler output
  - ToC-aware chunking with page range matching
  - Dense + BM25 sparse embedding with per-batch progress
  - Hybrid retrieval with RRF or weighted fusion
  - A RAG gateway that rewrites, retrieves and answers`,
	Version: version.GitRelease,
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.islam-ai/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://127.0.0.1:8080", "export service URL for api commands",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
