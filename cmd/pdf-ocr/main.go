// Package main provides the pdf-ocr entrypoint: an HTTP streaming server and
// a command-line extractor sharing one pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-ocr/internal/config"
	"github.com/spherical/pdf-ocr/internal/observability"
)

const version = "1.0.0"

var (
	// Global flags
	cfgFile string
	verbose bool
	noColor bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "pdf-ocr",
	Short: "Stream page-by-page OCR of PDF documents from several vision models at once",
	Long: `pdf-ocr renders every page of a PDF and sends it to each configured
vision model. Results are streamed as they arrive, one result per page and
provider, with heartbeats while everyone is busy.

Run "pdf-ocr serve" for the HTTP API or "pdf-ocr extract <file.pdf>" to
process a document locally.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      cfg.Observability.LogFormat,
			ServiceName: cfg.Observability.ServiceName,
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("CONFIG_PATH"), "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newExtractCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
