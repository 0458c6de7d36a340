package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-ocr/internal/domain"
	"github.com/spherical/pdf-ocr/internal/stream"
	"github.com/spherical/pdf-ocr/pkg/extractor"
)

// newExtractCmd creates the extract subcommand.
func newExtractCmd() *cobra.Command {
	var (
		eventsPath  string
		outDir      string
		apiConfigs  string
		skipCombine bool
	)

	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Run OCR on a local PDF",
		Long: `Extract renders the PDF, sends every page to each provider and writes the
event stream as NDJSON to stdout (or --events). When the stream completes,
each provider's pages are combined into one Markdown file.

Providers come from the config file, or from --api-configs, a JSON file with
the same array accepted by the HTTP api_configs field.`,
		Example: `  pdf-ocr extract brochure.pdf
  pdf-ocr extract --api-configs providers.json --out-dir out/ brochure.pdf
  pdf-ocr extract --events events.ndjson brochure.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pdfPath := args[0]

			if apiConfigs != "" {
				providers, err := loadProviders(apiConfigs)
				if err != nil {
					return err
				}
				cfg.Providers = providers
			}

			var events io.Writer = cmd.OutOrStdout()
			if eventsPath != "" {
				f, err := os.Create(eventsPath)
				if err != nil {
					return fmt.Errorf("create events file: %w", err)
				}
				defer f.Close()
				events = f
			}

			if outDir == "" {
				outDir = filepath.Dir(pdfPath)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runExtract(ctx, pdfPath, events, outDir, !skipCombine)
		},
	}

	cmd.Flags().StringVar(&eventsPath, "events", "", "write NDJSON events to this file instead of stdout")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "directory for combined Markdown (default: next to the PDF)")
	cmd.Flags().StringVar(&apiConfigs, "api-configs", "", "JSON file with provider configs")
	cmd.Flags().BoolVar(&skipCombine, "no-combine", false, "do not write combined Markdown files")

	return cmd
}

// fileProcessor starts a stream for a PDF on disk.
type fileProcessor interface {
	ProcessFile(ctx context.Context, path string) (<-chan domain.StreamEvent, error)
}

func runExtract(ctx context.Context, pdfPath string, events io.Writer, outDir string, combine bool) error {
	ui := NewUI(noColor)

	client, err := extractor.NewClientFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	start := time.Now()
	collector, summary, err := streamFile(ctx, ui, client, pdfPath, events)
	if err != nil {
		if ctx.Err() != nil {
			ui.Warning("Interrupted after %v", time.Since(start).Round(time.Millisecond))
			return nil
		}
		return err
	}

	if summary != nil {
		ui.Info("%d pages succeeded, %d failed, %d providers faulted in %v",
			summary.Succeeded, summary.Failed, summary.Faulted, summary.Elapsed.Round(time.Millisecond))
	}

	if !combine {
		return nil
	}
	return writeDocuments(ui, collector.Documents(), pdfPath, outDir)
}

// streamFile runs the pipeline for pdfPath and writes its events as NDJSON.
// When events can no longer be written the pipeline is cancelled.
func streamFile(ctx context.Context, ui *UI, proc fileProcessor, pdfPath string, events io.Writer) (*stream.MarkdownCollector, *domain.StreamSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopSpinner := ui.Spin("Rendering " + filepath.Base(pdfPath))
	ch, err := proc.ProcessFile(ctx, pdfPath)
	stopSpinner()
	if err != nil {
		ui.Error("%v", err)
		return nil, nil, err
	}

	collector := stream.NewMarkdownCollector()
	var summary *domain.StreamSummary
	sink := stream.NewTee(stream.NewNDJSONWriter(events), func(ev domain.StreamEvent) {
		ui.Observe(ev)
		_ = collector.Send(ctx, ev)
		if ev.Summary != nil {
			summary = ev.Summary
		}
	})

	if err := stream.Forward(ctx, cancel, ch, sink); err != nil {
		return nil, nil, fmt.Errorf("write events: %w", err)
	}
	return collector, summary, nil
}

func writeDocuments(ui *UI, docs []stream.Document, pdfPath, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(pdfPath), filepath.Ext(pdfPath))
	for _, doc := range docs {
		name := fmt.Sprintf("%s-%d-%s.md", base, doc.ProducerIndex+1, slug(doc.Provider))
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, []byte(doc.Markdown), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		switch {
		case doc.Failed == 0:
			ui.Success("%s → %s", doc.Provider, path)
		default:
			ui.Warning("%s → %s (%d failed pages)", doc.Provider, path, doc.Failed)
		}
	}
	return nil
}

func loadProviders(path string) ([]domain.ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api configs: %w", err)
	}
	var providers []domain.ProviderConfig
	if err := json.Unmarshal(data, &providers); err != nil {
		return nil, domain.ValidationError("api configs must be a JSON array", err)
	}
	for i := range providers {
		providers[i].APIKey = os.ExpandEnv(providers[i].APIKey)
	}
	return providers, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "provider"
	}
	return s
}
