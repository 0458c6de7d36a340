// Package extractor is the library entry point: it turns PDF bytes into a
// stream of per-page results from every configured provider.
package extractor

import (
	"context"
	"os"
	"time"

	"github.com/spherical/pdf-ocr/internal/config"
	"github.com/spherical/pdf-ocr/internal/domain"
	"github.com/spherical/pdf-ocr/internal/extract"
	"github.com/spherical/pdf-ocr/internal/llm"
	"github.com/spherical/pdf-ocr/internal/observability"
	"github.com/spherical/pdf-ocr/internal/pdf"
)

// Re-export event types for public API
type (
	StreamEvent    = domain.StreamEvent
	EventType      = domain.EventType
	ResultEvent    = domain.ResultEvent
	StreamInfo     = domain.StreamInfo
	StreamError    = domain.StreamError
	StreamSummary  = domain.StreamSummary
	ProviderConfig = domain.ProviderConfig
	ProviderKind   = domain.ProviderKind
)

// Event type constants
const (
	EventInfo      = domain.EventInfo
	EventResult    = domain.EventResult
	EventHeartbeat = domain.EventHeartbeat
	EventError     = domain.EventError
	EventComplete  = domain.EventComplete
)

// Provider kinds
const (
	ProviderOpenAI      = domain.ProviderOpenAI
	ProviderSiliconFlow = domain.ProviderSiliconFlow
	ProviderOllama      = domain.ProviderOllama
	ProviderAnthropic   = domain.ProviderAnthropic
)

// Client is the main entry point for the PDF OCR library
type Client struct {
	rasterizer domain.Rasterizer
	pipeline   domain.Pipeline
	providers  []domain.ProviderConfig
}

// Config holds configuration options for the client. Zero values take the
// service defaults.
type Config struct {
	Providers         []ProviderConfig
	HeartbeatInterval time.Duration
	PageTimeout       time.Duration
	StreamResponses   bool
	// RateLimitRetries bounds re-attempts after HTTP 429. Nil takes the
	// default; zero turns re-attempts off.
	RateLimitRetries  *int
	DPI               float64
	Quality           int
	MaxPages          int
	Logger            *observability.Logger
}

// NewClient creates a client from the environment and the config file named
// by CONFIG_PATH, if any.
func NewClient() (*Client, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, domain.ConfigError("failed to load configuration", err)
	}
	return NewClientFromConfig(cfg, nil)
}

// NewClientFromConfig creates a client from a loaded service configuration.
func NewClientFromConfig(cfg *config.Config, logger *observability.Logger) (*Client, error) {
	return NewClientWithConfig(&Config{
		Providers:         cfg.Providers,
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		PageTimeout:       cfg.Stream.PageTimeout,
		StreamResponses:   cfg.Stream.StreamResponses,
		RateLimitRetries:  &cfg.Stream.RateLimitRetries,
		DPI:               cfg.Render.DPI,
		Quality:           cfg.Render.Quality,
		MaxPages:          cfg.Render.MaxPages,
		Logger:            logger,
	})
}

// NewClientWithConfig creates a new client with custom configuration
func NewClientWithConfig(cfg *Config) (*Client, error) {
	if len(cfg.Providers) == 0 {
		return nil, domain.ConfigError("at least one provider is required", nil)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.Nop()
	}

	defaults := config.DefaultConfig()
	opts := extract.DefaultOptions()
	if cfg.HeartbeatInterval > 0 {
		opts.HeartbeatInterval = cfg.HeartbeatInterval
	}
	if cfg.PageTimeout > 0 {
		opts.PageTimeout = cfg.PageTimeout
	}

	retries := defaults.Stream.RateLimitRetries
	if cfg.RateLimitRetries != nil {
		retries = *cfg.RateLimitRetries
	}
	factory := llm.Factory(llm.Options{
		Stream:           cfg.StreamResponses,
		RateLimitRetries: retries,
		Logger:           logger,
	})

	converter := pdf.NewConverter(pdf.ConverterOptions{
		DPI:      cfg.DPI,
		Quality:  cfg.Quality,
		MaxPages: cfg.MaxPages,
	})

	return &Client{
		rasterizer: converter,
		pipeline:   extract.NewMultiplexer(factory, opts, logger),
		providers:  cfg.Providers,
	}, nil
}

// Process renders pdfBytes and streams results from every provider. Errors
// in the document itself are returned before any event; everything after
// that is reported on the channel, which is closed once the stream ends or
// ctx is cancelled.
func (c *Client) Process(ctx context.Context, pdfBytes []byte) (<-chan StreamEvent, error) {
	pages, err := c.rasterizer.Rasterize(ctx, pdfBytes)
	if err != nil {
		return nil, err
	}
	return c.pipeline.Run(ctx, pages, c.providers), nil
}

// ProcessFile reads the PDF at path and calls Process.
func (c *Client) ProcessFile(ctx context.Context, path string) (<-chan StreamEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ValidationError("PDF file not found", err)
		}
		return nil, domain.IOError("failed to read PDF", err)
	}
	return c.Process(ctx, data)
}

// Providers returns the providers each stream runs against.
func (c *Client) Providers() []ProviderConfig {
	return c.providers
}
