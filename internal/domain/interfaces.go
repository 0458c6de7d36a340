package domain

import "context"

// Rasterizer turns a PDF document into page images
type Rasterizer interface {
	// Rasterize decodes pdf and returns one PageTask per page, in page order
	Rasterize(ctx context.Context, pdf []byte) ([]PageTask, error)
}

// PageExtractor extracts the content of a single page against one provider
type PageExtractor interface {
	ExtractPage(ctx context.Context, page PageTask) (string, error)
}

// ExtractorFactory initializes a PageExtractor for a provider. A returned
// error is treated as a ConfigError for that provider only.
type ExtractorFactory func(cfg ProviderConfig) (PageExtractor, error)

// Pipeline runs the providers over the pages and streams events
type Pipeline interface {
	Run(ctx context.Context, pages []PageTask, providers []ProviderConfig) <-chan StreamEvent
}
