package extract

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/spherical/pdf-ocr/internal/domain"
	"github.com/spherical/pdf-ocr/internal/observability"
)

// Producer runs a single provider over the pages, one page at a time.
type Producer struct {
	index       int
	config      domain.ProviderConfig
	factory     domain.ExtractorFactory
	pageTimeout time.Duration
	logger      *observability.Logger
}

// NewProducer creates the producer for providers[index]. A zero pageTimeout
// leaves page attempts bounded only by ctx.
func NewProducer(index int, cfg domain.ProviderConfig, factory domain.ExtractorFactory, pageTimeout time.Duration, logger *observability.Logger) *Producer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Producer{
		index:       index,
		config:      cfg,
		factory:     factory,
		pageTimeout: pageTimeout,
		logger:      logger.WithProvider(index, cfg.DisplayName()),
	}
}

// Index returns the producer index used to tag results.
func (p *Producer) Index() int {
	return p.index
}

// Results returns the lazy result sequence. Page i+1 is requested only after
// page i's attempt has finished. An initialization failure yields a single
// result with PageIndex 0 and ends the sequence.
func (p *Producer) Results(ctx context.Context, pages []domain.PageTask) iter.Seq[domain.ResultEvent] {
	return func(yield func(domain.ResultEvent) bool) {
		extractor, err := p.factory(p.config)
		if err != nil {
			p.logger.Error().Err(err).Msg("API initialization failed")
			yield(p.result(0, "API initialization failed: "+describe(err), false))
			return
		}

		for _, page := range pages {
			if ctx.Err() != nil {
				return
			}

			content, err := p.extractPage(ctx, extractor, page)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Warn().Err(err).Int("page", page.Index).Msg("Page extraction failed")
				if !yield(p.result(page.Index, "Processing failed: "+describe(err), false)) {
					return
				}
				continue
			}

			p.logger.Info().Int("page", page.Index).Int("chars", len(content)).Msg("Page extracted")
			if !yield(p.result(page.Index, content, true)) {
				return
			}
		}
	}
}

func (p *Producer) extractPage(ctx context.Context, extractor domain.PageExtractor, page domain.PageTask) (string, error) {
	if p.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.pageTimeout)
		defer cancel()
	}
	return extractor.ExtractPage(ctx, page)
}

func (p *Producer) result(page int, content string, success bool) domain.ResultEvent {
	return domain.ResultEvent{
		ProducerIndex: p.index,
		Provider:      p.config.DisplayName(),
		PageIndex:     page,
		Content:       content,
		Success:       success,
	}
}

// describe renders err without the domain type tag.
func describe(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if de.Err != nil {
			return de.Message + ": " + de.Err.Error()
		}
		return de.Message
	}
	return err.Error()
}
