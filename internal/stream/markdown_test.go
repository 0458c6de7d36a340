package stream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-ocr/internal/domain"
)

func TestMarkdownCollector(t *testing.T) {
	c := NewMarkdownCollector()
	ctx := context.Background()

	events := []domain.StreamEvent{
		domain.NewInfoEvent(domain.StreamInfo{TotalPages: 2, TotalProducers: 2, Providers: []string{"qwen", "broken"}}),
		domain.NewResultEvent(domain.ResultEvent{ProducerIndex: 1, Provider: "broken", PageIndex: 0, Content: "API initialization failed: API key not provided"}),
		domain.NewResultEvent(domain.ResultEvent{ProducerIndex: 0, Provider: "qwen", PageIndex: 2, Content: "Processing failed: timeout"}),
		domain.NewResultEvent(domain.ResultEvent{ProducerIndex: 0, Provider: "qwen", PageIndex: 1, Content: "  $$E=mc^2$$ \n", Success: true}),
		domain.NewHeartbeatEvent(),
		domain.NewCompleteEvent(domain.StreamSummary{Succeeded: 1, Failed: 2}),
	}
	for _, ev := range events {
		require.NoError(t, c.Send(ctx, ev))
	}

	docs := c.Documents()
	require.Len(t, docs, 2)

	assert.Equal(t, "qwen", docs[0].Provider)
	assert.Equal(t, 1, docs[0].Failed)
	assert.Equal(t, "# Page 1\n\n$$E=mc^2$$\n\n# Page 2\n\nProcessing failed: timeout\n", docs[0].Markdown)

	assert.Equal(t, "broken", docs[1].Provider)
	assert.Equal(t, 1, docs[1].Failed)
	assert.Equal(t, "> API initialization failed: API key not provided\n", docs[1].Markdown)
}

func TestMarkdownCollector_Empty(t *testing.T) {
	assert.Empty(t, NewMarkdownCollector().Documents())
}
