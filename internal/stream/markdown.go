package stream

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/spherical/pdf-ocr/internal/domain"
)

// MarkdownCollector is a Sink that assembles each provider's pages into one
// Markdown document with a `# Page N` section per page.
type MarkdownCollector struct {
	mu        sync.Mutex
	providers []string
	pages     map[int]map[int]domain.ResultEvent
}

func NewMarkdownCollector() *MarkdownCollector {
	return &MarkdownCollector{pages: make(map[int]map[int]domain.ResultEvent)}
}

func (m *MarkdownCollector) Send(ctx context.Context, ev domain.StreamEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case ev.Info != nil:
		m.providers = ev.Info.Providers
	case ev.Result != nil:
		byPage, ok := m.pages[ev.Result.ProducerIndex]
		if !ok {
			byPage = make(map[int]domain.ResultEvent)
			m.pages[ev.Result.ProducerIndex] = byPage
		}
		byPage[ev.Result.PageIndex] = *ev.Result
	}
	return nil
}

// Document is the combined output of one provider.
type Document struct {
	ProducerIndex int
	Provider      string
	Markdown      string
	Failed        int
}

// Documents returns one document per producer that reported any page, in
// producer order. Failed pages keep their section with the failure text so
// page numbering stays intact.
func (m *MarkdownCollector) Documents() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	producers := make([]int, 0, len(m.pages))
	for idx := range m.pages {
		producers = append(producers, idx)
	}
	sort.Ints(producers)

	docs := make([]Document, 0, len(producers))
	for _, idx := range producers {
		byPage := m.pages[idx]
		pageNums := make([]int, 0, len(byPage))
		for n := range byPage {
			pageNums = append(pageNums, n)
		}
		sort.Ints(pageNums)

		doc := Document{ProducerIndex: idx}
		if idx < len(m.providers) {
			doc.Provider = m.providers[idx]
		}

		var sb strings.Builder
		for _, n := range pageNums {
			res := byPage[n]
			if doc.Provider == "" {
				doc.Provider = res.Provider
			}
			if !res.Success {
				doc.Failed++
			}
			if n == 0 {
				// Initialization failure, no pages were attempted.
				fmt.Fprintf(&sb, "> %s\n\n", res.Content)
				continue
			}
			fmt.Fprintf(&sb, "# Page %d\n\n%s\n\n", n, strings.TrimSpace(res.Content))
		}
		doc.Markdown = strings.TrimRight(sb.String(), "\n") + "\n"
		docs = append(docs, doc)
	}
	return docs
}
