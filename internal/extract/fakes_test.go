package extract

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-ocr/internal/domain"
)

// fakeExtractor stands in for a provider client.
type fakeExtractor struct {
	delay   time.Duration
	fail    map[int]bool
	panicOn int
	block   bool

	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (f *fakeExtractor) ExtractPage(ctx context.Context, page domain.PageTask) (string, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		max := f.maxInflight.Load()
		if n <= max || f.maxInflight.CompareAndSwap(max, n) {
			break
		}
	}

	if f.panicOn == page.Index {
		panic(fmt.Sprintf("decoder exploded on page %d", page.Index))
	}

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if f.fail[page.Index] {
		return "", domain.PageError("connection reset", nil)
	}
	return fmt.Sprintf("content of page %d", page.Index), nil
}

// fakeFactory hands out extractors by provider name and rejects missing keys.
func fakeFactory(extractors map[string]*fakeExtractor) domain.ExtractorFactory {
	return func(cfg domain.ProviderConfig) (domain.PageExtractor, error) {
		if cfg.APIKey == "" {
			return nil, domain.ConfigError("API key not provided", nil)
		}
		ex, ok := extractors[cfg.Name]
		if !ok {
			return nil, domain.ConfigError("unknown provider "+cfg.Name, nil)
		}
		return ex, nil
	}
}

func makePages(n int) []domain.PageTask {
	pages := make([]domain.PageTask, n)
	for i := range pages {
		pages[i] = domain.PageTask{Index: i + 1, Payload: []byte{byte(i)}, MediaType: "image/jpeg"}
	}
	return pages
}

func provider(name string) domain.ProviderConfig {
	return domain.ProviderConfig{Name: name, APIKey: "sk-" + name, Model: "vision", Kind: domain.ProviderOpenAI}
}

// collect reads the stream until it closes.
func collect(t *testing.T, events <-chan domain.StreamEvent) []domain.StreamEvent {
	t.Helper()
	var all []domain.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return all
			}
			all = append(all, ev)
		case <-timeout:
			require.FailNow(t, "stream did not close", "received %d events", len(all))
		}
	}
}

func resultsByProducer(events []domain.StreamEvent) map[int][]domain.ResultEvent {
	out := make(map[int][]domain.ResultEvent)
	for _, ev := range events {
		if ev.Type == domain.EventResult {
			out[ev.Result.ProducerIndex] = append(out[ev.Result.ProducerIndex], *ev.Result)
		}
	}
	return out
}

func countType(events []domain.StreamEvent, typ domain.EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}
