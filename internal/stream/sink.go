package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/spherical/pdf-ocr/internal/domain"
)

// Sink delivers events to a consumer, one at a time, flushing each before
// returning.
type Sink interface {
	Send(ctx context.Context, ev domain.StreamEvent) error
}

// SSEWriter writes Server-Sent Events to an HTTP response.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	once    sync.Once
}

// NewSSEWriter wraps w. It fails when w cannot flush, since buffered events
// would defeat heartbeats.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, domain.IOError("response writer does not support flushing", nil)
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// Send writes `event: <type>` and `data: <json>` followed by a blank line.
func (s *SSEWriter) Send(ctx context.Context, ev domain.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.once.Do(s.writeHeaders)

	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return domain.IOError("failed to write event", err)
	}
	s.flusher.Flush()
	return nil
}

func (s *SSEWriter) writeHeaders() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// NDJSONWriter writes one JSON object per line.
type NDJSONWriter struct {
	w *bufio.Writer
}

func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{w: bufio.NewWriter(w)}
}

func (n *NDJSONWriter) Send(ctx context.Context, ev domain.StreamEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := n.w.Write(data); err != nil {
		return domain.IOError("failed to write event", err)
	}
	if err := n.w.Flush(); err != nil {
		return domain.IOError("failed to flush event", err)
	}
	return nil
}

// Pump sends every event from events to sink until the channel closes. On a
// send failure it returns immediately; the caller is expected to cancel the
// context feeding events.
func Pump(ctx context.Context, events <-chan domain.StreamEvent, sink Sink) error {
	for ev := range events {
		if err := sink.Send(ctx, ev); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Forward pumps events into sink for a pipeline started with a context that
// cancel ends. A failed send cancels the pipeline. Forward returns only after
// events is closed, so no producer outlives it.
func Forward(ctx context.Context, cancel context.CancelFunc, events <-chan domain.StreamEvent, sink Sink) error {
	err := Pump(ctx, events, sink)
	if err != nil {
		cancel()
	}
	for range events {
	}
	return err
}

// Tee is a Sink that forwards each event to fn before sending it on.
type Tee struct {
	Sink
	fn func(domain.StreamEvent)
}

// NewTee observes events on their way to sink.
func NewTee(sink Sink, fn func(domain.StreamEvent)) *Tee {
	return &Tee{Sink: sink, fn: fn}
}

func (t *Tee) Send(ctx context.Context, ev domain.StreamEvent) error {
	t.fn(ev)
	return t.Sink.Send(ctx, ev)
}
