package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-ocr/internal/domain"
)

func sampleEvents() []domain.StreamEvent {
	return []domain.StreamEvent{
		domain.NewInfoEvent(domain.StreamInfo{StreamID: "s-1", TotalPages: 2, TotalProducers: 1, Providers: []string{"qwen"}}),
		domain.NewResultEvent(domain.ResultEvent{ProducerIndex: 0, Provider: "qwen", PageIndex: 1, Content: "# Title", Success: true}),
		domain.NewHeartbeatEvent(),
		domain.NewResultEvent(domain.ResultEvent{ProducerIndex: 0, Provider: "qwen", PageIndex: 2, Content: "Processing failed: timeout", Success: false}),
		domain.NewCompleteEvent(domain.StreamSummary{Succeeded: 1, Failed: 1, Elapsed: 1500 * time.Millisecond}),
	}
}

func decode(t *testing.T, data string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &m))
	return m
}

func TestToWire_Fields(t *testing.T) {
	tests := []struct {
		name    string
		event   domain.StreamEvent
		want    map[string]any
		missing []string
	}{
		{
			name:  "info",
			event: sampleEvents()[0],
			want: map[string]any{
				"type": "info", "stream_id": "s-1", "total_pages": 2.0, "total_producers": 1.0,
				"providers": []any{"qwen"},
			},
			missing: []string{"page", "success", "message"},
		},
		{
			name:    "init failure keeps page zero and success false",
			event:   domain.NewResultEvent(domain.ResultEvent{ProducerIndex: 0, Provider: "bad", Content: "API initialization failed: API key not provided"}),
			want:    map[string]any{"type": "result", "producer_index": 0.0, "page": 0.0, "success": false},
			missing: []string{"stream_id", "succeeded"},
		},
		{
			name:    "empty content is still written",
			event:   domain.NewResultEvent(domain.ResultEvent{ProducerIndex: 1, Provider: "qwen", PageIndex: 4, Success: true}),
			want:    map[string]any{"type": "result", "page": 4.0, "content": "", "success": true},
			missing: []string{"message"},
		},
		{
			name:    "empty error message is still written",
			event:   domain.NewGlobalErrorEvent(""),
			want:    map[string]any{"type": "error", "message": ""},
			missing: []string{"content", "page"},
		},
		{
			name:    "heartbeat",
			event:   domain.NewHeartbeatEvent(),
			want:    map[string]any{"type": "heartbeat"},
			missing: []string{"page", "producer_index", "content", "message"},
		},
		{
			name:  "producer error",
			event: domain.NewProducerErrorEvent(2, "ollama", "producer panicked: boom"),
			want:  map[string]any{"type": "error", "producer_index": 2.0, "provider": "ollama", "message": "producer panicked: boom"},
		},
		{
			name:    "global error",
			event:   domain.NewGlobalErrorEvent("fan-in closed"),
			want:    map[string]any{"type": "error", "message": "fan-in closed"},
			missing: []string{"producer_index"},
		},
		{
			name:  "complete",
			event: sampleEvents()[4],
			want:  map[string]any{"type": "complete", "succeeded": 1.0, "failed": 1.0, "faulted": 0.0, "elapsed_ms": 1500.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.event)
			require.NoError(t, err)
			got := decode(t, string(data))

			assert.NotEmpty(t, got["timestamp"])
			for k, v := range tt.want {
				require.Contains(t, got, k)
				assert.Equal(t, v, got[k], "field %s", k)
			}
			for _, k := range tt.missing {
				assert.NotContains(t, got, k)
			}
		})
	}
}

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSEWriter(rec)
	require.NoError(t, err)

	for _, ev := range sampleEvents() {
		require.NoError(t, sink.Send(context.Background(), ev))
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.True(t, rec.Flushed)

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 5)

	wantTypes := []string{"info", "result", "heartbeat", "result", "complete"}
	for i, frame := range frames {
		lines := strings.Split(frame, "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "event: "+wantTypes[i], lines[0])
		require.True(t, strings.HasPrefix(lines[1], "data: "))
		assert.Equal(t, wantTypes[i], decode(t, strings.TrimPrefix(lines[1], "data: "))["type"])
	}
}

func TestSSEWriter_CancelledContext(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSEWriter(rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = sink.Send(ctx, domain.NewHeartbeatEvent())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.Body.String())
}

func TestNDJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	sink := NewNDJSONWriter(&buf)

	for _, ev := range sampleEvents() {
		require.NoError(t, sink.Send(context.Background(), ev))
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "info", decode(t, lines[0])["type"])
	assert.Equal(t, "# Title", decode(t, lines[1])["content"])
	assert.Equal(t, "complete", decode(t, lines[4])["type"])
}

type failingWriter struct{ after int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.after == 0 {
		return 0, errors.New("broken pipe")
	}
	f.after--
	return len(p), nil
}

func TestPump(t *testing.T) {
	t.Run("delivers until close", func(t *testing.T) {
		events := make(chan domain.StreamEvent, 5)
		for _, ev := range sampleEvents() {
			events <- ev
		}
		close(events)

		var buf bytes.Buffer
		require.NoError(t, Pump(context.Background(), events, NewNDJSONWriter(&buf)))
		assert.Equal(t, 5, strings.Count(buf.String(), "\n"))
	})

	t.Run("stops on write failure", func(t *testing.T) {
		events := make(chan domain.StreamEvent, 5)
		for _, ev := range sampleEvents() {
			events <- ev
		}
		close(events)

		err := Pump(context.Background(), events, NewNDJSONWriter(&failingWriter{after: 1}))
		require.Error(t, err)
		assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
		assert.Len(t, events, 3, "pump must stop reading after the failed send")
	})

	t.Run("tee observes every event", func(t *testing.T) {
		events := make(chan domain.StreamEvent, 5)
		for _, ev := range sampleEvents() {
			events <- ev
		}
		close(events)

		var seen []domain.EventType
		tee := NewTee(NewNDJSONWriter(&bytes.Buffer{}), func(ev domain.StreamEvent) {
			seen = append(seen, ev.Type)
		})
		require.NoError(t, Pump(context.Background(), events, tee))
		assert.Equal(t, []domain.EventType{
			domain.EventInfo, domain.EventResult, domain.EventHeartbeat, domain.EventResult, domain.EventComplete,
		}, seen)
	})
}

func TestForward_CancelsPipelineOnSendFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan domain.StreamEvent)
	var sent atomic.Int32
	go func() {
		defer close(events)
		for {
			select {
			case events <- domain.NewHeartbeatEvent():
				sent.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}()

	err := Forward(ctx, cancel, events, NewNDJSONWriter(&failingWriter{after: 2}))

	require.Error(t, err)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	_, open := <-events
	assert.False(t, open, "events must be drained before Forward returns")
	assert.GreaterOrEqual(t, sent.Load(), int32(3))
}

func TestForward_CompletesWithoutCancelling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan domain.StreamEvent, 5)
	for _, ev := range sampleEvents() {
		events <- ev
	}
	close(events)

	var buf bytes.Buffer
	require.NoError(t, Forward(ctx, cancel, events, NewNDJSONWriter(&buf)))
	assert.NoError(t, ctx.Err())
	assert.Equal(t, 5, strings.Count(buf.String(), "\n"))
}
