// Package stream encodes stream events for push delivery to a consumer.
package stream

import (
	"encoding/json"
	"time"

	"github.com/spherical/pdf-ocr/internal/domain"
)

// WireEvent is the JSON record written for every event. Only the fields of
// the event's type are populated, and those are always present, empty or not.
type WireEvent struct {
	Type      domain.EventType `json:"type"`
	Timestamp string           `json:"timestamp"`

	// info
	StreamID       string   `json:"stream_id,omitempty"`
	TotalPages     *int     `json:"total_pages,omitempty"`
	TotalProducers *int     `json:"total_producers,omitempty"`
	Providers      []string `json:"providers,omitempty"`

	// result, error
	ProducerIndex *int    `json:"producer_index,omitempty"`
	Provider      string  `json:"provider,omitempty"`
	Page          *int    `json:"page,omitempty"`
	Content       *string `json:"content,omitempty"`
	Success       *bool   `json:"success,omitempty"`
	Message       *string `json:"message,omitempty"`

	// complete
	Succeeded *int   `json:"succeeded,omitempty"`
	Failed    *int   `json:"failed,omitempty"`
	Faulted   *int   `json:"faulted,omitempty"`
	ElapsedMs *int64 `json:"elapsed_ms,omitempty"`
}

// ToWire flattens ev into its wire record.
func ToWire(ev domain.StreamEvent) WireEvent {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	w := WireEvent{
		Type:      ev.Type,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	}

	switch {
	case ev.Info != nil:
		w.StreamID = ev.Info.StreamID
		w.TotalPages = ptr(ev.Info.TotalPages)
		w.TotalProducers = ptr(ev.Info.TotalProducers)
		w.Providers = ev.Info.Providers
		if w.Providers == nil {
			w.Providers = []string{}
		}
	case ev.Result != nil:
		w.ProducerIndex = ptr(ev.Result.ProducerIndex)
		w.Provider = ev.Result.Provider
		w.Page = ptr(ev.Result.PageIndex)
		w.Content = ptr(ev.Result.Content)
		w.Success = ptr(ev.Result.Success)
	case ev.Error != nil:
		w.ProducerIndex = ev.Error.ProducerIndex
		w.Provider = ev.Error.Provider
		w.Message = ptr(ev.Error.Message)
	case ev.Summary != nil:
		w.Succeeded = ptr(ev.Summary.Succeeded)
		w.Failed = ptr(ev.Summary.Failed)
		w.Faulted = ptr(ev.Summary.Faulted)
		w.ElapsedMs = ptr(ev.Summary.Elapsed.Milliseconds())
	}
	return w
}

// Encode returns the JSON form of ev.
func Encode(ev domain.StreamEvent) ([]byte, error) {
	data, err := json.Marshal(ToWire(ev))
	if err != nil {
		return nil, domain.IOError("failed to encode stream event", err)
	}
	return data, nil
}

func ptr[T any](v T) *T {
	return &v
}
