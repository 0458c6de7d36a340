package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProviderKind selects the request shape used for a provider.
type ProviderKind string

const (
	ProviderOpenAI      ProviderKind = "openai"
	ProviderSiliconFlow ProviderKind = "siliconflow"
	ProviderOllama      ProviderKind = "ollama"
	ProviderAnthropic   ProviderKind = "anthropic"
)

// ParseProviderKind normalizes a provider tag as sent by the upload form
// ("OpenAI", "Ollama", ...). An empty tag defaults to openai.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "openai":
		return ProviderOpenAI, nil
	case "siliconflow":
		return ProviderSiliconFlow, nil
	case "ollama":
		return ProviderOllama, nil
	case "anthropic":
		return ProviderAnthropic, nil
	default:
		return "", ConfigError(fmt.Sprintf("unsupported provider kind %q", s), nil)
	}
}

// PageTask is one rasterized page. Index is 1-based.
type PageTask struct {
	Index     int
	Payload   []byte
	MediaType string // e.g. image/jpeg
}

// ProviderConfig identifies one extraction provider for the lifetime of a request.
type ProviderConfig struct {
	Name     string       `json:"name" yaml:"name"`
	APIKey   string       `json:"apiKey" yaml:"api_key"`
	Endpoint string       `json:"endpoint" yaml:"endpoint"`
	Model    string       `json:"model" yaml:"model"`
	Kind     ProviderKind `json:"provider" yaml:"provider"`
}

// DisplayName returns the configured name or a placeholder.
func (c ProviderConfig) DisplayName() string {
	if c.Name == "" {
		return "Unnamed API"
	}
	return c.Name
}

// ResultEvent is the outcome of one (producer, page) attempt. PageIndex 0 marks
// a producer that failed to initialize.
type ResultEvent struct {
	ProducerIndex int
	Provider      string
	PageIndex     int
	Content       string
	Success       bool
}

// EventType represents the type of stream event
type EventType string

const (
	EventInfo      EventType = "info"
	EventResult    EventType = "result"
	EventHeartbeat EventType = "heartbeat"
	EventError     EventType = "error"
	EventComplete  EventType = "complete"
)

// StreamInfo opens every stream.
type StreamInfo struct {
	StreamID       string
	TotalPages     int
	TotalProducers int
	Providers      []string
}

// StreamError reports a producer fault, or a global coordination fault when
// ProducerIndex is nil.
type StreamError struct {
	ProducerIndex *int
	Provider      string
	Message       string
}

// StreamSummary is attached to the complete event.
type StreamSummary struct {
	Succeeded int
	Failed    int
	Faulted   int
	Elapsed   time.Duration
}

// StreamEvent represents an event emitted to the consumer. Exactly one of the
// payload pointers is set, matching Type; heartbeats carry none.
type StreamEvent struct {
	Type      EventType
	Timestamp time.Time
	Info      *StreamInfo
	Result    *ResultEvent
	Error     *StreamError
	Summary   *StreamSummary
}

func NewInfoEvent(info StreamInfo) StreamEvent {
	return StreamEvent{Type: EventInfo, Timestamp: time.Now(), Info: &info}
}

func NewResultEvent(res ResultEvent) StreamEvent {
	return StreamEvent{Type: EventResult, Timestamp: time.Now(), Result: &res}
}

func NewHeartbeatEvent() StreamEvent {
	return StreamEvent{Type: EventHeartbeat, Timestamp: time.Now()}
}

// NewProducerErrorEvent scopes an error to a single producer.
func NewProducerErrorEvent(producerIndex int, provider, message string) StreamEvent {
	return StreamEvent{
		Type:      EventError,
		Timestamp: time.Now(),
		Error:     &StreamError{ProducerIndex: &producerIndex, Provider: provider, Message: message},
	}
}

// NewGlobalErrorEvent reports a fault of the stream itself.
func NewGlobalErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: EventError, Timestamp: time.Now(), Error: &StreamError{Message: message}}
}

func NewCompleteEvent(summary StreamSummary) StreamEvent {
	return StreamEvent{Type: EventComplete, Timestamp: time.Now(), Summary: &summary}
}
