package extract

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/pdf-ocr/internal/domain"
	"github.com/spherical/pdf-ocr/internal/observability"
)

// Options tune a Multiplexer.
type Options struct {
	HeartbeatInterval time.Duration
	FanInCapacity     int
	EventBuffer       int
	PageTimeout       time.Duration
}

// DefaultOptions returns the stream defaults.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: time.Second,
		FanInCapacity:     32,
		EventBuffer:       16,
		PageTimeout:       2 * time.Minute,
	}
}

// Multiplexer runs one Producer per provider and merges their results into a
// single event stream.
type Multiplexer struct {
	factory domain.ExtractorFactory
	opts    Options
	logger  *observability.Logger
}

// fanInMsg is what producers send to the coordinator. Every producer sends
// exactly one terminal message: done, or fault when it panicked.
type fanInMsg struct {
	producer int
	result   *domain.ResultEvent
	fault    error
}

func (m fanInMsg) terminal() bool {
	return m.result == nil
}

// NewMultiplexer creates a multiplexer building extractors with factory.
func NewMultiplexer(factory domain.ExtractorFactory, opts Options, logger *observability.Logger) *Multiplexer {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = time.Second
	}
	if opts.FanInCapacity < 1 {
		opts.FanInCapacity = 1
	}
	if opts.EventBuffer < 0 {
		opts.EventBuffer = 0
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Multiplexer{
		factory: factory,
		opts:    opts,
		logger:  logger.WithComponent("multiplexer"),
	}
}

// Run starts the stream and returns its events. The channel is closed after
// the complete event, or without one when ctx is cancelled first.
func (m *Multiplexer) Run(ctx context.Context, pages []domain.PageTask, providers []domain.ProviderConfig) <-chan domain.StreamEvent {
	out := make(chan domain.StreamEvent, m.opts.EventBuffer)
	go m.coordinate(ctx, pages, providers, out)
	return out
}

func (m *Multiplexer) coordinate(parent context.Context, pages []domain.PageTask, providers []domain.ProviderConfig, out chan<- domain.StreamEvent) {
	ctx, cancel := context.WithCancel(parent)
	defer close(out)
	defer cancel()

	start := time.Now()
	streamID := uuid.NewString()
	logger := m.logger.WithStream(streamID)

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.DisplayName()
	}

	info := domain.NewInfoEvent(domain.StreamInfo{
		StreamID:       streamID,
		TotalPages:     len(pages),
		TotalProducers: len(providers),
		Providers:      names,
	})
	if !m.emit(ctx, out, info) {
		return
	}

	logger.Info().Int("pages", len(pages)).Strs("providers", names).Msg("Stream started")

	fanIn := make(chan fanInMsg, m.opts.FanInCapacity)
	// Producers report their faults as data and never return an error, so
	// the group context ends only with the stream.
	g, producerCtx := errgroup.WithContext(ctx)
	for i, cfg := range providers {
		producer := NewProducer(i, cfg, m.factory, m.opts.PageTimeout, logger)
		g.Go(func() error {
			m.runProducer(producerCtx, producer, pages, fanIn)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(fanIn)
	}()
	defer func() {
		cancel()
		for range fanIn {
		}
	}()

	var summary domain.StreamSummary
	err := m.relay(ctx, fanIn, out, names, &summary)
	if ctx.Err() != nil {
		logger.Info().Dur("elapsed", time.Since(start)).Msg("Stream cancelled")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Stream coordination failed")
		if !m.emit(ctx, out, domain.NewGlobalErrorEvent(err.Error())) {
			return
		}
	}

	summary.Elapsed = time.Since(start)
	m.emit(ctx, out, domain.NewCompleteEvent(summary))

	logger.Info().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("faulted", summary.Faulted).
		Dur("elapsed", summary.Elapsed).
		Msg("Stream complete")
}

// relay forwards fan-in messages until every producer has sent its terminal
// message, emitting a heartbeat whenever nothing has been delivered for the
// heartbeat interval. The idle timer restarts only once an event has reached
// the consumer, so time spent blocked on a slow consumer is not idle time.
// Terminal messages travel on the same channel as results, so no heartbeat can
// follow the last one.
func (m *Multiplexer) relay(ctx context.Context, fanIn <-chan fanInMsg, out chan<- domain.StreamEvent, names []string, summary *domain.StreamSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.CoordinationError(fmt.Sprintf("stream coordinator panicked: %v", r), nil)
		}
	}()

	remaining := len(names)
	idle := time.NewTimer(m.opts.HeartbeatInterval)
	defer idle.Stop()

	for remaining > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-fanIn:
			if !ok {
				return domain.CoordinationError(
					fmt.Sprintf("fan-in closed with %d producers outstanding", remaining), nil)
			}

			if msg.terminal() {
				remaining--
				if msg.fault == nil {
					continue
				}
				summary.Faulted++
				ev := domain.NewProducerErrorEvent(msg.producer, names[msg.producer], msg.fault.Error())
				if !m.emit(ctx, out, ev) {
					return ctx.Err()
				}
				idle.Reset(m.opts.HeartbeatInterval)
				continue
			}

			if msg.result.Success {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			if !m.emit(ctx, out, domain.NewResultEvent(*msg.result)) {
				return ctx.Err()
			}
			idle.Reset(m.opts.HeartbeatInterval)

		case <-idle.C:
			if !m.emit(ctx, out, domain.NewHeartbeatEvent()) {
				return ctx.Err()
			}
			idle.Reset(m.opts.HeartbeatInterval)
		}
	}

	return nil
}

// runProducer drains one producer into the fan-in channel. Sends block while
// the channel is full, which is what paces producers to the consumer.
func (m *Multiplexer) runProducer(ctx context.Context, p *Producer, pages []domain.PageTask, fanIn chan<- fanInMsg) {
	terminal := fanInMsg{producer: p.Index()}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Int("producer", p.Index()).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("Producer panicked")
			terminal.fault = fmt.Errorf("producer panicked: %v", r)
		}
		select {
		case fanIn <- terminal:
		case <-ctx.Done():
		}
	}()

	for res := range p.Results(ctx, pages) {
		select {
		case fanIn <- fanInMsg{producer: p.Index(), result: &res}:
		case <-ctx.Done():
			return
		}
	}
}

// emit delivers ev unless ctx is cancelled first.
func (m *Multiplexer) emit(ctx context.Context, out chan<- domain.StreamEvent, ev domain.StreamEvent) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
