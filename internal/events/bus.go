// Package events dispatches decision events to configured sinks.
//
// Delivery is best effort: every sink has its own bounded queue drained by
// one worker. Publish never blocks; when a queue is full the event is
// dropped for that sink and counted.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/idhash"
	"solana-trade-sentinel/internal/observability"
)

// Sink receives published events.
type Sink interface {
	Name() string
	Write(ctx context.Context, e *domain.DecisionEvent) error
	Close() error
}

// Publisher is what decision producers depend on.
type Publisher interface {
	Publish(e domain.DecisionEvent)
}

// BusConfig tunes the bus.
type BusConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func (c BusConfig) withDefaults() BusConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

type worker struct {
	sink    Sink
	queue   chan *domain.DecisionEvent
	dropped atomic.Uint64
	written atomic.Uint64
}

// Bus fans events out to sinks and in-process subscribers.
type Bus struct {
	cfg    BusConfig
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	workers []*worker
	subs    map[int]chan domain.DecisionEvent
	nextSub int
	closed  bool

	wg sync.WaitGroup
}

var _ Publisher = (*Bus)(nil)

// NewBus creates a bus and starts one worker per sink.
func NewBus(cfg BusConfig, logger zerolog.Logger, sinks ...Sink) *Bus {
	b := &Bus{
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "event-bus").Logger(),
		now:    time.Now,
		subs:   make(map[int]chan domain.DecisionEvent),
	}
	for _, s := range sinks {
		b.addSink(s)
	}
	return b
}

func (b *Bus) addSink(s Sink) {
	w := &worker{sink: s, queue: make(chan *domain.DecisionEvent, b.cfg.QueueSize)}
	b.workers = append(b.workers, w)
	b.wg.Add(1)
	go b.run(w)
}

func (b *Bus) run(w *worker) {
	defer b.wg.Done()
	name := w.sink.Name()
	for e := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), b.cfg.WriteTimeout)
		err := w.sink.Write(ctx, e)
		cancel()
		if err != nil {
			observability.RecordSinkError(name)
			b.logger.Warn().Err(err).
				Str("sink", name).
				Str("type", string(e.Type)).
				Str("token", e.TokenID).
				Msg("sink write failed")
			continue
		}
		w.written.Add(1)
		observability.RecordEventPublished(name, string(e.Type))
	}
}

// Publish assigns an id and timestamp when missing and enqueues the event on
// every sink. It never blocks.
func (b *Bus) Publish(e domain.DecisionEvent) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = b.now()
	}
	if e.ID == "" {
		e.ID = eventID(&e)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, w := range b.workers {
		select {
		case w.queue <- e.Clone():
		default:
			w.dropped.Add(1)
			observability.RecordEventDropped(w.sink.Name())
		}
	}
	for _, ch := range b.subs {
		select {
		case ch <- *e.Clone():
		default:
		}
	}
}

// eventID is deterministic for events that belong to a sweep and random
// otherwise. It does not depend on the publish time.
func eventID(e *domain.DecisionEvent) string {
	if e.CorrelationID == "" {
		return uuid.NewString()
	}
	var discriminator string
	if s, ok := e.Payload["strategy"].(string); ok {
		discriminator = s
	}
	return idhash.ComputeEventID(e.Type, e.TokenID, e.CorrelationID, e.Seq, discriminator)
}

// Subscribe returns a channel receiving every event published after the call.
// Slow subscribers miss events. The returned func unsubscribes.
func (b *Bus) Subscribe(buffer int) (<-chan domain.DecisionEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan domain.DecisionEvent, buffer)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	if b.closed {
		close(ch)
	} else {
		b.subs[id] = ch
	}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
			b.mu.Unlock()
		})
	}
}

// SinkStats reports per-sink counters.
type SinkStats struct {
	Name    string `json:"name"`
	Queued  int    `json:"queued"`
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
}

// Stats returns counters for every sink in registration order.
func (b *Bus) Stats() []SinkStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]SinkStats, len(b.workers))
	for i, w := range b.workers {
		out[i] = SinkStats{
			Name:    w.sink.Name(),
			Queued:  len(w.queue),
			Written: w.written.Load(),
			Dropped: w.dropped.Load(),
		}
	}
	return out
}

// Close stops accepting events, drains queued events and closes every sink.
// ctx bounds the drain.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, w := range b.workers {
		close(w.queue)
	}
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	var drainErr error
	select {
	case <-done:
	case <-ctx.Done():
		drainErr = ctx.Err()
		b.logger.Warn().Msg("event drain interrupted, closing sinks")
	}

	var firstErr error
	for _, w := range b.workers {
		if err := w.sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if drainErr != nil {
		return drainErr
	}
	return firstErr
}
