// Package events fans execution events out to subscribers on a small pool
// of goroutine workers, so publishers never wait on slow consumers.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/atlas-desktop/papertrade-engine/internal/orchestrator"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler processes one event
type Handler func(event orchestrator.Event) error

// Config configures the bus
type Config struct {
	NumWorkers int `mapstructure:"num_workers"`
	BufferSize int `mapstructure:"buffer_size"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		NumWorkers: 4,
		BufferSize: 1024,
	}
}

// Subscription is an active registration on the bus
type Subscription struct {
	ID        string
	EventType orchestrator.EventType // empty for all events
	handler   Handler
	active    atomic.Bool
}

// IsActive returns whether the subscription still receives events
func (s *Subscription) IsActive() bool {
	return s.active.Load()
}

// Stats are cumulative bus counters
type Stats struct {
	EventsPublished   int64 `json:"eventsPublished"`
	EventsProcessed   int64 `json:"eventsProcessed"`
	EventsDropped     int64 `json:"eventsDropped"`
	HandlerErrors     int64 `json:"handlerErrors"`
	ActiveSubscribers int64 `json:"activeSubscribers"`
}

// Bus routes orchestrator events to subscribers. It implements
// orchestrator.Notifier; Notify drops the event when the buffer is full.
type Bus struct {
	logger *zap.Logger

	mu     sync.RWMutex
	byType map[orchestrator.EventType][]*Subscription
	all    []*Subscription

	queue chan orchestrator.Event

	published   atomic.Int64
	processed   atomic.Int64
	dropped     atomic.Int64
	errors      atomic.Int64
	subscribers atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

var _ orchestrator.Notifier = (*Bus)(nil)

// NewBus creates a bus and starts its workers
func NewBus(logger *zap.Logger, config Config) *Bus {
	def := DefaultConfig()
	if config.NumWorkers <= 0 {
		config.NumWorkers = def.NumWorkers
	}
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		logger: logger.Named("events"),
		byType: make(map[orchestrator.EventType][]*Subscription),
		queue:  make(chan orchestrator.Event, config.BufferSize),
		cancel: cancel,
	}
	for i := 0; i < config.NumWorkers; i++ {
		b.wg.Add(1)
		go b.worker(ctx)
	}

	b.logger.Info("event bus started",
		zap.Int("workers", config.NumWorkers),
		zap.Int("bufferSize", config.BufferSize),
	)
	return b
}

// Subscribe registers a handler for one event type
func (b *Bus) Subscribe(eventType orchestrator.EventType, handler Handler) *Subscription {
	sub := b.newSubscription(eventType, handler)
	b.mu.Lock()
	b.byType[eventType] = append(b.byType[eventType], sub)
	b.mu.Unlock()
	return sub
}

// SubscribeAll registers a handler for every event
func (b *Bus) SubscribeAll(handler Handler) *Subscription {
	sub := b.newSubscription("", handler)
	b.mu.Lock()
	b.all = append(b.all, sub)
	b.mu.Unlock()
	return sub
}

// Forward subscribes another notifier to every event
func (b *Bus) Forward(n orchestrator.Notifier) *Subscription {
	return b.SubscribeAll(func(e orchestrator.Event) error {
		n.Notify(e)
		return nil
	})
}

func (b *Bus) newSubscription(eventType orchestrator.EventType, handler Handler) *Subscription {
	sub := &Subscription{
		ID:        uuid.NewString(),
		EventType: eventType,
		handler:   handler,
	}
	sub.active.Store(true)
	b.subscribers.Add(1)
	b.logger.Debug("subscription added",
		zap.String("id", sub.ID),
		zap.String("eventType", string(eventType)),
	)
	return sub
}

// Unsubscribe deactivates a subscription
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil || !sub.active.CompareAndSwap(true, false) {
		return
	}
	b.subscribers.Add(-1)

	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.EventType == "" {
		b.all = remove(b.all, sub)
		return
	}
	b.byType[sub.EventType] = remove(b.byType[sub.EventType], sub)
}

func remove(subs []*Subscription, target *Subscription) []*Subscription {
	out := subs[:0]
	for _, s := range subs {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// Notify enqueues an event without blocking
func (b *Bus) Notify(event orchestrator.Event) {
	if b.closed.Load() {
		b.dropped.Add(1)
		return
	}
	select {
	case b.queue <- event:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		b.logger.Warn("event dropped, buffer full",
			zap.String("type", string(event.Type)),
			zap.String("channel", event.Channel),
		)
	}
}

func (b *Bus) worker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.queue:
			b.dispatch(event)
		}
	}
}

func (b *Bus) dispatch(event orchestrator.Event) {
	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.byType[event.Type])+len(b.all))
	subs = append(subs, b.byType[event.Type]...)
	subs = append(subs, b.all...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			b.execute(sub, event)
		}
	}
	b.processed.Add(1)
}

// execute runs a handler with panic recovery
func (b *Bus) execute(sub *Subscription, event orchestrator.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.errors.Add(1)
			b.logger.Error("event handler panic",
				zap.String("subscription", sub.ID),
				zap.String("type", string(event.Type)),
				zap.Any("panic", r),
			)
		}
	}()

	if err := sub.handler(event); err != nil {
		b.errors.Add(1)
		b.logger.Warn("event handler error",
			zap.String("subscription", sub.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

// Stats returns a snapshot of the bus counters
func (b *Bus) Stats() Stats {
	return Stats{
		EventsPublished:   b.published.Load(),
		EventsProcessed:   b.processed.Load(),
		EventsDropped:     b.dropped.Load(),
		HandlerErrors:     b.errors.Load(),
		ActiveSubscribers: b.subscribers.Load(),
	}
}

// Close drains queued events and stops the workers
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	for len(b.queue) > 0 {
		select {
		case event := <-b.queue:
			b.dispatch(event)
		default:
		}
	}
	b.cancel()
	b.wg.Wait()
	b.logger.Info("event bus stopped", zap.Int64("processed", b.processed.Load()))
}

// AuditLogger returns a handler that records every event at info level
func AuditLogger(logger *zap.Logger) Handler {
	logger = logger.Named("audit")
	return func(e orchestrator.Event) error {
		logger.Info("execution event",
			zap.String("type", string(e.Type)),
			zap.String("channel", e.Channel),
			zap.String("symbol", e.Symbol),
		)
		return nil
	}
}
