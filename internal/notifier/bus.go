package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/metrics"
)

// Handler receives a published event.
type Handler func(ctx context.Context, event Event)

// Unsubscribe removes the subscription it was returned for. It is safe to
// call more than once.
type Unsubscribe func()

// Publisher is what domain services depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Broadcaster forwards events to other processes.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event) error
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to in-process subscribers and, when configured, to a
// Broadcaster.
type Bus struct {
	mu          sync.RWMutex
	nextID      uint64
	byType      map[Type][]subscription
	all         []subscription
	broadcaster Broadcaster
	logg        *logger.Logger
	metrics     *metrics.SyncMetrics
}

// Option customises a Bus.
type Option func(*Bus)

// WithBroadcaster attaches a cross-process transport.
func WithBroadcaster(b Broadcaster) Option {
	return func(bus *Bus) {
		bus.broadcaster = b
	}
}

// WithMetrics records event and panic counters.
func WithMetrics(m *metrics.SyncMetrics) Option {
	return func(bus *Bus) {
		bus.metrics = m
	}
}

func NewBus(logg *logger.Logger, opts ...Option) *Bus {
	if logg == nil {
		logg = logger.Nop()
	}
	bus := &Bus{
		byType: make(map[Type][]subscription),
		logg:   logg,
	}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

// Subscribe registers handler for one event type.
func (b *Bus) Subscribe(t Type, handler Handler) Unsubscribe {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[t] = append(b.byType[t], subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.byType[t] = without(b.byType[t], id)
		})
	}
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) Unsubscribe {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.all = without(b.all, id)
		})
	}
}

// Publish delivers event to local subscribers synchronously, then hands it
// to the broadcaster. Failures are logged and never returned.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if !b.Deliver(ctx, event) {
		return
	}
	if b.broadcaster == nil {
		return
	}
	if err := b.broadcaster.Broadcast(ctx, event); err != nil {
		logCtx := b.logg.WithFields(ctx, map[string]any{"event_type": string(event.Type), "event_id": event.ID})
		b.logg.Warn(logCtx, fmt.Sprintf("notifier.broadcast.failed: %v", err))
	}
}

// Deliver runs local subscribers only. It reports false when the event was
// rejected as malformed.
func (b *Bus) Deliver(ctx context.Context, event Event) bool {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := event.Validate(); err != nil {
		b.logg.Warn(b.logg.WithField(ctx, "event_type", string(event.Type)), fmt.Sprintf("notifier.event.invalid: %v", err))
		return false
	}
	b.metrics.IncEvent(string(event.Type))

	for _, sub := range b.snapshot(event.Type) {
		b.invoke(ctx, sub, event)
	}
	return true
}

func (b *Bus) snapshot(t Type) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	subs := make([]subscription, 0, len(b.byType[t])+len(b.all))
	subs = append(subs, b.byType[t]...)
	subs = append(subs, b.all...)
	return subs
}

func (b *Bus) invoke(ctx context.Context, sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.metrics.IncHandlerPanic(string(event.Type))
			logCtx := b.logg.WithFields(ctx, map[string]any{
				"event_type":      string(event.Type),
				"event_id":        event.ID,
				"subscription_id": sub.id,
			})
			b.logg.Error(logCtx, "notifier.handler.panic", fmt.Errorf("%v", r))
		}
	}()
	sub.handler(ctx, event)
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, sub := range subs {
		if sub.id != id {
			out = append(out, sub)
		}
	}
	return out
}
