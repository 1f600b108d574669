package eventbus

import (
	"fmt"
	"runtime"
	"time"

	"sync"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	applogger "MarketPulse/pkg/logger"
)

const (
	historyCapacity     = 1000
	defaultHistoryLimit = 100
)

// Handler receives the full event envelope.
type Handler func(models.Event)

// Subscription identifies a registered handler so it can be removed.
// Go functions are not comparable, so removal is by token rather than by
// handler value.
type Subscription struct {
	id        int
	eventType models.EventType
	wildcard  bool
}

type subscriber struct {
	id int
	fn Handler
}

// Bus is an in-process publish/subscribe dispatcher with a bounded event
// history. Dispatch is synchronous: Publish invokes every handler registered
// for the event's type, then every wildcard handler, in registration order.
// Handlers must not block; long-running work belongs in a handler that
// republishes completion asynchronously. A panicking handler is isolated and
// does not prevent delivery to the remaining handlers.
type Bus struct {
	mu       sync.Mutex
	handlers map[models.EventType][]subscriber
	wildcard []subscriber
	history  []models.Event
	nextID   int

	logger  *applogger.Logger
	metrics repository.Metrics
}

// Option configures Bus.
type Option func(*Bus)

// WithLogger sets the logger used for handler panic reports.
func WithLogger(l *applogger.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// New creates an event bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[models.EventType][]subscriber),
		history:  make([]models.Event, 0, historyCapacity),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish appends the event to history and synchronously delivers it. Safe to
// call from inside a handler; the handler set is snapshotted under the lock
// and invoked outside it.
func (b *Bus) Publish(eventType models.EventType, payload interface{}) {
	ev := models.Event{Type: eventType, Payload: payload, Timestamp: time.Now()}

	b.mu.Lock()
	if len(b.history) >= historyCapacity {
		b.history = append(b.history[1:], ev)
	} else {
		b.history = append(b.history, ev)
	}
	specific := append([]subscriber(nil), b.handlers[eventType]...)
	wildcard := append([]subscriber(nil), b.wildcard...)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.RecordEventPublished(string(eventType))
	}

	for _, s := range specific {
		b.invoke(s, ev)
	}
	for _, s := range wildcard {
		b.invoke(s, ev)
	}
}

func (b *Bus) invoke(s subscriber, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.RecordError("bus_handler_panic")
			}
			if b.logger != nil {
				b.logger.Error("event handler panic",
					applogger.String("event_type", string(ev.Type)),
					applogger.Error(fmt.Errorf("%v", r)),
				)
			}
		}
	}()
	s.fn(ev)
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType models.EventType, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: b.nextID, fn: fn})
	return Subscription{id: b.nextID, eventType: eventType}
}

// SubscribeToAll registers a handler that receives every published event.
// Wildcard handlers fire after the type-specific handlers of each publish.
func (b *Bus) SubscribeToAll(fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.wildcard = append(b.wildcard, subscriber{id: b.nextID, fn: fn})
	return Subscription{id: b.nextID, wildcard: true}
}

// Unsubscribe removes a registration. Removing an unknown or already-removed
// subscription is a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.wildcard {
		b.wildcard = removeByID(b.wildcard, sub.id)
		return
	}
	b.handlers[sub.eventType] = removeByID(b.handlers[sub.eventType], sub.id)
}

func removeByID(subs []subscriber, id int) []subscriber {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}

// History returns the most recent limit entries in publish order, most recent
// last, optionally filtered to one event type (empty means all). limit <= 0
// applies the default of 100.
func (b *Bus) History(eventType models.EventType, limit int) []models.Event {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var filtered []models.Event
	if eventType == "" {
		filtered = b.history
	} else {
		for _, ev := range b.history {
			if ev.Type == eventType {
				filtered = append(filtered, ev)
			}
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	out := make([]models.Event, len(filtered))
	copy(out, filtered)
	return out
}

// Stats is the diagnostic view of the bus.
type Stats struct {
	TotalEvents       int                      `json:"totalEvents"`
	EventCounts       map[models.EventType]int `json:"eventCounts"`
	WildcardListeners int                      `json:"wildcardListeners"`
	MemoryUsageBytes  uint64                   `json:"memoryUsageBytes"`
}

// Stats reports retained-history totals, per-type counts over the retained
// history, wildcard listener count, and current process heap usage.
func (b *Bus) Stats() Stats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	b.mu.Lock()
	defer b.mu.Unlock()

	counts := make(map[models.EventType]int, len(b.handlers))
	for _, ev := range b.history {
		counts[ev.Type]++
	}
	return Stats{
		TotalEvents:       len(b.history),
		EventCounts:       counts,
		WildcardListeners: len(b.wildcard),
		MemoryUsageBytes:  ms.HeapAlloc,
	}
}

// ClearHistory empties the history ring. Live subscriptions are unaffected.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = b.history[:0]
}

var _ repository.EventPublisher = (*Bus)(nil)
