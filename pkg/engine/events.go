package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-reachy-face/internal/log"
	"github.com/teslashibe/go-reachy-face/pkg/expression"
)

// EventKind identifies an engine event.
type EventKind int

const (
	// EventStarted fires when a new target begins blending in.
	EventStarted EventKind = iota + 1
	// EventCompleted fires when the displayed pose is about to be replaced.
	EventCompleted
	// EventIdleStarted fires when idle mode is switched on.
	EventIdleStarted
	// EventIdleEnded fires when idle mode is switched off.
	EventIdleEnded
)

var eventNames = map[EventKind]string{
	EventStarted:     "expression_started",
	EventCompleted:   "expression_completed",
	EventIdleStarted: "idle_started",
	EventIdleEnded:   "idle_ended",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *EventKind) UnmarshalText(b []byte) error {
	for kind, name := range eventNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", b)
}

// Event is one engine notification. Expression is nil for idle events.
type Event struct {
	Kind       EventKind        `json:"kind"`
	RequestID  uuid.UUID        `json:"request_id,omitzero"`
	Source     string           `json:"source,omitempty"`
	Expression *expression.Info `json:"expression,omitempty"`
	Time       time.Time        `json:"time"`
}

// Bus fans events out to subscribers. Delivery never blocks the engine: a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextID  int
	closed  bool
	metrics *Metrics
	log     *slog.Logger
}

// NewBus creates a bus. m may be nil.
func NewBus(m *Metrics) *Bus {
	return &Bus{
		subs:    make(map[int]chan Event),
		metrics: m,
		log:     log.Component("events"),
	}
}

// Subscribe returns a channel receiving future events and a function that
// unsubscribes and closes it.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, max(buffer, 1))

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers e to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.metrics.eventDropped()
			b.log.Warn("event dropped, subscriber full", "kind", e.Kind.String())
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription. Later Publish calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
