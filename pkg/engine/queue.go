package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/teslashibe/go-reachy-face/pkg/expression"
)

// Request sources.
const (
	SourceAPI      = "api"
	SourceIdle     = "idle"
	SourceFallback = "fallback"
)

// Request is one queued expression.
type Request struct {
	ID     uuid.UUID
	Def    *expression.Definition
	Source string
}

// NewRequest wraps def with a fresh request id.
func NewRequest(def *expression.Definition, source string) Request {
	return Request{ID: uuid.New(), Def: def, Source: source}
}

// Queue is the FIFO of expressions waiting to be shown, plus a single
// pending force slot. Producers may call it from any goroutine; the
// controller is the only consumer.
type Queue struct {
	mu    sync.Mutex
	items []Request
	force *Request
	wake  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends r.
func (q *Queue) Push(r Request) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
	q.signal()
}

// PushIfEmpty appends r only if nothing is queued or forced. The check and
// the append are atomic with respect to other producers.
func (q *Queue) PushIfEmpty(r Request) bool {
	q.mu.Lock()
	if len(q.items) > 0 || q.force != nil {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, r)
	q.mu.Unlock()
	q.signal()
	return true
}

// Pop removes and returns the oldest request.
func (q *Queue) Pop() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Request{}, false
	}
	r := q.items[0]
	q.items[0] = Request{}
	q.items = q.items[1:]
	return r, true
}

// Force drops every pending request and stores r as the next expression to
// show, replacing any earlier force not yet applied. It returns the number
// of requests dropped.
func (q *Queue) Force(r Request) int {
	q.mu.Lock()
	dropped := len(q.items)
	if q.force != nil {
		dropped++
	}
	q.items = nil
	q.force = &r
	q.mu.Unlock()
	q.signal()
	return dropped
}

// TakeForce removes the pending forced request, if any.
func (q *Queue) TakeForce() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.force == nil {
		return Request{}, false
	}
	r := *q.force
	q.force = nil
	return r, true
}

// Drain removes and returns all queued requests. A pending force is kept.
func (q *Queue) Drain() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued requests, counting a pending force.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if q.force != nil {
		n++
	}
	return n
}

// Empty reports whether nothing is queued or forced.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Wake is signalled after every successful push or force.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
