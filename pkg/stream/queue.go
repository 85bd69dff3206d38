package stream

import (
	"context"
	"sync"

	"github.com/fika-labs/agentrelay/internal/observability"
)

// Event names pushed by a session coordinator.
const (
	EventMessage        = "message"
	EventAssistantChunk = "assistant_chunk"
	EventHTTPExchange   = "http_exchange"
)

// Event is a typed notification for a session's live consumer
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Queue is an unbounded, ordered, single-consumer event queue.
// Push never blocks; Next blocks until an event is available.
type Queue struct {
	sessionID string

	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

// NewQueue creates an event queue for one session
func NewQueue(sessionID string) *Queue {
	observability.EnsureRegistered()

	return &Queue{
		sessionID: sessionID,
		notify:    make(chan struct{}, 1),
	}
}

// SessionID returns the owning session identifier
func (q *Queue) SessionID() string {
	return q.sessionID
}

// Push appends an event. It never fails and never blocks the producer;
// the queue grows without bound if no consumer drains it.
func (q *Queue) Push(ev Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	depth := len(q.events)
	q.mu.Unlock()

	observability.RecordEventPush(ev.Name)
	observability.SetEventQueueDepth(q.sessionID, depth)

	// Coalesced wakeup; the consumer drains everything queued before
	// blocking again, so a full notify channel loses no events.
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Next blocks until an event is available or ctx is done. Events are
// returned strictly in push order. There is no end-of-stream: the
// consumer loops until its context is cancelled.
func (q *Queue) Next(ctx context.Context) (Event, error) {
	for {
		q.mu.Lock()
		if len(q.events) > 0 {
			ev := q.events[0]
			q.events = q.events[1:]
			depth := len(q.events)
			q.mu.Unlock()

			observability.SetEventQueueDepth(q.sessionID, depth)
			return ev, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-q.notify:
		}
	}
}

// Len returns the number of undelivered events
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}
