// Package events records the domain events the engine emits on every
// mutating operation: mints, transfers, burns, order and pool activity, and
// the DAO proposal lifecycle. Events are held in a bounded ring buffer for
// off-process observers polling over the API, with optional in-process
// subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one structured domain event. Fields carry the operation's inputs
// and outputs; the engine guarantees an event is only emitted after the
// operation's writes succeeded.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Handler processes events as they are emitted.
type Handler func(Event)

type handlerEntry struct {
	id      int64
	handler Handler
}

// Recorder is a thread-safe circular event buffer. A nil Recorder discards
// events, so services can emit unconditionally.
type Recorder struct {
	mu       sync.RWMutex
	events   []Event
	size     int
	head     int
	count    int
	handlers []handlerEntry
	nextID   int64
}

// NewRecorder creates a recorder retaining the most recent size events.
func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = 1000
	}
	return &Recorder{
		events: make([]Event, size),
		size:   size,
	}
}

// Emit records an event and notifies subscribers. Safe on a nil receiver.
func (r *Recorder) Emit(eventType string, fields map[string]any) {
	if r == nil {
		return
	}

	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Fields:    fields,
	}

	r.mu.Lock()
	r.events[r.head] = event
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
	handlers := make([]handlerEntry, len(r.handlers))
	copy(handlers, r.handlers)
	r.mu.Unlock()

	// Notify handlers outside the lock.
	for _, h := range handlers {
		h.handler(event)
	}
}

// Subscribe registers a handler for every future event and returns an
// unsubscribe function.
func (r *Recorder) Subscribe(handler Handler) func() {
	if r == nil {
		return func() {}
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.handlers = append(r.handlers, handlerEntry{id: id, handler: handler})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, h := range r.handlers {
			if h.id == id {
				r.handlers = append(r.handlers[:i], r.handlers[i+1:]...)
				return
			}
		}
	}
}

// Recent returns up to n events, newest first.
func (r *Recorder) Recent(n int) []Event {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || r.count == 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}

	result := make([]Event, n)
	for i := 0; i < n; i++ {
		idx := (r.head - 1 - i + r.size) % r.size
		result[i] = r.events[idx]
	}
	return result
}

// RecentByType returns up to n events of one type, newest first.
func (r *Recorder) RecentByType(eventType string, n int) []Event {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || r.count == 0 {
		return nil
	}

	var result []Event
	for i := 0; i < r.count && len(result) < n; i++ {
		idx := (r.head - 1 - i + r.size) % r.size
		if r.events[idx].Type == eventType {
			result = append(result, r.events[idx])
		}
	}
	return result
}

// Count returns the number of buffered events.
func (r *Recorder) Count() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}
