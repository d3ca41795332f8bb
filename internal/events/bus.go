// Package events provides a typed in-process event bus with explicit
// subscription and unsubscription semantics. Delivery is synchronous and
// at-least-once to the subscriber set current at emit time.
package events

import "sync"

// Event names a bus topic.
type Event string

// SprintCompleted is emitted after a sprint record has been persisted.
// The payload is the saved *models.Sprint.
const SprintCompleted Event = "sprint_completed"

// Handler receives an event payload.
type Handler func(payload interface{})

// Bus is a minimal synchronous pub/sub. It is safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Event]map[int]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Event]map[int]Handler)}
}

// Subscribe registers fn for event and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(event Event, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]Handler)
	}
	b.nextID++
	id := b.nextID
	b.handlers[event][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[event], id)
		if len(b.handlers[event]) == 0 {
			delete(b.handlers, event)
		}
	}
}

// Emit delivers payload to every current subscriber of event, on the
// caller's goroutine.
func (b *Bus) Emit(event Event, payload interface{}) {
	b.mu.RLock()
	fns := make([]Handler, 0, len(b.handlers[event]))
	for _, fn := range b.handlers[event] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// SubscriberCount returns the number of subscribers for event.
func (b *Bus) SubscriberCount(event Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[event])
}
