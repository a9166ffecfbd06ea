package testutil

import (
	"context"
	"sync"

	"github.com/taxcrm/backend/internal/domain/shared"
)

// EventRecorder is a shared.EventPublisher that keeps everything published.
// It can also be subscribed to a bus as a shared.EventHandler.
type EventRecorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

var (
	_ shared.EventPublisher = (*EventRecorder)(nil)
	_ shared.EventHandler   = (*EventRecorder)(nil)
)

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// FailWith makes subsequent Publish and Handle calls return err after recording.
func (r *EventRecorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Publish implements shared.EventPublisher.
func (r *EventRecorder) Publish(_ context.Context, events ...shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return r.err
}

// Handle implements shared.EventHandler.
func (r *EventRecorder) Handle(ctx context.Context, event shared.DomainEvent) error {
	return r.Publish(ctx, event)
}

// EventTypes subscribes the recorder to every event.
func (r *EventRecorder) EventTypes() []string {
	return nil
}

// Events returns a copy of the recorded events.
func (r *EventRecorder) Events() []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.DomainEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in publish order.
func (r *EventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType())
	}
	return out
}

// OfType returns the recorded events of one type.
func (r *EventRecorder) OfType(eventType string) []shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range r.events {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all recorded events.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
