// Package memory provides in-memory sink implementations for tests and
// offline runs.
package memory

import (
	"context"
	"sync"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// EventSink is an in-memory implementation of storage.EventSink.
type EventSink struct {
	mu     sync.RWMutex
	events []*domain.Event
	keys   map[eventKey]struct{}
}

type eventKey struct {
	tickID int64
	event  string
}

// NewEventSink creates an empty in-memory event sink.
func NewEventSink() *EventSink {
	return &EventSink{keys: make(map[eventKey]struct{})}
}

// Compile-time interface check.
var _ storage.EventSink = (*EventSink)(nil)

// Name implements storage.EventSink.
func (s *EventSink) Name() string { return "memory" }

// Record appends the event. Returns storage.ErrDuplicateKey when the
// (tick_id, event) pair was already recorded.
func (s *EventSink) Record(_ context.Context, e *domain.Event) error {
	if e == nil || e.Event == "" || e.Pair == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := eventKey{tickID: e.TickID, event: e.Event}
	if _, exists := s.keys[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.keys[key] = struct{}{}
	s.events = append(s.events, e)
	return nil
}

// Events returns all recorded events in insertion order.
func (s *EventSink) Events() []*domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Event, len(s.events))
	copy(out, s.events)
	return out
}
