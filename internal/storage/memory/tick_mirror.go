package memory

import (
	"context"
	"sync"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// MirroredTick is one tick as received by the in-memory mirror.
type MirroredTick struct {
	TickID  int64
	Tick    domain.Tick
	Metrics domain.Metrics
}

// TickMirror is an in-memory implementation of storage.TickMirror.
type TickMirror struct {
	mu    sync.RWMutex
	ticks []MirroredTick

	// FailWith, when set, is returned by Record. Test hook for mirror
	// failure handling.
	FailWith error
}

// NewTickMirror creates an empty in-memory tick mirror.
func NewTickMirror() *TickMirror {
	return &TickMirror{}
}

// Compile-time interface check.
var _ storage.TickMirror = (*TickMirror)(nil)

// Name implements storage.TickMirror.
func (s *TickMirror) Name() string { return "memory" }

// Record appends the tick.
func (s *TickMirror) Record(_ context.Context, tickID int64, t *domain.Tick, m domain.Metrics) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	if t == nil || t.Pair == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, MirroredTick{TickID: tickID, Tick: *t, Metrics: m})
	return nil
}

// Ticks returns all mirrored ticks in insertion order.
func (s *TickMirror) Ticks() []MirroredTick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MirroredTick, len(s.ticks))
	copy(out, s.ticks)
	return out
}
