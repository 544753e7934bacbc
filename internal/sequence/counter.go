// Package sequence allocates the process-wide tick identity.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// Counter is the single serialized allocation point for tick ids. The
// baseline is 0: the first id handed out is 1. Ids are strictly increasing
// and gap-free over accepted ticks within one checkpoint lineage.
type Counter struct {
	mu    sync.Mutex
	last  int64
	store storage.StateStore
}

// Restore creates a Counter from the persisted checkpoint.
//
// A missing checkpoint is a cold start at the baseline. A checkpoint that
// exists but cannot be parsed is a hard error (storage.ErrCorruptState in
// the chain): resetting silently would allow reuse of already-assigned ids.
func Restore(ctx context.Context, store storage.StateStore) (*Counter, error) {
	st, err := store.LoadSequence(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return &Counter{last: 0, store: store}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("restore sequence counter: %w", err)
	}
	return &Counter{last: st.LastTickID, store: store}, nil
}

// Next allocates the next tick id and durably checkpoints it before
// returning. Exactly one call per accepted tick. On checkpoint failure the
// id is not considered allocated and the error propagates: the tick must
// not proceed claiming success.
func (c *Counter) Next(ctx context.Context, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.last + 1
	st := &domain.SequenceState{
		LastTickID: id,
		UpdatedAt:  now.UTC().Format(domain.TickTimestampFormat),
	}
	if err := c.store.SaveSequence(ctx, st); err != nil {
		return 0, fmt.Errorf("checkpoint tick id %d: %w", id, err)
	}
	c.last = id
	return id, nil
}

// Last returns the most recently allocated tick id, 0 if none.
func (c *Counter) Last() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
