package sequence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// fakeStateStore implements the sequence side of storage.StateStore with
// configurable failures.
type fakeStateStore struct {
	saved     *domain.SequenceState
	loadErr   error
	saveErr   error
	saveCount int
}

func (f *fakeStateStore) WriteRunMeta(context.Context, *domain.RunMeta) error { return nil }

func (f *fakeStateStore) LoadSequence(context.Context) (*domain.SequenceState, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.saved == nil {
		return nil, storage.ErrNotFound
	}
	return f.saved, nil
}

func (f *fakeStateStore) SaveSequence(_ context.Context, st *domain.SequenceState) error {
	f.saveCount++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = st
	return nil
}

func (f *fakeStateStore) LoadPairState(context.Context, string) (*domain.PairState, error) {
	return nil, storage.ErrNotFound
}

func (f *fakeStateStore) SavePairState(context.Context, *domain.PairState) error { return nil }

var _ storage.StateStore = (*fakeStateStore)(nil)

func TestRestore_ColdStart(t *testing.T) {
	c, err := Restore(context.Background(), &fakeStateStore{})
	if err != nil {
		t.Fatalf("cold start should not error: %v", err)
	}
	if c.Last() != 0 {
		t.Errorf("cold start Last = %d, want 0", c.Last())
	}
}

func TestRestore_FromCheckpoint(t *testing.T) {
	store := &fakeStateStore{saved: &domain.SequenceState{LastTickID: 42}}
	c, err := Restore(context.Background(), store)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if c.Last() != 42 {
		t.Errorf("Last = %d, want 42", c.Last())
	}

	id, err := c.Next(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if id != 43 {
		t.Errorf("first id after restore = %d, want 43", id)
	}
}

func TestRestore_CorruptCheckpoint(t *testing.T) {
	corrupt := fmt.Errorf("parse sequence_meta.json: %w", storage.ErrCorruptState)
	_, err := Restore(context.Background(), &fakeStateStore{loadErr: corrupt})
	if !errors.Is(err, storage.ErrCorruptState) {
		t.Errorf("corrupt checkpoint should propagate ErrCorruptState, got %v", err)
	}
}

func TestNext_SequentialIDs(t *testing.T) {
	store := &fakeStateStore{}
	c, _ := Restore(context.Background(), store)

	for want := int64(1); want <= 5; want++ {
		id, err := c.Next(context.Background(), time.Now())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if id != want {
			t.Errorf("id = %d, want %d", id, want)
		}
	}
	if store.saved.LastTickID != 5 {
		t.Errorf("checkpoint LastTickID = %d, want 5", store.saved.LastTickID)
	}
}

func TestNext_CheckpointsBeforeReturning(t *testing.T) {
	store := &fakeStateStore{}
	c, _ := Restore(context.Background(), store)

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	if _, err := c.Next(context.Background(), now); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if store.saveCount != 1 {
		t.Errorf("save count = %d, want 1", store.saveCount)
	}
	if store.saved.UpdatedAt != "2026-01-15T12:00:00Z" {
		t.Errorf("UpdatedAt = %s, want 2026-01-15T12:00:00Z", store.saved.UpdatedAt)
	}
}

func TestNext_SaveFailureDoesNotAllocate(t *testing.T) {
	store := &fakeStateStore{saveErr: errors.New("disk full")}
	c, _ := Restore(context.Background(), store)

	if _, err := c.Next(context.Background(), time.Now()); err == nil {
		t.Fatal("Next should fail when the checkpoint write fails")
	}
	if c.Last() != 0 {
		t.Errorf("failed allocation advanced the counter to %d", c.Last())
	}

	// Once the store recovers, the same id is handed out
	store.saveErr = nil
	id, err := c.Next(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Next after recovery: %v", err)
	}
	if id != 1 {
		t.Errorf("id after recovery = %d, want 1", id)
	}
}

func TestNext_ContinuityAcrossRestarts(t *testing.T) {
	store := &fakeStateStore{}

	c1, _ := Restore(context.Background(), store)
	c1.Next(context.Background(), time.Now())
	c1.Next(context.Background(), time.Now())

	// Simulated restart: a fresh counter over the same store
	c2, err := Restore(context.Background(), store)
	if err != nil {
		t.Fatalf("Restore after restart: %v", err)
	}
	id, _ := c2.Next(context.Background(), time.Now())
	if id != 3 {
		t.Errorf("id after restart = %d, want 3 (no reuse, no gap)", id)
	}
}
