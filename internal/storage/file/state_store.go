package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// StateStore implements storage.StateStore on the run directory layout.
// All writes are atomic whole-file replacements.
type StateStore struct {
	layout Layout
}

// NewStateStore creates a StateStore over the given layout.
func NewStateStore(layout Layout) *StateStore {
	return &StateStore{layout: layout}
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)

// WriteRunMeta records the run configuration snapshot, once at start.
func (s *StateStore) WriteRunMeta(_ context.Context, meta *domain.RunMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run meta: %w", err)
	}
	return WriteFileAtomic(s.layout.RunMetaPath(), data)
}

// LoadSequence restores the sequence checkpoint.
func (s *StateStore) LoadSequence(_ context.Context) (*domain.SequenceState, error) {
	path := s.layout.SequencePath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var st domain.SequenceState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", path, err, storage.ErrCorruptState)
	}
	if st.LastTickID < 0 {
		return nil, fmt.Errorf("parse %s: negative last_tick_id %d: %w", path, st.LastTickID, storage.ErrCorruptState)
	}
	return &st, nil
}

// SaveSequence atomically rewrites the sequence checkpoint.
func (s *StateStore) SaveSequence(_ context.Context, st *domain.SequenceState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sequence state: %w", err)
	}
	return WriteFileAtomic(s.layout.SequencePath(), data)
}

// LoadPairState restores one pair's rolling window.
func (s *StateStore) LoadPairState(_ context.Context, pair string) (*domain.PairState, error) {
	path := s.layout.PairStatePath(pair)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var st domain.PairState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", path, err, storage.ErrCorruptState)
	}
	if st.Pair == "" {
		return nil, fmt.Errorf("parse %s: missing pair field: %w", path, storage.ErrCorruptState)
	}
	return &st, nil
}

// SavePairState atomically rewrites one pair's rolling window.
func (s *StateStore) SavePairState(_ context.Context, st *domain.PairState) error {
	if st.Pair == "" {
		return storage.ErrInvalidInput
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal pair state %s: %w", st.Pair, err)
	}
	return WriteFileAtomic(s.layout.PairStatePath(st.Pair), data)
}
