package storage

import (
	"context"

	"synthdesk-listener/internal/domain"
)

// StateStore persists mutable pipeline state. Every write replaces the
// whole file atomically: a reader never observes a partially written state.
type StateStore interface {
	// WriteRunMeta records the run configuration snapshot, once at start.
	WriteRunMeta(ctx context.Context, meta *domain.RunMeta) error

	// LoadSequence restores the sequence checkpoint. Returns ErrNotFound
	// if no checkpoint exists (cold start) and ErrCorruptState if one
	// exists but cannot be parsed.
	LoadSequence(ctx context.Context) (*domain.SequenceState, error)

	// SaveSequence atomically rewrites the sequence checkpoint.
	SaveSequence(ctx context.Context, s *domain.SequenceState) error

	// LoadPairState restores one pair's rolling window. Returns
	// ErrNotFound on absence and ErrCorruptState on parse failure.
	LoadPairState(ctx context.Context, pair string) (*domain.PairState, error)

	// SavePairState atomically rewrites one pair's rolling window.
	SavePairState(ctx context.Context, st *domain.PairState) error
}

// TickLog records tick-level rows. Appends are durable before return:
// write, flush, fsync.
type TickLog interface {
	// AppendObservation records the raw observation, for every tick
	// offered to the pipeline, accepted or not.
	AppendObservation(ctx context.Context, t *domain.Tick) error

	// AppendAccepted records the combined metrics row and the detector
	// firing matrix for an accepted tick.
	AppendAccepted(ctx context.Context, t *domain.Tick, m domain.Metrics, fired map[string]bool) error
}

// ViolationLog records monotonicity guard rejections, append-only.
type ViolationLog interface {
	Append(ctx context.Context, v *domain.Violation) error
}

// EventSink records fired events. The file backend writes both the summary
// row and the per-event full record; mirror backends insert one row.
type EventSink interface {
	// Name identifies the backend in logs and error counters.
	Name() string

	Record(ctx context.Context, e *domain.Event) error
}

// TickMirror receives accepted ticks with their metrics for secondary
// storage (analytics databases). Mirrors are best-effort: a mirror failure
// must not be confused with a durable-write failure of the file surfaces.
type TickMirror interface {
	// Name identifies the backend in logs and error counters.
	Name() string

	Record(ctx context.Context, tickID int64, t *domain.Tick, m domain.Metrics) error
}
