package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// EventStore mirrors fired events into the events table. Events are
// append-only: one row per (tick_id, event), never updated.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates an EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventSink = (*EventStore)(nil)

// Name implements storage.EventSink.
func (s *EventStore) Name() string { return "postgres" }

// Record inserts one event row. Returns storage.ErrDuplicateKey when the
// (tick_id, event) pair already exists.
func (s *EventStore) Record(ctx context.Context, e *domain.Event) error {
	metrics, err := json.Marshal(e.Metrics)
	if err != nil {
		return fmt.Errorf("marshal event metrics: %w", err)
	}

	query := `
		INSERT INTO events (
			tick_id, event, pair, price, ts, metrics, schema_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.pool.Exec(ctx, query,
		e.TickID, e.Event, e.Pair, e.Price, e.Timestamp, metrics, e.SchemaVersion,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByPair retrieves mirrored events for a pair, ordered by tick id ASC.
func (s *EventStore) GetByPair(ctx context.Context, pair string) ([]*domain.Event, error) {
	query := `
		SELECT tick_id, event, pair, price, ts, metrics, schema_version
		FROM events
		WHERE pair = $1
		ORDER BY tick_id ASC
	`
	rows, err := s.pool.Query(ctx, query, pair)
	if err != nil {
		return nil, fmt.Errorf("query events by pair: %w", err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			metrics []byte
		)
		if err := rows.Scan(&e.TickID, &e.Event, &e.Pair, &e.Price, &e.Timestamp, &metrics, &e.SchemaVersion); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if err := json.Unmarshal(metrics, &e.Metrics); err != nil {
			return nil, fmt.Errorf("parse event metrics: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}

// CountByEvent returns event counts grouped by detector name.
func (s *EventStore) CountByEvent(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT event, count(*) FROM events GROUP BY event`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			name  string
			count int64
		)
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		counts[name] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count rows: %w", err)
	}
	return counts, nil
}
