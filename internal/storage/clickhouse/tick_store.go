package clickhouse

import (
	"context"
	"fmt"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// TickStore mirrors accepted ticks and their metrics into the
// tick_timeseries table. It is a best-effort analytics sink: the durable
// file surfaces remain the source of truth.
type TickStore struct {
	conn *Conn
}

// NewTickStore creates a TickStore.
func NewTickStore(conn *Conn) *TickStore {
	return &TickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TickMirror = (*TickStore)(nil)

// Name implements storage.TickMirror.
func (s *TickStore) Name() string { return "clickhouse" }

// Record inserts one accepted tick row.
func (s *TickStore) Record(ctx context.Context, tickID int64, t *domain.Tick, m domain.Metrics) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO tick_timeseries (
			tick_id, pair, timestamp_ms, price,
			rolling_mean, rolling_std, short_vol, long_vol, source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		uint64(tickID), t.Pair, uint64(t.Timestamp.UTC().UnixMilli()), t.Price,
		m.RollingMean, m.RollingStd, m.ShortVol, m.LongVol, t.Source,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByPair retrieves mirrored ticks for a pair, ordered by timestamp ASC.
func (s *TickStore) GetByPair(ctx context.Context, pair string) ([]*domain.Tick, error) {
	query := `
		SELECT pair, timestamp_ms, price, source
		FROM tick_timeseries
		WHERE pair = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, pair)
	if err != nil {
		return nil, fmt.Errorf("query by pair: %w", err)
	}
	defer rows.Close()

	var ticks []*domain.Tick
	for rows.Next() {
		var (
			p      string
			tsMs   uint64
			price  float64
			source string
		)
		if err := rows.Scan(&p, &tsMs, &price, &source); err != nil {
			return nil, fmt.Errorf("scan tick row: %w", err)
		}
		ticks = append(ticks, &domain.Tick{
			Pair:      p,
			Price:     price,
			Timestamp: millisToTime(int64(tsMs)),
			Source:    source,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tick rows: %w", err)
	}
	return ticks, nil
}
