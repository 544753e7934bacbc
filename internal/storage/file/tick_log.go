package file

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// TickLog implements storage.TickLog over the CSV/JSONL log surfaces.
type TickLog struct {
	layout Layout
}

// NewTickLog creates a TickLog over the given layout.
func NewTickLog(layout Layout) *TickLog {
	return &TickLog{layout: layout}
}

var _ storage.TickLog = (*TickLog)(nil)

var (
	pricesHeader = []string{"timestamp", "pair", "price"}

	tickLogHeader = []string{
		"timestamp", "pair", "price",
		"rolling_mean", "rolling_std", "short_vol", "long_vol",
		domain.EventBreakout, domain.EventVolSpike, domain.EventMRTouch,
	}

	signalMatrixHeader = []string{
		"timestamp", "pair",
		domain.EventBreakout, domain.EventVolSpike, domain.EventMRTouch,
	}
)

// observationRecord is the JSONL schema of the raw observation log.
type observationRecord struct {
	TsUTC  string  `json:"ts_utc"`
	Asset  string  `json:"asset"`
	Price  float64 `json:"price"`
	Source string  `json:"source"`
}

// AppendObservation records the raw observation on both raw surfaces:
// tick_observation.jsonl and prices.csv. Written for every tick offered to
// the pipeline, before the monotonicity guard runs.
func (l *TickLog) AppendObservation(_ context.Context, t *domain.Tick) error {
	ts := t.Timestamp.UTC().Format(domain.TickTimestampFormat)

	rec := observationRecord{TsUTC: ts, Asset: t.Pair, Price: t.Price, Source: t.Source}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	if err := AppendLine(l.layout.ObservationJSONLPath(), string(line)); err != nil {
		return err
	}

	row := []string{ts, t.Pair, formatFloat(t.Price)}
	return AppendCSV(l.layout.PricesCSVPath(), row, pricesHeader)
}

// AppendAccepted records the combined metrics row and the 0/1 firing matrix
// for an accepted tick.
func (l *TickLog) AppendAccepted(_ context.Context, t *domain.Tick, m domain.Metrics, fired map[string]bool) error {
	ts := t.Timestamp.UTC().Format(domain.TickTimestampFormat)

	row := []string{
		ts, t.Pair, formatFloat(t.Price),
		formatFloat(m.RollingMean), formatFloat(m.RollingStd),
		formatFloat(m.ShortVol), formatFloat(m.LongVol),
		firedFlag(fired, domain.EventBreakout),
		firedFlag(fired, domain.EventVolSpike),
		firedFlag(fired, domain.EventMRTouch),
	}
	if err := AppendCSV(l.layout.TickLogPath(), row, tickLogHeader); err != nil {
		return err
	}

	matrixRow := []string{
		ts, t.Pair,
		firedFlag(fired, domain.EventBreakout),
		firedFlag(fired, domain.EventVolSpike),
		firedFlag(fired, domain.EventMRTouch),
	}
	return AppendCSV(l.layout.SignalMatrixPath(), matrixRow, signalMatrixHeader)
}

// firedFlag renders a detector's fired state as "0"/"1".
func firedFlag(fired map[string]bool, name string) string {
	if fired[name] {
		return "1"
	}
	return "0"
}

// formatFloat renders floats with minimal digits, round-trip safe.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
