package file

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/storage"
)

// EventStore implements storage.EventSink on the file surfaces: one summary
// row in events.csv plus one full JSON record per event.
type EventStore struct {
	layout Layout

	// collisions counts events per (second, event kind) so that records
	// fired within the same second get distinct file names. An explicit
	// counter, not a check-then-retry loop against the filesystem.
	collisions map[collisionKey]int
}

type collisionKey struct {
	second string
	event  string
}

// NewEventStore creates an EventStore over the given layout.
func NewEventStore(layout Layout) *EventStore {
	return &EventStore{
		layout:     layout,
		collisions: make(map[collisionKey]int),
	}
}

var _ storage.EventSink = (*EventStore)(nil)

// Name implements storage.EventSink.
func (s *EventStore) Name() string { return "file" }

var eventsHeader = []string{
	"timestamp", "event", "pair", "price", "tick_id", "schema_version", "metrics",
}

// Record durably writes the event: summary row first, then the full record.
// Both writes must succeed; a failure of either fails the tick.
func (s *EventStore) Record(_ context.Context, e *domain.Event) error {
	metricsBlob, err := json.Marshal(e.Metrics)
	if err != nil {
		return fmt.Errorf("marshal event metrics: %w", err)
	}

	row := []string{
		e.Timestamp, e.Event, e.Pair,
		strconv.FormatFloat(e.Price, 'g', -1, 64),
		strconv.FormatInt(e.TickID, 10),
		e.SchemaVersion,
		string(metricsBlob),
	}
	if err := AppendCSV(s.layout.EventsCSVPath(), row, eventsHeader); err != nil {
		return err
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event record: %w", err)
	}
	return WriteFileAtomic(s.recordPath(e), data)
}

// recordPath names the per-event file by second-precision timestamp and
// event kind, with a numeric suffix deduplicating same-second collisions.
func (s *EventStore) recordPath(e *domain.Event) string {
	second := e.Timestamp
	if ts, err := time.Parse(domain.TickTimestampFormat, e.Timestamp); err == nil {
		second = ts.UTC().Format("20060102T150405Z")
	}

	key := collisionKey{second: second, event: e.Event}
	n := s.collisions[key]
	s.collisions[key] = n + 1

	name := fmt.Sprintf("%s_%s.json", second, e.Event)
	if n > 0 {
		name = fmt.Sprintf("%s_%s_%d.json", second, e.Event, n)
	}
	return filepath.Join(s.layout.EventsDir(), name)
}
