// Package reporting summarizes a recorded run day into operator-readable
// artifacts.
package reporting

import (
	"time"

	"synthdesk-listener/internal/verification"
)

// Report is the daily run summary.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Version     string
	Day         string

	// Volume
	Observations  int
	AcceptedTicks int
	Violations    int

	// Per-pair accepted tick counts, sorted by pair.
	PairCounts []PairCountRow

	// Per-detector event counts, in detector order.
	EventCounts []EventCountRow

	// Integrity check results.
	Integrity []verification.Result
}

// PairCountRow is one pair's accepted tick count.
type PairCountRow struct {
	Pair     string
	Accepted int
}

// EventCountRow is one detector's fired event count.
type EventCountRow struct {
	Event string
	Count int
}
