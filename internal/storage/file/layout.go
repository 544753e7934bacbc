package file

import (
	"path/filepath"
	"time"
)

// Layout maps persisted artifacts to paths under the run directory tree:
//
//	<root>/runs/<version>/                 run_meta.json, sequence_meta.json
//	<root>/runs/<version>/<YYYY-MM-DD>/    state_<pair>.json and all log surfaces
//	<root>/runs/<version>/<YYYY-MM-DD>/events/   per-event full records
//
// Day directories roll at UTC midnight; the sequence checkpoint lives above
// the day level so tick ids stay continuous across days.
type Layout struct {
	root    string
	version string
	now     func() time.Time
}

// NewLayout creates a Layout rooted at root for the given version tag.
func NewLayout(root, version string) Layout {
	return Layout{root: root, version: version, now: time.Now}
}

// withClock returns a copy using the given clock. Test hook.
func (l Layout) withClock(now func() time.Time) Layout {
	l.now = now
	return l
}

// BaseDir is the per-version directory holding run metadata and the
// sequence checkpoint.
func (l Layout) BaseDir() string {
	return filepath.Join(l.root, "runs", l.version)
}

// DayDir is the current UTC day directory.
func (l Layout) DayDir() string {
	day := l.now().UTC().Format("2006-01-02")
	return filepath.Join(l.BaseDir(), day)
}

// RunMetaPath is the run configuration snapshot file.
func (l Layout) RunMetaPath() string {
	return filepath.Join(l.BaseDir(), "run_meta.json")
}

// SequencePath is the sequence checkpoint file.
func (l Layout) SequencePath() string {
	return filepath.Join(l.BaseDir(), "sequence_meta.json")
}

// PairStatePath is the rolling-window state file for one pair.
func (l Layout) PairStatePath(pair string) string {
	return filepath.Join(l.DayDir(), "state_"+pair+".json")
}

// ObservationJSONLPath is the raw observation log (JSON lines).
func (l Layout) ObservationJSONLPath() string {
	return filepath.Join(l.DayDir(), "tick_observation.jsonl")
}

// PricesCSVPath is the raw observation log (CSV).
func (l Layout) PricesCSVPath() string {
	return filepath.Join(l.DayDir(), "prices.csv")
}

// TickLogPath is the combined per-tick metrics log.
func (l Layout) TickLogPath() string {
	return filepath.Join(l.DayDir(), "tick_log.csv")
}

// SignalMatrixPath is the 0/1 detector firing matrix.
func (l Layout) SignalMatrixPath() string {
	return filepath.Join(l.DayDir(), "signals_matrix.csv")
}

// EventsCSVPath is the event summary log.
func (l Layout) EventsCSVPath() string {
	return filepath.Join(l.DayDir(), "events.csv")
}

// EventsDir holds per-event full records.
func (l Layout) EventsDir() string {
	return filepath.Join(l.DayDir(), "events")
}

// ViolationLogPath is the ordering-violation log.
func (l Layout) ViolationLogPath() string {
	return filepath.Join(l.DayDir(), "sequence_integrity.log")
}

// HeartbeatPath is the liveness log appended once per poll cycle.
func (l Layout) HeartbeatPath() string {
	return filepath.Join(l.DayDir(), "heartbeat.log")
}
