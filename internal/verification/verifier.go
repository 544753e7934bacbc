// Package verification checks the integrity of a recorded run directory:
// schema of the raw observation log, per-pair ordering of accepted ticks,
// and sequence checkpoint consistency.
package verification

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"synthdesk-listener/internal/domain"
)

// Result is the outcome of one integrity check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// VerifyDay runs every check against one day directory. seqPath is the
// version-level sequence checkpoint file.
func VerifyDay(dayDir, seqPath string) []Result {
	return []Result{
		CheckObservationSchema(filepath.Join(dayDir, "tick_observation.jsonl")),
		CheckAcceptedMonotonic(filepath.Join(dayDir, "tick_log.csv")),
		CheckSequence(seqPath, filepath.Join(dayDir, "events.csv")),
	}
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

// observationLine is the subset of the raw observation schema the checks
// need.
type observationLine struct {
	TsUTC *string  `json:"ts_utc"`
	Asset *string  `json:"asset"`
	Price *float64 `json:"price"`
}

// CheckObservationSchema verifies that every raw observation line is valid
// JSON carrying ts_utc, asset and price.
func CheckObservationSchema(path string) Result {
	const name = "observation schema"

	f, err := os.Open(path)
	if err != nil {
		return Result{Name: name, Pass: false, Detail: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var obs observationLine
		if err := json.Unmarshal(text, &obs); err != nil {
			return Result{Name: name, Pass: false, Detail: fmt.Sprintf("line %d: %v", line, err)}
		}
		if obs.TsUTC == nil || obs.Asset == nil || obs.Price == nil {
			return Result{Name: name, Pass: false, Detail: fmt.Sprintf("line %d: missing ts_utc, asset or price", line)}
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{Name: name, Pass: false, Detail: fmt.Sprintf("read: %v", err)}
	}
	return Result{Name: name, Pass: true, Detail: fmt.Sprintf("%d observations", line)}
}

// CheckAcceptedMonotonic verifies that accepted-tick timestamps strictly
// increase per pair in tick_log.csv. The raw observation log may legally
// contain non-monotonic rows (those are the rejected ticks); the accepted
// log may not. Timestamps are parsed rather than compared as strings:
// RFC3339Nano drops trailing fractional zeros, so lexical order diverges
// from time order across precisions.
func CheckAcceptedMonotonic(path string) Result {
	const name = "accepted ticks monotonic"

	rows, err := readCSV(path)
	if err != nil {
		return Result{Name: name, Pass: false, Detail: err.Error()}
	}

	lastPerPair := make(map[string]time.Time)
	for i, row := range rows {
		if len(row) < 2 {
			return Result{Name: name, Pass: false, Detail: fmt.Sprintf("row %d: too few columns", i+2)}
		}
		ts, err := time.Parse(domain.TickTimestampFormat, row[0])
		if err != nil {
			return Result{Name: name, Pass: false, Detail: fmt.Sprintf("row %d: bad timestamp %q", i+2, row[0])}
		}
		pair := row[1]
		if prev, ok := lastPerPair[pair]; ok && !ts.After(prev) {
			return Result{Name: name, Pass: false,
				Detail: fmt.Sprintf("row %d: pair %s ts %s not after previous %s",
					i+2, pair, row[0], prev.Format(domain.TickTimestampFormat))}
		}
		lastPerPair[pair] = ts
	}
	return Result{Name: name, Pass: true, Detail: fmt.Sprintf("%d accepted ticks, %d pairs", len(rows), len(lastPerPair))}
}

// CheckObservationGaps verifies that consecutive observations of each pair
// are never further apart than maxGap. A stalled source shows up here
// before anything downstream looks wrong.
func CheckObservationGaps(path string, maxGap time.Duration) Result {
	const name = "observation gaps"

	f, err := os.Open(path)
	if err != nil {
		return Result{Name: name, Pass: false, Detail: fmt.Sprintf("open: %v", err)}
	}
	defer f.Close()

	lastPerPair := make(map[string]time.Time)
	var worst time.Duration
	worstPair := ""

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var obs observationLine
		if err := json.Unmarshal(text, &obs); err != nil || obs.TsUTC == nil || obs.Asset == nil {
			continue // the schema check reports malformed lines
		}
		ts, err := time.Parse(domain.TickTimestampFormat, *obs.TsUTC)
		if err != nil {
			continue
		}
		if prev, ok := lastPerPair[*obs.Asset]; ok {
			if gap := ts.Sub(prev); gap > worst {
				worst = gap
				worstPair = *obs.Asset
			}
		}
		lastPerPair[*obs.Asset] = ts
	}
	if err := scanner.Err(); err != nil {
		return Result{Name: name, Pass: false, Detail: fmt.Sprintf("read: %v", err)}
	}

	if worst > maxGap {
		return Result{Name: name, Pass: false,
			Detail: fmt.Sprintf("pair %s gap %s exceeds %s", worstPair, worst, maxGap)}
	}
	return Result{Name: name, Pass: true, Detail: fmt.Sprintf("max gap %s within %s", worst, maxGap)}
}

// CheckSequence verifies the sequence checkpoint parses and is not behind
// the highest tick id recorded in events.csv.
func CheckSequence(seqPath, eventsPath string) Result {
	const name = "sequence continuity"

	data, err := os.ReadFile(seqPath)
	if err != nil {
		return Result{Name: name, Pass: false, Detail: fmt.Sprintf("read checkpoint: %v", err)}
	}
	var seq struct {
		LastTickID *int64 `json:"last_tick_id"`
	}
	if err := json.Unmarshal(data, &seq); err != nil {
		return Result{Name: name, Pass: false, Detail: fmt.Sprintf("parse checkpoint: %v", err)}
	}
	if seq.LastTickID == nil || *seq.LastTickID < 0 {
		return Result{Name: name, Pass: false, Detail: "checkpoint missing last_tick_id"}
	}

	// A day with no events still has a valid checkpoint.
	rows, err := readCSV(eventsPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Pass: false, Detail: err.Error()}
	}

	var maxID int64
	for i, row := range rows {
		if len(row) < 5 {
			return Result{Name: name, Pass: false, Detail: fmt.Sprintf("events row %d: too few columns", i+2)}
		}
		id, err := strconv.ParseInt(row[4], 10, 64)
		if err != nil {
			return Result{Name: name, Pass: false, Detail: fmt.Sprintf("events row %d: bad tick_id %q", i+2, row[4])}
		}
		if id > maxID {
			maxID = id
		}
	}

	if maxID > *seq.LastTickID {
		return Result{Name: name, Pass: false,
			Detail: fmt.Sprintf("checkpoint %d behind max event tick_id %d", *seq.LastTickID, maxID)}
	}
	return Result{Name: name, Pass: true, Detail: fmt.Sprintf("last_tick_id=%d, max event tick_id=%d", *seq.LastTickID, maxID)}
}

// readCSV reads all data rows of a headered CSV file.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err == io.EOF {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
