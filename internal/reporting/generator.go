package reporting

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/verification"
)

// Generator produces a Report from a recorded run day directory.
type Generator struct {
	version string
	dayDir  string
	seqPath string
	now     func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator for one day directory. seqPath
// is the version-level sequence checkpoint file.
func NewGenerator(version, dayDir, seqPath string) *Generator {
	return &Generator{
		version: version,
		dayDir:  dayDir,
		seqPath: seqPath,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the daily summary. Missing log surfaces count as zero
// rows; the integrity section reports them explicitly.
func (g *Generator) Generate() (*Report, error) {
	observations, err := countLines(filepath.Join(g.dayDir, "tick_observation.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("count observations: %w", err)
	}

	pairCounts, accepted, err := g.acceptedPerPair()
	if err != nil {
		return nil, fmt.Errorf("count accepted ticks: %w", err)
	}

	eventCounts, err := g.eventsPerDetector()
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	violations, err := countLines(filepath.Join(g.dayDir, "sequence_integrity.log"))
	if err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}

	integrity := verification.VerifyDay(g.dayDir, g.seqPath)
	// Gap analysis needs the run's poll interval, recorded next to the
	// sequence checkpoint. An old run without run_meta.json skips it.
	if interval := g.pollInterval(); interval > 0 {
		integrity = append(integrity, verification.CheckObservationGaps(
			filepath.Join(g.dayDir, "tick_observation.jsonl"), 3*interval))
	}

	return &Report{
		GeneratedAt:   g.now(),
		Version:       g.version,
		Day:           filepath.Base(g.dayDir),
		Observations:  observations,
		AcceptedTicks: accepted,
		Violations:    violations,
		PairCounts:    pairCounts,
		EventCounts:   eventCounts,
		Integrity:     integrity,
	}, nil
}

// pollInterval reads the poll interval from the run's run_meta.json, 0 if
// unavailable.
func (g *Generator) pollInterval() time.Duration {
	data, err := os.ReadFile(filepath.Join(filepath.Dir(g.seqPath), "run_meta.json"))
	if err != nil {
		return 0
	}
	var meta struct {
		PollInterval float64 `json:"poll_interval"` // seconds
	}
	if err := json.Unmarshal(data, &meta); err != nil || meta.PollInterval <= 0 {
		return 0
	}
	return time.Duration(meta.PollInterval * float64(time.Second))
}

// acceptedPerPair tallies tick_log.csv rows by pair.
func (g *Generator) acceptedPerPair() ([]PairCountRow, int, error) {
	rows, err := readCSVRows(filepath.Join(g.dayDir, "tick_log.csv"))
	if err != nil {
		return nil, 0, err
	}

	perPair := make(map[string]int)
	for _, row := range rows {
		if len(row) >= 2 {
			perPair[row[1]]++
		}
	}

	pairs := make([]string, 0, len(perPair))
	for pair := range perPair {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	out := make([]PairCountRow, 0, len(pairs))
	for _, pair := range pairs {
		out = append(out, PairCountRow{Pair: pair, Accepted: perPair[pair]})
	}
	return out, len(rows), nil
}

// eventsPerDetector tallies events.csv rows by detector, in detector order.
func (g *Generator) eventsPerDetector() ([]EventCountRow, error) {
	rows, err := readCSVRows(filepath.Join(g.dayDir, "events.csv"))
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, row := range rows {
		if len(row) >= 2 {
			counts[row[1]]++
		}
	}

	out := make([]EventCountRow, 0, len(domain.DetectorNames()))
	for _, name := range domain.DetectorNames() {
		out = append(out, EventCountRow{Event: name, Count: counts[name]})
	}
	return out, nil
}

// countLines counts non-empty lines; a missing file counts zero.
func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	return n, scanner.Err()
}

// readCSVRows reads the data rows of a headered CSV; a missing file yields
// no rows.
func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
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
