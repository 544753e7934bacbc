package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// WriteCSV writes the report's counters as a flat CSV summary.
func WriteCSV(r *Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{
		{"metric", "value"},
		{"generated_at", r.GeneratedAt.Format(time.RFC3339)},
		{"version", r.Version},
		{"day", r.Day},
		{"observations", strconv.Itoa(r.Observations)},
		{"accepted_ticks", strconv.Itoa(r.AcceptedTicks)},
		{"violations", strconv.Itoa(r.Violations)},
	}
	for _, row := range r.PairCounts {
		rows = append(rows, []string{"accepted_" + row.Pair, strconv.Itoa(row.Accepted)})
	}
	for _, row := range r.EventCounts {
		rows = append(rows, []string{"events_" + row.Event, strconv.Itoa(row.Count)})
	}

	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
