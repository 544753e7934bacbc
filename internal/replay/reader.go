// Package replay reads recorded observation logs so a run can be re-driven
// deterministically through the same pipeline.
package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"synthdesk-listener/internal/domain"
)

// pricesHeader is the expected prices.csv header.
var pricesHeader = [3]string{"timestamp", "pair", "price"}

// ReadPricesCSV parses a recorded prices.csv into ticks, in file order.
// The schema is validated strictly: a malformed header or row is an error,
// not a skipped line, because a replay over silently dropped rows would
// produce a different run than the original.
func ReadPricesCSV(path string) ([]*domain.Tick, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 3

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read header %s: %w", path, err)
	}
	for i, want := range pricesHeader {
		if header[i] != want {
			return nil, fmt.Errorf("%s: unexpected header %v, want %v", path, header, pricesHeader)
		}
	}

	var ticks []*domain.Tick
	line := 1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", path, line, err)
		}

		ts, err := time.Parse(domain.TickTimestampFormat, row[0])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad timestamp %q: %w", path, line, row[0], err)
		}
		if row[1] == "" {
			return nil, fmt.Errorf("%s line %d: empty pair", path, line)
		}
		price, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad price %q: %w", path, line, row[2], err)
		}

		ticks = append(ticks, &domain.Tick{
			Pair:      row[1],
			Price:     price,
			Timestamp: ts,
			Source:    "replay",
		})
	}
	return ticks, nil
}
