// Command report summarizes one day of a run directory: counts per surface,
// per-pair and per-detector breakdowns, and integrity checks over the
// persisted artifacts. Exits non-zero if an integrity check fails.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"synthdesk-listener/internal/reporting"
	"synthdesk-listener/internal/storage/file"
	"synthdesk-listener/internal/verification"
)

func main() {
	outputRoot := flag.String("output-root", ".", "Root directory of the run output")
	version := flag.String("version", "v0.1", "Run version tag")
	day := flag.String("day", "", "Day to report on, YYYY-MM-DD (default: today UTC)")
	outDir := flag.String("out", "", "Directory for report.md and summary.csv (default: the day directory)")
	stdout := flag.Bool("stdout", false, "Also print the markdown report to stdout")

	flag.Parse()

	logger := log.New(os.Stdout, "[report] ", log.LstdFlags)

	layout := file.NewLayout(*outputRoot, *version)
	dayDir := layout.DayDir()
	if *day != "" {
		if _, err := time.Parse("2006-01-02", *day); err != nil {
			logger.Fatalf("Bad -day %q: want YYYY-MM-DD", *day)
		}
		dayDir = filepath.Join(layout.BaseDir(), *day)
	}
	if _, err := os.Stat(dayDir); err != nil {
		logger.Fatalf("Day directory %s: %v", dayDir, err)
	}

	report, err := reporting.NewGenerator(*version, dayDir, layout.SequencePath()).Generate()
	if err != nil {
		logger.Fatalf("Generate report: %v", err)
	}

	dir := dayDir
	if *outDir != "" {
		dir = *outDir
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("Create %s: %v", dir, err)
		}
	}

	markdown := reporting.RenderMarkdown(report)
	mdPath := filepath.Join(dir, "report.md")
	if err := file.WriteFileAtomic(mdPath, []byte(markdown)); err != nil {
		logger.Fatalf("Write %s: %v", mdPath, err)
	}
	csvPath := filepath.Join(dir, "summary.csv")
	if err := reporting.WriteCSV(report, csvPath); err != nil {
		logger.Fatalf("Write %s: %v", csvPath, err)
	}

	if *stdout {
		fmt.Println(markdown)
	}

	logger.Printf("Report written: %s, %s", mdPath, csvPath)

	if !verification.Passed(report.Integrity) {
		for _, r := range report.Integrity {
			if !r.Pass {
				logger.Printf("Integrity check failed: %s: %s", r.Name, r.Detail)
			}
		}
		os.Exit(1)
	}
}
