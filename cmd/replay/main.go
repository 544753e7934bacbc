// Command replay re-drives a recorded prices.csv through the full pipeline
// into a fresh output root, reproducing every derived surface deterministically.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"synthdesk-listener/internal/config"
	"synthdesk-listener/internal/detect"
	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/orchestrator"
	"synthdesk-listener/internal/ordering"
	"synthdesk-listener/internal/replay"
	"synthdesk-listener/internal/sequence"
	"synthdesk-listener/internal/stats"
	"synthdesk-listener/internal/storage"
	"synthdesk-listener/internal/storage/file"
)

func main() {
	input := flag.String("input", "", "Path to a recorded prices.csv (required)")
	outputRoot := flag.String("output-root", "replay_out", "Root directory for the replayed run output")
	version := flag.String("version", "", "Run version tag (default: source run's version suffixed with -replay)")
	window := flag.Int("window", 0, "Rolling window size in ticks")
	breakout := flag.Float64("breakout-threshold", 0, "Breakout detector fractional threshold")
	volSpikeRatio := flag.Float64("vol-spike-ratio", 0, "Vol spike detector ratio threshold")
	bandWidth := flag.Float64("band-width", 0, "Mean-reversion band fractional half-width")
	verbose := flag.Bool("verbose", false, "Verbose logging")

	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags|log.Lshortfile)

	if *input == "" {
		logger.Fatal("Missing required flag: -input")
	}

	cfg := config.Default()
	cfg.OutputRoot = *outputRoot
	if *version != "" {
		cfg.Version = *version
	} else {
		cfg.Version = cfg.Version + "-replay"
	}
	if *window > 0 {
		cfg.Window = *window
	}
	if *breakout > 0 {
		cfg.BreakoutThreshold = *breakout
	}
	if *volSpikeRatio > 0 {
		cfg.VolSpikeRatio = *volSpikeRatio
	}
	if *bandWidth > 0 {
		cfg.BandWidth = *bandWidth
	}

	ticks, err := replay.ReadPricesCSV(*input)
	if err != nil {
		logger.Fatalf("Read input: %v", err)
	}
	if len(ticks) == 0 {
		logger.Fatalf("No ticks in %s", *input)
	}

	// A replay's pair universe is whatever the recording contains.
	cfg.Pairs = pairUniverse(ticks)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	ctx := context.Background()

	layout := file.NewLayout(cfg.OutputRoot, cfg.Version)
	stateStore := file.NewStateStore(layout)

	counter, err := sequence.Restore(ctx, stateStore)
	if err != nil {
		logger.Fatalf("Restore sequence: %v", err)
	}
	tracker := stats.NewTracker(cfg.Window, cfg.ShortWindow(), cfg.LongWindow())
	if err := orchestrator.RestorePairs(ctx, stateStore, tracker, cfg.Pairs); err != nil {
		logger.Fatalf("Restore pair state: %v", err)
	}

	orch := orchestrator.New(orchestrator.Options{
		Guard:   ordering.NewGuard(),
		Tracker: tracker,
		Counter: counter,
		Pipeline: detect.NewPipeline(detect.Thresholds{
			BreakoutThreshold: cfg.BreakoutThreshold,
			VolSpikeRatio:     cfg.VolSpikeRatio,
			BandWidth:         cfg.BandWidth,
		}),
		StateStore:   stateStore,
		TickLog:      file.NewTickLog(layout),
		ViolationLog: file.NewViolationLog(layout),
		EventSinks:   []storage.EventSink{file.NewEventStore(layout)},
		Logger:       logger,
		Verbose:      *verbose,
	})

	meta := &domain.RunMeta{
		Version:     cfg.Version,
		StartedAt:   time.Now().UTC().Format(domain.TickTimestampFormat),
		Pairs:       cfg.Pairs,
		Window:      cfg.Window,
		ShortWindow: cfg.ShortWindow(),
		LongWindow:  cfg.LongWindow(),
		Thresholds: domain.RunThresholds{
			BreakoutThreshold: cfg.BreakoutThreshold,
			VolSpikeRatio:     cfg.VolSpikeRatio,
			BandWidth:         cfg.BandWidth,
		},
	}
	if err := stateStore.WriteRunMeta(ctx, meta); err != nil {
		logger.Fatalf("Write run meta: %v", err)
	}

	logger.Printf("Replaying %d ticks from %s into %s (version=%s)",
		len(ticks), *input, cfg.OutputRoot, cfg.Version)

	var accepted, rejected, events int
	for _, t := range ticks {
		result, err := orch.ProcessTick(ctx, t)
		if err != nil {
			logger.Fatalf("Process tick: %v", err)
		}
		if result.Accepted {
			accepted++
			events += len(result.Events)
		} else {
			rejected++
		}
	}

	logger.Printf("Replay complete: accepted=%d rejected=%d events=%d last_tick_id=%d",
		accepted, rejected, events, counter.Last())
}

// pairUniverse returns the distinct pairs in recording order of first sight.
func pairUniverse(ticks []*domain.Tick) []string {
	seen := make(map[string]bool)
	var pairs []string
	for _, t := range ticks {
		if !seen[t.Pair] {
			seen[t.Pair] = true
			pairs = append(pairs, t.Pair)
		}
	}
	return pairs
}
