// Command listener runs the live tick pipeline: poll prices, process each
// observation through guard → stats → detectors, and durably record every
// surface under the run directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"synthdesk-listener/internal/config"
	"synthdesk-listener/internal/detect"
	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/observability"
	"synthdesk-listener/internal/orchestrator"
	"synthdesk-listener/internal/ordering"
	"synthdesk-listener/internal/sequence"
	"synthdesk-listener/internal/source"
	"synthdesk-listener/internal/stats"
	"synthdesk-listener/internal/storage"
	chstore "synthdesk-listener/internal/storage/clickhouse"
	"synthdesk-listener/internal/storage/file"
	"synthdesk-listener/internal/storage/migrations"
	pgstore "synthdesk-listener/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to JSON config file (flags override it)")
	pairs := flag.String("pairs", "", "Comma-separated trading pairs (e.g. BTCUSDT,ETHUSDT)")
	pollInterval := flag.Duration("poll-interval", 0, "Poll interval (e.g. 10s)")
	window := flag.Int("window", 0, "Rolling window size in ticks")
	breakout := flag.Float64("breakout-threshold", 0, "Breakout detector fractional threshold")
	volSpikeRatio := flag.Float64("vol-spike-ratio", 0, "Vol spike detector ratio threshold")
	bandWidth := flag.Float64("band-width", 0, "Mean-reversion band fractional half-width")
	outputRoot := flag.String("output-root", "", "Root directory for run output")
	version := flag.String("version", "", "Run version tag")
	sourceName := flag.String("source", "binance", "Price source: binance, binance-ws, or stub")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "Optional ClickHouse DSN for the tick mirror")
	postgresDSN := flag.String("postgres-dsn", "", "Optional PostgreSQL DSN for the event mirror")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	verbose := flag.Bool("verbose", false, "Verbose logging")

	flag.Parse()

	logger := log.New(os.Stdout, "[listener] ", log.LstdFlags|log.Lshortfile)

	cfg, err := resolveConfig(*configPath, *pairs, *pollInterval, *window, *breakout, *volSpikeRatio, *bandWidth, *outputRoot, *version)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	// Start metrics server if enabled
	metrics := observability.NewMetrics("")
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, metrics, cfg, *sourceName, *clickhouseDSN, *postgresDSN, *verbose)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// resolveConfig merges defaults, the optional config file, and flags, in
// that order. The result is the immutable snapshot for the whole run.
func resolveConfig(path, pairs string, pollInterval time.Duration, window int,
	breakout, volSpikeRatio, bandWidth float64, outputRoot, version string) (config.Config, error) {

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if pairs != "" {
		var list []string
		for _, p := range strings.Split(pairs, ",") {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, strings.ToUpper(p))
			}
		}
		cfg.Pairs = list
	}
	if pollInterval > 0 {
		cfg.PollInterval = pollInterval
	}
	if window > 0 {
		cfg.Window = window
	}
	if breakout > 0 {
		cfg.BreakoutThreshold = breakout
	}
	if volSpikeRatio > 0 {
		cfg.VolSpikeRatio = volSpikeRatio
	}
	if bandWidth > 0 {
		cfg.BandWidth = bandWidth
	}
	if outputRoot != "" {
		cfg.OutputRoot = outputRoot
	}
	if version != "" {
		cfg.Version = version
	}

	return cfg, cfg.Validate()
}

// run wires the pipeline and drives the poll loop until ctx is cancelled.
func run(ctx context.Context, logger *log.Logger, metrics *observability.Metrics,
	cfg config.Config, sourceName, clickhouseDSN, postgresDSN string, verbose bool) error {

	layout := file.NewLayout(cfg.OutputRoot, cfg.Version)
	stateStore := file.NewStateStore(layout)
	tickLog := file.NewTickLog(layout)
	violationLog := file.NewViolationLog(layout)

	eventSinks := []storage.EventSink{file.NewEventStore(layout)}
	var tickMirrors []storage.TickMirror

	// Optional mirrors. Connection failure at startup is fatal: a
	// configured mirror that cannot start is an operator error.
	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("postgres mirror: %w", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgres(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		eventSinks = append(eventSinks, pgstore.NewEventStore(pool))
		logger.Println("Postgres event mirror enabled")
	}
	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse mirror: %w", err)
		}
		defer conn.Close()
		if err := migrations.RunClickhouse(ctx, conn); err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		tickMirrors = append(tickMirrors, chstore.NewTickStore(conn))
		logger.Println("ClickHouse tick mirror enabled")
	}

	// Restore persisted state. Absence is a cold start; corruption is
	// fatal so an operator decides between repair and deliberate reset.
	counter, err := sequence.Restore(ctx, stateStore)
	if err != nil {
		return err
	}
	tracker := stats.NewTracker(cfg.Window, cfg.ShortWindow(), cfg.LongWindow())
	if err := orchestrator.RestorePairs(ctx, stateStore, tracker, cfg.Pairs); err != nil {
		return err
	}
	logger.Printf("Restored state: last_tick_id=%d", counter.Last())

	src, runFeed, err := buildSource(cfg, sourceName, logger)
	if err != nil {
		return err
	}
	if runFeed != nil {
		go runFeed(ctx)
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
		TickLog:      tickLog,
		ViolationLog: violationLog,
		EventSinks:   eventSinks,
		TickMirrors:  tickMirrors,
		MirrorErrors: metrics.MirrorErrors,
		Logger:       logger,
		Verbose:      verbose,
	})

	meta := &domain.RunMeta{
		Version:      cfg.Version,
		StartedAt:    time.Now().UTC().Format(domain.TickTimestampFormat),
		Pairs:        cfg.Pairs,
		PollInterval: cfg.PollInterval.Seconds(),
		Window:       cfg.Window,
		ShortWindow:  cfg.ShortWindow(),
		LongWindow:   cfg.LongWindow(),
		Thresholds: domain.RunThresholds{
			BreakoutThreshold: cfg.BreakoutThreshold,
			VolSpikeRatio:     cfg.VolSpikeRatio,
			BandWidth:         cfg.BandWidth,
		},
	}
	if err := stateStore.WriteRunMeta(ctx, meta); err != nil {
		return fmt.Errorf("write run meta: %w", err)
	}

	logger.Printf("Starting listener: pairs=%v poll_interval=%s window=%d source=%s",
		cfg.Pairs, cfg.PollInterval, cfg.Window, src.Name())

	return pollLoop(ctx, logger, metrics, cfg, layout, src, orch)
}

// buildSource creates the configured price source. The second return value
// is a background feed runner, non-nil only for streaming sources.
func buildSource(cfg config.Config, name string, logger *log.Logger) (source.Source, func(context.Context), error) {
	switch name {
	case "binance":
		return source.NewBinanceHTTP(source.WithLogger(logger)), nil, nil
	case "binance-ws":
		feed := source.NewWSFeed(cfg.Pairs, logger)
		return feed, func(ctx context.Context) {
			if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("websocket feed stopped: %v", err)
			}
		}, nil
	case "stub":
		return source.NewStub(nil), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (binance, binance-ws, stub)", name)
	}
}

// pollLoop fetches prices and processes one tick per pair per cycle until
// cancelled. Durable-write failures abort the loop: the pipeline never
// proceeds to the next tick claiming success after a failed write.
func pollLoop(ctx context.Context, logger *log.Logger, metrics *observability.Metrics,
	cfg config.Config, layout file.Layout, src source.Source, orch *orchestrator.Orchestrator) error {

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		now := time.Now().UTC()
		if err := file.AppendLine(layout.HeartbeatPath(), now.Format(domain.TickTimestampFormat)+" alive"); err != nil {
			return fmt.Errorf("heartbeat: %w", err)
		}

		fetchStart := time.Now()
		prices := src.Fetch(ctx, cfg.Pairs)
		metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
		metrics.FetchCycles.Inc()
		if missing := len(cfg.Pairs) - len(prices); missing > 0 {
			metrics.PairsMissing.Add(float64(missing))
		}

		// Configured pair order keeps cycles deterministic for a given
		// price map.
		for _, pair := range cfg.Pairs {
			price, ok := prices[pair]
			if !ok {
				continue // no tick this cycle for this pair
			}

			tick := &domain.Tick{Pair: pair, Price: price, Timestamp: now, Source: src.Name()}

			tickStart := time.Now()
			result, err := orch.ProcessTick(ctx, tick)
			if err != nil {
				metrics.PersistErrors.WithLabelValues("pipeline").Inc()
				return fmt.Errorf("process tick: %w", err)
			}
			metrics.TickProcessingDuration.Observe(time.Since(tickStart).Seconds())

			metrics.TicksProcessed.Inc()
			if result.Accepted {
				metrics.TicksAccepted.Inc()
				metrics.LastTickID.Set(float64(result.TickID))
				for _, e := range result.Events {
					metrics.EventsFired.WithLabelValues(e.Event).Inc()
					logger.Printf("event %s pair=%s price=%g tick_id=%d", e.Event, e.Pair, e.Price, e.TickID)
				}
			} else {
				metrics.TicksRejected.Inc()
			}
		}
		metrics.LastSuccessfulCycle.SetToCurrentTime()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
