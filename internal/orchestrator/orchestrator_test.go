// Package orchestrator tests drive full ticks through the pipeline against
// in-memory stores.
package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"synthdesk-listener/internal/detect"
	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/ordering"
	"synthdesk-listener/internal/sequence"
	"synthdesk-listener/internal/stats"
	"synthdesk-listener/internal/storage"
	"synthdesk-listener/internal/storage/memory"
)

// recordingStateStore keeps persisted state in memory and counts writes.
type recordingStateStore struct {
	sequence   *domain.SequenceState
	pairStates map[string]*domain.PairState

	sequenceSaves  int
	pairStateSaves int
	saveSeqErr     error
}

func newRecordingStateStore() *recordingStateStore {
	return &recordingStateStore{pairStates: make(map[string]*domain.PairState)}
}

func (s *recordingStateStore) WriteRunMeta(context.Context, *domain.RunMeta) error { return nil }

func (s *recordingStateStore) LoadSequence(context.Context) (*domain.SequenceState, error) {
	if s.sequence == nil {
		return nil, storage.ErrNotFound
	}
	return s.sequence, nil
}

func (s *recordingStateStore) SaveSequence(_ context.Context, st *domain.SequenceState) error {
	s.sequenceSaves++
	if s.saveSeqErr != nil {
		return s.saveSeqErr
	}
	s.sequence = st
	return nil
}

func (s *recordingStateStore) LoadPairState(_ context.Context, pair string) (*domain.PairState, error) {
	st, ok := s.pairStates[pair]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return st, nil
}

func (s *recordingStateStore) SavePairState(_ context.Context, st *domain.PairState) error {
	s.pairStateSaves++
	s.pairStates[st.Pair] = st
	return nil
}

// recordingTickLog counts rows per surface.
type recordingTickLog struct {
	observations int
	accepted     int
	lastFired    map[string]bool
}

func (l *recordingTickLog) AppendObservation(context.Context, *domain.Tick) error {
	l.observations++
	return nil
}

func (l *recordingTickLog) AppendAccepted(_ context.Context, _ *domain.Tick, _ domain.Metrics, fired map[string]bool) error {
	l.accepted++
	l.lastFired = fired
	return nil
}

type recordingViolationLog struct {
	violations []*domain.Violation
}

func (l *recordingViolationLog) Append(_ context.Context, v *domain.Violation) error {
	l.violations = append(l.violations, v)
	return nil
}

// failingEventSink always fails. Stands in for a broken durable surface.
type failingEventSink struct{ err error }

func (s *failingEventSink) Name() string { return "failing" }

func (s *failingEventSink) Record(context.Context, *domain.Event) error { return s.err }

type harness struct {
	orch         *Orchestrator
	stateStore   *recordingStateStore
	tickLog      *recordingTickLog
	violations   *recordingViolationLog
	events       *memory.EventSink
	mirror       *memory.TickMirror
	mirrorErrors *prometheus.CounterVec
	counter      *sequence.Counter
}

func newHarness(t *testing.T, extraSinks ...storage.EventSink) *harness {
	t.Helper()

	stateStore := newRecordingStateStore()
	counter, err := sequence.Restore(context.Background(), stateStore)
	if err != nil {
		t.Fatalf("restore counter: %v", err)
	}

	h := &harness{
		stateStore: stateStore,
		tickLog:    &recordingTickLog{},
		violations: &recordingViolationLog{},
		events:     memory.NewEventSink(),
		mirror:     memory.NewTickMirror(),
		mirrorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_errors_total",
		}, []string{"backend"}),
		counter: counter,
	}

	sinks := append([]storage.EventSink{h.events}, extraSinks...)
	h.orch = New(Options{
		Guard:   ordering.NewGuard(),
		Tracker: stats.NewTracker(3, 5, 3),
		Counter: counter,
		Pipeline: detect.NewPipeline(detect.Thresholds{
			BreakoutThreshold: 0.02,
			VolSpikeRatio:     1.0,
			BandWidth:         0.015,
		}),
		StateStore:   stateStore,
		TickLog:      h.tickLog,
		ViolationLog: h.violations,
		EventSinks:   sinks,
		TickMirrors:  []storage.TickMirror{h.mirror},
		MirrorErrors: h.mirrorErrors,
	})
	return h
}

func tick(pair string, price float64, sec int) *domain.Tick {
	return &domain.Tick{
		Pair:      pair,
		Price:     price,
		Timestamp: time.Date(2026, 1, 15, 12, 0, sec, 0, time.UTC),
		Source:    "test",
	}
}

func TestProcessTick_Accepted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 0))
	if err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}

	if !result.Accepted {
		t.Fatal("first tick should be accepted")
	}
	if result.TickID != 1 {
		t.Errorf("TickID = %d, want 1", result.TickID)
	}
	if result.Metrics.RollingMean != 100 {
		t.Errorf("RollingMean = %g, want 100", result.Metrics.RollingMean)
	}

	// Every accepted-tick surface written exactly once
	if h.tickLog.observations != 1 || h.tickLog.accepted != 1 {
		t.Errorf("tick log writes = (%d, %d), want (1, 1)", h.tickLog.observations, h.tickLog.accepted)
	}
	if h.stateStore.pairStateSaves != 1 || h.stateStore.sequenceSaves != 1 {
		t.Errorf("state writes = (%d, %d), want (1, 1)", h.stateStore.pairStateSaves, h.stateStore.sequenceSaves)
	}
	if len(h.mirror.Ticks()) != 1 {
		t.Errorf("mirrored ticks = %d, want 1", len(h.mirror.Ticks()))
	}
}

func TestProcessTick_Rejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 10))
	result, err := h.orch.ProcessTick(ctx, tick("BTCUSDT", 101, 5)) // out of order
	if err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}

	if result.Accepted {
		t.Fatal("out-of-order tick should be rejected")
	}
	if len(h.violations.violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(h.violations.violations))
	}
	if h.violations.violations[0].Pair != "BTCUSDT" {
		t.Errorf("violation pair = %s", h.violations.violations[0].Pair)
	}

	// Rejection leaves only the raw observation: no tick row, no state
	// write, no id
	if h.tickLog.observations != 2 {
		t.Errorf("observations = %d, want 2 (every tick, accepted or not)", h.tickLog.observations)
	}
	if h.tickLog.accepted != 1 {
		t.Errorf("accepted rows = %d, want 1", h.tickLog.accepted)
	}
	if h.stateStore.pairStateSaves != 1 {
		t.Errorf("pair state saves = %d, want 1", h.stateStore.pairStateSaves)
	}
	if h.counter.Last() != 1 {
		t.Errorf("rejected tick consumed a sequence id: last = %d", h.counter.Last())
	}

	// Rejection must not poison the window: the next in-order tick sees
	// an unchanged history
	result, _ = h.orch.ProcessTick(ctx, tick("BTCUSDT", 102, 20))
	if !result.Accepted {
		t.Fatal("in-order tick after rejection should be accepted")
	}
	if result.Metrics.RollingMean != 101 { // (100+102)/2, the 101 never entered
		t.Errorf("RollingMean = %g, want 101", result.Metrics.RollingMean)
	}
}

func TestProcessTick_EventsShareTickID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Build a flat baseline, then jump 5%: breakout and mr_touch both fire
	h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 0))
	h.orch.ProcessTick(ctx, tick("BTCUSDT", 100.1, 1))
	h.orch.ProcessTick(ctx, tick("BTCUSDT", 99.9, 2))

	result, err := h.orch.ProcessTick(ctx, tick("BTCUSDT", 105, 3))
	if err != nil {
		t.Fatalf("ProcessTick: %v", err)
	}

	if len(result.Events) < 2 {
		t.Fatalf("got %d events, want at least breakout and mr_touch", len(result.Events))
	}
	for _, e := range result.Events {
		if e.TickID != result.TickID {
			t.Errorf("event %s has tick_id %d, want %d (one id per tick)", e.Event, e.TickID, result.TickID)
		}
		if e.SchemaVersion != domain.SchemaVersion {
			t.Errorf("event %s schema_version = %s", e.Event, e.SchemaVersion)
		}
	}
	if h.counter.Last() != 4 {
		t.Errorf("last tick id = %d, want 4 (multi-event tick allocates once)", h.counter.Last())
	}
}

func TestProcessTick_EventMetricsMerged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 0))
	h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 1)) // same price, later ts
	result, _ := h.orch.ProcessTick(ctx, tick("BTCUSDT", 105, 2))

	var breakout *domain.Event
	for _, e := range result.Events {
		if e.Event == domain.EventBreakout {
			breakout = e
		}
	}
	if breakout == nil {
		t.Fatal("breakout did not fire")
	}

	// Detector-specific keys and the tick's rolling metrics both present
	if _, ok := breakout.Metrics["deviation_pct"]; !ok {
		t.Error("breakout event missing detector metric deviation_pct")
	}
	if _, ok := breakout.Metrics["short_vol"]; !ok {
		t.Error("breakout event missing tick metric short_vol")
	}
}

func TestProcessTick_DurableSinkFailureFailsTick(t *testing.T) {
	sinkErr := errors.New("disk full")

	// The failing sink is the FIRST (durable) one
	stateStore := newRecordingStateStore()
	counter, _ := sequence.Restore(context.Background(), stateStore)
	orch := New(Options{
		Guard:   ordering.NewGuard(),
		Tracker: stats.NewTracker(3, 5, 3),
		Counter: counter,
		Pipeline: detect.NewPipeline(detect.Thresholds{
			BreakoutThreshold: 0.02,
			VolSpikeRatio:     1.0,
			BandWidth:         0.015,
		}),
		StateStore:   stateStore,
		TickLog:      &recordingTickLog{},
		ViolationLog: &recordingViolationLog{},
		EventSinks:   []storage.EventSink{&failingEventSink{err: sinkErr}},
	})

	ctx := context.Background()
	orch.ProcessTick(ctx, tick("BTCUSDT", 100, 0))
	orch.ProcessTick(ctx, tick("BTCUSDT", 100, 1))

	_, err := orch.ProcessTick(ctx, tick("BTCUSDT", 105, 2)) // fires breakout
	if !errors.Is(err, sinkErr) {
		t.Errorf("durable sink failure should fail the tick, got %v", err)
	}
}

func TestProcessTick_MirrorSinkFailureTolerated(t *testing.T) {
	sinkErr := errors.New("mirror down")
	h := newHarness(t, &failingEventSink{err: sinkErr})
	ctx := context.Background()

	h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 0))
	h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 1))

	result, err := h.orch.ProcessTick(ctx, tick("BTCUSDT", 105, 2))
	if err != nil {
		t.Fatalf("mirror sink failure should not fail the tick: %v", err)
	}
	if len(result.Events) == 0 {
		t.Fatal("expected events")
	}
	// The durable sink still received them
	if got := len(h.events.Events()); got != len(result.Events) {
		t.Errorf("durable sink recorded %d events, want %d", got, len(result.Events))
	}
	// Each swallowed failure counted against the mirror's backend
	if got := testutil.ToFloat64(h.mirrorErrors.WithLabelValues("failing")); got != float64(len(result.Events)) {
		t.Errorf("mirror error count = %g, want %d", got, len(result.Events))
	}
}

func TestProcessTick_TickMirrorFailureTolerated(t *testing.T) {
	h := newHarness(t)
	h.mirror.FailWith = errors.New("clickhouse down")
	ctx := context.Background()

	result, err := h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 0))
	if err != nil {
		t.Fatalf("tick mirror failure should not fail the tick: %v", err)
	}
	if !result.Accepted {
		t.Error("tick should still be accepted")
	}
	if got := testutil.ToFloat64(h.mirrorErrors.WithLabelValues("memory")); got != 1 {
		t.Errorf("mirror error count = %g, want 1", got)
	}
}

func TestProcessTick_SequenceCheckpointFailureAbortsTick(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 0))
	h.stateStore.saveSeqErr = errors.New("disk full")

	_, err := h.orch.ProcessTick(ctx, tick("BTCUSDT", 101, 1))
	if err == nil {
		t.Fatal("checkpoint failure should abort the tick")
	}
	if h.counter.Last() != 1 {
		t.Errorf("failed checkpoint advanced the counter to %d", h.counter.Last())
	}
	// The tick row is written after id allocation, so none was appended
	if h.tickLog.accepted != 1 {
		t.Errorf("accepted rows = %d, want 1", h.tickLog.accepted)
	}
}

func TestRestorePairs_RoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.orch.ProcessTick(ctx, tick("BTCUSDT", 100, 0))
	h.orch.ProcessTick(ctx, tick("BTCUSDT", 101, 1))

	// Restart: fresh tracker seeded from the same state store
	tracker := stats.NewTracker(3, 5, 3)
	if err := RestorePairs(ctx, h.stateStore, tracker, []string{"BTCUSDT", "ETHUSDT"}); err != nil {
		t.Fatalf("RestorePairs: %v", err)
	}

	history := tracker.History("BTCUSDT")
	if len(history) != 2 || history[0] != 100 || history[1] != 101 {
		t.Errorf("restored history = %v, want [100 101]", history)
	}
	// ETHUSDT never ticked: absent state is a cold start, not an error
	if got := tracker.History("ETHUSDT"); got != nil {
		t.Errorf("ETHUSDT history = %v, want nil", got)
	}
}
