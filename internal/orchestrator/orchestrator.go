// Package orchestrator drives the per-tick pipeline:
// guard → stats update → detect → assemble → persist.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"synthdesk-listener/internal/detect"
	"synthdesk-listener/internal/domain"
	"synthdesk-listener/internal/ordering"
	"synthdesk-listener/internal/sequence"
	"synthdesk-listener/internal/stats"
	"synthdesk-listener/internal/storage"
)

// Orchestrator sequences one tick at a time through the pipeline. It owns
// no state of its own beyond wiring: after a restart it is reconstructed
// entirely from the components' persisted state.
type Orchestrator struct {
	guard    *ordering.Guard
	tracker  *stats.Tracker
	counter  *sequence.Counter
	pipeline *detect.Pipeline

	stateStore   storage.StateStore
	tickLog      storage.TickLog
	violationLog storage.ViolationLog
	eventSinks   []storage.EventSink
	tickMirrors  []storage.TickMirror

	mirrorErrors *prometheus.CounterVec

	logger  *log.Logger
	verbose bool
}

// Options for creating an Orchestrator.
type Options struct {
	Guard    *ordering.Guard
	Tracker  *stats.Tracker
	Counter  *sequence.Counter
	Pipeline *detect.Pipeline

	StateStore   storage.StateStore
	TickLog      storage.TickLog
	ViolationLog storage.ViolationLog

	// EventSinks receive every fired event. The first sink is the durable
	// surface: its failure fails the tick. Additional sinks are mirrors.
	EventSinks []storage.EventSink

	// TickMirrors receive accepted ticks best-effort.
	TickMirrors []storage.TickMirror

	// MirrorErrors, when set, counts swallowed mirror failures per backend.
	MirrorErrors *prometheus.CounterVec

	Logger  *log.Logger
	Verbose bool
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		guard:        opts.Guard,
		tracker:      opts.Tracker,
		counter:      opts.Counter,
		pipeline:     opts.Pipeline,
		stateStore:   opts.StateStore,
		tickLog:      opts.TickLog,
		violationLog: opts.ViolationLog,
		eventSinks:   opts.EventSinks,
		tickMirrors:  opts.TickMirrors,
		mirrorErrors: opts.MirrorErrors,
		logger:       opts.Logger,
		verbose:      opts.Verbose,
	}
}

// TickResult reports what one tick produced.
type TickResult struct {
	Accepted bool
	TickID   int64
	Metrics  domain.Metrics
	Fired    map[string]bool
	Events   []*domain.Event
}

// ProcessTick runs one observation through the full pipeline.
//
// Rejected ticks leave only the raw observation row and one violation
// record: no stats mutation, no sequence id, no classification. Accepted
// ticks complete every durable surface before ProcessTick returns; any
// durable-write failure aborts the tick with an error, never a silent
// partial success.
func (o *Orchestrator) ProcessTick(ctx context.Context, t *domain.Tick) (*TickResult, error) {
	// Raw observation is recorded for every tick, accepted or not.
	if err := o.tickLog.AppendObservation(ctx, t); err != nil {
		return nil, fmt.Errorf("tick %s: append observation: %w", t.Pair, err)
	}

	ok, violation := o.guard.Accept(t.Pair, t.Timestamp)
	if !ok {
		if err := o.violationLog.Append(ctx, violation); err != nil {
			return nil, fmt.Errorf("tick %s: append violation: %w", t.Pair, err)
		}
		o.log("rejected non-monotonic tick pair=%s ts=%s prev=%s", violation.Pair, violation.Rejected, violation.Previous)
		return &TickResult{Accepted: false}, nil
	}

	metrics := o.tracker.Update(t.Pair, t.Price)

	// The whole rolling window is the unit of persisted truth: full-state
	// atomic rewrite after every accepted tick.
	if err := o.stateStore.SavePairState(ctx, o.tracker.State(t.Pair)); err != nil {
		return nil, fmt.Errorf("tick %s: save pair state: %w", t.Pair, err)
	}

	tickID, err := o.counter.Next(ctx, t.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("tick %s: %w", t.Pair, err)
	}

	ts := t.Timestamp.UTC().Format(domain.TickTimestampFormat)
	annotations, fired := o.pipeline.Evaluate(t.Pair, t.Price, ts, metrics)

	if err := o.tickLog.AppendAccepted(ctx, t, metrics, fired); err != nil {
		return nil, fmt.Errorf("tick %s: append tick row: %w", t.Pair, err)
	}

	events := make([]*domain.Event, 0, len(annotations))
	for _, a := range annotations {
		e := assemble(a, tickID, metrics)
		if err := o.recordEvent(ctx, e); err != nil {
			return nil, fmt.Errorf("tick %s: record event %s: %w", t.Pair, e.Event, err)
		}
		events = append(events, e)
	}

	o.mirrorTick(ctx, tickID, t, metrics)

	return &TickResult{
		Accepted: true,
		TickID:   tickID,
		Metrics:  metrics,
		Fired:    fired,
		Events:   events,
	}, nil
}

// assemble normalizes an annotation into the canonical immutable Event:
// tick identity, schema version, and the tick's full metrics merged under
// the detector's own metrics (detector values win on key collisions).
func assemble(a *domain.Annotation, tickID int64, m domain.Metrics) *domain.Event {
	merged := make(map[string]float64, len(a.Metrics)+4)
	for k, v := range m.Map() {
		merged[k] = v
	}
	for k, v := range a.Metrics {
		merged[k] = v
	}

	return &domain.Event{
		Event:         a.Event,
		Pair:          a.Pair,
		Price:         a.Price,
		Timestamp:     a.Timestamp,
		Metrics:       merged,
		TickID:        tickID,
		SchemaVersion: domain.SchemaVersion,
	}
}

// recordEvent writes the event to every sink. The first sink is durable
// and fails the tick on error; mirror failures are counted, logged and
// dropped.
func (o *Orchestrator) recordEvent(ctx context.Context, e *domain.Event) error {
	for i, sink := range o.eventSinks {
		if err := sink.Record(ctx, e); err != nil {
			if i == 0 {
				return err
			}
			o.countMirrorError(sink.Name())
			o.log("event mirror %s failed for tick_id=%d event=%s: %v", sink.Name(), e.TickID, e.Event, err)
		}
	}
	return nil
}

// mirrorTick forwards the accepted tick to analytics mirrors, best-effort.
func (o *Orchestrator) mirrorTick(ctx context.Context, tickID int64, t *domain.Tick, m domain.Metrics) {
	for _, mirror := range o.tickMirrors {
		if err := mirror.Record(ctx, tickID, t, m); err != nil {
			o.countMirrorError(mirror.Name())
			o.log("tick mirror %s failed for tick_id=%d pair=%s: %v", mirror.Name(), tickID, t.Pair, err)
		}
	}
}

func (o *Orchestrator) countMirrorError(backend string) {
	if o.mirrorErrors != nil {
		o.mirrorErrors.WithLabelValues(backend).Inc()
	}
}

// RestorePairs seeds the tracker from persisted pair state. Absent state is
// a cold start for that pair; corrupt state is a hard error so an operator
// can repair or deliberately reset instead of silently losing context.
func RestorePairs(ctx context.Context, store storage.StateStore, tracker *stats.Tracker, pairs []string) error {
	for _, pair := range pairs {
		st, err := store.LoadPairState(ctx, pair)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("restore pair %s: %w", pair, err)
		}
		tracker.Restore(st)
	}
	return nil
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose && o.logger != nil {
		o.logger.Printf("[orchestrator] "+format, args...)
	}
}
