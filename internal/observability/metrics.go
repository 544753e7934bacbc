// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the listener.
type Metrics struct {
	// Tick pipeline metrics
	TicksProcessed prometheus.Counter
	TicksAccepted  prometheus.Counter
	TicksRejected  prometheus.Counter
	EventsFired    *prometheus.CounterVec
	PersistErrors  *prometheus.CounterVec
	MirrorErrors   *prometheus.CounterVec

	// Fetch metrics
	FetchCycles   prometheus.Counter
	PairsMissing  prometheus.Counter
	FetchDuration prometheus.Histogram

	// Health metrics
	LastTickID             prometheus.Gauge
	LastSuccessfulCycle    prometheus.Gauge
	TickProcessingDuration prometheus.Histogram
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "synthdesk_listener"
	}

	return &Metrics{
		TicksProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "ticks_processed_total",
			Help:      "Total number of ticks offered to the pipeline",
		}),
		TicksAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "ticks_accepted_total",
			Help:      "Total number of ticks that passed the monotonicity guard",
		}),
		TicksRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "ticks_rejected_total",
			Help:      "Total number of ticks rejected by the monotonicity guard",
		}),
		EventsFired: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_fired_total",
			Help:      "Total number of detector events fired",
		}, []string{"event"}),
		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "persist_errors_total",
			Help:      "Total number of durable write failures by surface",
		}, []string{"surface"}),
		MirrorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "mirror_errors_total",
			Help:      "Total number of best-effort mirror write failures by backend",
		}, []string{"backend"}),
		FetchCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles executed",
		}),
		PairsMissing: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "pairs_missing_total",
			Help:      "Total number of pair observations missing from a poll cycle",
		}),
		FetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Duration of one full price fetch cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		LastTickID: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_tick_id",
			Help:      "Most recently allocated tick id",
		}),
		LastSuccessfulCycle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp_seconds",
			Help:      "Unix timestamp of the last completed poll cycle",
		}),
		TickProcessingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one tick's guard-to-persist sequence",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
