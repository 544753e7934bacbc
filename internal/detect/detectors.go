// Package detect runs the fixed set of price regime detectors.
//
// Detectors are pure functions over (pair, price, timestamp, metrics,
// thresholds): they hold no state and never touch tracker or sequence
// internals. Each returns at most one annotation per tick. The set is
// closed; extending it means adding a function here and its column to the
// log surfaces, as a reviewed change.
package detect

import (
	"math"

	"synthdesk-listener/internal/domain"
)

// Thresholds holds the detector configuration for a run.
type Thresholds struct {
	// BreakoutThreshold is the fractional distance from the rolling mean
	// beyond which the breakout detector fires.
	BreakoutThreshold float64

	// VolSpikeRatio is the multiple of long volatility that short
	// volatility must exceed for the vol spike detector to fire.
	VolSpikeRatio float64

	// BandWidth is the fractional mean-reversion band half-width.
	BandWidth float64
}

// Band position values reported by the mr_touch detector.
const (
	BandPositionUpper = 1.0
	BandPositionLower = -1.0
)

// detectBreakout fires when price deviates from the rolling mean by more
// than the threshold fraction. A zero mean means no established baseline:
// never fires.
func detectBreakout(pair string, price float64, ts string, m domain.Metrics, th Thresholds) *domain.Annotation {
	if m.RollingMean == 0 {
		return nil
	}
	deviation := price - m.RollingMean
	deviationPct := deviation / m.RollingMean
	if math.Abs(deviationPct) <= th.BreakoutThreshold {
		return nil
	}

	return &domain.Annotation{
		Event:     domain.EventBreakout,
		Pair:      pair,
		Price:     price,
		Timestamp: ts,
		Metrics: map[string]float64{
			"rolling_mean":       m.RollingMean,
			"deviation":          deviation,
			"deviation_pct":      deviationPct,
			"breakout_threshold": th.BreakoutThreshold,
		},
	}
}

// detectVolSpike fires when short volatility exceeds the long baseline by
// the configured multiple. Only meaningful with a non-zero baseline: the
// short-history case where both volatilities are 0.0 never fires.
func detectVolSpike(pair string, price float64, ts string, m domain.Metrics, th Thresholds) *domain.Annotation {
	if m.LongVol <= 0 {
		return nil
	}
	if m.ShortVol <= m.LongVol*th.VolSpikeRatio {
		return nil
	}

	return &domain.Annotation{
		Event:     domain.EventVolSpike,
		Pair:      pair,
		Price:     price,
		Timestamp: ts,
		Metrics: map[string]float64{
			"short_vol":       m.ShortVol,
			"long_vol":        m.LongVol,
			"ratio":           m.ShortVol / m.LongVol,
			"vol_spike_ratio": th.VolSpikeRatio,
		},
	}
}

// detectMRTouch fires when price leaves the mean-reversion bands
// mean*(1±bandWidth). The band position metric is BandPositionUpper or
// BandPositionLower.
func detectMRTouch(pair string, price float64, ts string, m domain.Metrics, th Thresholds) *domain.Annotation {
	lower := m.RollingMean * (1 - th.BandWidth)
	upper := m.RollingMean * (1 + th.BandWidth)
	if price >= lower && price <= upper {
		return nil
	}

	position := BandPositionLower
	if price > upper {
		position = BandPositionUpper
	}

	return &domain.Annotation{
		Event:     domain.EventMRTouch,
		Pair:      pair,
		Price:     price,
		Timestamp: ts,
		Metrics: map[string]float64{
			"rolling_mean": m.RollingMean,
			"band_width":   th.BandWidth,
			"lower_band":   lower,
			"upper_band":   upper,
			"position":     position,
		},
	}
}
