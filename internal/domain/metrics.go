package domain

// Metrics holds the rolling statistics derived from a pair's price history
// at the instant of one accepted tick. Metrics are a pure function of the
// history; they carry no hidden state.
type Metrics struct {
	RollingMean float64 // mean over the effective window
	RollingStd  float64 // sample standard deviation (n-1 denominator)
	ShortVol    float64 // volatility over the short sub-window, 0.0 on short history
	LongVol     float64 // volatility over the long sub-window, 0.0 on short history
}

// Map returns the metrics as a serializable mapping. Key names are part of
// the persisted schema and must not change without a schema version bump.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"rolling_mean": m.RollingMean,
		"rolling_std":  m.RollingStd,
		"short_vol":    m.ShortVol,
		"long_vol":     m.LongVol,
	}
}
