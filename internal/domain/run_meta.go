package domain

// RunMeta is written once per process start: a snapshot of the effective
// configuration, so any reader of a run directory can reconstruct the
// parameters that produced it.
type RunMeta struct {
	Version      string        `json:"version"`
	StartedAt    string        `json:"started_at"`
	Pairs        []string      `json:"pairs"`
	PollInterval float64       `json:"poll_interval"` // seconds
	Window       int           `json:"window"`
	ShortWindow  int           `json:"short_window"`
	LongWindow   int           `json:"long_window"`
	Thresholds   RunThresholds `json:"thresholds"`
}

// RunThresholds groups the detector thresholds in the run metadata snapshot.
type RunThresholds struct {
	BreakoutThreshold float64 `json:"breakout_threshold"`
	VolSpikeRatio     float64 `json:"vol_spike_ratio"`
	BandWidth         float64 `json:"band_width"`
}
