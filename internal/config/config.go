// Package config loads and validates the listener run configuration.
// A Config is an immutable snapshot for the lifetime of a run: nothing
// re-reads configuration after startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Defaults applied when neither the config file nor flags set a value.
const (
	DefaultPollInterval      = 10 * time.Second
	DefaultWindow            = 60
	DefaultBreakoutThreshold = 0.02
	DefaultVolSpikeRatio     = 1.0
	DefaultBandWidth         = 0.015
	DefaultVersion           = "v0.1"
)

// Config holds all run parameters for the listener pipeline.
type Config struct {
	Pairs        []string      `json:"pairs"`
	PollInterval time.Duration `json:"-"`
	Window       int           `json:"vol_window"`

	// Detector thresholds.
	BreakoutThreshold float64 `json:"breakout_threshold"`
	VolSpikeRatio     float64 `json:"vol_spike_ratio"`
	BandWidth         float64 `json:"band_width"`

	// Output layout.
	OutputRoot string `json:"output_root"`
	Version    string `json:"version"`

	// PollIntervalSeconds is the JSON-facing form of PollInterval.
	PollIntervalSeconds float64 `json:"poll_interval_seconds"`
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Pairs:             []string{"BTCUSDT", "ETHUSDT"},
		PollInterval:      DefaultPollInterval,
		Window:            DefaultWindow,
		BreakoutThreshold: DefaultBreakoutThreshold,
		VolSpikeRatio:     DefaultVolSpikeRatio,
		BandWidth:         DefaultBandWidth,
		OutputRoot:        ".",
		Version:           DefaultVersion,
	}
}

// Load reads a JSON config file and merges it over defaults. Fields absent
// from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.PollIntervalSeconds > 0 {
		cfg.PollInterval = time.Duration(cfg.PollIntervalSeconds * float64(time.Second))
	}
	return cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	if len(c.Pairs) == 0 {
		return fmt.Errorf("config: at least one pair is required")
	}
	for _, p := range c.Pairs {
		if p == "" {
			return fmt.Errorf("config: empty pair name")
		}
	}
	if c.Window < 1 {
		return fmt.Errorf("config: window must be >= 1, got %d", c.Window)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("config: poll interval must be >= 1s, got %s", c.PollInterval)
	}
	if c.BreakoutThreshold <= 0 {
		return fmt.Errorf("config: breakout threshold must be > 0, got %g", c.BreakoutThreshold)
	}
	if c.VolSpikeRatio <= 0 {
		return fmt.Errorf("config: vol spike ratio must be > 0, got %g", c.VolSpikeRatio)
	}
	if c.BandWidth <= 0 {
		return fmt.Errorf("config: band width must be > 0, got %g", c.BandWidth)
	}
	if c.Version == "" {
		return fmt.Errorf("config: version tag is required")
	}
	return nil
}

// ShortWindow derives the short volatility sub-window from the configured
// rolling window: one third of the window, floored at 5, capped at the
// window itself.
func (c Config) ShortWindow() int {
	short := c.Window / 3
	if short < 5 {
		short = 5
	}
	if short > c.Window {
		short = c.Window
	}
	return short
}

// LongWindow is the long volatility sub-window: the full rolling window.
func (c Config) LongWindow() int {
	return c.Window
}
