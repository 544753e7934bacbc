package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %s, want 10s", cfg.PollInterval)
	}
	if cfg.Window != 60 {
		t.Errorf("Window = %d, want 60", cfg.Window)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"pairs": ["SOLUSDT"],
		"vol_window": 30,
		"poll_interval_seconds": 5
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Pairs) != 1 || cfg.Pairs[0] != "SOLUSDT" {
		t.Errorf("Pairs = %v, want [SOLUSDT]", cfg.Pairs)
	}
	if cfg.Window != 30 {
		t.Errorf("Window = %d, want 30", cfg.Window)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s", cfg.PollInterval)
	}
	// Fields absent from the file keep defaults
	if cfg.BreakoutThreshold != DefaultBreakoutThreshold {
		t.Errorf("BreakoutThreshold = %g, want default %g", cfg.BreakoutThreshold, DefaultBreakoutThreshold)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("Load of missing file should error")
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte("{broken"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("Load of malformed JSON should error")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no pairs", func(c *Config) { c.Pairs = nil }},
		{"empty pair", func(c *Config) { c.Pairs = []string{"BTCUSDT", ""} }},
		{"zero window", func(c *Config) { c.Window = 0 }},
		{"sub-second interval", func(c *Config) { c.PollInterval = 500 * time.Millisecond }},
		{"zero breakout threshold", func(c *Config) { c.BreakoutThreshold = 0 }},
		{"negative vol spike ratio", func(c *Config) { c.VolSpikeRatio = -1 }},
		{"zero band width", func(c *Config) { c.BandWidth = 0 }},
		{"empty version", func(c *Config) { c.Version = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate should reject %s", tc.name)
			}
		})
	}
}

func TestShortWindow(t *testing.T) {
	cases := []struct {
		window int
		want   int
	}{
		{60, 20}, // W/3
		{15, 5},  // floor of 5
		{9, 5},   // W/3 = 3, floored to 5
		{4, 4},   // floor capped at W
		{1, 1},
	}

	for _, tc := range cases {
		cfg := Default()
		cfg.Window = tc.window
		if got := cfg.ShortWindow(); got != tc.want {
			t.Errorf("ShortWindow(W=%d) = %d, want %d", tc.window, got, tc.want)
		}
		if got := cfg.LongWindow(); got != tc.window {
			t.Errorf("LongWindow(W=%d) = %d, want %d", tc.window, got, tc.window)
		}
	}
}
