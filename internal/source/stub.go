package source

import (
	"context"
	"math"
)

// Stub emits deterministic synthetic prices: a slow sine walk around a
// fixed base per pair. Useful for offline runs and tests.
type Stub struct {
	bases map[string]float64
	step  int
}

// NewStub creates a stub source. Pairs missing from bases get base 100.
func NewStub(bases map[string]float64) *Stub {
	if bases == nil {
		bases = make(map[string]float64)
	}
	return &Stub{bases: bases}
}

// Name identifies the source on persisted observations.
func (s *Stub) Name() string {
	return "stub"
}

// Fetch returns a deterministic price for every requested pair.
func (s *Stub) Fetch(_ context.Context, pairs []string) map[string]float64 {
	s.step++
	prices := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		base, ok := s.bases[pair]
		if !ok {
			base = 100
		}
		prices[pair] = base * (1 + 0.01*math.Sin(float64(s.step)/7))
	}
	return prices
}
