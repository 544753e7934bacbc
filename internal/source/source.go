// Package source supplies current prices for the configured pair set, once
// per poll cycle. A source may omit pairs on transient failure: the
// pipeline treats a missing pair as "no tick this cycle", not an error.
package source

import "context"

// Source fetches the latest price per pair. Implementations skip pairs
// they cannot serve this cycle rather than failing the whole fetch.
type Source interface {
	// Fetch returns pair → latest price for the pairs it could serve.
	Fetch(ctx context.Context, pairs []string) map[string]float64

	// Name identifies the source on persisted observations.
	Name() string
}
