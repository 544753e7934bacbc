// Package ordering enforces the per-pair timestamp monotonicity contract.
package ordering

import (
	"time"

	"synthdesk-listener/internal/domain"
)

// Guard tracks the last accepted timestamp per pair and rejects any tick
// that does not strictly advance it. Pairs are independent feeds: a stall
// or reorder in one pair never blocks another.
type Guard struct {
	lastAccepted map[string]time.Time
}

// NewGuard creates an empty Guard.
func NewGuard() *Guard {
	return &Guard{lastAccepted: make(map[string]time.Time)}
}

// Accept returns (true, nil) and records the timestamp when the tick is the
// first for its pair or strictly later than the last accepted one.
// Otherwise it returns (false, violation) and records nothing.
func (g *Guard) Accept(pair string, ts time.Time) (bool, *domain.Violation) {
	prev, ok := g.lastAccepted[pair]
	if ok && !ts.After(prev) {
		return false, &domain.Violation{
			Pair:     pair,
			Rejected: ts.UTC().Format(domain.TickTimestampFormat),
			Previous: prev.UTC().Format(domain.TickTimestampFormat),
		}
	}
	g.lastAccepted[pair] = ts
	return true, nil
}

// LastAccepted returns the last accepted timestamp for a pair, if any.
func (g *Guard) LastAccepted(pair string) (time.Time, bool) {
	ts, ok := g.lastAccepted[pair]
	return ts, ok
}
