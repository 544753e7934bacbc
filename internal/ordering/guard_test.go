package ordering

import (
	"testing"
	"time"
)

func ts(sec int) time.Time {
	return time.Date(2026, 1, 15, 12, 0, sec, 0, time.UTC)
}

func TestGuardAccept_FirstTick(t *testing.T) {
	g := NewGuard()
	ok, v := g.Accept("BTCUSDT", ts(0))
	if !ok || v != nil {
		t.Errorf("first tick: got (%v, %+v), want accepted", ok, v)
	}
}

func TestGuardAccept_StrictlyLater(t *testing.T) {
	g := NewGuard()
	g.Accept("BTCUSDT", ts(0))
	ok, _ := g.Accept("BTCUSDT", ts(1))
	if !ok {
		t.Error("strictly later tick should be accepted")
	}
}

func TestGuardAccept_EqualTimestampRejected(t *testing.T) {
	g := NewGuard()
	g.Accept("BTCUSDT", ts(5))
	ok, v := g.Accept("BTCUSDT", ts(5)) // equal, not strictly later
	if ok {
		t.Fatal("equal timestamp should be rejected")
	}
	if v == nil || v.Pair != "BTCUSDT" {
		t.Fatalf("violation = %+v, want pair BTCUSDT", v)
	}
	if v.Rejected != v.Previous {
		t.Errorf("equal-ts violation: rejected %s != previous %s", v.Rejected, v.Previous)
	}
}

func TestGuardAccept_EarlierRejected(t *testing.T) {
	g := NewGuard()
	g.Accept("BTCUSDT", ts(10))
	ok, v := g.Accept("BTCUSDT", ts(5))
	if ok {
		t.Fatal("earlier timestamp should be rejected")
	}
	if v.Rejected != "2026-01-15T12:00:05Z" {
		t.Errorf("Rejected = %s, want 2026-01-15T12:00:05Z", v.Rejected)
	}
	if v.Previous != "2026-01-15T12:00:10Z" {
		t.Errorf("Previous = %s, want 2026-01-15T12:00:10Z", v.Previous)
	}
}

func TestGuardAccept_RejectionDoesNotAdvance(t *testing.T) {
	g := NewGuard()
	g.Accept("BTCUSDT", ts(10))
	g.Accept("BTCUSDT", ts(5)) // rejected

	// The rejected tick must not have moved the reference: 10s is still
	// the bar, so 7s is also rejected but 11s passes
	if ok, _ := g.Accept("BTCUSDT", ts(7)); ok {
		t.Error("tick at 7s should be rejected, reference should still be 10s")
	}
	if ok, _ := g.Accept("BTCUSDT", ts(11)); !ok {
		t.Error("tick at 11s should be accepted")
	}
}

func TestGuardAccept_PairsIndependent(t *testing.T) {
	g := NewGuard()
	g.Accept("BTCUSDT", ts(10))

	// ETHUSDT has no history yet; BTCUSDT's reference must not apply
	if ok, _ := g.Accept("ETHUSDT", ts(5)); !ok {
		t.Error("first ETHUSDT tick should be accepted regardless of BTCUSDT history")
	}
}

func TestGuardLastAccepted(t *testing.T) {
	g := NewGuard()
	if _, ok := g.LastAccepted("BTCUSDT"); ok {
		t.Error("LastAccepted should report no history for a fresh guard")
	}

	g.Accept("BTCUSDT", ts(3))
	got, ok := g.LastAccepted("BTCUSDT")
	if !ok || !got.Equal(ts(3)) {
		t.Errorf("LastAccepted = (%v, %v), want (%v, true)", got, ok, ts(3))
	}
}
