package stats

import (
	"synthdesk-listener/internal/domain"
)

// Tracker owns every pair's rolling window. Single writer: the tick
// pipeline processes one tick at a time, so no internal locking.
type Tracker struct {
	window      int
	shortWindow int
	longWindow  int
	pairs       map[string]*pairWindow
}

// pairWindow is one pair's bounded FIFO price history.
type pairWindow struct {
	prices []float64
}

// NewTracker creates a Tracker with the given rolling window and
// short/long volatility sub-windows.
func NewTracker(window, shortWindow, longWindow int) *Tracker {
	return &Tracker{
		window:      window,
		shortWindow: shortWindow,
		longWindow:  longWindow,
		pairs:       make(map[string]*pairWindow),
	}
}

// Update appends price to the pair's history, evicting the oldest sample
// when the window is full, and returns the metrics over the effective
// window. Never fails: short history yields zero volatility fields.
func (t *Tracker) Update(pair string, price float64) domain.Metrics {
	w, ok := t.pairs[pair]
	if !ok {
		w = &pairWindow{prices: make([]float64, 0, t.window)}
		t.pairs[pair] = w
	}

	if len(w.prices) == t.window {
		copy(w.prices, w.prices[1:])
		w.prices = w.prices[:t.window-1]
	}
	w.prices = append(w.prices, price)

	return domain.Metrics{
		RollingMean: Mean(w.prices, t.window),
		RollingStd:  Stddev(w.prices, t.window),
		ShortVol:    Volatility(w.prices, t.shortWindow),
		LongVol:     Volatility(w.prices, t.longWindow),
	}
}

// State snapshots the pair's persisted form. Returns nil when the pair has
// no accepted ticks yet.
func (t *Tracker) State(pair string) *domain.PairState {
	w, ok := t.pairs[pair]
	if !ok {
		return nil
	}
	prices := make([]float64, len(w.prices))
	copy(prices, w.prices)
	return &domain.PairState{
		Pair:        pair,
		Prices:      prices,
		ShortWindow: t.shortWindow,
		LongWindow:  t.longWindow,
	}
}

// Restore seeds a pair's history from persisted state so rolling context
// survives a restart. The current configuration wins over the persisted
// window sizes: when the stored history exceeds the configured window the
// oldest entries are truncated, and the configured sub-windows replace the
// stored ones.
func (t *Tracker) Restore(st *domain.PairState) {
	if st == nil || st.Pair == "" {
		return
	}

	prices := st.Prices
	if len(prices) > t.window {
		prices = prices[len(prices)-t.window:]
	}

	w := &pairWindow{prices: make([]float64, 0, t.window)}
	w.prices = append(w.prices, prices...)
	t.pairs[st.Pair] = w
}

// History returns a copy of the pair's current price history, oldest first.
func (t *Tracker) History(pair string) []float64 {
	w, ok := t.pairs[pair]
	if !ok {
		return nil
	}
	prices := make([]float64, len(w.prices))
	copy(prices, w.prices)
	return prices
}
