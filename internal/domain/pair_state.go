package domain

// PairState is the persisted form of one pair's rolling window. The whole
// window is the unit of persisted truth: it is always rewritten in full,
// never as a delta.
type PairState struct {
	Pair        string    `json:"pair"`
	Prices      []float64 `json:"prices"`
	ShortWindow int       `json:"short_window"`
	LongWindow  int       `json:"long_window"`
}

// SequenceState is the persisted sequence checkpoint: the last tick id
// handed out and when. Rewritten atomically after every accepted tick.
type SequenceState struct {
	LastTickID int64  `json:"last_tick_id"`
	UpdatedAt  string `json:"updated_at"`
}

// Violation records one monotonicity guard rejection.
type Violation struct {
	Pair     string // pair whose tick was rejected
	Rejected string // rejected timestamp
	Previous string // last accepted timestamp for the pair
}
