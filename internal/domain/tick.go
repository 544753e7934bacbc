package domain

import "time"

// Tick represents one (pair, price, timestamp) observation offered to the
// pipeline for processing. Timestamps are UTC.
type Tick struct {
	Pair      string    // trading pair identifier, e.g. "BTCUSDT"
	Price     float64   // observed price
	Timestamp time.Time // observation time
	Source    string    // upstream source name, e.g. "binance"
}

// TickTimestampFormat is the wire format for tick timestamps across all
// persisted surfaces (RFC3339 with sub-second precision).
const TickTimestampFormat = time.RFC3339Nano
