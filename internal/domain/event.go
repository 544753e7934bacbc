package domain

// SchemaVersion identifies the persisted event schema. Bump when the shape
// of Event or any log surface changes incompatibly.
const SchemaVersion = "v1"

// Detector names, in pipeline order. The set is closed: adding a detector is
// a reviewed change to this list, not runtime registration.
const (
	EventBreakout = "breakout"
	EventVolSpike = "vol_spike"
	EventMRTouch  = "mr_touch"
)

// DetectorNames returns the fixed detector evaluation order.
func DetectorNames() []string {
	return []string{EventBreakout, EventVolSpike, EventMRTouch}
}

// Annotation is the raw output of a single detector for a single tick:
// descriptive only, at most one per (tick, detector).
type Annotation struct {
	Event     string             // detector name
	Pair      string             // trading pair
	Price     float64            // tick price
	Timestamp string             // tick timestamp, TickTimestampFormat
	Metrics   map[string]float64 // detector-specific metrics
}

// Event is the canonical emitted record assembled from an Annotation.
// Immutable once built; only serialized afterwards.
type Event struct {
	Event         string             `json:"event"`
	Pair          string             `json:"pair"`
	Price         float64            `json:"price"`
	Timestamp     string             `json:"timestamp"`
	Metrics       map[string]float64 `json:"metrics"`
	TickID        int64              `json:"tick_id"`
	SchemaVersion string             `json:"schema_version"`
}
