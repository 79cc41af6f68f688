// Package events provides a unified pub/sub event bus for the Bakery.
// Materialization and pruning transitions, live speed changes, and dispatch
// failures all flow through this hub for consumption by metrics and any UI.
package events

import "time"

// EventType identifies the category of event.
type EventType string

// Event types for the shaping engine's lifecycle.
const (
	// EventCircuitMaterialized fires when a circuit gains its HTB class/SQM
	// leaf, whether via a batch build or a live activity trigger.
	EventCircuitMaterialized EventType = "tc.circuit.materialized"
	// EventCircuitPruned fires when an idle circuit's kernel state is torn
	// back down per the lazy materialization policy.
	EventCircuitPruned EventType = "tc.circuit.pruned"
	// EventSiteSpeedChanged fires on a live, out-of-batch site rate change.
	EventSiteSpeedChanged EventType = "tc.site.speed_changed"
	// EventDispatchFailed fires when a `tc` invocation returns a non-zero
	// exit, after the error has already been logged.
	EventDispatchFailed EventType = "tc.dispatch_failed"
	// EventBatchCommitted fires once a batch's diffed command sequence has
	// been fully dispatched.
	EventBatchCommitted EventType = "tc.batch.committed"
)

// Event is the core message passed through the event bus.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
}

// CircuitLifecycleData is the payload for EventCircuitMaterialized and
// EventCircuitPruned.
type CircuitLifecycleData struct {
	CircuitHash int64  `json:"circuit_hash"`
	SiteHash    int64  `json:"site_hash,omitempty"`
	State       string `json:"state"`
}

// SiteSpeedChangedData is the payload for EventSiteSpeedChanged.
type SiteSpeedChangedData struct {
	SiteHash int64   `json:"site_hash"`
	DownMax  float32 `json:"down_max"`
	UpMax    float32 `json:"up_max"`
}

// DispatchFailedData is the payload for EventDispatchFailed.
type DispatchFailedData struct {
	Argv  []string `json:"argv"`
	Error string   `json:"error"`
}

// BatchCommittedData is the payload for EventBatchCommitted.
type BatchCommittedData struct {
	CommandCount int           `json:"command_count"`
	Duration     time.Duration `json:"duration"`
}
