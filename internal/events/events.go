// Package events defines the engine's outbound progress notifications.
// A Sink is optional: the engine behaves identically whether or not one
// is registered.
package events

import "time"

// EventType represents the kind of progress event the engine emits.
type EventType string

const (
	// EventTypeCycleStarted indicates an autonomous cycle began
	EventTypeCycleStarted EventType = "cycle_started"
	// EventTypeReviewCompleted indicates the council review finished
	EventTypeReviewCompleted EventType = "review_completed"
	// EventTypeImprovementDetected indicates a new improvement was tracked
	EventTypeImprovementDetected EventType = "improvement_detected"
	// EventTypeImprovementExecuted indicates an improvement completed successfully
	EventTypeImprovementExecuted EventType = "improvement_executed"
	// EventTypeImprovementRejected indicates an execution attempt failed
	EventTypeImprovementRejected EventType = "improvement_rejected"
	// EventTypeFeedbackRecorded indicates a feedback loop entry was appended
	EventTypeFeedbackRecorded EventType = "feedback_recorded"
)

// Event is one progress notification.
type Event struct {
	Type          EventType              `json:"type"`
	Timestamp     time.Time              `json:"timestamp"`
	ImprovementID string                 `json:"improvement_id,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
}

// Sink receives progress events. Implementations must be fast or hand
// off internally; the engine calls Handle synchronously.
type Sink interface {
	Handle(event Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event Event)

// Handle implements Sink.
func (f SinkFunc) Handle(event Event) {
	f(event)
}
