package types

import "time"

// BusinessRecord is one opaque record from the surrounding system. The
// engine never interprets Fields; analyzers inspect them for quality,
// security, and usability signals.
type BusinessRecord struct {
	ID        string                 `json:"id"`
	UpdatedAt time.Time              `json:"updated_at"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// UserAction is one recent user interaction supplied with the snapshot.
type UserAction struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// PerformanceMetrics carries the four system-level metrics supplied on
// every cycle.
type PerformanceMetrics struct {
	AvgResponseTimeMs     float64 `json:"avg_response_time_ms"`
	ErrorRate             float64 `json:"error_rate"`              // 0-1
	UserSatisfactionScore float64 `json:"user_satisfaction_score"` // 0-10
	DataFreshnessScore    float64 `json:"data_freshness_score"`    // 0-100
}

// Snapshot is the read-only system-state input to one council review.
// It is produced by ingestion layers outside this subsystem; nothing in
// the council or engine mutates it.
type Snapshot struct {
	Records []BusinessRecord   `json:"records"`
	Actions []UserAction       `json:"actions"`
	Metrics PerformanceMetrics `json:"metrics"`
}
