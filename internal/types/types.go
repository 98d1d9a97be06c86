package types

import (
	"fmt"
	"time"
)

// Severity classifies how urgent a finding is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Priority ranks how important an improvement suggestion is.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Category is the closed set of improvement axes the council covers.
// Each analyzer owns exactly one category.
type Category string

const (
	CategoryDataQuality Category = "data-quality"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
	CategoryUsability   Category = "usability"
)

// IsValid checks if the category value is valid
func (c Category) IsValid() bool {
	switch c {
	case CategoryDataQuality, CategoryPerformance, CategorySecurity, CategoryUsability:
		return true
	}
	return false
}

// AgentRole identifies an analyzer unit on the council.
// Roles mirror categories one-to-one.
type AgentRole string

const (
	RoleDataQuality AgentRole = "data-quality"
	RolePerformance AgentRole = "performance"
	RoleSecurity    AgentRole = "security"
	RoleUsability   AgentRole = "usability"
)

// IsValid checks if the agent role value is valid
func (r AgentRole) IsValid() bool {
	switch r {
	case RoleDataQuality, RolePerformance, RoleSecurity, RoleUsability:
		return true
	}
	return false
}

// AllRoles returns the full council roster in canonical order.
func AllRoles() []AgentRole {
	return []AgentRole{RoleDataQuality, RolePerformance, RoleSecurity, RoleUsability}
}

// Status represents where a tracked improvement is in its lifecycle.
// Transitions only move forward; completed and rejected are terminal.
type Status string

const (
	StatusDetected     Status = "detected"
	StatusAnalyzing    Status = "analyzing"
	StatusApproved     Status = "approved"
	StatusImplementing Status = "implementing"
	StatusTesting      Status = "testing"
	StatusCompleted    Status = "completed"
	StatusRejected     Status = "rejected"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusDetected, StatusAnalyzing, StatusApproved, StatusImplementing,
		StatusTesting, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true for statuses that end the lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// rank orders statuses along the lifecycle. completed and rejected share
// the final rank because they are alternative endings, not a sequence.
func (s Status) rank() int {
	switch s {
	case StatusDetected:
		return 0
	case StatusAnalyzing:
		return 1
	case StatusApproved:
		return 2
	case StatusImplementing:
		return 3
	case StatusTesting:
		return 4
	case StatusCompleted, StatusRejected:
		return 5
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a legal
// forward transition. Regressions and moves out of a terminal status
// are never legal.
func (s Status) CanTransitionTo(next Status) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}

// Finding is a severity-tagged observation produced by one analyzer.
// Findings are immutable once produced.
type Finding struct {
	ID          string                 `json:"id"`
	Category    Category               `json:"category"`
	Severity    Severity               `json:"severity"`
	Description string                 `json:"description"`
	Evidence    map[string]interface{} `json:"evidence,omitempty"`
}

// ImplementationPlan describes how an improvement would be carried out
// and how to back out if it goes wrong.
type ImplementationPlan struct {
	Steps              []string `json:"steps"`
	Risks              []string `json:"risks,omitempty"`
	RollbackPlan       string   `json:"rollback_plan,omitempty"`
	ValidationCriteria []string `json:"validation_criteria,omitempty"`
}

// ImprovementSuggestion is a proposed corrective or enhancing action from
// an analyzer. Immutable once produced; the engine wraps it in an
// Improvement to track its lifecycle.
type ImprovementSuggestion struct {
	ID              string              `json:"id"`
	Category        Category            `json:"category"`
	Priority        Priority            `json:"priority"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Reasoning       string              `json:"reasoning,omitempty"`
	EstimatedImpact string              `json:"estimated_impact,omitempty"`
	Automatable     bool                `json:"automatable"`
	SafetyScore     int                 `json:"safety_score"`
	Plan            *ImplementationPlan `json:"plan,omitempty"`
}

// Validate checks if the suggestion has valid field values
func (s *ImprovementSuggestion) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !s.Category.IsValid() {
		return fmt.Errorf("invalid category: %s", s.Category)
	}
	if !s.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", s.Priority)
	}
	if s.SafetyScore < 0 || s.SafetyScore > 100 {
		return fmt.Errorf("safety score must be between 0 and 100 (got %d)", s.SafetyScore)
	}
	return nil
}

// AgentAnalysis bundles everything one analyzer produced in one cycle.
type AgentAnalysis struct {
	AgentID     string                  `json:"agent_id"`
	Role        AgentRole               `json:"role"`
	Findings    []Finding               `json:"findings"`
	Suggestions []ImprovementSuggestion `json:"suggestions"`
	Timestamp   time.Time               `json:"timestamp"`
}

// CouncilReview aggregates the output of every analyzer that ran in one
// cycle. Improvements is the flattened concatenation of all suggestions
// in roster order; no cross-analyzer dedup is applied, so two analyzers
// may surface similar proposals each traceable to its own agent.
type CouncilReview struct {
	Analyses     []AgentAnalysis         `json:"analyses"`
	Improvements []ImprovementSuggestion `json:"improvements"`
	AgentsRun    []AgentRole             `json:"agents_run"`
}

// ImprovementResult captures the outcome reported by the apply-change
// collaborator. Failure here is domain data, not an error.
type ImprovementResult struct {
	Success       bool               `json:"success"`
	Changes       []string           `json:"changes,omitempty"`
	MetricsBefore map[string]float64 `json:"metrics_before,omitempty"`
	MetricsAfter  map[string]float64 `json:"metrics_after,omitempty"`
	Feedback      string             `json:"feedback,omitempty"`
}

// Improvement is the engine's durable lifecycle record for one
// suggestion. Created detected, mutated through its lifecycle via the
// status machine, never deleted.
type Improvement struct {
	ID            string                `json:"id"`
	Suggestion    ImprovementSuggestion `json:"suggestion"`
	Status        Status                `json:"status"`
	DetectedAt    time.Time             `json:"detected_at"`
	ApprovedAt    *time.Time            `json:"approved_at,omitempty"`
	ImplementedAt *time.Time            `json:"implemented_at,omitempty"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	Result        *ImprovementResult    `json:"result,omitempty"`
	ReviewedBy    []string              `json:"reviewed_by,omitempty"`
}

// ExecutionTrigger distinguishes how an execution was initiated. Only
// autonomous executions count against the daily quota.
type ExecutionTrigger string

const (
	TriggerAutonomous ExecutionTrigger = "autonomous"
	TriggerManual     ExecutionTrigger = "manual"
)

// IsValid checks if the execution trigger value is valid
func (t ExecutionTrigger) IsValid() bool {
	switch t {
	case TriggerAutonomous, TriggerManual:
		return true
	}
	return false
}

// ExecutionHistoryEntry records one completed execution attempt.
// The history is append-only and serves as the audit trail.
type ExecutionHistoryEntry struct {
	ImprovementID string            `json:"improvement_id"`
	Timestamp     time.Time         `json:"timestamp"`
	Trigger       ExecutionTrigger  `json:"trigger"`
	Result        ImprovementResult `json:"result"`
}

// FeedbackType classifies the source of a feedback loop entry.
type FeedbackType string

const (
	FeedbackUser        FeedbackType = "user-feedback"
	FeedbackSystem      FeedbackType = "system-metrics"
	FeedbackAgentReview FeedbackType = "agent-review"
)

// IsValid checks if the feedback type value is valid
func (t FeedbackType) IsValid() bool {
	switch t {
	case FeedbackUser, FeedbackSystem, FeedbackAgentReview:
		return true
	}
	return false
}

// FeedbackLoop records one feedback signal flowing back into the
// improvement process. Append-only; one agent-review entry is recorded
// automatically per cycle.
type FeedbackLoop struct {
	ID          string                 `json:"id"`
	Type        FeedbackType           `json:"type"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	ProcessedBy []string               `json:"processed_by,omitempty"`
}

// CycleResult is what one autonomous cycle returns to the caller.
type CycleResult struct {
	Review   *CouncilReview `json:"review"`
	Executed []*Improvement `json:"executed_improvements"`
	Pending  []*Improvement `json:"pending_improvements"`
}

// SystemHealth summarizes the engine's tracked state for operators.
type SystemHealth struct {
	TotalImprovements int     `json:"total_improvements"`
	Implemented       int     `json:"implemented"`
	Pending           int     `json:"pending"`
	SuccessRate       float64 `json:"success_rate"`
	AvgSafetyScore    float64 `json:"avg_safety_score"`
}
