// Package engine owns the improvement lifecycle: it consumes council
// reviews, decides which proposals may execute without human sign-off,
// drives execution through the apply-change collaborator, and keeps the
// append-only audit trail.
//
// The engine is single-writer: RunAutonomousCycle and ApproveAndExecute
// serialize on one mutex so their check-then-mutate sequences (quota
// consumption in particular) never interleave.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/council"
	"github.com/opscouncil/opscouncil/internal/events"
	"github.com/opscouncil/opscouncil/internal/types"
)

const defaultApplyTimeout = 2 * time.Minute

// ErrNotFound is returned when an operation references an unknown
// improvement id. Callers must branch differently on this than on an
// execution that ran and failed; the latter is never an error.
var ErrNotFound = errors.New("improvement not found")

// ErrDisabled is returned when the subsystem is switched off.
var ErrDisabled = errors.New("agentic engine is disabled")

// ChangeApplier is the external collaborator that carries out an
// improvement. Its failure is interpreted as a domain-level rejection,
// never propagated as an engine error.
type ChangeApplier interface {
	Apply(ctx context.Context, suggestion types.ImprovementSuggestion, snap *types.Snapshot) (*types.ImprovementResult, error)
}

// Config holds engine configuration
type Config struct {
	// Council runs the analyzer roster (required)
	Council *council.Council
	// Applier carries out approved improvements (required)
	Applier ChangeApplier
	// Clock supplies time; defaults to the system clock
	Clock clock.Clock
	// Agentic is the initial policy config; defaults to DefaultAgenticConfig
	Agentic *types.AgenticConfig
	// ApplyTimeout bounds each apply-change call (default 2m)
	ApplyTimeout time.Duration
}

// Engine coordinates the council and the improvement lifecycle store.
type Engine struct {
	mu sync.Mutex

	config  types.AgenticConfig
	council *council.Council
	applier ChangeApplier
	clock   clock.Clock

	applyTimeout time.Duration

	// improvements is create-append and status mutate-in-place; order
	// preserves first-detection order. Improvements are never deleted.
	improvements map[string]*types.Improvement
	order        []string

	// history and feedback are append-only.
	history  []types.ExecutionHistoryEntry
	feedback []types.FeedbackLoop

	sink events.Sink
}

// New creates an engine.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil || cfg.Council == nil {
		return nil, fmt.Errorf("council is required")
	}
	if cfg.Applier == nil {
		return nil, fmt.Errorf("applier is required")
	}

	agentic := types.DefaultAgenticConfig()
	if cfg.Agentic != nil {
		agentic = *cfg.Agentic
	}
	if err := agentic.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agentic config: %w", err)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	applyTimeout := cfg.ApplyTimeout
	if applyTimeout <= 0 {
		applyTimeout = defaultApplyTimeout
	}

	return &Engine{
		config:       agentic,
		council:      cfg.Council,
		applier:      cfg.Applier,
		clock:        clk,
		applyTimeout: applyTimeout,
		improvements: make(map[string]*types.Improvement),
	}, nil
}

// SetProgressSink registers the optional progress sink. Registering the
// same sink again is a no-op in effect; registering nil clears it.
func (e *Engine) SetProgressSink(sink events.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
}

// ClearProgressSink removes the progress sink. Safe to call when none
// is registered.
func (e *Engine) ClearProgressSink() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = nil
}

// emit delivers a progress event if a sink is registered. Called with
// the engine lock held; sinks must be fast or hand off internally.
func (e *Engine) emit(eventType events.EventType, improvementID, message string, data map[string]interface{}) {
	if e.sink == nil {
		return
	}
	e.sink.Handle(events.Event{
		Type:          eventType,
		Timestamp:     e.clock.Now(),
		ImprovementID: improvementID,
		Message:       message,
		Data:          data,
	})
}

// UpdateConfig shallow-merges the patch into the current config.
// Unspecified fields keep their prior values.
func (e *Engine) UpdateConfig(patch types.ConfigPatch) (types.AgenticConfig, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged := patch.Apply(e.config)
	if err := merged.Validate(); err != nil {
		return types.AgenticConfig{}, fmt.Errorf("invalid config update: %w", err)
	}
	e.config = merged
	return merged, nil
}

// GetConfig returns the current config.
func (e *Engine) GetConfig() types.AgenticConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.config
}

// GetCouncil returns the council the engine drives.
func (e *Engine) GetCouncil() *council.Council {
	return e.council
}

// RunAutonomousCycle runs one council review over the snapshot, tracks
// every newly surfaced suggestion, auto-executes the candidates that
// pass the safety gate, and records the per-cycle feedback loop entry.
// The daily quota is consumed sequentially inside the loop, so one
// cycle can never exceed the cap even when many candidates qualify.
func (e *Engine) RunAutonomousCycle(ctx context.Context, snap *types.Snapshot) (*types.CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.config.Enabled {
		return nil, ErrDisabled
	}

	e.emit(events.EventTypeCycleStarted, "", "autonomous cycle started", nil)

	review, err := e.council.RunReview(ctx, snap, e.config.EnabledAgents)
	if err != nil {
		return nil, fmt.Errorf("council review failed: %w", err)
	}
	e.emit(events.EventTypeReviewCompleted, "", "council review completed", map[string]interface{}{
		"agents_run":  len(review.AgentsRun),
		"suggestions": len(review.Improvements),
	})

	// Track new suggestions. Dedup is identity-based: a suggestion that
	// reappears with a fresh id is tracked as a new occurrence.
	now := e.clock.Now()
	for _, suggestion := range review.Improvements {
		if _, tracked := e.improvements[suggestion.ID]; tracked {
			continue
		}
		imp := &types.Improvement{
			ID:         suggestion.ID,
			Suggestion: suggestion,
			Status:     types.StatusDetected,
			DetectedAt: now,
		}
		e.improvements[suggestion.ID] = imp
		e.order = append(e.order, suggestion.ID)
		e.emit(events.EventTypeImprovementDetected, imp.ID, imp.Suggestion.Title, nil)
	}

	// Evaluate every still-detected improvement, new and carried-over,
	// in first-detection order.
	var executed, pending []*types.Improvement
	for _, id := range e.order {
		imp := e.improvements[id]
		if imp.Status != types.StatusDetected {
			continue
		}
		if e.autoExecutable(imp) {
			e.executeLocked(ctx, imp, snap, types.TriggerAutonomous)
			executed = append(executed, imp)
		} else {
			pending = append(pending, imp)
		}
	}

	e.appendFeedbackLocked(types.FeedbackAgentReview, map[string]interface{}{
		"agents_run":  len(review.AgentsRun),
		"findings":    countFindings(review),
		"suggestions": len(review.Improvements),
		"executed":    len(executed),
		"pending":     len(pending),
	}, agentIDs(review))

	if executed == nil {
		executed = []*types.Improvement{}
	}
	if pending == nil {
		pending = []*types.Improvement{}
	}
	return &types.CycleResult{
		Review:   review,
		Executed: executed,
		Pending:  pending,
	}, nil
}

// autoExecutable evaluates the auto-execution predicate against the
// current config and today's consumed quota. Lock must be held.
func (e *Engine) autoExecutable(imp *types.Improvement) bool {
	if !e.config.AutonomousExecutionEnabled {
		return false
	}
	if imp.Suggestion.SafetyScore < e.config.SafetyThreshold {
		return false
	}
	if e.config.RequiresReview(imp.Suggestion.Category) {
		return false
	}
	return e.autonomousCountToday() < e.config.MaxDailyImprovements
}

// autonomousCountToday counts autonomous-path history entries on the
// clock's current calendar day. Lock must be held.
func (e *Engine) autonomousCountToday() int {
	today := e.clock.Now()
	y, m, d := today.Date()

	count := 0
	for _, entry := range e.history {
		if entry.Trigger != types.TriggerAutonomous {
			continue
		}
		ey, em, ed := entry.Timestamp.Date()
		if ey == y && em == m && ed == d {
			count++
		}
	}
	return count
}

// ApproveAndExecute manually approves and executes one improvement by
// id, regardless of safety score or category, without consuming the
// daily quota. An unknown id fails with ErrNotFound; an execution that
// ran and failed does not.
func (e *Engine) ApproveAndExecute(ctx context.Context, id string, snap *types.Snapshot) (*types.ImprovementResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	imp, ok := e.improvements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if imp.Status.IsTerminal() {
		return nil, fmt.Errorf("improvement %s is already %s", id, imp.Status)
	}

	imp.ReviewedBy = append(imp.ReviewedBy, "manual-approval")
	result := e.executeLocked(ctx, imp, snap, types.TriggerManual)
	return result, nil
}

// executeLocked runs the shared execute-transition sequence:
// approved -> implementing -> testing, invokes the apply-change
// collaborator under the engine-side timeout, settles the improvement
// to completed or rejected, and appends exactly one history entry.
// Lock must be held.
func (e *Engine) executeLocked(ctx context.Context, imp *types.Improvement, snap *types.Snapshot, trigger types.ExecutionTrigger) *types.ImprovementResult {
	now := e.clock.Now()
	imp.Status = types.StatusApproved
	imp.ApprovedAt = &now

	implementedAt := e.clock.Now()
	imp.Status = types.StatusImplementing
	imp.ImplementedAt = &implementedAt
	imp.Status = types.StatusTesting

	result := e.applyChange(ctx, imp.Suggestion, snap)

	completedAt := e.clock.Now()
	imp.CompletedAt = &completedAt
	imp.Result = result
	if result.Success {
		imp.Status = types.StatusCompleted
		e.emit(events.EventTypeImprovementExecuted, imp.ID, imp.Suggestion.Title, nil)
	} else {
		imp.Status = types.StatusRejected
		e.emit(events.EventTypeImprovementRejected, imp.ID, result.Feedback, nil)
	}

	e.history = append(e.history, types.ExecutionHistoryEntry{
		ImprovementID: imp.ID,
		Timestamp:     completedAt,
		Trigger:       trigger,
		Result:        *result,
	})
	return result
}

// applyChange invokes the collaborator with a hang-proof timeout. A
// collaborator error or timeout becomes a failed result, not an engine
// error.
func (e *Engine) applyChange(ctx context.Context, suggestion types.ImprovementSuggestion, snap *types.Snapshot) *types.ImprovementResult {
	actx, cancel := context.WithTimeout(ctx, e.applyTimeout)
	defer cancel()

	type applyResult struct {
		result *types.ImprovementResult
		err    error
	}
	ch := make(chan applyResult, 1)
	go func() {
		result, err := e.applier.Apply(actx, suggestion, snap)
		ch <- applyResult{result: result, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return &types.ImprovementResult{
				Success:  false,
				Feedback: fmt.Sprintf("apply-change failed: %v", res.err),
			}
		}
		if res.result == nil {
			return &types.ImprovementResult{
				Success:  false,
				Feedback: "apply-change returned no result",
			}
		}
		return res.result
	case <-actx.Done():
		return &types.ImprovementResult{
			Success:  false,
			Feedback: fmt.Sprintf("apply-change timed out after %s", e.applyTimeout),
		}
	}
}

// GetImprovements returns all tracked improvements in first-detection
// order.
func (e *Engine) GetImprovements() []*types.Improvement {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*types.Improvement, 0, len(e.order))
	for _, id := range e.order {
		imp := *e.improvements[id]
		out = append(out, &imp)
	}
	return out
}

// GetImprovementsByStatus returns tracked improvements with the given
// status, in first-detection order.
func (e *Engine) GetImprovementsByStatus(status types.Status) []*types.Improvement {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*types.Improvement
	for _, id := range e.order {
		if e.improvements[id].Status == status {
			imp := *e.improvements[id]
			out = append(out, &imp)
		}
	}
	return out
}

// GetExecutionHistory returns the append-only execution audit log.
func (e *Engine) GetExecutionHistory() []types.ExecutionHistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.ExecutionHistoryEntry(nil), e.history...)
}

// GetFeedbackLoops returns all recorded feedback loop entries.
func (e *Engine) GetFeedbackLoops() []types.FeedbackLoop {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.FeedbackLoop(nil), e.feedback...)
}

// CreateFeedbackLoop records an explicit feedback loop entry.
func (e *Engine) CreateFeedbackLoop(feedbackType types.FeedbackType, data map[string]interface{}) (types.FeedbackLoop, error) {
	if !feedbackType.IsValid() {
		return types.FeedbackLoop{}, fmt.Errorf("invalid feedback type: %s", feedbackType)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.appendFeedbackLocked(feedbackType, data, nil), nil
}

// appendFeedbackLocked appends one feedback loop entry. Lock must be held.
func (e *Engine) appendFeedbackLocked(feedbackType types.FeedbackType, data map[string]interface{}, processedBy []string) types.FeedbackLoop {
	loop := types.FeedbackLoop{
		ID:          uuid.New().String(),
		Type:        feedbackType,
		Data:        data,
		Timestamp:   e.clock.Now(),
		ProcessedBy: processedBy,
	}
	e.feedback = append(e.feedback, loop)
	e.emit(events.EventTypeFeedbackRecorded, "", string(feedbackType), nil)
	return loop
}

// GetSystemHealth derives summary metrics over the tracked state.
func (e *Engine) GetSystemHealth() types.SystemHealth {
	e.mu.Lock()
	defer e.mu.Unlock()

	health := types.SystemHealth{
		TotalImprovements: len(e.order),
	}

	var safetySum int
	for _, id := range e.order {
		imp := e.improvements[id]
		safetySum += imp.Suggestion.SafetyScore
		switch {
		case imp.Status == types.StatusCompleted:
			health.Implemented++
		case !imp.Status.IsTerminal():
			health.Pending++
		}
	}
	if len(e.order) > 0 {
		health.AvgSafetyScore = float64(safetySum) / float64(len(e.order))
	}

	if len(e.history) > 0 {
		successes := 0
		for _, entry := range e.history {
			if entry.Result.Success {
				successes++
			}
		}
		health.SuccessRate = 100 * float64(successes) / float64(len(e.history))
	}
	return health
}

// countFindings totals findings across all analyses in a review.
func countFindings(review *types.CouncilReview) int {
	n := 0
	for _, analysis := range review.Analyses {
		n += len(analysis.Findings)
	}
	return n
}

// agentIDs lists the agent ids that contributed to a review.
func agentIDs(review *types.CouncilReview) []string {
	ids := make([]string, 0, len(review.Analyses))
	for _, analysis := range review.Analyses {
		ids = append(ids, analysis.AgentID)
	}
	return ids
}
