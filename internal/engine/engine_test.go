package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscouncil/opscouncil/internal/analyzer"
	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/council"
	"github.com/opscouncil/opscouncil/internal/events"
	"github.com/opscouncil/opscouncil/internal/types"
)

var testStart = time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

// scriptedAnalyzer emits a fixed or per-cycle-fresh set of suggestions.
type scriptedAnalyzer struct {
	role        types.AgentRole
	suggestions []types.ImprovementSuggestion
	freshIDs    bool
}

func (s *scriptedAnalyzer) ID() string             { return "scripted-" + string(s.role) }
func (s *scriptedAnalyzer) Role() types.AgentRole  { return s.role }
func (s *scriptedAnalyzer) Name() string           { return "Scripted " + string(s.role) }
func (s *scriptedAnalyzer) Capabilities() []string { return []string{"scripted"} }

func (s *scriptedAnalyzer) Analyze(ctx context.Context, snap *types.Snapshot) (*types.AgentAnalysis, error) {
	if snap == nil {
		return nil, analyzer.ErrNilSnapshot
	}
	out := make([]types.ImprovementSuggestion, len(s.suggestions))
	copy(out, s.suggestions)
	if s.freshIDs {
		for i := range out {
			out[i].ID = uuid.New().String()
		}
	}
	return &types.AgentAnalysis{
		AgentID:     s.ID(),
		Role:        s.role,
		Findings:    []types.Finding{},
		Suggestions: out,
		Timestamp:   time.Now(),
	}, nil
}

// scriptedApplier is a controllable apply-change collaborator.
type scriptedApplier struct {
	succeed bool
	err     error
	calls   int
}

func (a *scriptedApplier) Apply(ctx context.Context, suggestion types.ImprovementSuggestion, snap *types.Snapshot) (*types.ImprovementResult, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &types.ImprovementResult{
		Success:       a.succeed,
		Changes:       []string{"applied " + suggestion.Title},
		MetricsBefore: map[string]float64{"score": 50},
		MetricsAfter:  map[string]float64{"score": 80},
		Feedback:      "done",
	}, nil
}

func suggestion(id string, cat types.Category, safety int) types.ImprovementSuggestion {
	return types.ImprovementSuggestion{
		ID:          id,
		Category:    cat,
		Priority:    types.PriorityMedium,
		Title:       "improve " + id,
		Description: "scripted improvement",
		SafetyScore: safety,
	}
}

type testRig struct {
	engine  *Engine
	clock   *clock.Fake
	applier *scriptedApplier
}

func newTestRig(t *testing.T, agentic types.AgenticConfig, analyzers ...analyzer.Analyzer) *testRig {
	t.Helper()

	reg := analyzer.NewRegistry()
	for _, a := range analyzers {
		require.NoError(t, reg.Register(a))
	}
	c, err := council.New(&council.Config{Registry: reg})
	require.NoError(t, err)

	clk := clock.NewFake(testStart)
	applier := &scriptedApplier{succeed: true}
	eng, err := New(&Config{
		Council: c,
		Applier: applier,
		Clock:   clk,
		Agentic: &agentic,
	})
	require.NoError(t, err)

	return &testRig{engine: eng, clock: clk, applier: applier}
}

// autoConfig returns a config with autonomous execution on and the
// review-required list empty unless stated.
func autoConfig(threshold, maxDaily int, reviewRequired ...types.Category) types.AgenticConfig {
	cfg := types.DefaultAgenticConfig()
	cfg.AutonomousExecutionEnabled = true
	cfg.SafetyThreshold = threshold
	cfg.MaxDailyImprovements = maxDaily
	cfg.ReviewRequired = reviewRequired
	return cfg
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	reg := analyzer.NewRegistry()
	c, err := council.New(&council.Config{Registry: reg})
	require.NoError(t, err)

	_, err = New(&Config{Council: c})
	assert.Error(t, err, "applier is required")

	bad := types.DefaultAgenticConfig()
	bad.SafetyThreshold = 200
	_, err = New(&Config{Council: c, Applier: &scriptedApplier{}, Agentic: &bad})
	assert.Error(t, err)
}

func TestRunAutonomousCycle_DisabledEngine(t *testing.T) {
	cfg := types.DefaultAgenticConfig()
	cfg.Enabled = false
	rig := newTestRig(t, cfg, &scriptedAnalyzer{role: types.RoleSecurity})

	_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestScenarioA_AutonomousDisabledLeavesEverythingPending(t *testing.T) {
	cfg := types.DefaultAgenticConfig() // autonomous execution off
	rig := newTestRig(t, cfg, &scriptedAnalyzer{
		role: types.RoleDataQuality,
		suggestions: []types.ImprovementSuggestion{
			suggestion("dq-1", types.CategoryDataQuality, 95),
			suggestion("dq-2", types.CategoryDataQuality, 90),
		},
	})

	result, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)

	assert.Empty(t, result.Executed)
	assert.NotEmpty(t, result.Pending)
	assert.Zero(t, rig.applier.calls)
	assert.Empty(t, rig.engine.GetExecutionHistory())
}

func TestScenarioB_DailyQuotaHoldsAcrossCycles(t *testing.T) {
	rig := newTestRig(t, autoConfig(50, 1), &scriptedAnalyzer{
		role:     types.RoleDataQuality,
		freshIDs: true,
		suggestions: []types.ImprovementSuggestion{
			suggestion("q1", types.CategoryDataQuality, 80),
			suggestion("q2", types.CategoryDataQuality, 85),
		},
	})

	// Two cycles the same day, each surfacing two qualifying candidates.
	for i := 0; i < 2; i++ {
		_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
		require.NoError(t, err)
		rig.clock.Advance(time.Hour)
	}

	autonomous := 0
	for _, entry := range rig.engine.GetExecutionHistory() {
		if entry.Trigger == types.TriggerAutonomous {
			autonomous++
		}
	}
	assert.LessOrEqual(t, autonomous, 1, "same-day autonomous executions must not exceed the cap")
	assert.Equal(t, 1, autonomous)
}

func TestQuotaResetsNextCalendarDay(t *testing.T) {
	rig := newTestRig(t, autoConfig(50, 1), &scriptedAnalyzer{
		role:        types.RoleDataQuality,
		freshIDs:    true,
		suggestions: []types.ImprovementSuggestion{suggestion("q", types.CategoryDataQuality, 90)},
	})

	_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)
	require.Len(t, rig.engine.GetExecutionHistory(), 1)

	// Same day: quota exhausted.
	_, err = rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)
	assert.Len(t, rig.engine.GetExecutionHistory(), 1)

	// Next day: one more allowed.
	rig.clock.Advance(24 * time.Hour)
	_, err = rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)
	assert.Len(t, rig.engine.GetExecutionHistory(), 2)
}

func TestScenarioC_ReviewRequiredNeverAutoCompletes(t *testing.T) {
	rig := newTestRig(t, autoConfig(50, 10, types.CategorySecurity), &scriptedAnalyzer{
		role:        types.RoleSecurity,
		suggestions: []types.ImprovementSuggestion{suggestion("sec-1", types.CategorySecurity, 95)},
	})

	// Several cycles: a perfect safety score never clears mandatory review.
	for i := 0; i < 3; i++ {
		result, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
		require.NoError(t, err)
		assert.Empty(t, result.Executed)
	}
	imps := rig.engine.GetImprovementsByStatus(types.StatusDetected)
	require.Len(t, imps, 1)

	// Explicit manual approval drives it to terminal.
	result, err := rig.engine.ApproveAndExecute(context.Background(), "sec-1", &types.Snapshot{})
	require.NoError(t, err)
	assert.True(t, result.Success)

	imp := rig.engine.GetImprovements()[0]
	assert.Equal(t, types.StatusCompleted, imp.Status)
	assert.NotNil(t, imp.ApprovedAt)
	assert.Contains(t, imp.ReviewedBy, "manual-approval")
}

func TestScenarioD_ApproveUnknownIDFails(t *testing.T) {
	rig := newTestRig(t, types.DefaultAgenticConfig(), &scriptedAnalyzer{role: types.RoleSecurity})

	_, err := rig.engine.ApproveAndExecute(context.Background(), "missing-id", &types.Snapshot{})
	require.Error(t, err, "unknown id must never be a silent no-op")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMonotonicSafetyGate(t *testing.T) {
	// Identical candidate set under two thresholds T1 < T2: the stricter
	// gate never executes more.
	candidates := []types.ImprovementSuggestion{
		suggestion("a", types.CategoryDataQuality, 55),
		suggestion("b", types.CategoryDataQuality, 75),
		suggestion("c", types.CategoryDataQuality, 95),
	}

	run := func(threshold int) int {
		rig := newTestRig(t, autoConfig(threshold, 100), &scriptedAnalyzer{
			role:        types.RoleDataQuality,
			suggestions: candidates,
		})
		result, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
		require.NoError(t, err)
		return len(result.Executed)
	}

	atT1 := run(50)
	atT2 := run(70)
	atT3 := run(96)
	assert.LessOrEqual(t, atT2, atT1)
	assert.LessOrEqual(t, atT3, atT2)
	assert.Equal(t, 3, atT1)
	assert.Equal(t, 2, atT2)
	assert.Equal(t, 0, atT3)
}

func TestManualApprovalBypassesQuotaAndThreshold(t *testing.T) {
	rig := newTestRig(t, autoConfig(90, 0), &scriptedAnalyzer{
		role:        types.RoleDataQuality,
		suggestions: []types.ImprovementSuggestion{suggestion("low", types.CategoryDataQuality, 10)},
	})

	_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)
	require.Empty(t, rig.engine.GetExecutionHistory())

	// Low score, zero quota: manual approval still executes.
	result, err := rig.engine.ApproveAndExecute(context.Background(), "low", &types.Snapshot{})
	require.NoError(t, err)
	assert.True(t, result.Success)

	history := rig.engine.GetExecutionHistory()
	require.Len(t, history, 1)
	assert.Equal(t, types.TriggerManual, history[0].Trigger)
}

func TestFailedApplyIsDomainDataNotError(t *testing.T) {
	rig := newTestRig(t, types.DefaultAgenticConfig(), &scriptedAnalyzer{
		role:        types.RolePerformance,
		suggestions: []types.ImprovementSuggestion{suggestion("perf-1", types.CategoryPerformance, 90)},
	})
	rig.applier.err = fmt.Errorf("migration conflict")

	_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)

	result, err := rig.engine.ApproveAndExecute(context.Background(), "perf-1", &types.Snapshot{})
	require.NoError(t, err, "execution failure is recorded, not propagated")
	assert.False(t, result.Success)
	assert.Contains(t, result.Feedback, "migration conflict")

	imp := rig.engine.GetImprovements()[0]
	assert.Equal(t, types.StatusRejected, imp.Status)
	require.NotNil(t, imp.Result)

	history := rig.engine.GetExecutionHistory()
	require.Len(t, history, 1)
	assert.False(t, history[0].Result.Success)
}

func TestTerminalImprovementCannotReExecute(t *testing.T) {
	rig := newTestRig(t, types.DefaultAgenticConfig(), &scriptedAnalyzer{
		role:        types.RoleDataQuality,
		suggestions: []types.ImprovementSuggestion{suggestion("once", types.CategoryDataQuality, 90)},
	})

	_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)

	_, err = rig.engine.ApproveAndExecute(context.Background(), "once", &types.Snapshot{})
	require.NoError(t, err)

	_, err = rig.engine.ApproveAndExecute(context.Background(), "once", &types.Snapshot{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	// Exactly one history entry for the terminal improvement.
	assert.Len(t, rig.engine.GetExecutionHistory(), 1)
}

func TestCarriedOverPendingExecutesAfterConfigChange(t *testing.T) {
	rig := newTestRig(t, types.DefaultAgenticConfig(), &scriptedAnalyzer{
		role:        types.RoleDataQuality,
		suggestions: []types.ImprovementSuggestion{suggestion("carry", types.CategoryDataQuality, 90)},
	})

	result, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)
	require.Len(t, result.Pending, 1)

	auto := true
	_, err = rig.engine.UpdateConfig(types.ConfigPatch{AutonomousExecutionEnabled: &auto})
	require.NoError(t, err)

	// The still-detected improvement from the earlier cycle qualifies now.
	result, err = rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)
	require.Len(t, result.Executed, 1)
	assert.Equal(t, "carry", result.Executed[0].ID)
	assert.Equal(t, types.StatusCompleted, result.Executed[0].Status)
}

func TestIdentityBasedDedupAcrossCycles(t *testing.T) {
	// Fixed ids: the same suggestion across cycles is tracked once.
	rig := newTestRig(t, types.DefaultAgenticConfig(), &scriptedAnalyzer{
		role:        types.RoleDataQuality,
		suggestions: []types.ImprovementSuggestion{suggestion("same-id", types.CategoryDataQuality, 70)},
	})

	for i := 0; i < 3; i++ {
		_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
		require.NoError(t, err)
	}
	assert.Len(t, rig.engine.GetImprovements(), 1)

	// Fresh ids: each recurrence is a new occurrence.
	rig = newTestRig(t, types.DefaultAgenticConfig(), &scriptedAnalyzer{
		role:        types.RoleDataQuality,
		freshIDs:    true,
		suggestions: []types.ImprovementSuggestion{suggestion("x", types.CategoryDataQuality, 70)},
	})
	for i := 0; i < 3; i++ {
		_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
		require.NoError(t, err)
	}
	assert.Len(t, rig.engine.GetImprovements(), 3)
}

func TestAgentReviewFeedbackAppendedPerCycle(t *testing.T) {
	rig := newTestRig(t, types.DefaultAgenticConfig(), &scriptedAnalyzer{
		role:        types.RoleSecurity,
		suggestions: []types.ImprovementSuggestion{suggestion("s", types.CategorySecurity, 60)},
	})

	for i := 0; i < 2; i++ {
		_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
		require.NoError(t, err)
	}

	loops := rig.engine.GetFeedbackLoops()
	require.Len(t, loops, 2)
	for _, loop := range loops {
		assert.Equal(t, types.FeedbackAgentReview, loop.Type)
		assert.Contains(t, loop.ProcessedBy, "scripted-security")
	}
}

func TestCreateFeedbackLoop(t *testing.T) {
	rig := newTestRig(t, types.DefaultAgenticConfig(), &scriptedAnalyzer{role: types.RoleSecurity})

	loop, err := rig.engine.CreateFeedbackLoop(types.FeedbackUser, map[string]interface{}{"rating": 4})
	require.NoError(t, err)
	assert.NotEmpty(t, loop.ID)
	assert.Equal(t, testStart, loop.Timestamp)

	_, err = rig.engine.CreateFeedbackLoop("survey", nil)
	assert.Error(t, err)

	require.Len(t, rig.engine.GetFeedbackLoops(), 1)
}

func TestGetSystemHealth(t *testing.T) {
	rig := newTestRig(t, autoConfig(50, 10), &scriptedAnalyzer{
		role: types.RoleDataQuality,
		suggestions: []types.ImprovementSuggestion{
			suggestion("hi", types.CategoryDataQuality, 90),
			suggestion("lo", types.CategoryDataQuality, 30),
		},
	})

	// Empty engine: rates defined as zero.
	empty := rig.engine.GetSystemHealth()
	assert.Zero(t, empty.TotalImprovements)
	assert.Zero(t, empty.SuccessRate)
	assert.Zero(t, empty.AvgSafetyScore)

	_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)

	// "hi" auto-executed successfully; "lo" pending.
	health := rig.engine.GetSystemHealth()
	assert.Equal(t, 2, health.TotalImprovements)
	assert.Equal(t, 1, health.Implemented)
	assert.Equal(t, 1, health.Pending)
	assert.InDelta(t, 100.0, health.SuccessRate, 0.01)
	assert.InDelta(t, 60.0, health.AvgSafetyScore, 0.01)

	// A failed manual execution halves the success rate.
	rig.applier.err = fmt.Errorf("boom")
	_, err = rig.engine.ApproveAndExecute(context.Background(), "lo", &types.Snapshot{})
	require.NoError(t, err)

	health = rig.engine.GetSystemHealth()
	assert.Equal(t, 1, health.Implemented)
	assert.Equal(t, 0, health.Pending)
	assert.InDelta(t, 50.0, health.SuccessRate, 0.01)
}

func TestUpdateConfig(t *testing.T) {
	rig := newTestRig(t, types.DefaultAgenticConfig(), &scriptedAnalyzer{role: types.RoleSecurity})

	threshold := 65
	merged, err := rig.engine.UpdateConfig(types.ConfigPatch{SafetyThreshold: &threshold})
	require.NoError(t, err)
	assert.Equal(t, 65, merged.SafetyThreshold)
	assert.Equal(t, 65, rig.engine.GetConfig().SafetyThreshold)

	bad := 400
	_, err = rig.engine.UpdateConfig(types.ConfigPatch{SafetyThreshold: &bad})
	require.Error(t, err)
	assert.Equal(t, 65, rig.engine.GetConfig().SafetyThreshold, "rejected patch must not apply")
}

func TestProgressSink(t *testing.T) {
	rig := newTestRig(t, autoConfig(50, 10), &scriptedAnalyzer{
		role:        types.RoleDataQuality,
		suggestions: []types.ImprovementSuggestion{suggestion("evt", types.CategoryDataQuality, 90)},
	})

	var got []events.EventType
	sink := events.SinkFunc(func(e events.Event) { got = append(got, e.Type) })

	// Registering twice is harmless.
	rig.engine.SetProgressSink(sink)
	rig.engine.SetProgressSink(sink)

	_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)

	assert.Contains(t, got, events.EventTypeCycleStarted)
	assert.Contains(t, got, events.EventTypeImprovementDetected)
	assert.Contains(t, got, events.EventTypeImprovementExecuted)
	assert.Contains(t, got, events.EventTypeFeedbackRecorded)

	// Clearing the sink stops delivery without changing behavior.
	rig.engine.ClearProgressSink()
	rig.engine.ClearProgressSink()
	before := len(got)
	_, err = rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)
	assert.Len(t, got, before)
}

func TestGetImprovementsByStatus(t *testing.T) {
	rig := newTestRig(t, autoConfig(80, 10), &scriptedAnalyzer{
		role: types.RoleDataQuality,
		suggestions: []types.ImprovementSuggestion{
			suggestion("done", types.CategoryDataQuality, 95),
			suggestion("wait", types.CategoryDataQuality, 20),
		},
	})

	_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)

	completed := rig.engine.GetImprovementsByStatus(types.StatusCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "done", completed[0].ID)

	detected := rig.engine.GetImprovementsByStatus(types.StatusDetected)
	require.Len(t, detected, 1)
	assert.Equal(t, "wait", detected[0].ID)

	assert.Empty(t, rig.engine.GetImprovementsByStatus(types.StatusRejected))
}

func TestLifecycleTimestamps(t *testing.T) {
	rig := newTestRig(t, autoConfig(50, 10), &scriptedAnalyzer{
		role:        types.RoleDataQuality,
		suggestions: []types.ImprovementSuggestion{suggestion("ts", types.CategoryDataQuality, 90)},
	})

	_, err := rig.engine.RunAutonomousCycle(context.Background(), &types.Snapshot{})
	require.NoError(t, err)

	imp := rig.engine.GetImprovements()[0]
	assert.Equal(t, types.StatusCompleted, imp.Status)
	assert.Equal(t, testStart, imp.DetectedAt)
	require.NotNil(t, imp.ApprovedAt)
	require.NotNil(t, imp.ImplementedAt)
	require.NotNil(t, imp.CompletedAt)
	require.NotNil(t, imp.Result)
}
