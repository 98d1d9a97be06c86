package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/types"
)

const (
	// responseWarnMs and responseCriticalMs bound acceptable average
	// response times.
	responseWarnMs     = 1000.0
	responseCriticalMs = 2000.0

	// errorRateCompound escalates a slow-response finding when the
	// error rate is also elevated.
	errorRateCompound = 0.05

	// unpaginatedRecordLimit flags record sets served without pagination.
	unpaginatedRecordLimit = 500

	// recurringActionLimit flags an action type repeated often enough
	// to be worth caching.
	recurringActionLimit = 100
)

// PerformanceAnalyzer inspects response times, record-set sizes, and
// recurring user actions.
type PerformanceAnalyzer struct {
	id    string
	clock clock.Clock
}

// NewPerformanceAnalyzer creates a performance analyzer.
func NewPerformanceAnalyzer(clk clock.Clock) *PerformanceAnalyzer {
	if clk == nil {
		clk = clock.System{}
	}
	return &PerformanceAnalyzer{
		id:    newAgentID(types.RolePerformance),
		clock: clk,
	}
}

// ID implements Analyzer.
func (a *PerformanceAnalyzer) ID() string { return a.id }

// Role implements Analyzer.
func (a *PerformanceAnalyzer) Role() types.AgentRole { return types.RolePerformance }

// Name implements Analyzer.
func (a *PerformanceAnalyzer) Name() string { return "Performance Analyzer" }

// Capabilities implements Analyzer.
func (a *PerformanceAnalyzer) Capabilities() []string {
	return []string{
		"detect slow average response times",
		"flag oversized record sets lacking pagination",
		"spot recurring user actions worth caching",
	}
}

// Analyze implements Analyzer.
func (a *PerformanceAnalyzer) Analyze(ctx context.Context, snap *types.Snapshot) (*types.AgentAnalysis, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := a.clock.Now()
	var findings []types.Finding
	var suggestions []types.ImprovementSuggestion

	// Response time, compounded by error rate
	rt := snap.Metrics.AvgResponseTimeMs
	if rt > responseWarnMs {
		sev := types.SeverityWarning
		if rt > responseCriticalMs || snap.Metrics.ErrorRate > errorRateCompound {
			sev = types.SeverityCritical
		}
		findings = append(findings, newFinding(
			types.CategoryPerformance, sev,
			fmt.Sprintf("average response time is %.0f ms (target under %.0f ms)", rt, responseWarnMs),
			map[string]interface{}{
				"avg_response_time_ms": rt,
				"error_rate":           snap.Metrics.ErrorRate,
			},
		))
	}

	// Unpaginated record sets
	if n := len(snap.Records); n > unpaginatedRecordLimit {
		findings = append(findings, newFinding(
			types.CategoryPerformance, types.SeverityWarning,
			fmt.Sprintf("record set of %d items is served without pagination", n),
			map[string]interface{}{
				"record_count": n,
				"limit":        unpaginatedRecordLimit,
			},
		))
		suggestions = append(suggestions, types.ImprovementSuggestion{
			ID:              newSuggestionID(),
			Category:        types.CategoryPerformance,
			Priority:        types.PriorityHigh,
			Title:           "Paginate large record listings",
			Description:     fmt.Sprintf("Serve record listings in pages instead of all %d at once.", n),
			Reasoning:       "Unpaginated sets past 500 records slow rendering and transfer.",
			EstimatedImpact: "Smaller payloads and faster first render on list views",
			Automatable:     true,
			SafetyScore:     80,
			Plan: &types.ImplementationPlan{
				Steps:              []string{"Add limit/offset parameters to listing paths", "Default page size to 50"},
				RollbackPlan:       "Restore the unpaginated listing path",
				ValidationCriteria: []string{"List responses stay under 50 records"},
			},
		})
	}

	// Recurring action types
	for _, rc := range recurringActions(snap.Actions, recurringActionLimit) {
		findings = append(findings, newFinding(
			types.CategoryPerformance, types.SeverityInfo,
			fmt.Sprintf("user action %q occurred %d times recently", rc.actionType, rc.count),
			map[string]interface{}{
				"action_type": rc.actionType,
				"count":       rc.count,
			},
		))
		suggestions = append(suggestions, types.ImprovementSuggestion{
			ID:              newSuggestionID(),
			Category:        types.CategoryPerformance,
			Priority:        types.PriorityMedium,
			Title:           fmt.Sprintf("Cache results for %q", rc.actionType),
			Description:     fmt.Sprintf("Memoize the result of %q, repeated %d times in the sampled window.", rc.actionType, rc.count),
			Reasoning:       "A hot, repeated action is a strong caching candidate.",
			EstimatedImpact: "Repeated invocations served from cache",
			Automatable:     true,
			SafetyScore:     75,
			Plan: &types.ImplementationPlan{
				Steps:              []string{"Add a keyed cache in front of the handler", "Invalidate on related writes"},
				Risks:              []string{"Stale reads if invalidation misses a write path"},
				RollbackPlan:       "Remove the cache layer",
				ValidationCriteria: []string{"Cache hit rate above 50% for the action"},
			},
		})
	}

	return newAnalysis(a.id, a.Role(), now, findings, suggestions), nil
}

type recurringAction struct {
	actionType string
	count      int
}

// recurringActions returns action types occurring more than limit times,
// sorted by type for stable output.
func recurringActions(actions []types.UserAction, limit int) []recurringAction {
	counts := map[string]int{}
	for _, act := range actions {
		counts[act.Type]++
	}

	var out []recurringAction
	for t, n := range counts {
		if n > limit {
			out = append(out, recurringAction{actionType: t, count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].actionType < out[j].actionType })
	return out
}
