package analyzer

import (
	"context"
	"fmt"

	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/types"
)

const (
	// satisfactionWarnBelow and satisfactionCriticalBelow bound the
	// acceptable user satisfaction score (0-10 scale).
	satisfactionWarnBelow     = 6.0
	satisfactionCriticalBelow = 4.0

	// namelessWarnRatio flags list views when this fraction of records
	// has no display name.
	namelessWarnRatio = 0.30
)

// UsabilityAnalyzer inspects user satisfaction and how readable records
// are in list views. It is the fourth council axis and follows the same
// finding/suggestion contract as the other three.
type UsabilityAnalyzer struct {
	id    string
	clock clock.Clock
}

// NewUsabilityAnalyzer creates a usability analyzer.
func NewUsabilityAnalyzer(clk clock.Clock) *UsabilityAnalyzer {
	if clk == nil {
		clk = clock.System{}
	}
	return &UsabilityAnalyzer{
		id:    newAgentID(types.RoleUsability),
		clock: clk,
	}
}

// ID implements Analyzer.
func (a *UsabilityAnalyzer) ID() string { return a.id }

// Role implements Analyzer.
func (a *UsabilityAnalyzer) Role() types.AgentRole { return types.RoleUsability }

// Name implements Analyzer.
func (a *UsabilityAnalyzer) Name() string { return "Usability Analyzer" }

// Capabilities implements Analyzer.
func (a *UsabilityAnalyzer) Capabilities() []string {
	return []string{
		"track user satisfaction against targets",
		"flag records that render without display names",
	}
}

// Analyze implements Analyzer.
func (a *UsabilityAnalyzer) Analyze(ctx context.Context, snap *types.Snapshot) (*types.AgentAnalysis, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := a.clock.Now()
	var findings []types.Finding
	var suggestions []types.ImprovementSuggestion

	// Satisfaction score
	score := snap.Metrics.UserSatisfactionScore
	if score > 0 && score < satisfactionWarnBelow {
		sev := types.SeverityWarning
		if score < satisfactionCriticalBelow {
			sev = types.SeverityCritical
		}
		findings = append(findings, newFinding(
			types.CategoryUsability, sev,
			fmt.Sprintf("user satisfaction score is %.1f of 10 (target %.0f+)", score, satisfactionWarnBelow),
			map[string]interface{}{
				"score": score,
			},
		))
		suggestions = append(suggestions, types.ImprovementSuggestion{
			ID:              newSuggestionID(),
			Category:        types.CategoryUsability,
			Priority:        types.PriorityHigh,
			Title:           "Run a workflow friction review",
			Description:     "Walk the most common user journeys and remove steps that don't earn their place.",
			Reasoning:       "Satisfaction below target usually traces to a few high-friction flows.",
			EstimatedImpact: "Satisfaction score recovers toward target",
			Automatable:     false,
			SafetyScore:     50,
		})
	}

	// Records without display names
	if total := len(snap.Records); total > 0 {
		nameless := 0
		for _, rec := range snap.Records {
			if !fieldPresent(rec.Fields, "name") {
				nameless++
			}
		}
		if ratio := float64(nameless) / float64(total); nameless > 0 && ratio > namelessWarnRatio {
			findings = append(findings, newFinding(
				types.CategoryUsability, types.SeverityWarning,
				fmt.Sprintf("%d of %d records have no display name and render as raw ids", nameless, total),
				map[string]interface{}{
					"nameless_count": nameless,
					"total":          total,
				},
			))
			suggestions = append(suggestions, types.ImprovementSuggestion{
				ID:              newSuggestionID(),
				Category:        types.CategoryUsability,
				Priority:        types.PriorityMedium,
				Title:           "Derive display names for unnamed records",
				Description:     "Fall back to email, website, or owner when a record has no name field.",
				Reasoning:       "Lists of raw ids are unreadable; most unnamed records have a usable surrogate.",
				EstimatedImpact: "List views become scannable",
				Automatable:     true,
				SafetyScore:     88,
				Plan: &types.ImplementationPlan{
					Steps:              []string{"Add a display-name fallback chain", "Backfill stored display names"},
					RollbackPlan:       "Drop the derived names and render ids again",
					ValidationCriteria: []string{"No list row renders a bare id"},
				},
			})
		}
	}

	return newAnalysis(a.id, a.Role(), now, findings, suggestions), nil
}
