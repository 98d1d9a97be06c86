// Package apply provides a stand-in apply-change collaborator for the
// CLI. In production the surrounding platform implements
// engine.ChangeApplier and actually carries the change out; the
// simulator only records what it was asked to do.
package apply

import (
	"context"
	"fmt"

	"github.com/opscouncil/opscouncil/internal/types"
)

// Simulator implements engine.ChangeApplier without touching anything.
// Automatable suggestions succeed; the rest are reported back as
// failures so their improvements settle to rejected instead of lying
// about work that needs a human.
type Simulator struct{}

// Apply implements engine.ChangeApplier.
func (Simulator) Apply(ctx context.Context, suggestion types.ImprovementSuggestion, snap *types.Snapshot) (*types.ImprovementResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !suggestion.Automatable {
		return &types.ImprovementResult{
			Success:  false,
			Feedback: fmt.Sprintf("%q is not automatable; a human has to carry it out", suggestion.Title),
		}, nil
	}

	changes := []string{fmt.Sprintf("simulated: %s", suggestion.Title)}
	if suggestion.Plan != nil {
		for _, step := range suggestion.Plan.Steps {
			changes = append(changes, "simulated: "+step)
		}
	}

	return &types.ImprovementResult{
		Success: true,
		Changes: changes,
		MetricsBefore: map[string]float64{
			"avg_response_time_ms": snap.Metrics.AvgResponseTimeMs,
			"data_freshness_score": snap.Metrics.DataFreshnessScore,
		},
		MetricsAfter: map[string]float64{
			"avg_response_time_ms": snap.Metrics.AvgResponseTimeMs,
			"data_freshness_score": snap.Metrics.DataFreshnessScore,
		},
		Feedback: "simulated execution; no system state was modified",
	}, nil
}
