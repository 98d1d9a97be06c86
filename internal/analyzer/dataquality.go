package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/types"
)

const (
	// stalenessWindow marks a record stale when its freshness
	// timestamp is older than this.
	stalenessWindow = 7 * 24 * time.Hour

	// staleCriticalRatio escalates the staleness finding to critical
	// once this fraction of the set is stale.
	staleCriticalRatio = 0.30

	// completenessWarnBelow and completenessCriticalBelow bound the
	// acceptable average weighted completeness (percent).
	completenessWarnBelow     = 80.0
	completenessCriticalBelow = 60.0
)

// expectedFields are the fields a well-maintained record carries, with
// weights reflecting their value to downstream consumers.
var expectedFields = map[string]float64{
	"name":     2.0,
	"email":    1.5,
	"phone":    1.0,
	"address":  1.0,
	"city":     0.5,
	"state":    0.5,
	"website":  1.0,
	"industry": 1.0,
	"owner":    1.0,
	"notes":    0.5,
}

// highValueFields are optional fields worth flagging when absent.
var highValueFields = []string{"email", "phone", "website", "owner"}

// DataQualityAnalyzer inspects record freshness, missing high-value
// fields, and weighted completeness.
type DataQualityAnalyzer struct {
	id    string
	clock clock.Clock
}

// NewDataQualityAnalyzer creates a data-quality analyzer.
func NewDataQualityAnalyzer(clk clock.Clock) *DataQualityAnalyzer {
	if clk == nil {
		clk = clock.System{}
	}
	return &DataQualityAnalyzer{
		id:    newAgentID(types.RoleDataQuality),
		clock: clk,
	}
}

// ID implements Analyzer.
func (a *DataQualityAnalyzer) ID() string { return a.id }

// Role implements Analyzer.
func (a *DataQualityAnalyzer) Role() types.AgentRole { return types.RoleDataQuality }

// Name implements Analyzer.
func (a *DataQualityAnalyzer) Name() string { return "Data Quality Analyzer" }

// Capabilities implements Analyzer.
func (a *DataQualityAnalyzer) Capabilities() []string {
	return []string{
		"detect stale records past the freshness window",
		"flag missing high-value fields",
		"score weighted field completeness",
	}
}

// Analyze implements Analyzer.
func (a *DataQualityAnalyzer) Analyze(ctx context.Context, snap *types.Snapshot) (*types.AgentAnalysis, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := a.clock.Now()
	var findings []types.Finding
	var suggestions []types.ImprovementSuggestion

	staleFound := false

	if total := len(snap.Records); total > 0 {
		// Staleness
		stale := 0
		for _, rec := range snap.Records {
			if now.Sub(rec.UpdatedAt) > stalenessWindow {
				stale++
			}
		}
		if stale > 0 {
			staleFound = true
			ratio := float64(stale) / float64(total)
			sev := types.SeverityWarning
			if ratio > staleCriticalRatio {
				sev = types.SeverityCritical
			}
			findings = append(findings, newFinding(
				types.CategoryDataQuality, sev,
				fmt.Sprintf("%d of %d records have not been updated in over 7 days", stale, total),
				map[string]interface{}{
					"stale_count": stale,
					"total":       total,
					"stale_ratio": ratio,
				},
			))
		}

		// Missing high-value fields
		missing := 0
		missingByField := map[string]int{}
		for _, rec := range snap.Records {
			anyMissing := false
			for _, f := range highValueFields {
				if !fieldPresent(rec.Fields, f) {
					missingByField[f]++
					anyMissing = true
				}
			}
			if anyMissing {
				missing++
			}
		}
		if missing > 0 {
			sev := types.SeverityInfo
			if float64(missing)/float64(total) > 0.5 {
				sev = types.SeverityWarning
			}
			findings = append(findings, newFinding(
				types.CategoryDataQuality, sev,
				fmt.Sprintf("%d of %d records are missing high-value fields", missing, total),
				map[string]interface{}{
					"records_affected": missing,
					"missing_by_field": missingByField,
				},
			))
		}

		// Weighted completeness
		avg := averageCompleteness(snap.Records)
		if avg < completenessWarnBelow {
			sev := types.SeverityWarning
			if avg < completenessCriticalBelow {
				sev = types.SeverityCritical
			}
			findings = append(findings, newFinding(
				types.CategoryDataQuality, sev,
				fmt.Sprintf("average record completeness is %.1f%% (target %.0f%%)", avg, completenessWarnBelow),
				map[string]interface{}{
					"avg_completeness": avg,
				},
			))
		}
	}

	// An enrichment pipeline is proposed whenever any data-quality
	// problem surfaced; a scheduled refresh only when staleness did.
	if len(findings) > 0 {
		suggestions = append(suggestions, types.ImprovementSuggestion{
			ID:              newSuggestionID(),
			Category:        types.CategoryDataQuality,
			Priority:        types.PriorityHigh,
			Title:           "Add automated data enrichment pipeline",
			Description:     "Enrich incomplete records from external sources and fill missing high-value fields.",
			Reasoning:       "Data-quality findings indicate incomplete or degraded records.",
			EstimatedImpact: "Higher record completeness and more reliable downstream reports",
			Automatable:     true,
			SafetyScore:     85,
			Plan: &types.ImplementationPlan{
				Steps: []string{
					"Queue records with missing fields for enrichment",
					"Fetch candidate values from configured providers",
					"Merge values that pass confidence checks",
				},
				Risks:              []string{"Enriched values may be lower quality than curated ones"},
				RollbackPlan:       "Disable the enrichment worker and revert merged fields from the change log",
				ValidationCriteria: []string{"Average completeness rises above 80%"},
			},
		})
	}
	if staleFound {
		suggestions = append(suggestions, types.ImprovementSuggestion{
			ID:              newSuggestionID(),
			Category:        types.CategoryDataQuality,
			Priority:        types.PriorityMedium,
			Title:           "Schedule periodic record refresh",
			Description:     "Re-verify records on a rolling schedule so none age past the freshness window.",
			Reasoning:       "Stale records were detected beyond the 7-day freshness threshold.",
			EstimatedImpact: "Freshness score stays high without manual sweeps",
			Automatable:     true,
			SafetyScore:     90,
			Plan: &types.ImplementationPlan{
				Steps: []string{
					"Order records by last update time",
					"Refresh the oldest slice each night",
				},
				RollbackPlan:       "Remove the scheduled job",
				ValidationCriteria: []string{"No record older than 7 days"},
			},
		})
	}

	return newAnalysis(a.id, a.Role(), now, findings, suggestions), nil
}

// fieldPresent reports whether a field exists with a non-empty value.
func fieldPresent(fields map[string]interface{}, name string) bool {
	v, ok := fields[name]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}

// averageCompleteness computes the mean weighted completeness (percent)
// across records, against the expected field set.
func averageCompleteness(records []types.BusinessRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	var totalWeight float64
	for _, w := range expectedFields {
		totalWeight += w
	}

	var sum float64
	for _, rec := range records {
		var got float64
		for f, w := range expectedFields {
			if fieldPresent(rec.Fields, f) {
				got += w
			}
		}
		sum += got / totalWeight * 100
	}
	return sum / float64(len(records))
}
