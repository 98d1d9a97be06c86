package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/types"
)

const (
	// exportBurstLimit flags this many export actions inside the
	// exportBurstWindow as a possible exfiltration pattern.
	exportBurstLimit  = 50
	exportBurstWindow = 24 * time.Hour
)

// monetaryFieldMarkers identify field names that carry financial data.
var monetaryFieldMarkers = []string{
	"revenue", "salary", "price", "amount", "balance",
	"payment", "invoice", "credit", "account_number",
}

// SecurityAnalyzer inspects snapshots for sensitive financial data and
// suspicious export activity. It proposes encryption at rest on every
// run: the proposal is always warranted, while its findings stay
// evidence-gated. That asymmetry is deliberate.
type SecurityAnalyzer struct {
	id    string
	clock clock.Clock
}

// NewSecurityAnalyzer creates a security analyzer.
func NewSecurityAnalyzer(clk clock.Clock) *SecurityAnalyzer {
	if clk == nil {
		clk = clock.System{}
	}
	return &SecurityAnalyzer{
		id:    newAgentID(types.RoleSecurity),
		clock: clk,
	}
}

// ID implements Analyzer.
func (a *SecurityAnalyzer) ID() string { return a.id }

// Role implements Analyzer.
func (a *SecurityAnalyzer) Role() types.AgentRole { return types.RoleSecurity }

// Name implements Analyzer.
func (a *SecurityAnalyzer) Name() string { return "Security Analyzer" }

// Capabilities implements Analyzer.
func (a *SecurityAnalyzer) Capabilities() []string {
	return []string{
		"detect monetary and financial fields in records",
		"detect export-action bursts",
		"recommend encryption at rest",
	}
}

// Analyze implements Analyzer.
func (a *SecurityAnalyzer) Analyze(ctx context.Context, snap *types.Snapshot) (*types.AgentAnalysis, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := a.clock.Now()
	var findings []types.Finding

	// Monetary fields among records
	affected := 0
	fieldSet := map[string]struct{}{}
	for _, rec := range snap.Records {
		hit := false
		for name := range rec.Fields {
			if isMonetaryField(name) {
				fieldSet[name] = struct{}{}
				hit = true
			}
		}
		if hit {
			affected++
		}
	}
	if affected > 0 {
		fields := make([]string, 0, len(fieldSet))
		for f := range fieldSet {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		findings = append(findings, newFinding(
			types.CategorySecurity, types.SeverityWarning,
			fmt.Sprintf("%d records carry monetary or financial fields", affected),
			map[string]interface{}{
				"record_count": affected,
				"fields":       fields,
			},
		))
	}

	// Export bursts in the trailing window
	exports := 0
	cutoff := now.Add(-exportBurstWindow)
	for _, act := range snap.Actions {
		if strings.Contains(strings.ToLower(act.Type), "export") && act.Timestamp.After(cutoff) {
			exports++
		}
	}
	if exports > exportBurstLimit {
		findings = append(findings, newFinding(
			types.CategorySecurity, types.SeverityCritical,
			fmt.Sprintf("%d export actions in the last 24 hours (limit %d)", exports, exportBurstLimit),
			map[string]interface{}{
				"export_count": exports,
				"window_hours": 24,
			},
		))
	}

	// Encryption at rest is proposed unconditionally, independent of
	// what the findings above turned up.
	suggestions := []types.ImprovementSuggestion{{
		ID:              newSuggestionID(),
		Category:        types.CategorySecurity,
		Priority:        types.PriorityHigh,
		Title:           "Encrypt business records at rest",
		Description:     "Enable storage-level encryption for all persisted business records.",
		Reasoning:       "Records routinely contain data whose exposure is costly; encryption at rest is baseline hygiene.",
		EstimatedImpact: "Stolen storage media or backups no longer expose record contents",
		Automatable:     false,
		SafetyScore:     55,
		Plan: &types.ImplementationPlan{
			Steps: []string{
				"Pick a key-management approach",
				"Encrypt the record store and rotate backups",
			},
			Risks:              []string{"Key loss makes records unrecoverable"},
			RollbackPlan:       "Decrypt with the active key and disable encryption",
			ValidationCriteria: []string{"Record store unreadable without the key"},
		},
	}}

	return newAnalysis(a.id, a.Role(), now, findings, suggestions), nil
}

// isMonetaryField reports whether a field name suggests financial data.
func isMonetaryField(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range monetaryFieldMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
