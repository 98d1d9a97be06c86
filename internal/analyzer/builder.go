package analyzer

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opscouncil/opscouncil/internal/types"
)

// ErrNilSnapshot is returned when an analyzer receives a structurally
// unusable snapshot. The council treats this as a zero contribution.
var ErrNilSnapshot = errors.New("snapshot is nil")

// newAgentID builds a stable-per-instance analyzer id like
// "security-3f2a91bc".
func newAgentID(role types.AgentRole) string {
	return fmt.Sprintf("%s-%s", role, uuid.New().String()[:8])
}

// newFinding assembles a finding with a fresh id.
func newFinding(cat types.Category, sev types.Severity, desc string, evidence map[string]interface{}) types.Finding {
	return types.Finding{
		ID:          uuid.New().String(),
		Category:    cat,
		Severity:    sev,
		Description: desc,
		Evidence:    evidence,
	}
}

// newSuggestionID generates a fresh suggestion id. Suggestions get new
// identities every cycle; the engine tracks them by identity, not content.
func newSuggestionID() string {
	return uuid.New().String()
}

// newAnalysis wraps findings and suggestions in the per-cycle bundle.
func newAnalysis(id string, role types.AgentRole, now time.Time, findings []types.Finding, suggestions []types.ImprovementSuggestion) *types.AgentAnalysis {
	if findings == nil {
		findings = []types.Finding{}
	}
	if suggestions == nil {
		suggestions = []types.ImprovementSuggestion{}
	}
	return &types.AgentAnalysis{
		AgentID:     id,
		Role:        role,
		Findings:    findings,
		Suggestions: suggestions,
		Timestamp:   now,
	}
}
