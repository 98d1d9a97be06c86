// Package analyzer provides the council's analyzer units. Each analyzer
// inspects a read-only snapshot of business-system state along one axis
// (data quality, performance, security, usability) and reports findings
// plus improvement suggestions.
//
// Analyzers collect evidence and propose; the engine decides what may
// execute. An analyzer must never mutate the snapshot and must degrade
// to fewer findings on sparse input rather than fail.
package analyzer

import (
	"context"

	"github.com/opscouncil/opscouncil/internal/types"
)

// Analyzer is one specialized unit on the improvement council. Identity
// is fixed at construction; Analyze is safe to run concurrently with
// peers against the same snapshot.
type Analyzer interface {
	// ID returns the unique identifier for this analyzer instance.
	ID() string

	// Role returns the council role this analyzer fills.
	Role() types.AgentRole

	// Name returns the human-readable display name.
	Name() string

	// Capabilities describes what this analyzer looks for.
	Capabilities() []string

	// Analyze inspects the snapshot and returns this analyzer's bundle of
	// findings and suggestions. It must not mutate the snapshot and is
	// deterministic given identical content (ignoring embedded time reads).
	// Only a structurally unusable snapshot (nil) may fail.
	Analyze(ctx context.Context, snap *types.Snapshot) (*types.AgentAnalysis, error)
}
