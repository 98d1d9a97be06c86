// Package council runs every enabled analyzer against one snapshot and
// aggregates their output into a single review. Analyzer failures and
// timeouts are isolated: a misbehaving analyzer shrinks the aggregate,
// it never aborts the cycle.
package council

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opscouncil/opscouncil/internal/analyzer"
	"github.com/opscouncil/opscouncil/internal/types"
)

const defaultAnalyzerTimeout = 30 * time.Second

// Config holds council configuration
type Config struct {
	// Registry supplies the analyzer roster (required)
	Registry *analyzer.Registry
	// AnalyzerTimeout bounds each analyzer invocation (default 30s)
	AnalyzerTimeout time.Duration
}

// Council holds the analyzer roster and fans reviews out across it.
type Council struct {
	registry *analyzer.Registry
	timeout  time.Duration
}

// New creates a council over the given roster.
func New(cfg *Config) (*Council, error) {
	if cfg == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	timeout := cfg.AnalyzerTimeout
	if timeout <= 0 {
		timeout = defaultAnalyzerTimeout
	}
	return &Council{
		registry: cfg.Registry,
		timeout:  timeout,
	}, nil
}

// Analyzers returns the full roster in roster order.
func (c *Council) Analyzers() []analyzer.Analyzer {
	return c.registry.Roster()
}

// RunReview invokes every enabled analyzer concurrently against the same
// read-only snapshot, waits for all to settle, and aggregates findings
// and suggestions in roster order. Per-analyzer output order is stable;
// a failed or timed-out analyzer contributes nothing and is omitted from
// AgentsRun. No cross-analyzer dedup is applied.
func (c *Council) RunReview(ctx context.Context, snap *types.Snapshot, enabled []types.AgentRole) (*types.CouncilReview, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is required")
	}

	enabledSet := make(map[types.AgentRole]bool, len(enabled))
	for _, role := range enabled {
		enabledSet[role] = true
	}

	var active []analyzer.Analyzer
	for _, a := range c.registry.Roster() {
		if enabledSet[a.Role()] {
			active = append(active, a)
		}
	}

	// Fan-out/fan-in barrier: one task per analyzer, each writing only
	// its own slot. Tasks never return an error, so the group always
	// waits for all to settle.
	results := make([]*types.AgentAnalysis, len(active))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range active {
		i, a := i, a
		g.Go(func() error {
			results[i] = c.runAnalyzer(gctx, a, snap)
			return nil
		})
	}
	_ = g.Wait()

	review := &types.CouncilReview{
		Analyses:     []types.AgentAnalysis{},
		Improvements: []types.ImprovementSuggestion{},
		AgentsRun:    []types.AgentRole{},
	}
	for _, analysis := range results {
		if analysis == nil {
			continue
		}
		review.Analyses = append(review.Analyses, *analysis)
		review.Improvements = append(review.Improvements, analysis.Suggestions...)
		review.AgentsRun = append(review.AgentsRun, analysis.Role)
	}
	return review, nil
}

// runAnalyzer invokes one analyzer under the per-analyzer timeout.
// Returns nil on failure or timeout; the caller treats nil as a zero
// contribution.
func (c *Council) runAnalyzer(ctx context.Context, a analyzer.Analyzer, snap *types.Snapshot) *types.AgentAnalysis {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type analyzeResult struct {
		analysis *types.AgentAnalysis
		err      error
	}
	ch := make(chan analyzeResult, 1)
	go func() {
		analysis, err := a.Analyze(actx, snap)
		ch <- analyzeResult{analysis: analysis, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil
		}
		return res.analysis
	case <-actx.Done():
		// An analyzer that ignores its context is abandoned here; its
		// eventual result is discarded via the buffered channel.
		return nil
	}
}
