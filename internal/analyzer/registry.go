package analyzer

import (
	"fmt"
	"sync"

	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/types"
)

// Registry holds the analyzer roster by role. Registration order is the
// roster order the council aggregates in.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[types.AgentRole]Analyzer
	order     []types.AgentRole
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		analyzers: make(map[types.AgentRole]Analyzer),
	}
}

// DefaultRegistry returns a registry with the full council roster.
func DefaultRegistry(clk clock.Clock) *Registry {
	r := NewRegistry()
	// Roles are distinct, so registration cannot fail here.
	_ = r.Register(NewDataQualityAnalyzer(clk))
	_ = r.Register(NewPerformanceAnalyzer(clk))
	_ = r.Register(NewSecurityAnalyzer(clk))
	_ = r.Register(NewUsabilityAnalyzer(clk))
	return r
}

// Register adds an analyzer to the roster.
func (r *Registry) Register(a Analyzer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	role := a.Role()
	if !role.IsValid() {
		return fmt.Errorf("invalid analyzer role: %s", role)
	}
	if _, exists := r.analyzers[role]; exists {
		return fmt.Errorf("analyzer for role %q already registered", role)
	}

	r.analyzers[role] = a
	r.order = append(r.order, role)
	return nil
}

// Get returns the analyzer registered for a role.
func (r *Registry) Get(role types.AgentRole) (Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.analyzers[role]
	return a, ok
}

// Roster returns all registered analyzers in registration order.
func (r *Registry) Roster() []Analyzer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Analyzer, 0, len(r.order))
	for _, role := range r.order {
		out = append(out, r.analyzers[role])
	}
	return out
}

// Roles returns the roster's roles in registration order.
func (r *Registry) Roles() []types.AgentRole {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]types.AgentRole(nil), r.order...)
}
