package types

import "fmt"

// AgenticConfig controls which analyzers run and what the engine may
// execute without human sign-off. One instance per engine; mutated only
// through ConfigPatch.
type AgenticConfig struct {
	// Enabled gates the whole subsystem; a disabled engine refuses cycles
	Enabled bool `json:"enabled"`
	// AutonomousExecutionEnabled gates execution without human approval
	AutonomousExecutionEnabled bool `json:"autonomous_execution_enabled"`
	// SafetyThreshold is the minimum safety score (0-100) for auto-execution
	SafetyThreshold int `json:"safety_threshold"`
	// MaxDailyImprovements caps autonomous executions per calendar day
	MaxDailyImprovements int `json:"max_daily_improvements"`
	// ReviewRequired lists categories that always need human approval
	ReviewRequired []Category `json:"review_required"`
	// EnabledAgents lists the analyzer roles the council runs
	EnabledAgents []AgentRole `json:"enabled_agents"`
}

// DefaultAgenticConfig returns the conservative default configuration:
// analysis on, autonomous execution off, security changes always reviewed.
func DefaultAgenticConfig() AgenticConfig {
	return AgenticConfig{
		Enabled:                    true,
		AutonomousExecutionEnabled: false,
		SafetyThreshold:            80,
		MaxDailyImprovements:       5,
		ReviewRequired:             []Category{CategorySecurity},
		EnabledAgents:              AllRoles(),
	}
}

// Validate checks if the config has valid field values
func (c *AgenticConfig) Validate() error {
	if c.SafetyThreshold < 0 || c.SafetyThreshold > 100 {
		return fmt.Errorf("safety threshold must be between 0 and 100 (got %d)", c.SafetyThreshold)
	}
	if c.MaxDailyImprovements < 0 {
		return fmt.Errorf("max daily improvements cannot be negative (got %d)", c.MaxDailyImprovements)
	}
	for _, cat := range c.ReviewRequired {
		if !cat.IsValid() {
			return fmt.Errorf("invalid review-required category: %s", cat)
		}
	}
	for _, role := range c.EnabledAgents {
		if !role.IsValid() {
			return fmt.Errorf("invalid enabled agent role: %s", role)
		}
	}
	return nil
}

// RequiresReview reports whether a category is on the mandatory-review list.
func (c *AgenticConfig) RequiresReview(cat Category) bool {
	for _, rc := range c.ReviewRequired {
		if rc == cat {
			return true
		}
	}
	return false
}

// AgentEnabled reports whether an analyzer role is enabled.
func (c *AgenticConfig) AgentEnabled(role AgentRole) bool {
	for _, r := range c.EnabledAgents {
		if r == role {
			return true
		}
	}
	return false
}

// ConfigPatch is a partial config update. Nil fields keep their prior
// values; non-nil fields replace them wholesale (shallow merge).
type ConfigPatch struct {
	Enabled                    *bool       `json:"enabled,omitempty"`
	AutonomousExecutionEnabled *bool       `json:"autonomous_execution_enabled,omitempty"`
	SafetyThreshold            *int        `json:"safety_threshold,omitempty"`
	MaxDailyImprovements       *int        `json:"max_daily_improvements,omitempty"`
	ReviewRequired             []Category  `json:"review_required,omitempty"`
	EnabledAgents              []AgentRole `json:"enabled_agents,omitempty"`
}

// Apply merges the patch into cfg and returns the result. The receiver
// and argument are not modified.
func (p *ConfigPatch) Apply(cfg AgenticConfig) AgenticConfig {
	if p.Enabled != nil {
		cfg.Enabled = *p.Enabled
	}
	if p.AutonomousExecutionEnabled != nil {
		cfg.AutonomousExecutionEnabled = *p.AutonomousExecutionEnabled
	}
	if p.SafetyThreshold != nil {
		cfg.SafetyThreshold = *p.SafetyThreshold
	}
	if p.MaxDailyImprovements != nil {
		cfg.MaxDailyImprovements = *p.MaxDailyImprovements
	}
	if p.ReviewRequired != nil {
		cfg.ReviewRequired = append([]Category(nil), p.ReviewRequired...)
	}
	if p.EnabledAgents != nil {
		cfg.EnabledAgents = append([]AgentRole(nil), p.EnabledAgents...)
	}
	return cfg
}
