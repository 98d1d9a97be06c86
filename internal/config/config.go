// Package config loads engine configuration from .opscouncil/config.yaml.
// A missing file yields defaults; a malformed file is an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opscouncil/opscouncil/internal/types"
)

// ConfigFile represents the structure of .opscouncil/config.yaml
type ConfigFile struct {
	Enabled                    *bool    `yaml:"enabled"`
	AutonomousExecutionEnabled *bool    `yaml:"autonomous_execution_enabled"`
	SafetyThreshold            *int     `yaml:"safety_threshold"`
	MaxDailyImprovements       *int     `yaml:"max_daily_improvements"`
	ReviewRequired             []string `yaml:"review_required"`
	EnabledAgents              []string `yaml:"enabled_agents"`

	// AnalyzerTimeout bounds each analyzer call, e.g. "30s"
	AnalyzerTimeout string `yaml:"analyzer_timeout"`
	// ApplyTimeout bounds each apply-change call, e.g. "2m"
	ApplyTimeout string `yaml:"apply_timeout"`
}

// Config is the loaded, validated configuration.
type Config struct {
	Agentic         types.AgenticConfig
	AnalyzerTimeout time.Duration
	ApplyTimeout    time.Duration
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Agentic: types.DefaultAgenticConfig(),
	}
}

// LoadConfigFile loads configuration from .opscouncil/config.yaml under
// the project root. Fields absent from the file keep default values.
func LoadConfigFile(projectRoot string) (*Config, error) {
	configPath := filepath.Join(projectRoot, ".opscouncil", "config.yaml")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return file.toConfig()
}

// toConfig merges the file over defaults and validates the result.
func (f *ConfigFile) toConfig() (*Config, error) {
	cfg := DefaultConfig()

	if f.Enabled != nil {
		cfg.Agentic.Enabled = *f.Enabled
	}
	if f.AutonomousExecutionEnabled != nil {
		cfg.Agentic.AutonomousExecutionEnabled = *f.AutonomousExecutionEnabled
	}
	if f.SafetyThreshold != nil {
		cfg.Agentic.SafetyThreshold = *f.SafetyThreshold
	}
	if f.MaxDailyImprovements != nil {
		cfg.Agentic.MaxDailyImprovements = *f.MaxDailyImprovements
	}
	if f.ReviewRequired != nil {
		cfg.Agentic.ReviewRequired = nil
		for _, c := range f.ReviewRequired {
			cfg.Agentic.ReviewRequired = append(cfg.Agentic.ReviewRequired, types.Category(c))
		}
	}
	if f.EnabledAgents != nil {
		cfg.Agentic.EnabledAgents = nil
		for _, r := range f.EnabledAgents {
			cfg.Agentic.EnabledAgents = append(cfg.Agentic.EnabledAgents, types.AgentRole(r))
		}
	}
	if err := cfg.Agentic.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if f.AnalyzerTimeout != "" {
		d, err := time.ParseDuration(f.AnalyzerTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid analyzer_timeout: %w", err)
		}
		cfg.AnalyzerTimeout = d
	}
	if f.ApplyTimeout != "" {
		d, err := time.ParseDuration(f.ApplyTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid apply_timeout: %w", err)
		}
		cfg.ApplyTimeout = d
	}

	return cfg, nil
}
