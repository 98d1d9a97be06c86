package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opscouncil/opscouncil/internal/analyzer"
	"github.com/opscouncil/opscouncil/internal/apply"
	"github.com/opscouncil/opscouncil/internal/audit"
	"github.com/opscouncil/opscouncil/internal/clock"
	"github.com/opscouncil/opscouncil/internal/config"
	"github.com/opscouncil/opscouncil/internal/council"
	"github.com/opscouncil/opscouncil/internal/engine"
	"github.com/opscouncil/opscouncil/internal/snapshot"
	"github.com/opscouncil/opscouncil/internal/types"
)

var (
	flagRoot     string
	flagSnapshot string
	flagDB       string
)

var rootCmd = &cobra.Command{
	Use:   "opscouncil",
	Short: "Autonomous improvement council for operational data",
	Long: `opscouncil runs a council of analyzer agents over a system snapshot,
collects their improvement proposals, and executes the safe ones
autonomously under a configurable policy.

Configuration is read from .opscouncil/config.yaml under the project
root. Executions and feedback are archived to a local SQLite database.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "Project root containing .opscouncil/")
	rootCmd.PersistentFlags().StringVar(&flagSnapshot, "snapshot", "", "Path to a snapshot JSON file (omit for a built-in demo snapshot)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Path to the audit archive database (default <root>/.opscouncil/audit.db)")
}

// buildEngine wires the full stack from the config file under the
// project root: analyzer registry, council, change applier, engine.
func buildEngine() (*engine.Engine, *config.Config, error) {
	cfg, err := config.LoadConfigFile(flagRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	clk := clock.System{}
	registry := analyzer.DefaultRegistry(clk)

	cncl, err := council.New(&council.Config{
		Registry:        registry,
		AnalyzerTimeout: cfg.AnalyzerTimeout,
	})
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(&engine.Config{
		Council:      cncl,
		Applier:      apply.Simulator{},
		Clock:        clk,
		Agentic:      &cfg.Agentic,
		ApplyTimeout: cfg.ApplyTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}

// loadSnapshot reads the --snapshot file, or synthesizes a demo
// snapshot when no file was given.
func loadSnapshot() (*types.Snapshot, error) {
	if flagSnapshot == "" {
		return snapshot.Demo(clock.System{}.Now()), nil
	}
	return snapshot.Load(flagSnapshot)
}

// archivePath resolves the --db flag against the project root.
func archivePath() string {
	if flagDB != "" {
		return flagDB
	}
	return filepath.Join(flagRoot, ".opscouncil", "audit.db")
}

func openArchive() (*audit.Archive, error) {
	return audit.New(archivePath())
}

// archiveEngineState persists the engine's history and feedback after a
// run. Inserts are idempotent, so re-archiving overlapping state is
// harmless.
func archiveEngineState(ctx context.Context, eng *engine.Engine, arc *audit.Archive) error {
	if err := arc.ArchiveHistory(ctx, eng.GetExecutionHistory()); err != nil {
		return err
	}
	return arc.ArchiveFeedback(ctx, eng.GetFeedbackLoops())
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// matchImprovement finds a tracked improvement by id prefix, falling
// back to a case-insensitive title substring match. Ambiguous matches
// are an error so a bare "a" never approves something unintended.
func matchImprovement(imps []*types.Improvement, key string) (*types.Improvement, error) {
	var matches []*types.Improvement
	for _, imp := range imps {
		if strings.HasPrefix(imp.ID, key) {
			matches = append(matches, imp)
		}
	}
	if len(matches) == 0 {
		lower := strings.ToLower(key)
		for _, imp := range imps {
			if strings.Contains(strings.ToLower(imp.Suggestion.Title), lower) {
				matches = append(matches, imp)
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no improvement matches %q", key)
	case 1:
		return matches[0], nil
	default:
		titles := make([]string, len(matches))
		for i, imp := range matches {
			titles[i] = imp.Suggestion.Title
		}
		return nil, fmt.Errorf("%q is ambiguous, matches: %s", key, strings.Join(titles, "; "))
	}
}
