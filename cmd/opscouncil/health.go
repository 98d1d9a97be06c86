package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opscouncil/opscouncil/internal/types"
)

// sessionHealthLines formats the engine's health summary. SuccessRate
// is already a 0-100 percentage.
func sessionHealthLines(health types.SystemHealth) []string {
	return []string{
		fmt.Sprintf("Tracked improvements: %d", health.TotalImprovements),
		fmt.Sprintf("Implemented:          %d", health.Implemented),
		fmt.Sprintf("Pending:              %d", health.Pending),
		fmt.Sprintf("Success rate:         %.0f%%", health.SuccessRate),
		fmt.Sprintf("Avg safety score:     %.1f", health.AvgSafetyScore),
	}
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show improvement subsystem health",
	Long: `Run a council review over the snapshot and report aggregate health:
tracked proposals, implementation counts, success rate, and average
safety score, alongside archived totals from previous runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		eng, _, err := buildEngine()
		if err != nil {
			fatalf("%v", err)
		}
		snap, err := loadSnapshot()
		if err != nil {
			fatalf("loading snapshot: %v", err)
		}
		if _, err := eng.RunAutonomousCycle(ctx, snap); err != nil {
			fatalf("review failed: %v", err)
		}

		health := eng.GetSystemHealth()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== System Health ==="))
		fmt.Printf("%s\n", yellow("This session:"))
		for _, line := range sessionHealthLines(health) {
			fmt.Printf("  %s\n", line)
		}
		fmt.Println()

		arc, err := openArchive()
		if err != nil {
			fatalf("opening archive: %v", err)
		}
		defer arc.Close()

		history, err := arc.ListHistory(ctx)
		if err != nil {
			fatalf("reading history: %v", err)
		}

		succeeded := 0
		for _, entry := range history {
			if entry.Result.Success {
				succeeded++
			}
		}

		fmt.Printf("%s\n", yellow("Archived:"))
		if len(history) == 0 {
			fmt.Printf("  %s\n", gray("No executions recorded"))
		} else {
			fmt.Printf("  Executions: %d (%d succeeded)\n", len(history), succeeded)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
