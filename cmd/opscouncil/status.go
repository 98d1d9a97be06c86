package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opscouncil/opscouncil/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current proposals and archived execution history",
	Long: `Run a council review over the snapshot and display the resulting
proposals grouped by status, followed by the archived execution
history from previous runs.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== OpsCouncil Status ==="))

		eng, cfg, err := buildEngine()
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s\n", yellow("Policy:"))
		enabled := gray("disabled")
		if cfg.Agentic.AutonomousExecutionEnabled {
			enabled = green("enabled")
		}
		fmt.Printf("  Autonomous execution: %s\n", enabled)
		fmt.Printf("  Safety threshold:     %d\n", cfg.Agentic.SafetyThreshold)
		fmt.Printf("  Daily quota:          %d\n", cfg.Agentic.MaxDailyImprovements)
		fmt.Printf("  Review required:      %v\n", cfg.Agentic.ReviewRequired)
		fmt.Println()

		snap, err := loadSnapshot()
		if err != nil {
			fatalf("loading snapshot: %v", err)
		}

		off := false
		if _, err := eng.UpdateConfig(types.ConfigPatch{AutonomousExecutionEnabled: &off}); err != nil {
			fatalf("%v", err)
		}
		if _, err := eng.RunAutonomousCycle(ctx, snap); err != nil {
			fatalf("review failed: %v", err)
		}

		fmt.Printf("%s\n", yellow("Current proposals:"))
		total := 0
		statuses := []types.Status{
			types.StatusDetected, types.StatusAnalyzing, types.StatusApproved,
			types.StatusImplementing, types.StatusTesting,
			types.StatusCompleted, types.StatusRejected,
		}
		for _, status := range statuses {
			imps := eng.GetImprovementsByStatus(status)
			if len(imps) == 0 {
				continue
			}
			total += len(imps)
			icon := gray("○")
			switch status {
			case types.StatusCompleted:
				icon = green("✓")
			case types.StatusRejected:
				icon = red("✗")
			}
			fmt.Printf("  %s:\n", status)
			for _, imp := range imps {
				fmt.Printf("  %s %s\n", icon, imp.Suggestion.Title)
				fmt.Printf("    %s\n", gray(fmt.Sprintf("id %s  %s  %s  safety %d",
					imp.ID[:8], imp.Suggestion.Category, imp.Suggestion.Priority,
					imp.Suggestion.SafetyScore)))
			}
		}
		if total == 0 {
			fmt.Printf("  %s\n", gray("None"))
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

		fmt.Printf("%s\n", yellow("Execution history:"))
		if len(history) == 0 {
			fmt.Printf("  %s\n", gray("No executions recorded"))
		}
		for _, entry := range history {
			icon := green("✓")
			if !entry.Result.Success {
				icon = red("✗")
			}
			fmt.Printf("  %s %s  %s  %s\n", icon,
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.Trigger, gray(entry.ImprovementID[:8]))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
