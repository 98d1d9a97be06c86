package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opscouncil/opscouncil/internal/types"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one autonomous improvement cycle",
	Long: `Run a full council review over the snapshot, execute every proposal
that clears the safety policy, and archive the results.

Proposals that don't clear the policy (below the safety threshold, in a
review-required category, or over the daily quota) are left pending for
manual approval with 'opscouncil approve'.`,
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

		result, err := eng.RunAutonomousCycle(ctx, snap)
		if err != nil {
			fatalf("cycle failed: %v", err)
		}

		printCycleResult(result)

		arc, err := openArchive()
		if err != nil {
			fatalf("opening archive: %v", err)
		}
		defer arc.Close()
		if err := archiveEngineState(ctx, eng, arc); err != nil {
			fatalf("archiving results: %v", err)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s\n", gray("Archived to "+archivePath()))
	},
}

func printCycleResult(result *types.CycleResult) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan("=== Improvement Cycle ==="))

	fmt.Printf("%s\n", yellow("Council Review:"))
	for _, analysis := range result.Review.Analyses {
		fmt.Printf("  %s  %d findings, %d suggestions\n",
			analysis.Role, len(analysis.Findings), len(analysis.Suggestions))
	}
	fmt.Println()

	fmt.Printf("%s\n", yellow("Executed:"))
	if len(result.Executed) == 0 {
		fmt.Printf("  %s\n", gray("No improvements executed"))
	}
	for _, imp := range result.Executed {
		icon := green("✓")
		if imp.Status == types.StatusRejected {
			icon = red("✗")
		}
		fmt.Printf("  %s %s %s\n", icon, imp.Suggestion.Title, gray("("+imp.ID[:8]+")"))
		if imp.Result != nil && imp.Result.Feedback != "" {
			fmt.Printf("    %s\n", gray(imp.Result.Feedback))
		}
	}
	fmt.Println()

	fmt.Printf("%s\n", yellow("Pending manual approval:"))
	if len(result.Pending) == 0 {
		fmt.Printf("  %s\n", gray("None"))
	}
	for _, imp := range result.Pending {
		fmt.Printf("  %s %s %s\n", gray("○"), imp.Suggestion.Title,
			gray(fmt.Sprintf("(safety %d, %s)", imp.Suggestion.SafetyScore, imp.Suggestion.Category)))
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(cycleCmd)
}
