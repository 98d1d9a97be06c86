package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opscouncil/opscouncil/internal/types"
)

var approveCmd = &cobra.Command{
	Use:   "approve <id-or-title>",
	Short: "Manually approve and execute a pending improvement",
	Long: `Run a council review over the snapshot, then approve and execute the
pending improvement matching the argument (an id prefix or a title
substring).

Manual approval bypasses the safety threshold, the review-required
category list, and the daily autonomous quota. It cannot bypass a
failed execution: the improvement is still rejected if the change
itself fails.`,
	Args: cobra.ExactArgs(1),
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

		// Populate the engine with this snapshot's proposals first so
		// there is something to approve. Autonomous execution is held
		// off so the target stays pending until the explicit approval.
		off := false
		if _, err := eng.UpdateConfig(types.ConfigPatch{AutonomousExecutionEnabled: &off}); err != nil {
			fatalf("%v", err)
		}
		if _, err := eng.RunAutonomousCycle(ctx, snap); err != nil {
			fatalf("review failed: %v", err)
		}

		imp, err := matchImprovement(eng.GetImprovements(), args[0])
		if err != nil {
			fatalf("%v", err)
		}

		result, err := eng.ApproveAndExecute(ctx, imp.ID, snap)
		if err != nil {
			fatalf("approving %s: %v", imp.ID[:8], err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		if result.Success {
			fmt.Printf("\n%s Executed: %s\n", green("✓"), imp.Suggestion.Title)
			for _, change := range result.Changes {
				fmt.Printf("  %s\n", gray(change))
			}
		} else {
			fmt.Printf("\n%s Execution failed: %s\n", red("✗"), imp.Suggestion.Title)
			if result.Feedback != "" {
				fmt.Printf("  %s\n", gray(result.Feedback))
			}
		}
		fmt.Println()

		arc, err := openArchive()
		if err != nil {
			fatalf("opening archive: %v", err)
		}
		defer arc.Close()
		if err := archiveEngineState(ctx, eng, arc); err != nil {
			fatalf("archiving results: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(approveCmd)
}
