package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opscouncil/opscouncil/internal/types"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Inspect and record feedback loops",
}

var feedbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived feedback loops",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		arc, err := openArchive()
		if err != nil {
			fatalf("opening archive: %v", err)
		}
		defer arc.Close()

		loops, err := arc.ListFeedback(ctx)
		if err != nil {
			fatalf("reading feedback: %v", err)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n", yellow("Feedback loops:"))
		if len(loops) == 0 {
			fmt.Printf("  %s\n", gray("None recorded"))
		}
		for _, loop := range loops {
			fmt.Printf("  %s  %s\n", loop.Timestamp.Format("2006-01-02 15:04:05"), loop.Type)
			if msg, ok := loop.Data["message"].(string); ok && msg != "" {
				fmt.Printf("    %s\n", msg)
			}
			if len(loop.ProcessedBy) > 0 {
				fmt.Printf("    %s\n", gray("processed by "+strings.Join(loop.ProcessedBy, ", ")))
			}
		}
		fmt.Println()
	},
}

var feedbackAddCmd = &cobra.Command{
	Use:   "add <type> <message>",
	Short: "Record a feedback loop entry",
	Long: `Record a feedback entry in the archive. Type is one of:
user-feedback, system-metrics, agent-review.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		eng, _, err := buildEngine()
		if err != nil {
			fatalf("%v", err)
		}

		loop, err := eng.CreateFeedbackLoop(types.FeedbackType(args[0]),
			map[string]interface{}{"message": args[1]})
		if err != nil {
			fatalf("%v", err)
		}

		arc, err := openArchive()
		if err != nil {
			fatalf("opening archive: %v", err)
		}
		defer arc.Close()
		if err := arc.ArchiveFeedback(ctx, []types.FeedbackLoop{loop}); err != nil {
			fatalf("archiving feedback: %v", err)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Recorded %s feedback %s\n", green("✓"), loop.Type, loop.ID[:8])
	},
}

func init() {
	feedbackCmd.AddCommand(feedbackListCmd)
	feedbackCmd.AddCommand(feedbackAddCmd)
	rootCmd.AddCommand(feedbackCmd)
}
