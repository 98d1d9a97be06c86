package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/opscouncil/opscouncil/internal/audit"
	"github.com/opscouncil/opscouncil/internal/engine"
	"github.com/opscouncil/opscouncil/internal/types"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run improvement cycles continuously",
	Long: `Run autonomous improvement cycles at a fixed interval until
interrupted. The engine keeps its state between cycles, so the daily
execution quota and proposal dedup apply across the whole session.

Each cycle's results are archived as it completes.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		eng, _, err := buildEngine()
		if err != nil {
			fatalf("%v", err)
		}
		arc, err := openArchive()
		if err != nil {
			fatalf("opening archive: %v", err)
		}
		defer arc.Close()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Println("\nShutting down...")
			cancel()
		}()

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("Watching every %s. Press Ctrl+C to stop.\n", watchInterval)

		// The limiter caps cycle frequency even if a cycle returns
		// instantly, e.g. when the engine is disabled mid-session.
		limiter := rate.NewLimiter(rate.Every(watchInterval), 1)

		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			result, err := runWatchCycle(ctx, eng, arc, loadSnapshot)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			if result != nil {
				fmt.Printf("%s executed %d, pending %d\n",
					gray(time.Now().Format("15:04:05")),
					len(result.Executed), len(result.Pending))
			}
		}
	},
}

// runWatchCycle executes one watch iteration. Every failure, including
// a transient snapshot read error, is returned to the loop rather than
// terminating the session. A non-nil result may accompany an archiving
// error.
func runWatchCycle(ctx context.Context, eng *engine.Engine, arc *audit.Archive, load func() (*types.Snapshot, error)) (*types.CycleResult, error) {
	snap, err := load()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	result, err := eng.RunAutonomousCycle(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("cycle failed: %w", err)
	}

	if err := archiveEngineState(ctx, eng, arc); err != nil {
		return result, fmt.Errorf("archiving failed: %w", err)
	}
	return result, nil
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "Time between cycles")
	rootCmd.AddCommand(watchCmd)
}
