package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deployops/taskrun/internal/errors"
	"github.com/deployops/taskrun/internal/orchestrator"
)

var (
	processIsolate bool
	processDryRun  bool
	processFrom    string
	processRepeat  bool
	processSync    bool
	processAsync   bool
	processQueue   string
	processTags    []string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Discover, order and execute pending tasks",
	Long: `Discover pending schema changes and operations, order them by timestamp and
declared dependencies, and execute them one at a time. A failing task stops
the batch and rolls back the operations completed before it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.close()

		opts := orchestrator.Options{
			Isolate:    processIsolate,
			DryRun:     processDryRun,
			From:       processFrom,
			Repeat:     processRepeat,
			ForceSync:  processSync,
			ForceAsync: processAsync,
			Queue:      processQueue,
			Tags:       processTags,
		}

		previews, err := env.orch.Process(cmd.Context(), opts)
		if err != nil {
			fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
			return err
		}

		if opts.DryRun {
			printPreviews(previews)
		}
		return nil
	},
	SilenceErrors: true,
	SilenceUsage:  true,
}

func printPreviews(previews []orchestrator.Preview) {
	if len(previews) == 0 {
		fmt.Println("Nothing pending.")
		return
	}
	fmt.Printf("%-14s %-19s %s\n", "KIND", "TIMESTAMP", "IDENTITY")
	for _, p := range previews {
		fmt.Printf("%-14s %-19s %s\n", p.Kind, p.Timestamp, p.Identity)
	}
}

func init() {
	processCmd.Flags().BoolVar(&processIsolate, "isolate", false, "Run under the distributed lock")
	processCmd.Flags().BoolVar(&processDryRun, "dry-run", false, "Preview the ordered task list without executing")
	processCmd.Flags().StringVar(&processFrom, "from", "", "Drop tasks with a timestamp before this value (YYYY_MM_DD_HHMMSS)")
	processCmd.Flags().BoolVar(&processRepeat, "repeat", false, "Re-run previously executed tasks")
	processCmd.Flags().BoolVar(&processSync, "sync", false, "Force synchronous execution for all operations")
	processCmd.Flags().BoolVar(&processAsync, "async", false, "Force asynchronous dispatch for all operations")
	processCmd.Flags().StringVar(&processQueue, "queue", "", "Queue name override for async operations")
	processCmd.Flags().StringSliceVar(&processTags, "tags", nil, "Only run operations carrying one of these tags")
}
