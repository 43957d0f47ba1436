package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deployops/taskrun/internal/dag"
	"github.com/deployops/taskrun/internal/orchestrator"
)

var (
	previewFrom   string
	previewRepeat bool
	previewTags   []string
	previewGraph  bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the ordered batch that process would execute",
	Long: `Discover and order pending tasks exactly as process would, then print the
resulting batch without touching the execution record store. With --graph the
dependency graph is printed in Graphviz DOT format instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.close()

		opts := orchestrator.Options{
			DryRun: true,
			From:   previewFrom,
			Repeat: previewRepeat,
			Tags:   previewTags,
		}

		if previewGraph {
			tasks, err := env.orch.Plan(cmd.Context(), opts)
			if err != nil {
				return err
			}
			graph, err := dag.Build(tasks)
			if err != nil {
				return err
			}
			defer graph.Close()

			dot, err := dag.NewVisualization(graph).RenderDOT()
			if err != nil {
				return err
			}
			fmt.Print(dot)
			return nil
		}

		previews, err := env.orch.Process(cmd.Context(), opts)
		if err != nil {
			return err
		}
		printPreviews(previews)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	previewCmd.Flags().StringVar(&previewFrom, "from", "", "Drop tasks with a timestamp before this value (YYYY_MM_DD_HHMMSS)")
	previewCmd.Flags().BoolVar(&previewRepeat, "repeat", false, "Preview a repeat run over previously executed tasks")
	previewCmd.Flags().StringSliceVar(&previewTags, "tags", nil, "Only show operations carrying one of these tags")
	previewCmd.Flags().BoolVar(&previewGraph, "graph", false, "Render the dependency graph in DOT format")
}
