package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var statusJSON bool

type statusRow struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Method     string `json:"method"`
	State      string `json:"state"`
	ExecutedAt string `json:"executed_at"`
	SkipReason string `json:"skip_reason,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List execution records and their derived state",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.close()

		records, err := env.store.List(cmd.Context())
		if err != nil {
			return err
		}

		rows := make([]statusRow, len(records))
		for i, rec := range records {
			rows[i] = statusRow{
				Name:       rec.Name,
				Kind:       rec.Kind,
				Method:     string(rec.Type),
				State:      rec.State().String(),
				ExecutedAt: rec.ExecutedAt.Format(time.RFC3339),
				SkipReason: rec.SkipReason,
			}
		}

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		if len(rows) == 0 {
			fmt.Println("No execution records.")
			return nil
		}
		printStatusTable(rows)
		return nil
	},
	SilenceUsage: true,
}

func printStatusTable(rows []statusRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tMETHOD\tSTATE\tEXECUTED AT\tREASON")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Name, row.Kind, row.Method, row.State, row.ExecutedAt, row.SkipReason)
	}
	w.Flush()
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "output-json", false, "Print records as JSON")
}
