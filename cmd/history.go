package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"psync/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the journal",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "Number of runs to show")
	historyCmd.Flags().String("run", "", "Show one run with its errors")
	historyCmd.Flags().Bool("json", false, "Print as JSON")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	asJSON, _ := cmd.Flags().GetBool("json")

	db, err := openJournal()
	if err != nil {
		return &exitError{code: exitFailure, err: err}
	}
	defer db.Close()
	journal := store.NewJournal(db)

	if runID != "" {
		run, err := journal.Runs.Get(runID)
		if err != nil {
			return err
		}
		errs, err := journal.Errors.ByRun(runID)
		if err != nil {
			return err
		}
		return writeResult(cmd, map[string]any{"run": run, "errors": errs})
	}

	runs, err := journal.Runs.List(limit)
	if err != nil {
		return err
	}
	if asJSON {
		return writeResult(cmd, runs)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tKIND\tSUCCESS\tINVOICE\tINPUT\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Kind, r.Success, r.InvoiceID, r.Input, r.Error)
	}
	return w.Flush()
}
