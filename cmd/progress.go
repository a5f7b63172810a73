package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"psync/internal/progress"
	"psync/internal/store"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the progress of the current or last run",
	Long: `Print the progress slot as "step|total|message|status", or as JSON with --json.
A run that never started is reported explicitly, and a running snapshot older
than PROGRESS_STALE_AFTER is flagged stale.`,
	Args: cobra.NoArgs,
	RunE: runProgress,
}

func init() {
	rootCmd.AddCommand(progressCmd)

	progressCmd.Flags().Bool("json", false, "Print the snapshot as JSON")
	progressCmd.Flags().Bool("from-journal", false, "Read the SQLite slot instead of the progress file")
	progressCmd.Flags().Bool("clear", false, "Remove the progress record")
}

func runProgress(cmd *cobra.Command, args []string) error {
	if cfg == nil {
		return &exitError{code: exitFailure, err: configError()}
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	fromJournal, _ := cmd.Flags().GetBool("from-journal")
	doClear, _ := cmd.Flags().GetBool("clear")

	var sink progress.Sink = progress.NewFileSink(cfg.ProgressFile)
	if fromJournal {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()
		sink = store.NewProgressRepo(db)
	}

	if doClear {
		return sink.Clear()
	}

	snap, err := progress.Read(sink)
	if err != nil {
		return err
	}
	stale := snap.Stale(time.Now(), cfg.StaleAfter)

	if asJSON {
		return writeResult(cmd, struct {
			progress.Snapshot
			Stale bool `json:"stale"`
		}{snap, stale})
	}

	out := cmd.OutOrStdout()
	if snap.NotStarted {
		fmt.Fprintln(out, "not started")
		return nil
	}
	fmt.Fprintln(out, progress.Format(snap.Update))
	if stale {
		fmt.Fprintf(out, "stale: last update %s ago\n", time.Since(snap.UpdatedAt).Round(time.Second))
	}
	return nil
}
