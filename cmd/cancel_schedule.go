package cmd

import (
	"github.com/spf13/cobra"

	"psync/internal/logger"
	"psync/pkg/models"
)

var cancelScheduleCmd = &cobra.Command{
	Use:   "cancel-schedule <schedule-id>",
	Short: "Cancel an instalment schedule",
	Long: `Delete an instalment schedule. If the ledger refuses the delete, the schedule
is switched out of live mode so no further charges are raised.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancelSchedule,
}

func init() {
	rootCmd.AddCommand(cancelScheduleCmd)
}

func runCancelSchedule(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cancel-schedule")

	a, err := newApp()
	if err != nil {
		return configFailure(cmd, err, func(f models.Failure) any {
			return &models.CancelResult{ScheduleID: args[0], ErrorKind: f.Kind, Error: f.Message}
		})
	}
	defer a.Close()

	log.Info().Str("schedule_id", args[0]).Msg("Cancelling schedule")
	res, runErr := a.service.CancelSchedule(cmd.Context(), args[0])
	if err := writeResult(cmd, res); err != nil {
		return err
	}
	if runErr != nil {
		return &exitError{code: exitFailure, err: runErr}
	}
	return nil
}
