package cmd

import (
	"github.com/spf13/cobra"

	"psync/internal/logger"
	"psync/internal/reconcile"
	"psync/pkg/models"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <order.xml>",
	Short: "Create the ledger invoice, payments and schedule for an order export",
	Long: `Reconcile an album order export with the ledger.

The client is resolved from the export (embedded contact id, then e-mail search).
An invoice is created and sent, payments dated today or earlier are recorded,
and later payments become an instalment schedule.

Required environment variables:
  LEDGER_API_KEY     - Private integration token
  LEDGER_LOCATION_ID - Location (sub-account) id`,
	Example: `  # Reconcile an export
  psync reconcile "C:\Orders\5012_Doe.xml"

  # Invoice only the priced lines and save the result
  psync reconcile order.xml --financials-only -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().Bool("financials-only", false, "Drop zero-priced product lines from the invoice")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reconcile")
	path := args[0]
	financialsOnly, _ := cmd.Flags().GetBool("financials-only")

	a, err := newApp()
	if err != nil {
		return configFailure(cmd, err, func(f models.Failure) any {
			res := &models.ReconciliationResult{}
			res.Fail(f)
			return res
		})
	}
	defer a.Close()
	if financialsOnly {
		a.service.SetFinancialsOnly(true)
	}

	log.Info().
		Str("path", path).
		Bool("financials_only", financialsOnly).
		Msg("Starting reconciliation")

	res, runErr := a.service.Reconcile(cmd.Context(), path)
	if err := writeResult(cmd, res); err != nil {
		return err
	}
	if runErr != nil {
		code := exitFailure
		if reconcile.IsInputError(runErr) {
			code = exitInput
		}
		return &exitError{code: code, err: runErr}
	}
	return nil
}
