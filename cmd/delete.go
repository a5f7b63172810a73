package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"psync/internal/logger"
	"psync/internal/reconcile"
	"psync/pkg/models"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete or void ledger invoices and cancel their schedules",
	Long: `Delete one invoice by id, or every invoice and schedule of the client named
in an order export.

Invoices holding payments taken by a card or mandate provider are never touched;
they are listed in needsManualRefundIds and must be refunded by hand first.
Invoices with recorded payments are unwound and deleted, or voided when a
balance remains.`,
	Example: `  # Delete one invoice and its schedules
  psync delete --invoice 6745f0e2c1 --schedule-ids s1,s2

  # Delete everything for the client of an export
  psync delete --client order.xml`,
	Args: cobra.NoArgs,
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().String("invoice", "", "Ledger invoice id to delete")
	deleteCmd.Flags().StringSlice("schedule-ids", nil, "Schedule ids to cancel before deleting the invoice")
	deleteCmd.Flags().String("client", "", "Order export whose client's invoices and schedules are deleted")
}

func runDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("delete")

	invoiceID, _ := cmd.Flags().GetString("invoice")
	scheduleIDs, _ := cmd.Flags().GetStringSlice("schedule-ids")
	clientPath, _ := cmd.Flags().GetString("client")

	invoiceID = strings.TrimSpace(invoiceID)
	if (invoiceID == "") == (clientPath == "") {
		return &exitError{code: exitInput, err: errors.New("exactly one of --invoice or --client is required")}
	}

	a, err := newApp()
	if err != nil {
		return configFailure(cmd, err, deleteFailure)
	}
	defer a.Close()

	var res *models.DeleteResult
	var runErr error
	if clientPath != "" {
		log.Info().Str("path", clientPath).Msg("Deleting client invoices")
		res, runErr = a.service.DeleteClient(cmd.Context(), clientPath)
	} else {
		log.Info().Str("invoice_id", invoiceID).Strs("schedule_ids", scheduleIDs).Msg("Deleting invoice")
		res, runErr = a.service.DeleteInvoice(cmd.Context(), invoiceID, scheduleIDs)
	}
	return finishDelete(cmd, res, runErr)
}

func deleteFailure(f models.Failure) any {
	res := &models.DeleteResult{ErrorKind: f.Kind, Error: f.Message}
	res.Finish()
	return res
}

// finishDelete writes a DeleteResult and maps it to an exit code.
func finishDelete(cmd *cobra.Command, res *models.DeleteResult, runErr error) error {
	if err := writeResult(cmd, res); err != nil {
		return err
	}
	switch {
	case runErr != nil && reconcile.IsInputError(runErr):
		return &exitError{code: exitInput, err: runErr}
	case runErr != nil:
		return &exitError{code: exitFailure, err: runErr}
	case !res.Success:
		return &exitError{code: exitFailure, err: errors.New(deleteSummary(res))}
	}
	return nil
}

func deleteSummary(res *models.DeleteResult) string {
	if res.NeedsManualRefund {
		return "manual refund required for " + strings.Join(res.NeedsManualRefundIDs, ", ")
	}
	return "some invoices could not be deleted or voided"
}
