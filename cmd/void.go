package cmd

import (
	"github.com/spf13/cobra"

	"psync/internal/logger"
)

var voidCmd = &cobra.Command{
	Use:   "void <invoice-id>",
	Short: "Void a ledger invoice",
	Long: `Void an invoice without deleting it. By default the invoice is moved back to
draft first, which some ledgers require before a void is accepted.`,
	Args: cobra.ExactArgs(1),
	RunE: runVoid,
}

func init() {
	rootCmd.AddCommand(voidCmd)

	voidCmd.Flags().Bool("no-draft", false, "Void directly without moving the invoice to draft first")
}

func runVoid(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("void")
	noDraft, _ := cmd.Flags().GetBool("no-draft")

	a, err := newApp()
	if err != nil {
		return configFailure(cmd, err, deleteFailure)
	}
	defer a.Close()

	log.Info().Str("invoice_id", args[0]).Bool("draft_first", !noDraft).Msg("Voiding invoice")
	res, runErr := a.service.Void(cmd.Context(), args[0], !noDraft)
	return finishDelete(cmd, res, runErr)
}
