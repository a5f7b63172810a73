package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"psync/internal/config"
	"psync/internal/logger"
)

var version = "1.0.0"

// cfg is set by Execute. It is nil when the environment failed validation.
var (
	cfg    *config.Config
	cfgErr error
)

var rootCmd = &cobra.Command{
	Use:   "psync",
	Short: "psync - reconcile studio orders with the CRM billing ledger",
	Long: `psync turns an album order export into a ledger invoice for the client,
records the payments already taken, schedules the remaining instalments and
can tear all of that down again.

Progress is published to a file and the run journal so a polling UI can follow
along, and every result is written as JSON.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitInput   = 2
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// Execute runs the CLI and returns the process exit code.
func Execute(c *config.Config, err error) int {
	cfg, cfgErr = c, err
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		code := exitFailure
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		log.Error().
			Err(err).
			Int("exit_code", code).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return code
	}
	return exitOK
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "", "Write the JSON result to this file (default: RESULT_FILE)")
}
