package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"psync/internal/logger"
	"psync/internal/progress"
	"psync/internal/statusapi"
	"psync/internal/store"
)

var serveStatusCmd = &cobra.Command{
	Use:   "serve-status",
	Short: "Serve progress and the run journal over HTTP",
	Long: `Start a small HTTP server for a polling UI:

  GET /api/v1/progress   current progress snapshot
  GET /api/v1/runs       recent runs, newest first
  GET /api/v1/runs/{id}  one run with its errors`,
	Args: cobra.NoArgs,
	RunE: runServeStatus,
}

func init() {
	rootCmd.AddCommand(serveStatusCmd)

	serveStatusCmd.Flags().String("addr", "", "Listen address (default: STATUS_ADDR)")
	serveStatusCmd.Flags().Bool("file-progress", false, "Serve the progress file instead of the SQLite slot")
}

func runServeStatus(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve-status")
	if cfg == nil {
		return &exitError{code: exitFailure, err: configError()}
	}

	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.StatusAddr
	}
	fileProgress, _ := cmd.Flags().GetBool("file-progress")

	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	var prog progress.Reader = store.NewProgressRepo(db)
	if fileProgress {
		prog = progress.NewFileSink(cfg.ProgressFile)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           statusapi.NewRouter(prog, store.NewRunRepo(db), store.NewErrorRepo(db), statusapi.Options{StaleAfter: cfg.StaleAfter}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down status server")
	return srv.Shutdown(shutdownCtx)
}
