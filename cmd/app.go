package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"psync/internal/ledger"
	"psync/internal/logger"
	"psync/internal/payment"
	"psync/internal/progress"
	"psync/internal/reconcile"
	"psync/internal/retry"
	"psync/internal/schedule"
	"psync/internal/store"
	"psync/pkg/models"
)

// app holds what a command needs, built from the loaded config.
type app struct {
	db      *sql.DB
	journal *store.Journal
	service *reconcile.Service
}

// configError reports an unusable environment.
func configError() error {
	if cfgErr != nil {
		return fmt.Errorf("configuration: %w", cfgErr)
	}
	return fmt.Errorf("configuration not loaded")
}

// openJournal opens the SQLite run journal.
func openJournal() (*sql.DB, error) {
	if cfg == nil {
		return nil, configError()
	}
	db, err := store.InitDB(cfg.JournalDB)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", cfg.JournalDB, err)
	}
	return db, nil
}

// newApp wires the ledger client, journal and progress sinks into a
// reconcile.Service.
func newApp() (*app, error) {
	if cfg == nil {
		return nil, configError()
	}
	if err := cfg.RequireLedger(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	if err := logger.SetupErrorLog(cfg.ErrorLogFile); err != nil {
		l := logger.WithComponent("cmd")
		l.Warn().Err(err).Str("path", cfg.ErrorLogFile).Msg("Error log unavailable")
	}
	policy, err := schedule.ParseRemainderPolicy(cfg.RemainderPolicy)
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	client, err := ledger.NewClient(ledger.Config{
		BaseURL:    cfg.LedgerBaseURL,
		APIKey:     cfg.LedgerAPIKey,
		LocationID: cfg.LedgerLocationID,
		Version:    cfg.LedgerAPIVersion,
		Timeout:    cfg.LedgerTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}

	db, err := openJournal()
	if err != nil {
		return nil, err
	}
	journal := store.NewJournal(db)

	sinks := []progress.Sink{store.NewProgressRepo(db)}
	if cfg.ProgressFile != "" {
		sinks = append(sinks, progress.NewFileSink(cfg.ProgressFile))
	}
	clock := retry.SystemClock{}

	svc := reconcile.NewService(client, clock, progress.NewReporter(clock.Now, sinks...), journal, reconcile.Settings{
		Currency:        cfg.Currency,
		PhoneRegion:     cfg.PhoneRegion,
		VerifyContact:   cfg.VerifyContact,
		ContactFields: reconcile.ContactFields{
			JobNo:  cfg.ContactFieldJobNo,
			Status: cfg.ContactFieldStatus,
			Date:   cfg.ContactFieldDate,
		},
		SearchByJobNo: cfg.SearchByJobNo,
		SyncTag:         cfg.SyncTag,
		OpportunityTags: cfg.OpportunityTags,
		Payment: payment.Config{
			Delay:       cfg.PaymentDelay,
			MaxAttempts: cfg.ConflictMaxAttempts,
		},
		Schedule: schedule.Config{
			Policy:     policy,
			DayOfMonth: cfg.ScheduleDayOfMonth,
			Currency:   cfg.Currency,
			LiveMode:   cfg.ScheduleLiveMode,
		},
	})
	return &app{db: db, journal: journal, service: svc}, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// writeResult prints v as JSON and saves it to --output or RESULT_FILE.
func writeResult(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	path, _ := cmd.Flags().GetString("output")
	if path == "" && cfg != nil {
		path = cfg.ResultFile
	}
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write result %s: %w", path, err)
	}
	return nil
}

// configFailure writes the config error as a result and exits 1.
func configFailure(cmd *cobra.Command, err error, result func(models.Failure) any) error {
	f := models.Failure{Kind: models.FailureConfig, Message: err.Error()}
	_ = writeResult(cmd, result(f))
	return &exitError{code: exitFailure, err: err}
}
