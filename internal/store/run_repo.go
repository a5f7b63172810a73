package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned by Get for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Run is one journalled CLI invocation.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Input      string    `json:"input"`
	Success    bool      `json:"success"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	Error      string    `json:"error,omitempty"`
	InvoiceID  string    `json:"invoiceId,omitempty"`
	Result     string    `json:"result"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Insert stores a run. Re-inserting the same id replaces it.
func (r *RunRepo) Insert(run *Run) error {
	result := run.Result
	if result == "" {
		result = "{}"
	}
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO runs
		(id, kind, input, success, error_kind, error, invoice_id, result, started_at, finished_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.Kind, run.Input, boolInt(run.Success), run.ErrorKind, run.Error,
		run.InvoiceID, result, run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Get returns a run by id.
func (r *RunRepo) Get(id string) (*Run, error) {
	rows, err := r.db.Query(selectRuns+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// List returns the most recent runs first. limit <= 0 means 50.
func (r *RunRepo) List(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(selectRuns+" ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

const selectRuns = `SELECT id, kind, input, success, error_kind, error, invoice_id, result, started_at, finished_at FROM runs`

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var run Run
		var success int
		var started, finished string
		if err := rows.Scan(
			&run.ID, &run.Kind, &run.Input, &success, &run.ErrorKind, &run.Error,
			&run.InvoiceID, &run.Result, &started, &finished,
		); err != nil {
			return nil, err
		}
		run.Success = success != 0
		run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
