package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RunError is a fatal or per-payment failure recorded against a run.
type RunError struct {
	RunID      string    `json:"runId"`
	Kind       string    `json:"kind"`
	Step       string    `json:"step,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

type ErrorRepo struct {
	db *sql.DB
}

func NewErrorRepo(db *sql.DB) *ErrorRepo {
	return &ErrorRepo{db: db}
}

func (r *ErrorRepo) Insert(e *RunError) error {
	_, err := r.db.Exec(
		`INSERT INTO run_errors (run_id, kind, step, message, occurred_at) VALUES (?,?,?,?,?)`,
		e.RunID, e.Kind, e.Step, e.Message, e.OccurredAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run error: %w", err)
	}
	return nil
}

// ByRun returns the errors of a run in the order they happened.
func (r *ErrorRepo) ByRun(runID string) ([]RunError, error) {
	rows, err := r.db.Query(
		`SELECT run_id, kind, step, message, occurred_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunError
	for rows.Next() {
		var e RunError
		var at string
		if err := rows.Scan(&e.RunID, &e.Kind, &e.Step, &e.Message, &at); err != nil {
			return nil, err
		}
		e.OccurredAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}
