package store

import (
	"database/sql"
	"errors"
	"time"

	"psync/internal/progress"
)

// ProgressRepo is a progress.Sink backed by a single upserted row.
type ProgressRepo struct {
	db *sql.DB
}

var _ progress.Sink = (*ProgressRepo)(nil)

func NewProgressRepo(db *sql.DB) *ProgressRepo {
	return &ProgressRepo{db: db}
}

func (r *ProgressRepo) Write(u progress.Update) error {
	at := u.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.Exec(
		`INSERT INTO progress (slot, step, total, message, status, updated_at)
		VALUES (1,?,?,?,?,?)
		ON CONFLICT(slot) DO UPDATE SET
			step = excluded.step, total = excluded.total, message = excluded.message,
			status = excluded.status, updated_at = excluded.updated_at`,
		u.Step, u.Total, u.Message, string(u.Status), at.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (r *ProgressRepo) Read() (progress.Update, bool, error) {
	var u progress.Update
	var status, at string
	err := r.db.QueryRow(
		`SELECT step, total, message, status, updated_at FROM progress WHERE slot = 1`,
	).Scan(&u.Step, &u.Total, &u.Message, &status, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return progress.Update{}, false, nil
	}
	if err != nil {
		return progress.Update{}, false, err
	}
	u.Status = progress.Status(status)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, at)
	return u, true, nil
}

func (r *ProgressRepo) Clear() error {
	_, err := r.db.Exec(`DELETE FROM progress`)
	return err
}
