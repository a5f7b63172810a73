package store

import "database/sql"

// Journal records runs and their errors in one database.
type Journal struct {
	Runs   *RunRepo
	Errors *ErrorRepo
}

// NewJournal returns a Journal over db.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{Runs: NewRunRepo(db), Errors: NewErrorRepo(db)}
}

func (j *Journal) RecordRun(run *Run) error { return j.Runs.Insert(run) }

func (j *Journal) RecordError(e *RunError) error { return j.Errors.Insert(e) }
