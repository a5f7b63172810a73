package order

import (
	"errors"
	"fmt"
)

// ErrIngestion is matched by every IngestionError.
var ErrIngestion = errors.New("order ingestion failed")

// IngestionError reports a missing or malformed field in the export.
type IngestionError struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *IngestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("order: %s: %s", e.Field, e.Reason)
}

// Unwrap returns the underlying parse error, if any.
func (e *IngestionError) Unwrap() error {
	return e.Err
}

// Is matches ErrIngestion.
func (e *IngestionError) Is(target error) bool {
	return target == ErrIngestion
}

func fieldError(field, reason string, err error) *IngestionError {
	return &IngestionError{Field: field, Reason: reason, Err: err}
}
