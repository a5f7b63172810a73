package invoice

import (
	"errors"
	"fmt"
)

var (
	// ErrNoItems is returned when nothing billable is left after filtering.
	ErrNoItems = errors.New("no invoice items after building")

	// ErrMissingContact is returned when the draft has no resolved contact id.
	ErrMissingContact = errors.New("invoice contact id is empty")

	// ErrMissingEmail is returned when the billing contact has no e-mail address.
	ErrMissingEmail = errors.New("contact has no email address")
)

// BuildError wraps a failure to turn an order into an invoice draft.
type BuildError struct {
	// Op is the operation that failed (e.g., "Build").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("invoice: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("invoice: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *BuildError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewBuildError creates a new BuildError with the specified operation and underlying error.
func NewBuildError(op string, err error, details string) *BuildError {
	return &BuildError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}
