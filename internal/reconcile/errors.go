package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"psync/internal/contact"
	"psync/internal/invoice"
	"psync/internal/ledger"
	"psync/internal/order"
	"psync/internal/schedule"
	"psync/pkg/models"
)

// Pipeline steps, as recorded on failures.
const (
	StepParse    = "parse"
	StepResolve  = "resolve"
	StepContact  = "contact"
	StepInvoice  = "invoice"
	StepSend     = "send"
	StepPayments = "payments"
	StepSchedule = "schedule"
	StepTags     = "tags"
	StepDelete   = "delete"
	StepVoid     = "void"
	StepCancel   = "cancel"
)

// StepError ties a pipeline failure to the step that produced it.
type StepError struct {
	Step string
	Err  error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("reconcile: %s: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err came from reading or parsing the order
// export rather than from the ledger.
func IsInputError(err error) bool {
	var se *StepError
	if errors.As(err, &se) && se.Step == StepParse {
		return true
	}
	return errors.Is(err, order.ErrIngestion) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission)
}

// Classify maps an error to the failure kind reported in results.
func Classify(err error) models.FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, order.ErrIngestion), errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return models.FailureIngestion
	case errors.Is(err, invoice.ErrNoItems), errors.Is(err, invoice.ErrMissingEmail), errors.Is(err, contact.ErrNoEmail),
		errors.Is(err, schedule.ErrInvalidSplit):
		return models.FailureIngestion
	case errors.Is(err, contact.ErrIdentityNotFound):
		return models.FailureIdentityNotFound
	case errors.Is(err, schedule.ErrNameExhausted):
		return models.FailureNameExhausted
	case errors.Is(err, ledger.ErrWriteConflict):
		return models.FailureWriteConflict
	case errors.Is(err, ledger.ErrPermission):
		return models.FailurePermission
	case errors.Is(err, ledger.ErrProviderLock):
		return models.FailureProviderLock
	case errors.Is(err, ledger.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return models.FailureNetwork
	case errors.Is(err, ledger.ErrNotFound):
		return models.FailureNotFound
	case errors.Is(err, ledger.ErrBadRequest), errors.Is(err, ledger.ErrUnexpectedStatus):
		return models.FailureAPI
	}
	return models.FailureInternal
}

// failureOf builds the tagged failure for err at step.
func failureOf(step string, err error) models.Failure {
	return models.Failure{
		Kind:       Classify(err),
		Step:       step,
		Message:    err.Error(),
		HTTPStatus: ledger.StatusCode(err),
	}
}
