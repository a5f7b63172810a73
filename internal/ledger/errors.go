package ledger

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Ledger API errors. Callers branch on these with errors.Is.
var (
	// ErrWriteConflict is returned when the ledger rejects a write because a
	// concurrent write to the same invoice is in flight (HTTP 409).
	ErrWriteConflict = errors.New("ledger write conflict")

	// ErrPermission is returned when the API key lacks the scope for the call.
	ErrPermission = errors.New("ledger permission denied")

	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("ledger record not found")

	// ErrProviderLock is returned when the ledger refuses to change an invoice
	// because a payment processor holds money against it.
	ErrProviderLock = errors.New("invoice locked by payment provider")

	// ErrBadRequest is returned for any other rejected request.
	ErrBadRequest = errors.New("ledger rejected request")

	// ErrNetwork is returned when the ledger could not be reached.
	ErrNetwork = errors.New("ledger unreachable")

	// ErrUnexpectedStatus is returned for server errors and unknown codes.
	ErrUnexpectedStatus = errors.New("unexpected ledger response")
)

// APIError carries the failed call and what the ledger said about it.
type APIError struct {
	// Op is the client method that failed (e.g., "RecordPayment").
	Op string

	// StatusCode is the HTTP status, zero for transport failures.
	StatusCode int

	// Body is the trimmed response body.
	Body string

	// Err is one of the sentinel errors above.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("ledger: %s failed: %v", e.Op, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("ledger: %s failed (%d): %v: %s", e.Op, e.StatusCode, e.Err, e.Body)
	}
	return fmt.Sprintf("ledger: %s failed (%d): %v", e.Op, e.StatusCode, e.Err)
}

// Unwrap returns the sentinel error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error.
func (e *APIError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

const maxErrorBody = 500

// classify maps an HTTP failure to a sentinel error.
func classify(status int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case status == http.StatusConflict:
		return ErrWriteConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrPermission
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if strings.Contains(lower, "refund") || strings.Contains(lower, "payment provider") {
			return ErrProviderLock
		}
		return ErrBadRequest
	default:
		return ErrUnexpectedStatus
	}
}

func newAPIError(op string, status int, body []byte) *APIError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return &APIError{Op: op, StatusCode: status, Body: text, Err: classify(status, text)}
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
