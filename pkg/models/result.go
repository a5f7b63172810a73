package models

import "github.com/shopspring/decimal"

// FailureKind tags a failure so callers can branch on it without string matching.
type FailureKind string

const (
	FailureIngestion        FailureKind = "ingestion"
	FailureIdentityNotFound FailureKind = "identity_not_found"
	FailureWriteConflict    FailureKind = "write_conflict"
	FailurePermission       FailureKind = "permission"
	FailureProviderLock     FailureKind = "provider_lock"
	FailureNetwork          FailureKind = "network"
	FailureNotFound         FailureKind = "not_found"
	FailureAPI              FailureKind = "api"
	FailureNameExhausted    FailureKind = "name_exhausted"
	FailureConfig           FailureKind = "config"
	FailureInternal         FailureKind = "internal"
)

// Failure is a tagged error carried in results.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Step    string      `json:"step,omitempty"`
	Message string      `json:"message"`
	// HTTPStatus is the ledger response status, when the failure came from one.
	HTTPStatus int `json:"httpStatus,omitempty"`
}

// ReconciliationResult is the outcome of reconciling one order.
type ReconciliationResult struct {
	RunID            string          `json:"runId,omitempty"`
	Success          bool            `json:"success"`
	InvoiceID        string          `json:"invoiceId"`
	InvoiceNumber    string          `json:"invoiceNumber"`
	ContactID        RemotePartyID   `json:"contactId,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Balance          decimal.Decimal `json:"balance"`
	PaymentsRecorded int             `json:"paymentsRecorded"`
	PaymentsFailed   int             `json:"paymentsFailed"`
	SlowPayments     int             `json:"slowPayments,omitempty"`
	ScheduleCreated  bool            `json:"scheduleCreated"`
	ScheduleIDs      []string        `json:"scheduleIds,omitempty"`
	Errors           []Failure       `json:"errors,omitempty"`
	ErrorKind        FailureKind     `json:"errorKind,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// Fail marks the result as failed with the given tagged failure.
func (r *ReconciliationResult) Fail(f Failure) {
	r.Success = false
	r.ErrorKind = f.Kind
	r.Error = f.Message
	r.Errors = append(r.Errors, f)
}

// DeleteResult aggregates the outcome of deleting one invoice or every invoice of a client.
type DeleteResult struct {
	Success              bool        `json:"success"`
	InvoicesFound        int         `json:"invoicesFound"`
	Deleted              int         `json:"deleted"`
	Voided               int         `json:"voided"`
	Failed               int         `json:"failed"`
	AlreadyVoid          int         `json:"alreadyVoid,omitempty"`
	SchedulesCancelled   int         `json:"schedulesCancelled"`
	NeedsManualRefund    bool        `json:"needsManualRefund"`
	NeedsManualRefundIDs []string    `json:"needsManualRefundIds"`
	ErrorKind            FailureKind `json:"errorKind,omitempty"`
	Error                string      `json:"error,omitempty"`
}

// Finish derives Success from the counters.
func (r *DeleteResult) Finish() {
	r.NeedsManualRefund = len(r.NeedsManualRefundIDs) > 0
	r.Success = r.Failed == 0 && !r.NeedsManualRefund && r.Error == ""
	if r.NeedsManualRefundIDs == nil {
		r.NeedsManualRefundIDs = []string{}
	}
}

// InvoiceOutcome is what happened to a single invoice during deletion.
type InvoiceOutcome string

const (
	OutcomeDeleted           InvoiceOutcome = "deleted"
	OutcomeVoided            InvoiceOutcome = "voided"
	OutcomeAlreadyGone       InvoiceOutcome = "already_gone"
	OutcomeAlreadyVoid       InvoiceOutcome = "already_void"
	OutcomeNeedsManualRefund InvoiceOutcome = "needs_manual_refund"
	OutcomeFailed            InvoiceOutcome = "failed"
)

// CancelResult is the outcome of cancelling one instalment schedule.
type CancelResult struct {
	Success    bool        `json:"success"`
	ScheduleID string      `json:"scheduleId"`
	Outcome    string      `json:"outcome,omitempty"`
	ErrorKind  FailureKind `json:"errorKind,omitempty"`
	Error      string      `json:"error,omitempty"`
}
