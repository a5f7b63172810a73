// Package reconcile runs the order-to-ledger pipeline and the teardown
// commands, journalling every run.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"psync/internal/contact"
	"psync/internal/invoice"
	"psync/internal/lifecycle"
	"psync/internal/logger"
	"psync/internal/order"
	"psync/internal/payment"
	"psync/internal/progress"
	"psync/internal/retry"
	"psync/internal/schedule"
	"psync/internal/store"
	"psync/pkg/models"
	"psync/pkg/services"
)

// totalSteps of a reconcile run as shown to the progress poller.
const totalSteps = 5

// Journal persists runs and their errors.
type Journal interface {
	RecordRun(run *store.Run) error
	RecordError(e *store.RunError) error
}

// Settings configures a Service.
type Settings struct {
	Currency    string
	PhoneRegion string
	// FinancialsOnly drops zero-priced product lines from invoices.
	FinancialsOnly bool
	// VerifyContact fetches each embedded contact id before trusting it.
	VerifyContact bool
	// ContactFields names the custom fields written on the resolved contact.
	ContactFields ContactFields
	// SearchByJobNo falls back to a contact search on ContactFields.JobNo.
	SearchByJobNo bool

	SyncTag         string
	OpportunityTags []string
	Payment         payment.Config
	Schedule        schedule.Config
}

// ContactFields are CRM custom field ids. An empty id is not written.
type ContactFields struct {
	JobNo  string
	Status string
	Date   string
}

func (f ContactFields) empty() bool {
	return f.JobNo == "" && f.Status == "" && f.Date == ""
}

// Service wires the pipeline components over one ledger.
type Service struct {
	ledger    services.Ledger
	ingester  *order.Ingester
	resolver  *contact.Resolver
	builder   *invoice.Builder
	recorder  *payment.Recorder
	scheduler *schedule.Scheduler
	lifecycle *lifecycle.Manager
	reporter  *progress.Reporter
	journal   Journal
	clock     retry.Clock
	settings  Settings
	log       zerolog.Logger
}

// NewService builds a Service. A nil reporter or journal disables that output.
func NewService(l services.Ledger, clock retry.Clock, reporter *progress.Reporter, journal Journal, s Settings) *Service {
	if clock == nil {
		clock = retry.SystemClock{}
	}
	if reporter == nil {
		reporter = progress.NewReporter(clock.Now)
	}
	if journal == nil {
		journal = nopJournal{}
	}
	if s.Schedule.Currency == "" {
		s.Schedule.Currency = s.Currency
	}
	resolver := contact.NewResolver(l, s.VerifyContact)
	if s.SearchByJobNo {
		resolver.SetJobField(s.ContactFields.JobNo)
	}
	return &Service{
		ledger:    l,
		ingester:  order.NewIngester(s.PhoneRegion, clock.Now),
		resolver:  resolver,
		builder:   invoice.NewBuilder(),
		recorder:  payment.NewRecorder(l, clock, s.Payment),
		scheduler: schedule.NewScheduler(l, clock, s.Schedule),
		lifecycle: lifecycle.NewManager(l, resolver),
		reporter:  reporter,
		journal:   journal,
		clock:     clock,
		settings:  s,
		log:       logger.WithComponent("reconcile"),
	}
}

// run carries per-invocation state.
type run struct {
	id      string
	kind    string
	input   string
	started time.Time
	log     zerolog.Logger
}

func (s *Service) newRun(kind, input string) *run {
	id := uuid.NewString()
	return &run{
		id:      id,
		kind:    kind,
		input:   input,
		started: s.clock.Now(),
		log:     logger.WithRun("reconcile", id, kind),
	}
}

// Reconcile turns the order export at path into a sent ledger invoice with its
// past payments recorded and future payments scheduled. Per-payment failures
// are reported but do not fail the run; any other failure stops the pipeline.
// The returned error is the fatal failure, if any.
func (s *Service) Reconcile(ctx context.Context, path string) (*models.ReconciliationResult, error) {
	r := s.newRun("reconcile", path)
	res := &models.ReconciliationResult{RunID: r.id}
	today := s.clock.Now()

	fail := func(step string, err error) (*models.ReconciliationResult, error) {
		f := failureOf(step, err)
		res.Fail(f)
		s.publish(s.reporter.Step(), "Sync failed: "+f.Message, progress.StatusError)
		s.recordError(r, f)
		s.finish(r, res.Success, res.ErrorKind, res.Error, res.InvoiceID, res)
		return res, &StepError{Step: step, Err: err}
	}

	if err := s.reporter.Start(totalSteps, "Starting sync process..."); err != nil {
		r.log.Warn().Err(err).Msg("Progress unavailable")
	}

	// 1. Parse.
	s.publish(1, "Parsing invoice XML...", progress.StatusRunning)
	o, err := s.ingester.Load(path)
	if err != nil {
		return fail(StepParse, err)
	}
	r.log.Info().Str("order", o.String()).Msg("Order ingested")

	// 2. Resolve the billing contact.
	s.publish(2, "Resolving contact for "+o.ClientName()+"...", progress.StatusRunning)
	party, err := s.resolver.ResolveWithJob(ctx, o.ClientIdentityCandidates(), o.Email(), o.AlbumName())
	if err != nil {
		return fail(StepResolve, err)
	}
	res.ContactID = party
	billTo, err := s.resolver.Complete(ctx, o.Contact(party))
	if err != nil {
		return fail(StepResolve, err)
	}
	if !s.settings.ContactFields.empty() {
		s.publish(2, "Updating contact...", progress.StatusRunning)
		fields := s.contactFields(o)
		if err := s.ledger.UpdateContactFields(ctx, party, fields); err != nil {
			return fail(StepContact, err)
		}
		r.log.Info().Str("contact_id", party.String()).Int("fields", len(fields)).Msg("Contact updated")
	}

	// 3. Build, create and publish the invoice.
	s.publish(3, "Creating invoice...", progress.StatusRunning)
	draft, err := s.builder.Build(o, billTo, invoice.Options{
		FinancialsOnly: s.settings.FinancialsOnly,
		Currency:       s.settings.Currency,
		Today:          today,
	})
	if err != nil {
		return fail(StepInvoice, err)
	}
	inv, err := s.ledger.CreateInvoice(ctx, draft)
	if err != nil {
		return fail(StepInvoice, err)
	}
	res.InvoiceID = inv.ID
	res.InvoiceNumber = inv.Number
	res.Amount = inv.Total
	res.Balance = inv.Total
	r.log.Info().
		Str("invoice_id", inv.ID).
		Str("number", inv.Number).
		Str("total", inv.Total.StringFixed(2)).
		Msg("Invoice created")

	if err := s.ledger.SendInvoice(ctx, inv.ID); err != nil {
		// Not fatal: the invoice exists either way.
		f := failureOf(StepSend, err)
		res.Errors = append(res.Errors, f)
		s.recordError(r, f)
		r.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("Invoice not sent")
	}

	// 4. Record payments already taken.
	past, future := models.SplitPayments(o.Payments(), today)
	s.publish(4, fmt.Sprintf("Recording %d payment(s)...", len(past)), progress.StatusRunning)
	report, err := s.recorder.Record(ctx, inv.ID, past, func(cur, n int) {
		s.publish(4, fmt.Sprintf("Recording payment %d/%d...", cur, n), progress.StatusRunning)
	})
	res.PaymentsRecorded = report.Recorded()
	res.PaymentsFailed = report.Failed()
	res.SlowPayments = report.Slow()
	res.Balance = res.Amount.Sub(report.RecordedAmount())
	for _, perr := range report.Errors() {
		f := failureOf(StepPayments, perr)
		res.Errors = append(res.Errors, f)
		s.recordError(r, f)
	}
	if err != nil {
		return fail(StepPayments, err)
	}

	// 5. Schedule the remainder.
	if len(future) > 0 {
		s.publish(5, fmt.Sprintf("Scheduling %d future payment(s)...", len(future)), progress.StatusRunning)
		schedules, err := s.scheduler.Create(ctx, billTo, o.ShootNo(), future)
		for _, sch := range schedules {
			res.ScheduleIDs = append(res.ScheduleIDs, sch.ID)
		}
		res.ScheduleCreated = len(schedules) > 0
		if err != nil {
			return fail(StepSchedule, err)
		}
	}

	s.tag(ctx, r, res, party)

	res.Success = true
	s.publish(totalSteps, "Sync complete for "+o.ClientName(), progress.StatusSuccess)
	s.finish(r, true, "", "", res.InvoiceID, res)
	r.log.Info().
		Str("invoice_id", res.InvoiceID).
		Int("payments_recorded", res.PaymentsRecorded).
		Int("payments_failed", res.PaymentsFailed).
		Bool("schedule_created", res.ScheduleCreated).
		Str("balance", res.Balance.StringFixed(2)).
		Msg("Reconciliation complete")
	return res, nil
}

// contactFields are the session values written on the contact: job number,
// payment status and order date.
func (s *Service) contactFields(o *order.Order) []models.CustomField {
	ids := s.settings.ContactFields
	summary := models.SummarizePayments(o.TotalAmount(), o.Payments(), o.IssueDate())
	return []models.CustomField{
		{ID: ids.JobNo, Value: o.AlbumName()},
		{ID: ids.Status, Value: string(summary.Status)},
		{ID: ids.Date, Value: o.IssueDate().Format(models.DateLayout)},
	}
}

// tag marks the contact and its opportunities as synced. Failures are added
// to the result but never fail the run.
func (s *Service) tag(ctx context.Context, r *run, res *models.ReconciliationResult, party models.RemotePartyID) {
	warn := func(err error, msg string) {
		f := failureOf(StepTags, err)
		res.Errors = append(res.Errors, f)
		s.recordError(r, f)
		r.log.Warn().Err(err).Msg(msg)
	}

	if s.settings.SyncTag != "" {
		if err := s.ledger.AddContactTags(ctx, party, []string{s.settings.SyncTag}); err != nil {
			warn(err, "Contact tag failed")
		}
	}
	if len(s.settings.OpportunityTags) == 0 {
		return
	}
	opps, err := s.ledger.ListOpportunities(ctx, party)
	if err != nil {
		warn(err, "Opportunity lookup failed")
		return
	}
	for _, opp := range opps {
		if err := s.ledger.AddOpportunityTags(ctx, opp.ID, s.settings.OpportunityTags); err != nil {
			warn(fmt.Errorf("opportunity %s: %w", opp.ID, err), "Opportunity tag failed")
		}
	}
}

// DeleteInvoice removes one invoice after cancelling the listed schedules.
func (s *Service) DeleteInvoice(ctx context.Context, invoiceID string, scheduleIDs []string) (*models.DeleteResult, error) {
	r := s.newRun("delete", invoiceID)
	res, err := s.lifecycle.Delete(ctx, invoiceID, scheduleIDs)
	return s.finishDelete(r, StepDelete, invoiceID, res, err)
}

// DeleteClient removes every invoice and schedule of the client named in the
// order export at path.
func (s *Service) DeleteClient(ctx context.Context, path string) (*models.DeleteResult, error) {
	r := s.newRun("delete-client", path)
	o, err := s.ingester.Load(path)
	if err != nil {
		return s.finishDelete(r, StepParse, "", &models.DeleteResult{}, &StepError{Step: StepParse, Err: err})
	}
	res, err := s.lifecycle.DeleteForClient(ctx, o)
	return s.finishDelete(r, StepDelete, "", res, err)
}

// Void voids one invoice, optionally moving it to draft first.
func (s *Service) Void(ctx context.Context, invoiceID string, tryDraftFirst bool) (*models.DeleteResult, error) {
	r := s.newRun("void", invoiceID)
	res, err := s.lifecycle.Void(ctx, invoiceID, tryDraftFirst)
	return s.finishDelete(r, StepVoid, invoiceID, res, err)
}

// CancelSchedule deletes or disables one schedule.
func (s *Service) CancelSchedule(ctx context.Context, scheduleID string) (*models.CancelResult, error) {
	r := s.newRun("cancel-schedule", scheduleID)
	res := &models.CancelResult{ScheduleID: scheduleID}

	outcome, err := s.lifecycle.CancelSchedule(ctx, scheduleID)
	res.Outcome = string(outcome)
	if err != nil {
		f := failureOf(StepCancel, err)
		res.ErrorKind, res.Error = f.Kind, f.Message
		s.recordError(r, f)
		s.finish(r, false, f.Kind, f.Message, "", res)
		return res, err
	}
	res.Success = true
	s.finish(r, true, "", "", "", res)
	return res, nil
}

func (s *Service) finishDelete(r *run, step, invoiceID string, res *models.DeleteResult, err error) (*models.DeleteResult, error) {
	if err != nil {
		f := failureOf(step, err)
		res.ErrorKind, res.Error = f.Kind, f.Message
		res.Finish()
		s.recordError(r, f)
	}
	if len(res.NeedsManualRefundIDs) > 0 {
		r.log.Warn().Strs("invoice_ids", res.NeedsManualRefundIDs).Msg("Manual refund required before these invoices can be removed")
	}
	s.finish(r, res.Success, res.ErrorKind, res.Error, invoiceID, res)
	return res, err
}

func (s *Service) publish(step int, msg string, status progress.Status) {
	if err := s.reporter.Publish(step, totalSteps, msg, status); err != nil {
		s.log.Debug().Err(err).Msg("Progress publish failed")
	}
}

// recordError writes a failure to the durable error log and the journal.
func (s *Service) recordError(r *run, f models.Failure) {
	errLog := logger.ErrorLog()
	errLog.Error().
		Str("run_id", r.id).
		Str("run", r.kind).
		Str("input", r.input).
		Str("kind", string(f.Kind)).
		Str("step", f.Step).
		Int("http_status", f.HTTPStatus).
		Msg(f.Message)

	if err := s.journal.RecordError(&store.RunError{
		RunID:      r.id,
		Kind:       string(f.Kind),
		Step:       f.Step,
		Message:    f.Message,
		OccurredAt: s.clock.Now(),
	}); err != nil {
		r.log.Warn().Err(err).Msg("Journal error write failed")
	}
}

func (s *Service) finish(r *run, success bool, kind models.FailureKind, msg, invoiceID string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = []byte("{}")
	}
	if err := s.journal.RecordRun(&store.Run{
		ID:         r.id,
		Kind:       r.kind,
		Input:      r.input,
		Success:    success,
		ErrorKind:  string(kind),
		Error:      msg,
		InvoiceID:  invoiceID,
		Result:     string(raw),
		StartedAt:  r.started,
		FinishedAt: s.clock.Now(),
	}); err != nil {
		r.log.Warn().Err(err).Msg("Journal run write failed")
	}
}

type nopJournal struct{}

func (nopJournal) RecordRun(*store.Run) error        { return nil }
func (nopJournal) RecordError(*store.RunError) error { return nil }

// SetFinancialsOnly toggles dropping zero-priced product lines.
func (s *Service) SetFinancialsOnly(on bool) {
	s.settings.FinancialsOnly = on
}
