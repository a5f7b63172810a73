// Package lifecycle deletes, voids and cancels ledger invoices and schedules
// without ever touching money held by a payment provider.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"psync/internal/ledger"
	"psync/internal/logger"
	"psync/internal/order"
	"psync/pkg/models"
	"psync/pkg/services"
)

// RefundNotes is the memo on the negative payment posted to clear a balance.
const RefundNotes = "Refund - Invoice deletion"

// providerSources are transaction sources that always mean a card or mandate provider.
var providerSources = map[string]bool{
	"gocardless": true,
	"stripe":     true,
	"square":     true,
	"paypal":     true,
}

// Store is the ledger surface the manager mutates.
type Store interface {
	services.InvoiceStore
	services.ScheduleStore
}

// PartyResolver finds the contact an order belongs to.
type PartyResolver interface {
	Resolve(ctx context.Context, candidates []string, email string) (models.RemotePartyID, error)
}

// ScheduleOutcome is what happened to a schedule on cancellation.
type ScheduleOutcome string

const (
	ScheduleDeleted          ScheduleOutcome = "deleted"
	ScheduleAlreadyCancelled ScheduleOutcome = "already_cancelled"
	ScheduleDisabled         ScheduleOutcome = "disabled"
)

// Manager runs invoice and schedule teardown.
type Manager struct {
	store    Store
	resolver PartyResolver
	log      zerolog.Logger
}

// NewManager returns a Manager. resolver is only needed by DeleteForClient.
func NewManager(store Store, resolver PartyResolver) *Manager {
	return &Manager{
		store:    store,
		resolver: resolver,
		log:      logger.WithComponent("lifecycle"),
	}
}

// ProviderHeld reports whether the invoice carries a succeeded transaction
// from a payment provider. Such money can only be refunded by hand.
func ProviderHeld(inv *models.LedgerInvoice) bool {
	return len(providerTransactions(inv)) > 0
}

func providerTransactions(inv *models.LedgerInvoice) []models.Transaction {
	var held []models.Transaction
	for _, tx := range inv.Transactions {
		if !strings.EqualFold(tx.Status, "succeeded") {
			continue
		}
		if tx.Provider != "" || providerSources[strings.ToLower(tx.Source)] {
			held = append(held, tx)
		}
	}
	return held
}

// Delete cancels the given schedules, then removes the invoice: hard delete
// when nothing is paid, otherwise unwind the payments and delete or void.
// A permission error aborts and is returned.
func (m *Manager) Delete(ctx context.Context, invoiceID string, scheduleIDs []string) (*models.DeleteResult, error) {
	const op = "Delete"
	res := &models.DeleteResult{}
	defer res.Finish()

	for _, id := range scheduleIDs {
		if id == "" {
			continue
		}
		if _, err := m.CancelSchedule(ctx, id); err != nil {
			m.log.Warn().Err(err).Str("schedule_id", id).Msg("Schedule cancellation failed")
			continue
		}
		res.SchedulesCancelled++
	}

	inv, err := m.store.GetInvoice(ctx, invoiceID)
	if errors.Is(err, ledger.ErrNotFound) {
		m.log.Info().Str("invoice_id", invoiceID).Msg("Invoice not found, nothing to delete")
		return res, nil
	}
	if err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("%s: fetch invoice: %w", op, err)
	}
	res.InvoicesFound = 1

	outcome, err := m.deleteOne(ctx, inv)
	tally(res, inv.ID, outcome)
	if err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// Void optionally moves the invoice to draft, then voids it. Invoices holding
// provider payments are reported for manual refund and left untouched.
func (m *Manager) Void(ctx context.Context, invoiceID string, tryDraftFirst bool) (*models.DeleteResult, error) {
	const op = "Void"
	res := &models.DeleteResult{}
	defer res.Finish()

	inv, err := m.store.GetInvoice(ctx, invoiceID)
	if errors.Is(err, ledger.ErrNotFound) {
		m.log.Info().Str("invoice_id", invoiceID).Msg("Invoice not found, nothing to void")
		return res, nil
	}
	if err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("%s: fetch invoice: %w", op, err)
	}
	res.InvoicesFound = 1

	var outcome models.InvoiceOutcome
	switch {
	case ProviderHeld(inv):
		m.log.Warn().Str("invoice_id", inv.ID).Str("number", inv.Number).Msg("Invoice holds provider payments, manual refund needed")
		outcome = models.OutcomeNeedsManualRefund
	case inv.Status == models.InvoiceStatusVoid:
		outcome = models.OutcomeAlreadyVoid
	default:
		outcome, err = m.void(ctx, inv.ID, tryDraftFirst)
	}
	tally(res, inv.ID, outcome)
	if err != nil {
		res.Error = err.Error()
		return res, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// CancelSchedule deletes a schedule, falling back to switching it off.
func (m *Manager) CancelSchedule(ctx context.Context, scheduleID string) (ScheduleOutcome, error) {
	const op = "CancelSchedule"

	err := m.store.DeleteSchedule(ctx, scheduleID)
	switch {
	case err == nil:
		m.log.Info().Str("schedule_id", scheduleID).Msg("Schedule deleted")
		return ScheduleDeleted, nil
	case errors.Is(err, ledger.ErrNotFound):
		m.log.Info().Str("schedule_id", scheduleID).Msg("Schedule already cancelled")
		return ScheduleAlreadyCancelled, nil
	}

	m.log.Warn().Err(err).Str("schedule_id", scheduleID).Msg("Schedule delete failed, disabling instead")
	if derr := m.store.DisableSchedule(ctx, scheduleID); derr != nil {
		return "", fmt.Errorf("%s: %s: %w", op, scheduleID, errors.Join(err, derr))
	}
	return ScheduleDisabled, nil
}

// DeleteForClient tears down every invoice and schedule of the order's client.
// Invoices are classified before anything is changed.
func (m *Manager) DeleteForClient(ctx context.Context, o *order.Order) (*models.DeleteResult, error) {
	const op = "DeleteForClient"
	res := &models.DeleteResult{}
	defer res.Finish()

	fail := func(err error) (*models.DeleteResult, error) {
		res.Error = err.Error()
		return res, fmt.Errorf("%s: %w", op, err)
	}

	if m.resolver == nil {
		return fail(errors.New("no contact resolver configured"))
	}
	party, err := m.resolver.Resolve(ctx, o.ClientIdentityCandidates(), o.Email())
	if err != nil {
		return fail(err)
	}

	invoices, err := m.clientInvoices(ctx, party, o.ClientName())
	if err != nil {
		return fail(fmt.Errorf("list invoices: %w", err))
	}
	schedules, err := m.store.ListSchedules(ctx, party)
	if err != nil {
		return fail(fmt.Errorf("list schedules: %w", err))
	}
	res.InvoicesFound = len(invoices)

	m.log.Info().
		Str("contact_id", party.String()).
		Int("invoices", len(invoices)).
		Int("schedules", len(schedules)).
		Msg("Client records found")

	var deletable []models.LedgerInvoice
	for _, inv := range invoices {
		switch {
		case inv.ID == "" || inv.Status.Terminal():
		case inv.Status == models.InvoiceStatusVoid:
			tally(res, inv.ID, models.OutcomeAlreadyVoid)
		case ProviderHeld(&inv):
			m.log.Warn().Str("invoice_id", inv.ID).Str("number", inv.Number).Msg("Invoice holds provider payments, manual refund needed")
			tally(res, inv.ID, models.OutcomeNeedsManualRefund)
		default:
			deletable = append(deletable, inv)
		}
	}

	for i := range deletable {
		inv := &deletable[i]
		outcome, err := m.deleteOne(ctx, inv)
		tally(res, inv.ID, outcome)
		if err != nil {
			return fail(err)
		}
	}

	for _, s := range schedules {
		if s.ID == "" {
			continue
		}
		if _, err := m.CancelSchedule(ctx, s.ID); err != nil {
			m.log.Warn().Err(err).Str("schedule_id", s.ID).Msg("Schedule cancellation failed")
			res.Failed++
			continue
		}
		res.SchedulesCancelled++
	}
	return res, nil
}

// clientInvoices lists by contact id and falls back to a name search filtered by party.
func (m *Manager) clientInvoices(ctx context.Context, party models.RemotePartyID, name string) ([]models.LedgerInvoice, error) {
	invoices, err := m.store.ListInvoices(ctx, party)
	if err != nil || len(invoices) > 0 || name == "" {
		return invoices, err
	}
	found, err := m.store.SearchInvoices(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, inv := range found {
		if inv.ContactID == party {
			invoices = append(invoices, inv)
		}
	}
	return invoices, nil
}

func (m *Manager) deleteOne(ctx context.Context, inv *models.LedgerInvoice) (models.InvoiceOutcome, error) {
	log := m.log.With().Str("invoice_id", inv.ID).Str("number", inv.Number).Logger()

	if ProviderHeld(inv) {
		log.Warn().Msg("Invoice holds provider payments, manual refund needed")
		return models.OutcomeNeedsManualRefund, nil
	}

	if inv.HasPayments() {
		log.Info().Str("amount_paid", inv.AmountPaid.StringFixed(2)).Msg("Unwinding recorded payments")
		if m.unwindPayments(ctx, inv) > 0 {
			fresh, err := m.store.GetInvoice(ctx, inv.ID)
			switch {
			case errors.Is(err, ledger.ErrNotFound):
				return models.OutcomeAlreadyGone, nil
			case err != nil:
				log.Warn().Err(err).Msg("Re-fetch failed, voiding")
				return m.void(ctx, inv.ID, false)
			case fresh.HasPayments():
				log.Info().Str("remaining", fresh.AmountPaid.StringFixed(2)).Msg("Balance remains, voiding")
				return m.void(ctx, inv.ID, false)
			}
		} else {
			outcome, err := m.void(ctx, inv.ID, false)
			if outcome != models.OutcomeFailed || err != nil {
				return outcome, err
			}
			log.Warn().Msg("Void failed, attempting delete")
		}
	}

	err := m.store.DeleteInvoice(ctx, inv.ID)
	switch {
	case err == nil:
		log.Info().Msg("Invoice deleted")
		return models.OutcomeDeleted, nil
	case errors.Is(err, ledger.ErrNotFound):
		return models.OutcomeAlreadyGone, nil
	case errors.Is(err, ledger.ErrPermission):
		return models.OutcomeFailed, err
	case errors.Is(err, ledger.ErrProviderLock):
		log.Warn().Err(err).Msg("Delete blocked, manual refund needed")
		return models.OutcomeNeedsManualRefund, nil
	}
	log.Warn().Err(err).Msg("Delete failed, voiding")
	return m.void(ctx, inv.ID, false)
}

// unwindPayments removes each payment record, or failing that posts one
// negative payment for the paid amount. It returns how many changes stuck.
func (m *Manager) unwindPayments(ctx context.Context, inv *models.LedgerInvoice) int {
	removed := 0
	for _, p := range inv.Payments {
		if p.ID == "" {
			continue
		}
		if err := m.store.DeletePaymentRecord(ctx, inv.ID, p.ID); err != nil {
			m.log.Debug().Err(err).Str("payment_id", p.ID).Msg("Payment record not removed")
			continue
		}
		removed++
	}
	if removed > 0 {
		return removed
	}

	refund := models.PaymentRecordRequest{
		Amount: inv.AmountPaid.Neg(),
		Mode:   "other",
		Notes:  RefundNotes,
	}
	if err := m.store.RecordPayment(ctx, inv.ID, refund); err != nil {
		m.log.Warn().Err(err).Str("invoice_id", inv.ID).Msg("Refund payment failed")
		return 0
	}
	m.log.Info().Str("invoice_id", inv.ID).Str("amount", inv.AmountPaid.StringFixed(2)).Msg("Refund payment recorded")
	return 1
}

func (m *Manager) void(ctx context.Context, invoiceID string, tryDraftFirst bool) (models.InvoiceOutcome, error) {
	if tryDraftFirst {
		if err := m.store.UpdateInvoiceStatus(ctx, invoiceID, models.InvoiceStatusDraft); err != nil {
			m.log.Debug().Err(err).Str("invoice_id", invoiceID).Msg("Draft transition refused")
		}
	}

	err := m.store.VoidInvoice(ctx, invoiceID)
	switch {
	case err == nil:
		m.log.Info().Str("invoice_id", invoiceID).Msg("Invoice voided")
		return models.OutcomeVoided, nil
	case errors.Is(err, ledger.ErrProviderLock):
		m.log.Warn().Err(err).Str("invoice_id", invoiceID).Msg("Void blocked, manual refund needed")
		return models.OutcomeNeedsManualRefund, nil
	case errors.Is(err, ledger.ErrPermission):
		return models.OutcomeFailed, err
	}
	m.log.Warn().Err(err).Str("invoice_id", invoiceID).Msg("Void failed")
	return models.OutcomeFailed, nil
}

func tally(res *models.DeleteResult, invoiceID string, outcome models.InvoiceOutcome) {
	switch outcome {
	case models.OutcomeDeleted:
		res.Deleted++
	case models.OutcomeVoided:
		res.Voided++
	case models.OutcomeAlreadyVoid:
		res.AlreadyVoid++
	case models.OutcomeNeedsManualRefund:
		res.NeedsManualRefundIDs = append(res.NeedsManualRefundIDs, invoiceID)
	case models.OutcomeFailed:
		res.Failed++
	}
}
