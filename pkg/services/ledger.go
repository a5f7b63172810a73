package services

import (
	"context"

	"psync/pkg/models"
)

// ContactDirectory reads, tags and annotates CRM contacts.
type ContactDirectory interface {
	GetContact(ctx context.Context, id models.RemotePartyID) (*models.Contact, error)
	SearchContactsByEmail(ctx context.Context, email string) ([]models.Contact, error)
	SearchContactsByField(ctx context.Context, fieldID, value string) ([]models.Contact, error)
	AddContactTags(ctx context.Context, id models.RemotePartyID, tags []string) error
	UpdateContactFields(ctx context.Context, id models.RemotePartyID, fields []models.CustomField) error
}

// OpportunityStore lists and tags the pipeline opportunities of a contact.
type OpportunityStore interface {
	ListOpportunities(ctx context.Context, contactID models.RemotePartyID) ([]models.Opportunity, error)
	AddOpportunityTags(ctx context.Context, opportunityID string, tags []string) error
}

// InvoiceStore manages ledger invoices and their payment records.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, draft *models.InvoiceDraft) (*models.LedgerInvoice, error)
	SendInvoice(ctx context.Context, invoiceID string) error
	GetInvoice(ctx context.Context, invoiceID string) (*models.LedgerInvoice, error)
	ListInvoices(ctx context.Context, contactID models.RemotePartyID) ([]models.LedgerInvoice, error)
	SearchInvoices(ctx context.Context, query string) ([]models.LedgerInvoice, error)
	UpdateInvoiceStatus(ctx context.Context, invoiceID string, status models.InvoiceStatus) error
	VoidInvoice(ctx context.Context, invoiceID string) error
	DeleteInvoice(ctx context.Context, invoiceID string) error
	RecordPayment(ctx context.Context, invoiceID string, req models.PaymentRecordRequest) error
	DeletePaymentRecord(ctx context.Context, invoiceID, paymentID string) error
}

// ScheduleStore manages instalment schedules.
type ScheduleStore interface {
	ListSchedules(ctx context.Context, contactID models.RemotePartyID) ([]models.InstalmentSchedule, error)
	CreateSchedule(ctx context.Context, req models.ScheduleRequest) (*models.InstalmentSchedule, error)
	DeleteSchedule(ctx context.Context, scheduleID string) error
	DisableSchedule(ctx context.Context, scheduleID string) error
}

// Ledger is the full remote CRM/billing surface.
type Ledger interface {
	ContactDirectory
	OpportunityStore
	InvoiceStore
	ScheduleStore
}
