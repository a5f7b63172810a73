package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RemotePartyID is the opaque id of the billing contact in the CRM.
// It is always resolved from the CRM or the export, never generated.
type RemotePartyID string

// String implements fmt.Stringer.
func (id RemotePartyID) String() string { return string(id) }

// Contact is the subset of a CRM contact record used for billing.
type Contact struct {
	ID        RemotePartyID `json:"id"`
	FirstName string        `json:"first_name,omitempty"`
	LastName  string        `json:"last_name,omitempty"`
	Name      string        `json:"name,omitempty"`
	Email     string        `json:"email,omitempty"`
	Phone     string        `json:"phone,omitempty"`
	Address   Address       `json:"address"`
	Tags      []string      `json:"tags,omitempty"`
}

// Opportunity is a CRM pipeline opportunity linked to a contact.
type Opportunity struct {
	ID        string        `json:"id"`
	ContactID RemotePartyID `json:"contact_id"`
	Name      string        `json:"name,omitempty"`
	Tags      []string      `json:"tags,omitempty"`
}

// InvoiceStatus is the ledger-side status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusVoid          InvoiceStatus = "void"
	InvoiceStatusDeleted       InvoiceStatus = "deleted"
)

// Terminal reports whether no further transition is possible.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoiceStatusDeleted
}

// TaxCalculation tells the ledger whether a line price already contains tax.
type TaxCalculation string

const (
	TaxExclusive TaxCalculation = "exclusive"
	TaxInclusive TaxCalculation = "inclusive"
)

// LineTax is the tax block attached to a ledger line.
type LineTax struct {
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	Calculation TaxCalculation  `json:"calculation"`
}

// LineItem is one ledger invoice line.
type LineItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Quantity    int             `json:"qty"`
	SKU         string          `json:"sku,omitempty"`
	Tax         *LineTax        `json:"tax,omitempty"`
}

// InvoiceDraft is everything needed to create a ledger invoice for an order.
type InvoiceDraft struct {
	Name      string          `json:"name"`
	Currency  string          `json:"currency"`
	Contact   Contact         `json:"contact"`
	Items     []LineItem      `json:"items"`
	IssueDate time.Time       `json:"issue_date"`
	DueDate   time.Time       `json:"due_date"`
	Discount  decimal.Decimal `json:"discount"`

	// RoundingAdjustment is the amount folded into the first positive line.
	RoundingAdjustment decimal.Decimal `json:"rounding_adjustment"`
}

// Subtotal is the sum of all line amounts.
func (d *InvoiceDraft) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.Items {
		total = total.Add(it.Amount)
	}
	return total
}

// Total is the subtotal less the fixed discount.
func (d *InvoiceDraft) Total() decimal.Decimal {
	return d.Subtotal().Sub(d.Discount)
}

// PaymentRecord is a payment already recorded against a ledger invoice.
type PaymentRecord struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Mode   string          `json:"mode,omitempty"`
}

// Transaction is a payment-processor transaction attached to a ledger invoice.
type Transaction struct {
	ID       string          `json:"id"`
	Provider string          `json:"provider,omitempty"`
	Source   string          `json:"source,omitempty"`
	Status   string          `json:"status,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Date     string          `json:"date,omitempty"`
}

// LedgerInvoice is the remote billing record created once per order.
type LedgerInvoice struct {
	ID           string          `json:"id"`
	Number       string          `json:"number"`
	Name         string          `json:"name,omitempty"`
	ContactID    RemotePartyID   `json:"contact_id,omitempty"`
	Status       InvoiceStatus   `json:"status"`
	Items        []LineItem      `json:"items,omitempty"`
	IssueDate    string          `json:"issue_date,omitempty"`
	DueDate      string          `json:"due_date,omitempty"`
	Discount     decimal.Decimal `json:"discount"`
	Total        decimal.Decimal `json:"total"`
	AmountPaid   decimal.Decimal `json:"amount_paid"`
	Payments     []PaymentRecord `json:"payments,omitempty"`
	Transactions []Transaction   `json:"transactions,omitempty"`
}

// HasPayments reports whether any amount has been recorded against the invoice.
func (inv *LedgerInvoice) HasPayments() bool {
	return inv.AmountPaid.IsPositive()
}

// PaymentRecordRequest is the body of a record-payment call.
type PaymentRecordRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Mode   string          `json:"mode"`
	Notes  string          `json:"notes"`
}

// Instalment is one dated charge of an instalment schedule, in minor units.
type Instalment struct {
	ChargeDate time.Time `json:"charge_date"`
	Amount     int64     `json:"amount"`
}

// InstalmentSchedule is a recurring billing definition in the ledger.
type InstalmentSchedule struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	PartyID     RemotePartyID `json:"party_id,omitempty"`
	Instalments []Instalment  `json:"instalments,omitempty"`
	LiveMode    bool          `json:"live_mode"`
	Status      string        `json:"status,omitempty"`
}

// Total returns the sum of instalment amounts in minor units.
func (s *InstalmentSchedule) Total() int64 {
	var total int64
	for _, in := range s.Instalments {
		total += in.Amount
	}
	return total
}

// ScheduleRequest is the body of a create-schedule call.
type ScheduleRequest struct {
	Name        string       `json:"name"`
	Contact     Contact      `json:"contact"`
	Currency    string       `json:"currency"`
	Instalments []Instalment `json:"instalments"`
	LiveMode    bool         `json:"live_mode"`
	// DayOfMonth is the recurrence day; -1 is the last day of the month and 0
	// means the first charge's day.
	DayOfMonth int `json:"day_of_month,omitempty"`
}

// Total returns the sum of requested instalment amounts in minor units.
func (r ScheduleRequest) Total() int64 {
	var total int64
	for _, in := range r.Instalments {
		total += in.Amount
	}
	return total
}

// CustomField is one value of a CRM contact custom field, addressed by field id.
type CustomField struct {
	ID    string `json:"id"`
	Value string `json:"field_value"`
}
