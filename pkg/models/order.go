package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by the order export and the ledger.
const DateLayout = "2006-01-02"

// Address is a postal address as supplied by the order export or the CRM.
type Address struct {
	Street     string `json:"street,omitempty"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Merge fills empty fields of a from other.
func (a Address) Merge(other Address) Address {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&a.Street, other.Street)
	fill(&a.Street2, other.Street2)
	fill(&a.City, other.City)
	fill(&a.State, other.State)
	fill(&a.PostalCode, other.PostalCode)
	fill(&a.Country, other.Country)
	return a
}

// ItemTypeOrderAdjustment marks export lines that adjust the order total.
// They are kept even in financials-only mode.
const ItemTypeOrderAdjustment = "OrderAdjustment"

// OrderItem is one ordered line from the album export.
type OrderItem struct {
	Type        string `json:"type,omitempty"`
	Description string `json:"description"`
	ProductName string `json:"product_name,omitempty"`
	Template    string `json:"template,omitempty"`
	SKU         string `json:"sku,omitempty"`
	Quantity    int    `json:"quantity" validate:"gte=1"`

	// UnitPriceTotal is the extended line price. Negative values are discounts or credits.
	UnitPriceTotal decimal.Decimal `json:"unit_price_total"`

	Taxable          bool            `json:"taxable"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TaxLabel         string          `json:"tax_label,omitempty"`
	PriceIncludesTax bool            `json:"price_includes_tax"`

	// VATAmount is taken verbatim from the export and never recomputed.
	VATAmount decimal.Decimal `json:"vat_amount"`
}

// IsDiscount reports whether the line reduces the order total.
func (i OrderItem) IsDiscount() bool {
	return i.UnitPriceTotal.IsNegative()
}

// PaymentEntry is a payment line of the order: a deposit already taken or a
// future instalment.
type PaymentEntry struct {
	ID         string          `json:"id,omitempty"`
	Date       time.Time       `json:"date" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	MethodCode string          `json:"method_code,omitempty"`
	MethodName string          `json:"method_name,omitempty"`
	Type       string          `json:"type,omitempty"`
}

// DueBy reports whether the payment date is on or before today.
// Comparison is by calendar date only.
func (p PaymentEntry) DueBy(today time.Time) bool {
	return p.Date.Format(DateLayout) <= today.Format(DateLayout)
}

// SplitPayments separates payments into recordable (due) and schedulable (future) ones,
// preserving order.
func SplitPayments(payments []PaymentEntry, today time.Time) (past, future []PaymentEntry) {
	for _, p := range payments {
		if p.DueBy(today) {
			past = append(past, p)
		} else {
			future = append(future, p)
		}
	}
	return past, future
}

// SumPayments returns the total amount of the payments.
func SumPayments(payments []PaymentEntry) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

// SessionStatus is the payment state shown on the CRM contact.
type SessionStatus string

const (
	SessionPaidInFull        SessionStatus = "Paid in Full"
	SessionDepositPlanActive SessionStatus = "Deposit Paid - Payment Plan Active"
	SessionPaymentPlanActive SessionStatus = "Payment Plan Active"
)

// PaymentSummary compares the order's payment lines with its total.
type PaymentSummary struct {
	Total     decimal.Decimal
	Scheduled decimal.Decimal
	// Deposit is the part of the total not covered by payment lines, never negative.
	Deposit      decimal.Decimal
	Count        int
	Status       SessionStatus
	DeliveryDate time.Time
}

// SummarizePayments derives the session status: no payment lines means paid in
// full, lines short of the total mean a deposit was taken, otherwise the plan
// covers everything. DeliveryDate is the last payment's date, or orderDate.
func SummarizePayments(total decimal.Decimal, payments []PaymentEntry, orderDate time.Time) PaymentSummary {
	s := PaymentSummary{
		Total:        total,
		Scheduled:    SumPayments(payments),
		Deposit:      decimal.Zero,
		Count:        len(payments),
		DeliveryDate: orderDate,
	}
	if s.Scheduled.LessThan(total) {
		s.Deposit = total.Sub(s.Scheduled)
	}
	switch {
	case len(payments) == 0:
		s.Status = SessionPaidInFull
	case s.Deposit.IsPositive():
		s.Status = SessionDepositPlanActive
	default:
		s.Status = SessionPaymentPlanActive
	}
	if len(payments) > 0 {
		s.DeliveryDate = payments[len(payments)-1].Date
	}
	return s
}
