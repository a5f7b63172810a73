// Package order turns an album export into an immutable, validated Order.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"psync/pkg/models"
)

var validate = validator.New()

// Data is the mutable input to New.
type Data struct {
	ClientIdentityCandidates []string
	Email                    string `validate:"omitempty,email"`
	FirstName                string
	LastName                 string
	Phone                    string `validate:"omitempty,e164"`
	Address                  models.Address
	AlbumName                string
	AlbumID                  string
	IssueDate                time.Time `validate:"required"`
	TotalAmount              decimal.Decimal
	Items                    []models.OrderItem    `validate:"dive"`
	Payments                 []models.PaymentEntry `validate:"dive"`
	IngestedAt               time.Time
}

// Order is a normalized, read-only studio order. Build it with New.
type Order struct {
	candidates []string
	email      string
	firstName  string
	lastName   string
	phone      string
	address    models.Address
	albumName  string
	albumID    string
	shootNo    string
	issueDate  time.Time
	total      decimal.Decimal
	totalVAT   decimal.Decimal
	items      []models.OrderItem
	payments   []models.PaymentEntry
	ingestedAt time.Time
}

// New validates d and freezes it into an Order. VAT totals are derived from the
// per-item VAT amounts.
func New(d Data) (*Order, error) {
	if err := validate.Struct(d); err != nil {
		return nil, fieldError("order", "validation failed", err)
	}
	if len(d.Items) == 0 && len(d.Payments) == 0 {
		return nil, fieldError("Order", "no items and no payments", nil)
	}

	o := &Order{
		candidates: dedupe(d.ClientIdentityCandidates),
		email:      strings.TrimSpace(d.Email),
		firstName:  strings.TrimSpace(d.FirstName),
		lastName:   strings.TrimSpace(d.LastName),
		phone:      d.Phone,
		address:    d.Address,
		albumName:  d.AlbumName,
		albumID:    d.AlbumID,
		shootNo:    ShootNumber(d.AlbumName),
		issueDate:  d.IssueDate,
		total:      d.TotalAmount,
		totalVAT:   decimal.Zero,
		items:      append([]models.OrderItem(nil), d.Items...),
		payments:   append([]models.PaymentEntry(nil), d.Payments...),
		ingestedAt: d.IngestedAt,
	}
	for _, it := range o.items {
		o.totalVAT = o.totalVAT.Add(it.VATAmount)
	}
	return o, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ShootNumber is the first segment of an album name of the form
// "ShootNo_Name_ContactID", or "" when the name has no underscore.
func ShootNumber(albumName string) string {
	albumName = strings.TrimSpace(albumName)
	if !strings.Contains(albumName, "_") {
		return ""
	}
	return strings.TrimSpace(strings.SplitN(albumName, "_", 2)[0])
}

func (o *Order) ClientIdentityCandidates() []string {
	return append([]string(nil), o.candidates...)
}

func (o *Order) Email() string { return o.email }
func (o *Order) FirstName() string { return o.firstName }
func (o *Order) LastName() string { return o.lastName }
func (o *Order) Phone() string { return o.phone }
func (o *Order) Address() models.Address { return o.address }
func (o *Order) AlbumName() string { return o.albumName }
func (o *Order) AlbumID() string { return o.albumID }
func (o *Order) ShootNo() string { return o.shootNo }
func (o *Order) IssueDate() time.Time { return o.issueDate }
func (o *Order) IngestedAt() time.Time { return o.ingestedAt }
func (o *Order) TotalAmount() decimal.Decimal { return o.total }

// TotalVAT is the sum of the per-item VAT amounts.
func (o *Order) TotalVAT() decimal.Decimal { return o.totalVAT }

// TotalExVAT is TotalAmount less TotalVAT.
func (o *Order) TotalExVAT() decimal.Decimal { return o.total.Sub(o.totalVAT) }

// Items returns a copy of the ordered items.
func (o *Order) Items() []models.OrderItem {
	return append([]models.OrderItem(nil), o.items...)
}

// Payments returns a copy of the payment entries in export order.
func (o *Order) Payments() []models.PaymentEntry {
	return append([]models.PaymentEntry(nil), o.payments...)
}

// ClientName is "First Last", trimmed.
func (o *Order) ClientName() string {
	return strings.TrimSpace(o.firstName + " " + o.lastName)
}

// Contact returns the billing contact details carried by the export.
func (o *Order) Contact(id models.RemotePartyID) models.Contact {
	return models.Contact{
		ID:        id,
		FirstName: o.firstName,
		LastName:  o.lastName,
		Name:      o.ClientName(),
		Email:     o.email,
		Phone:     o.phone,
		Address:   o.address,
	}
}

// String is a short description for logs.
func (o *Order) String() string {
	return fmt.Sprintf("%s (%s, %s, %d items, %d payments)",
		o.albumName, o.ClientName(), o.total.StringFixed(2), len(o.items), len(o.payments))
}
