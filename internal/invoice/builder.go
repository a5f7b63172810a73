// Package invoice turns a normalized order into a ledger invoice draft.
package invoice

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"psync/internal/logger"
	"psync/internal/order"
	"psync/pkg/models"
)

// roundingThreshold is the smallest gap between line total and order total
// that is folded into the first positive line.
var roundingThreshold = decimal.New(1, -2)

const defaultTaxLabel = "VAT"

// Options controls how a draft is built.
type Options struct {
	// FinancialsOnly drops zero-priced items other than order adjustments.
	FinancialsOnly bool
	Currency       string
	// Today is the run date used for the due date.
	Today time.Time
}

// Builder maps orders to invoice drafts. It is pure and never calls the ledger.
type Builder struct {
	log zerolog.Logger
}

// NewBuilder returns a Builder.
func NewBuilder() *Builder {
	return &Builder{log: logger.WithComponent("invoice-builder")}
}

// Build produces the invoice draft for o billed to c.
func (b *Builder) Build(o *order.Order, c models.Contact, opts Options) (*models.InvoiceDraft, error) {
	const op = "Build"

	if c.ID == "" {
		return nil, NewBuildError(op, ErrMissingContact, "")
	}
	if c.Email == "" {
		return nil, NewBuildError(op, ErrMissingEmail, string(c.ID))
	}

	lines, discount := BuildLines(o.Items(), opts.FinancialsOnly)
	if len(lines) == 0 {
		return nil, NewBuildError(op, ErrNoItems, o.AlbumName())
	}

	draft := &models.InvoiceDraft{
		Name:      InvoiceName(o),
		Currency:  opts.Currency,
		Contact:   c,
		Items:     lines,
		IssueDate: o.IssueDate(),
		DueDate:   DueDate(o.IssueDate(), opts.Today),
		Discount:  discount,
	}

	// Discount lines already explain any gap to the order total.
	if discount.IsZero() {
		draft.RoundingAdjustment = FoldRounding(draft.Items, o.TotalAmount())
		if !draft.RoundingAdjustment.IsZero() {
			b.log.Info().
				Str("adjustment", draft.RoundingAdjustment.StringFixed(2)).
				Str("order_total", o.TotalAmount().StringFixed(2)).
				Msg("Folded rounding difference into first line")
		}
	}

	b.log.Debug().
		Str("name", draft.Name).
		Int("lines", len(draft.Items)).
		Str("discount", discount.StringFixed(2)).
		Str("total", draft.Total().StringFixed(2)).
		Msg("Invoice draft built")

	return draft, nil
}

// BuildLines maps order items to ledger lines. Negative items become a single
// fixed discount instead of lines.
func BuildLines(items []models.OrderItem, financialsOnly bool) ([]models.LineItem, decimal.Decimal) {
	lines := make([]models.LineItem, 0, len(items))
	discount := decimal.Zero

	for _, it := range items {
		if financialsOnly && it.UnitPriceTotal.IsZero() && it.Type != models.ItemTypeOrderAdjustment {
			continue
		}
		if it.IsDiscount() {
			discount = discount.Add(it.UnitPriceTotal.Abs())
			continue
		}
		lines = append(lines, lineFor(it))
	}
	return lines, discount
}

func lineFor(it models.OrderItem) models.LineItem {
	name := DisplayName(it)
	if it.Quantity > 1 {
		name = fmt.Sprintf("%d x %s", it.Quantity, name)
	}

	// The export price is already the extended total, so the line is one unit of it.
	line := models.LineItem{
		Name:        name,
		Description: it.Description,
		Amount:      it.UnitPriceTotal,
		Quantity:    1,
		SKU:         it.SKU,
	}
	if it.Taxable && it.TaxRate.IsPositive() && it.UnitPriceTotal.IsPositive() {
		calc := models.TaxExclusive
		if it.PriceIncludesTax {
			calc = models.TaxInclusive
		}
		label := it.TaxLabel
		if label == "" {
			label = defaultTaxLabel
		}
		line.Tax = &models.LineTax{Name: label, Rate: it.TaxRate, Calculation: calc}
	}
	return line
}

// DisplayName picks the best non-empty label for an item.
func DisplayName(it models.OrderItem) string {
	switch {
	case it.ProductName != "":
		return it.ProductName
	case it.Template != "" && it.Description != "" && it.Template != it.Description:
		return it.Description + " - " + it.Template
	case it.Description != "":
		return it.Description
	case it.Template != "":
		return it.Template
	case it.Type != "":
		return it.Type
	default:
		return "Item"
	}
}

// FoldRounding adds the difference between total and the sum of positive
// lines to the first positive line when it is at least one penny. It returns
// the applied adjustment.
func FoldRounding(lines []models.LineItem, total decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		if l.Amount.IsPositive() {
			sum = sum.Add(l.Amount)
		}
	}
	diff := total.Sub(sum).Round(2)
	if diff.Abs().LessThan(roundingThreshold) {
		return decimal.Zero
	}
	for i := range lines {
		if lines[i].Amount.IsPositive() {
			lines[i].Amount = lines[i].Amount.Add(diff).Round(2)
			return diff
		}
	}
	return decimal.Zero
}

// InvoiceName is "First Last - ShootNo", or just the client name without a shoot number.
func InvoiceName(o *order.Order) string {
	name := o.ClientName()
	if shoot := o.ShootNo(); shoot != "" {
		if name == "" {
			return shoot
		}
		return name + " - " + shoot
	}
	return name
}

// DueDate is the later of today and the issue date, by calendar day.
func DueDate(issue, today time.Time) time.Time {
	if today.IsZero() || issue.Format(models.DateLayout) >= today.Format(models.DateLayout) {
		return issue
	}
	return today
}
