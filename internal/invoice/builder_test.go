package invoice_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"psync/internal/invoice"
	"psync/internal/order"
	"psync/pkg/models"
)

var (
	issue = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	today = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func item(desc, price string) models.OrderItem {
	return models.OrderItem{Description: desc, Quantity: 1, UnitPriceTotal: dec(price)}
}

func newOrder(t *testing.T, total string, items ...models.OrderItem) *order.Order {
	t.Helper()
	o, err := order.New(order.Data{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       "jane@example.com",
		AlbumName:   "5012_Doe_UWge6H1hK1raUtu1nrAo",
		IssueDate:   issue,
		TotalAmount: dec(total),
		Items:       items,
	})
	if err != nil {
		t.Fatalf("order.New() error = %v", err)
	}
	return o
}

var billTo = models.Contact{ID: "abc", Name: "Jane Doe", Email: "jane@example.com"}

func build(t *testing.T, o *order.Order, opts invoice.Options) *models.InvoiceDraft {
	t.Helper()
	if opts.Today.IsZero() {
		opts.Today = today
	}
	d, err := invoice.NewBuilder().Build(o, billTo, opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return d
}

func TestRoundingFoldedIntoFirstPositiveLine(t *testing.T) {
	o := newOrder(t, "150.00", item("Session", "0"), item("Album", "99.99"), item("Prints", "50.00"))
	d := build(t, o, invoice.Options{Currency: "GBP"})

	if !d.RoundingAdjustment.Equal(dec("0.01")) {
		t.Errorf("adjustment = %s, want 0.01", d.RoundingAdjustment)
	}
	if !d.Items[1].Amount.Equal(dec("100.00")) {
		t.Errorf("first positive line = %s, want 100.00", d.Items[1].Amount)
	}
	if !d.Items[0].Amount.IsZero() {
		t.Errorf("zero line changed to %s", d.Items[0].Amount)
	}
	if !d.Total().Equal(dec("150.00")) {
		t.Errorf("total = %s, want 150.00", d.Total())
	}
}

func TestNoRoundingBelowOnePenny(t *testing.T) {
	o := newOrder(t, "100.004", item("Album", "100.00"))
	d := build(t, o, invoice.Options{})
	if !d.RoundingAdjustment.IsZero() || !d.Items[0].Amount.Equal(dec("100.00")) {
		t.Errorf("adjustment = %s amount = %s", d.RoundingAdjustment, d.Items[0].Amount)
	}
}

func TestNegativeItemsBecomeDiscount(t *testing.T) {
	o := newOrder(t, "85.00", item("Album", "100.00"), item("Voucher", "-10.00"), item("Loyalty", "-5.00"))
	d := build(t, o, invoice.Options{})

	if len(d.Items) != 1 {
		t.Fatalf("lines = %d, want 1", len(d.Items))
	}
	if !d.Discount.Equal(dec("15")) {
		t.Errorf("discount = %s, want 15", d.Discount)
	}
	if !d.RoundingAdjustment.IsZero() {
		t.Errorf("rounding applied alongside a discount: %s", d.RoundingAdjustment)
	}
	if !d.Total().Equal(dec("85")) {
		t.Errorf("total = %s", d.Total())
	}
}

func TestFinancialsOnlyDropsZeroItems(t *testing.T) {
	adj := item("Adjustment", "0")
	adj.Type = models.ItemTypeOrderAdjustment
	o := newOrder(t, "40.00", item("Session", "0"), item("Album", "40.00"), adj)

	all := build(t, o, invoice.Options{})
	if len(all.Items) != 3 {
		t.Errorf("lines = %d, want 3 without financials-only", len(all.Items))
	}
	fin := build(t, o, invoice.Options{FinancialsOnly: true})
	if len(fin.Items) != 2 || fin.Items[0].Name != "Album" || fin.Items[1].Name != "Adjustment" {
		t.Errorf("financials-only lines = %+v", fin.Items)
	}
}

func TestTaxBlock(t *testing.T) {
	taxed := item("Canvas", "60.00")
	taxed.Taxable, taxed.TaxRate, taxed.PriceIncludesTax, taxed.TaxLabel = true, dec("20"), true, "VAT (20%)"
	zeroRate := item("Book", "20.00")
	zeroRate.Taxable = true
	exclusive := item("Frame", "20.00")
	exclusive.Taxable, exclusive.TaxRate = true, dec("20")
	free := item("Digital", "0")
	free.Taxable, free.TaxRate = true, dec("20")

	o := newOrder(t, "100.00", taxed, zeroRate, exclusive, free)
	d := build(t, o, invoice.Options{})

	if tax := d.Items[0].Tax; tax == nil || tax.Calculation != models.TaxInclusive || tax.Name != "VAT (20%)" {
		t.Errorf("inclusive tax = %+v", tax)
	}
	if d.Items[1].Tax != nil {
		t.Errorf("zero-rate item got tax %+v", d.Items[1].Tax)
	}
	if tax := d.Items[2].Tax; tax == nil || tax.Calculation != models.TaxExclusive || tax.Name != "VAT" {
		t.Errorf("exclusive tax = %+v", tax)
	}
	if d.Items[3].Tax != nil {
		t.Errorf("zero-price item got tax %+v", d.Items[3].Tax)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		item models.OrderItem
		want string
	}{
		{"product first", models.OrderItem{ProductName: "Canvas", Description: "Wall", Template: "Gallery"}, "Canvas"},
		{"description and template", models.OrderItem{Description: "Collection 1", Template: "Gallery Block"}, "Collection 1 - Gallery Block"},
		{"same description and template", models.OrderItem{Description: "Block", Template: "Block"}, "Block"},
		{"template only", models.OrderItem{Template: "Gallery"}, "Gallery"},
		{"type only", models.OrderItem{Type: "Service"}, "Service"},
		{"nothing", models.OrderItem{}, "Item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := invoice.DisplayName(tt.item); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuantityKeepsExtendedPrice(t *testing.T) {
	it := item("Print", "30.00")
	it.Quantity = 3
	d := build(t, newOrder(t, "30.00", it), invoice.Options{})
	if d.Items[0].Name != "3 x Print" || d.Items[0].Quantity != 1 || !d.Items[0].Amount.Equal(dec("30")) {
		t.Errorf("line = %+v", d.Items[0])
	}
}

func TestNameAndDates(t *testing.T) {
	d := build(t, newOrder(t, "10", item("A", "10")), invoice.Options{})
	if d.Name != "Jane Doe - 5012" {
		t.Errorf("name = %q", d.Name)
	}
	if !d.IssueDate.Equal(issue) || !d.DueDate.Equal(today) {
		t.Errorf("issue = %v due = %v", d.IssueDate, d.DueDate)
	}

	future := issue.AddDate(0, 1, 0)
	if got := invoice.DueDate(future, today); !got.Equal(future) {
		t.Errorf("DueDate(future) = %v", got)
	}
}

func TestBuildErrors(t *testing.T) {
	o := newOrder(t, "0", item("Session", "0"))
	b := invoice.NewBuilder()

	if _, err := b.Build(o, models.Contact{ID: "abc"}, invoice.Options{}); !errors.Is(err, invoice.ErrMissingEmail) {
		t.Errorf("err = %v, want ErrMissingEmail", err)
	}
	if _, err := b.Build(o, models.Contact{Email: "a@b.c"}, invoice.Options{}); !errors.Is(err, invoice.ErrMissingContact) {
		t.Errorf("err = %v, want ErrMissingContact", err)
	}
	if _, err := b.Build(o, billTo, invoice.Options{FinancialsOnly: true}); !errors.Is(err, invoice.ErrNoItems) {
		t.Errorf("err = %v, want ErrNoItems", err)
	}
}
