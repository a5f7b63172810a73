package ledger

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"psync/pkg/models"
)

const listLimit = 100

func (c *Client) scope() altScope {
	return altScope{AltID: c.locationID, AltType: "location"}
}

func invoicePath(id string, rest ...string) string {
	p := "/invoices/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// CreateInvoice creates a draft invoice from a built draft.
func (c *Client) CreateInvoice(ctx context.Context, draft *models.InvoiceDraft) (*models.LedgerInvoice, error) {
	const op = "CreateInvoice"

	req := createInvoiceRequest{
		altScope:       c.scope(),
		Name:           draft.Name,
		Currency:       draft.Currency,
		IssueDate:      draft.IssueDate.Format(models.DateLayout),
		DueDate:        draft.DueDate.Format(models.DateLayout),
		ContactDetails: newContactDetails(draft.Contact),
	}
	for _, it := range draft.Items {
		req.Items = append(req.Items, newItemDTO(it, draft.Currency))
	}
	if draft.Discount.IsPositive() {
		req.Discount = &discountDTO{Type: "fixed", Value: draft.Discount.InexactFloat64()}
	}

	var env invoiceEnvelope
	if err := c.do(ctx, call{op: op, method: http.MethodPost, path: "/invoices/", body: req, out: &env, slow: true}); err != nil {
		return nil, err
	}
	inv := env.unwrap().model()
	if inv.Total.IsZero() {
		inv.Total = draft.Total()
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceStatusDraft
	}
	return &inv, nil
}

// SendInvoice publishes a draft so it becomes visible and payable.
func (c *Client) SendInvoice(ctx context.Context, invoiceID string) error {
	const op = "SendInvoice"
	return c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   invoicePath(invoiceID, "send"),
		body:   sendInvoiceRequest{altScope: c.scope(), LiveMode: true},
	})
}

// GetInvoice fetches an invoice with its payment records and transactions.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*models.LedgerInvoice, error) {
	const op = "GetInvoice"

	var env invoiceEnvelope
	err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   invoicePath(invoiceID),
		query:  c.locationQuery(),
		out:    &env,
	})
	if err != nil {
		return nil, err
	}
	inv := env.unwrap().model()
	if inv.ID == "" {
		inv.ID = invoiceID
	}
	return &inv, nil
}

// ListInvoices returns the invoices of a contact.
func (c *Client) ListInvoices(ctx context.Context, contactID models.RemotePartyID) ([]models.LedgerInvoice, error) {
	q := c.locationQuery()
	q.Set("contactId", string(contactID))
	return c.listInvoices(ctx, "ListInvoices", q)
}

// SearchInvoices runs a free-text invoice search, typically by contact name.
func (c *Client) SearchInvoices(ctx context.Context, query string) ([]models.LedgerInvoice, error) {
	q := c.locationQuery()
	q.Set("search", query)
	return c.listInvoices(ctx, "SearchInvoices", q)
}

func (c *Client) listInvoices(ctx context.Context, op string, q url.Values) ([]models.LedgerInvoice, error) {
	q.Set("limit", strconv.Itoa(listLimit))
	q.Set("offset", "0")

	var resp invoiceListResponse
	if err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/invoices/", query: q, out: &resp, slow: true}); err != nil {
		return nil, err
	}
	list := resp.list()
	out := make([]models.LedgerInvoice, 0, len(list))
	for _, d := range list {
		out = append(out, d.model())
	}
	return out, nil
}

// UpdateInvoiceStatus moves an invoice to status, e.g. back to draft before voiding.
func (c *Client) UpdateInvoiceStatus(ctx context.Context, invoiceID string, status models.InvoiceStatus) error {
	const op = "UpdateInvoiceStatus"
	return c.do(ctx, call{
		op:     op,
		method: http.MethodPut,
		path:   invoicePath(invoiceID),
		body:   statusRequest{altScope: c.scope(), Status: string(status)},
	})
}

// VoidInvoice marks an invoice void while keeping its history.
func (c *Client) VoidInvoice(ctx context.Context, invoiceID string) error {
	const op = "VoidInvoice"
	return c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   invoicePath(invoiceID, "void"),
		body:   c.scope(),
	})
}

// DeleteInvoice removes an invoice permanently.
func (c *Client) DeleteInvoice(ctx context.Context, invoiceID string) error {
	const op = "DeleteInvoice"
	return c.do(ctx, call{
		op:     op,
		method: http.MethodDelete,
		path:   invoicePath(invoiceID),
		query:  c.locationQuery(),
	})
}

// RecordPayment posts a payment against an invoice. Negative amounts record refunds.
func (c *Client) RecordPayment(ctx context.Context, invoiceID string, req models.PaymentRecordRequest) error {
	const op = "RecordPayment"
	return c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   invoicePath(invoiceID, "record-payment"),
		body: recordPaymentRequest{
			altScope: c.scope(),
			Amount:   req.Amount.InexactFloat64(),
			Mode:     req.Mode,
			Notes:    req.Notes,
		},
		slow: true,
	})
}

// DeletePaymentRecord removes one recorded payment from an invoice.
func (c *Client) DeletePaymentRecord(ctx context.Context, invoiceID, paymentID string) error {
	const op = "DeletePaymentRecord"
	return c.do(ctx, call{
		op:     op,
		method: http.MethodDelete,
		path:   invoicePath(invoiceID, "record-payment", url.PathEscape(paymentID)),
		query:  c.locationQuery(),
	})
}

func parseDate(s string) (time.Time, error) {
	if len(s) >= len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	return time.Parse(models.DateLayout, s)
}
