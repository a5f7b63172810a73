package ledger

import (
	"strings"

	"github.com/shopspring/decimal"

	"psync/pkg/models"
)

// Wire shapes of the ledger API. Responses carry ids as either "_id" or "id"
// and sometimes wrap the record in an envelope.

type contactDTO struct {
	ID          string   `json:"id"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	ContactName string   `json:"contactName"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Address1    string   `json:"address1"`
	Address2    string   `json:"address2"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	PostalCode  string   `json:"postalCode"`
	Country     string   `json:"country"`
	Tags        []string `json:"tags"`
}

func (d contactDTO) model() models.Contact {
	name := d.ContactName
	if name == "" {
		name = strings.TrimSpace(d.FirstName + " " + d.LastName)
	}
	return models.Contact{
		ID:        models.RemotePartyID(d.ID),
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Name:      name,
		Email:     d.Email,
		Phone:     d.Phone,
		Address: models.Address{
			Street:     d.Address1,
			Street2:    d.Address2,
			City:       d.City,
			State:      d.State,
			PostalCode: d.PostalCode,
			Country:    d.Country,
		},
		Tags: d.Tags,
	}
}

type contactEnvelope struct {
	Contact contactDTO `json:"contact"`
}

type contactSearchRequest struct {
	LocationID string          `json:"locationId"`
	PageLimit  int             `json:"pageLimit"`
	Filters    []contactFilter `json:"filters"`
}

type contactFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

type contactSearchResponse struct {
	Contacts []contactDTO `json:"contacts"`
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

type contactFieldsRequest struct {
	CustomFields []models.CustomField `json:"customFields"`
}

type opportunityDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	ContactID string   `json:"contactId"`
	Tags      []string `json:"tags"`
}

func (d opportunityDTO) model() models.Opportunity {
	return models.Opportunity{
		ID:        d.ID,
		ContactID: models.RemotePartyID(d.ContactID),
		Name:      d.Name,
		Tags:      d.Tags,
	}
}

type opportunitySearchRequest struct {
	LocationID string `json:"location_id"`
	ContactID  string `json:"contact_id"`
	Limit      int    `json:"limit"`
}

type opportunitySearchResponse struct {
	Opportunities []opportunityDTO `json:"opportunities"`
}

type opportunityEnvelope struct {
	Opportunity opportunityDTO `json:"opportunity"`
}

type opportunityUpdateRequest struct {
	Tags []string `json:"tags"`
}

// Location scoping carried in every invoice write body.
type altScope struct {
	AltID   string `json:"altId"`
	AltType string `json:"altType"`
}

type addressDTO struct {
	AddressLine1 string `json:"addressLine1,omitempty"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	CountryCode  string `json:"countryCode,omitempty"`
}

func newAddressDTO(a models.Address) *addressDTO {
	if a.IsZero() {
		return nil
	}
	return &addressDTO{
		AddressLine1: a.Street,
		AddressLine2: a.Street2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		CountryCode:  a.Country,
	}
}

type contactDetailsDTO struct {
	ID      string      `json:"id"`
	Name    string      `json:"name,omitempty"`
	Email   string      `json:"email,omitempty"`
	PhoneNo string      `json:"phoneNo,omitempty"`
	Address *addressDTO `json:"address,omitempty"`
}

func newContactDetails(c models.Contact) contactDetailsDTO {
	name := c.Name
	if name == "" {
		name = strings.TrimSpace(c.FirstName + " " + c.LastName)
	}
	return contactDetailsDTO{
		ID:      string(c.ID),
		Name:    name,
		Email:   c.Email,
		PhoneNo: c.Phone,
		Address: newAddressDTO(c.Address),
	}
}

type taxDTO struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Rate        float64 `json:"rate"`
	Calculation string  `json:"calculation"`
}

type itemDTO struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	AmountValue float64  `json:"amount"`
	Qty         int      `json:"qty"`
	Currency    string   `json:"currency"`
	Taxes       []taxDTO `json:"taxes,omitempty"`
}

func newItemDTO(it models.LineItem, currency string) itemDTO {
	dto := itemDTO{
		Name:        it.Name,
		Description: it.Description,
		AmountValue: it.Amount.InexactFloat64(),
		Qty:         it.Quantity,
		Currency:    currency,
	}
	if it.Tax != nil {
		dto.Taxes = []taxDTO{{
			ID:          "default",
			Name:        it.Tax.Name,
			Rate:        it.Tax.Rate.InexactFloat64(),
			Calculation: string(it.Tax.Calculation),
		}}
	}
	return dto
}

type discountDTO struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type createInvoiceRequest struct {
	altScope
	Name           string            `json:"name"`
	Currency       string            `json:"currency"`
	Items          []itemDTO         `json:"items"`
	IssueDate      string            `json:"issueDate"`
	DueDate        string            `json:"dueDate"`
	ContactDetails contactDetailsDTO `json:"contactDetails"`
	Discount       *discountDTO      `json:"discount,omitempty"`
}

type sendInvoiceRequest struct {
	altScope
	LiveMode bool `json:"liveMode"`
}

type statusRequest struct {
	altScope
	Status string `json:"status"`
}

type recordPaymentRequest struct {
	altScope
	Amount float64 `json:"amount"`
	Mode   string  `json:"mode"`
	Notes  string  `json:"notes"`
}

type responseItemDTO struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Qty         int             `json:"qty"`
}

type paymentRecordDTO struct {
	UID    string          `json:"_id"`
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Mode   string          `json:"mode"`
}

type transactionDTO struct {
	UID             string          `json:"_id"`
	ID              string          `json:"id"`
	PaymentProvider string          `json:"paymentProvider"`
	Provider        string          `json:"provider"`
	Source          string          `json:"source"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	CreatedAt       string          `json:"createdAt"`
	Date            string          `json:"date"`
}

type invoiceDTO struct {
	UID            string             `json:"_id"`
	ID             string             `json:"id"`
	InvoiceNumber  string             `json:"invoiceNumber"`
	Number         string             `json:"number"`
	Name           string             `json:"name"`
	Status         string             `json:"status"`
	ContactDetails contactDetailsDTO  `json:"contactDetails"`
	IssueDate      string             `json:"issueDate"`
	DueDate        string             `json:"dueDate"`
	Total          decimal.Decimal    `json:"total"`
	AmountPaid     decimal.Decimal    `json:"amountPaid"`
	Discount       *struct {
		Value decimal.Decimal `json:"value"`
	} `json:"discount"`
	Items         []responseItemDTO  `json:"invoiceItems"`
	RecordPayment []paymentRecordDTO `json:"recordPayment"`
	Payments      []paymentRecordDTO `json:"payments"`
	Transactions  []transactionDTO   `json:"transactions"`
}

type invoiceEnvelope struct {
	invoiceDTO
	Invoice *invoiceDTO `json:"invoice"`
}

// unwrap returns the nested invoice when the response has one, keeping
// top-level transactions if the nested record carries none.
func (e invoiceEnvelope) unwrap() invoiceDTO {
	if e.Invoice == nil {
		return e.invoiceDTO
	}
	inner := *e.Invoice
	if len(inner.Transactions) == 0 {
		inner.Transactions = e.invoiceDTO.Transactions
	}
	return inner
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (d invoiceDTO) model() models.LedgerInvoice {
	inv := models.LedgerInvoice{
		ID:         firstNonEmpty(d.UID, d.ID),
		Number:     firstNonEmpty(d.InvoiceNumber, d.Number),
		Name:       d.Name,
		ContactID:  models.RemotePartyID(d.ContactDetails.ID),
		Status:     models.InvoiceStatus(strings.ToLower(d.Status)),
		IssueDate:  d.IssueDate,
		DueDate:    d.DueDate,
		Total:      d.Total,
		AmountPaid: d.AmountPaid,
	}
	if d.Discount != nil {
		inv.Discount = d.Discount.Value
	}
	for _, it := range d.Items {
		inv.Items = append(inv.Items, models.LineItem{
			Name:        it.Name,
			Description: it.Description,
			Amount:      it.Amount,
			Quantity:    it.Qty,
		})
	}
	records := d.RecordPayment
	if len(records) == 0 {
		records = d.Payments
	}
	for _, p := range records {
		inv.Payments = append(inv.Payments, models.PaymentRecord{
			ID:     firstNonEmpty(p.UID, p.ID),
			Amount: p.Amount,
			Mode:   p.Mode,
		})
	}
	for _, t := range d.Transactions {
		inv.Transactions = append(inv.Transactions, models.Transaction{
			ID:       firstNonEmpty(t.UID, t.ID),
			Provider: firstNonEmpty(t.PaymentProvider, t.Provider),
			Source:   t.Source,
			Status:   t.Status,
			Amount:   t.Amount,
			Date:     firstNonEmpty(t.CreatedAt, t.Date),
		})
	}
	return inv
}

type invoiceListResponse struct {
	Invoices []invoiceDTO `json:"invoices"`
	Data     []invoiceDTO `json:"data"`
}

func (r invoiceListResponse) list() []invoiceDTO {
	if len(r.Invoices) > 0 {
		return r.Invoices
	}
	return r.Data
}

type rruleDTO struct {
	IntervalType string `json:"intervalType"`
	Interval     int    `json:"interval"`
	StartDate    string `json:"startDate"`
	DayOfMonth   int    `json:"dayOfMonth"`
	Count        int    `json:"count"`
}

type instalmentDTO struct {
	ChargeDate string  `json:"chargeDate"`
	Amount     float64 `json:"amount"`
}

type scheduleSpecDTO struct {
	RRule       rruleDTO        `json:"rrule"`
	Instalments []instalmentDTO `json:"instalments,omitempty"`
}

type createScheduleRequest struct {
	altScope
	Name           string            `json:"name"`
	LiveMode       bool              `json:"liveMode"`
	ContactDetails contactDetailsDTO `json:"contactDetails"`
	Currency       string            `json:"currency"`
	Items          []itemDTO         `json:"items"`
	Discount       discountDTO       `json:"discount"`
	Schedule       scheduleSpecDTO   `json:"schedule"`
}

type scheduleDTO struct {
	UID            string            `json:"_id"`
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Status         string            `json:"status"`
	LiveMode       bool              `json:"liveMode"`
	ContactDetails contactDetailsDTO `json:"contactDetails"`
	Schedule       struct {
		Instalments []struct {
			ChargeDate string          `json:"chargeDate"`
			Amount     decimal.Decimal `json:"amount"`
		} `json:"instalments"`
	} `json:"schedule"`
}

func (d scheduleDTO) model() models.InstalmentSchedule {
	s := models.InstalmentSchedule{
		ID:       firstNonEmpty(d.UID, d.ID),
		Name:     d.Name,
		PartyID:  models.RemotePartyID(d.ContactDetails.ID),
		LiveMode: d.LiveMode,
		Status:   d.Status,
	}
	for _, in := range d.Schedule.Instalments {
		date, _ := parseDate(in.ChargeDate)
		s.Instalments = append(s.Instalments, models.Instalment{
			ChargeDate: date,
			Amount:     in.Amount.Shift(2).Round(0).IntPart(),
		})
	}
	return s
}

type scheduleEnvelope struct {
	scheduleDTO
	Wrapped *scheduleDTO `json:"invoiceSchedule"`
}

func (e scheduleEnvelope) unwrap() scheduleDTO {
	if e.Wrapped != nil {
		return *e.Wrapped
	}
	return e.scheduleDTO
}

type scheduleListResponse struct {
	Schedules []scheduleDTO `json:"schedules"`
	Data      []scheduleDTO `json:"data"`
}

func (r scheduleListResponse) list() []scheduleDTO {
	if len(r.Schedules) > 0 {
		return r.Schedules
	}
	return r.Data
}

type liveModeRequest struct {
	altScope
	LiveMode bool `json:"liveMode"`
}
