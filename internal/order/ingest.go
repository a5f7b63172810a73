package order

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"

	"psync/internal/logger"
	"psync/pkg/models"
)

const (
	// minDirectIDLength is the shortest Client_ID or album segment accepted as a contact id.
	minDirectIDLength = 15
	defaultRegion     = "GB"
	legacyDateLayout  = "01/02/2006"
)

// embeddedID finds long alphanumeric runs inside an album name.
var embeddedID = regexp.MustCompile(`[A-Za-z0-9]{20,}`)

// Ingester normalizes exports into Orders.
type Ingester struct {
	region string
	now    func() time.Time
	log    zerolog.Logger
}

// NewIngester returns an Ingester that parses phone numbers for region
// (ISO 3166 alpha-2) and stamps orders with now().
func NewIngester(region string, now func() time.Time) *Ingester {
	if region == "" {
		region = defaultRegion
	}
	if now == nil {
		now = time.Now
	}
	return &Ingester{
		region: strings.ToUpper(region),
		now:    now,
		log:    logger.WithComponent("order-ingest"),
	}
}

// Load reads and ingests the export at path.
func (in *Ingester) Load(path string) (*Order, error) {
	exp, err := ReadExport(path)
	if err != nil {
		return nil, err
	}
	return in.Ingest(exp)
}

// Ingest normalizes a parsed export.
func (in *Ingester) Ingest(exp *Export) (*Order, error) {
	if exp.Order == nil {
		return nil, fieldError("Order", "element missing", nil)
	}
	now := in.now()

	total, err := parseAmount(exp.Order.TotalAmount)
	if err != nil {
		return nil, fieldError("Total_Amount", "not a number", err)
	}

	issueDate := now
	if strings.TrimSpace(exp.Order.DateSQL) != "" {
		issueDate, err = ParseDate(exp.Order.DateSQL)
		if err != nil {
			return nil, fieldError("Order.DateSQL", "not a date", err)
		}
	}

	exportItems := exp.Order.AllItems()
	items := make([]models.OrderItem, 0, len(exportItems))
	for i, it := range exportItems {
		item, err := convertItem(it)
		if err != nil {
			err.Field = "Ordered_Item[" + strconv.Itoa(i) + "]." + err.Field
			return nil, err
		}
		items = append(items, item)
	}

	exportPayments := exp.Order.AllPayments()
	payments := make([]models.PaymentEntry, 0, len(exportPayments))
	for i, p := range exportPayments {
		pay, err := convertPayment(p)
		if err != nil {
			err.Field = "Payment[" + strconv.Itoa(i) + "]." + err.Field
			return nil, err
		}
		payments = append(payments, pay)
	}

	email := strings.TrimSpace(exp.Email)
	if email != "" && validate.Var(email, "email") != nil {
		in.log.Warn().Str("email", email).Msg("Dropping malformed e-mail address")
		email = ""
	}

	o, err := New(Data{
		ClientIdentityCandidates: IdentityCandidates(exp.ClientID, exp.AlbumName),
		Email:                    email,
		FirstName:                exp.FirstName,
		LastName:                 exp.LastName,
		Phone:                    in.normalizePhone(exp.CellPhone, exp.HomePhone, exp.WorkPhone),
		Address: models.Address{
			Street:     strings.TrimSpace(exp.Street),
			Street2:    strings.TrimSpace(exp.Street2),
			City:       strings.TrimSpace(exp.City),
			State:      strings.TrimSpace(exp.State),
			PostalCode: strings.TrimSpace(exp.ZipCode),
			Country:    strings.TrimSpace(exp.Country),
		},
		AlbumName:   strings.TrimSpace(exp.AlbumName),
		AlbumID:     strings.TrimSpace(exp.Order.AlbumID),
		IssueDate:   issueDate,
		TotalAmount: total,
		Items:       items,
		Payments:    payments,
		IngestedAt:  now,
	})
	if err != nil {
		return nil, err
	}

	in.log.Info().
		Str("album", o.AlbumName()).
		Strs("identity_candidates", o.ClientIdentityCandidates()).
		Str("total", o.TotalAmount().StringFixed(2)).
		Str("total_vat", o.TotalVAT().StringFixed(2)).
		Int("items", len(items)).
		Int("payments", len(payments)).
		Msg("Order ingested")

	return o, nil
}

// IdentityCandidates lists contact ids embedded in the export, most reliable first:
// a direct Client_ID, then an album-name segment, then a long run inside the album name.
func IdentityCandidates(clientID, albumName string) []string {
	var out []string

	clientID = strings.TrimSpace(clientID)
	if len(clientID) >= minDirectIDLength && isAlnum(clientID) {
		out = append(out, clientID)
	}

	albumName = strings.TrimSpace(albumName)
	if albumName == "" {
		return out
	}

	if strings.Contains(albumName, "_") {
		parts := strings.Split(albumName, "_")
		for i := len(parts) - 1; i >= 0; i-- {
			part := strings.TrimSpace(parts[i])
			if len(part) >= minDirectIDLength && isAlnum(part) {
				return append(out, part)
			}
		}
	}

	if matches := embeddedID.FindAllString(albumName, -1); len(matches) > 0 {
		out = append(out, matches[len(matches)-1])
	}
	return out
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return s != ""
}

// normalizePhone returns the first parsable number in E.164 form, or "".
func (in *Ingester) normalizePhone(candidates ...string) string {
	for _, raw := range candidates {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		num, err := libphonenumber.Parse(raw, in.region)
		if err != nil || !libphonenumber.IsValidNumber(num) {
			in.log.Debug().Str("phone", raw).Msg("Dropping unparsable phone number")
			continue
		}
		return libphonenumber.Format(num, libphonenumber.E164)
	}
	return ""
}

// ParseDate accepts YYYY-MM-DD (optionally followed by a time) or MM/DD/YYYY.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return time.Parse(legacyDateLayout, s)
	}
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	return time.Parse(models.DateLayout, s)
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

func convertItem(it ExportItem) (models.OrderItem, *IngestionError) {
	price, err := parseAmount(it.ExtendedPrice)
	if err != nil {
		return models.OrderItem{}, fieldError("Extended_Price", "not a number", err)
	}

	qty := 1
	if q := strings.TrimSpace(it.Quantity); q != "" {
		qty, err = strconv.Atoi(q)
		if err != nil {
			return models.OrderItem{}, fieldError("Quantity", "not an integer", err)
		}
		if qty < 1 {
			qty = 1
		}
	}

	item := models.OrderItem{
		Type:           strings.TrimSpace(it.ItemType),
		Description:    strings.TrimSpace(it.Description),
		ProductName:    strings.TrimSpace(it.ProductName),
		Template:       strings.TrimSpace(it.TemplateName),
		SKU:            strings.TrimSpace(it.ProductCode),
		Quantity:       qty,
		UnitPriceTotal: price,
		TaxRate:        decimal.Zero,
		VATAmount:      decimal.Zero,
	}

	if it.Tax != nil {
		item.Taxable = parseBool(it.Tax.Taxable)
		vat, err := parseAmount(it.Tax.Amount)
		if err != nil {
			return models.OrderItem{}, fieldError("Tax", "not a number", err)
		}
		item.VATAmount = vat
	}
	if it.Tax1 != nil {
		rate, err := parseAmount(it.Tax1.Rate)
		if err != nil {
			return models.OrderItem{}, fieldError("Tax1.rate", "not a number", err)
		}
		item.TaxRate = rate
		item.TaxLabel = strings.TrimSpace(it.Tax1.Label)
		item.PriceIncludesTax = parseBool(it.Tax1.PriceIncludesTax)
	}
	return item, nil
}

func convertPayment(p ExportPayment) (models.PaymentEntry, *IngestionError) {
	if strings.TrimSpace(p.DateSQL) == "" {
		return models.PaymentEntry{}, fieldError("DateSQL", "missing", nil)
	}
	date, err := ParseDate(p.DateSQL)
	if err != nil {
		return models.PaymentEntry{}, fieldError("DateSQL", "not a date", err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return models.PaymentEntry{}, fieldError("Amount", "not a number", err)
	}
	return models.PaymentEntry{
		ID:         strings.TrimSpace(p.ID),
		Date:       date,
		Amount:     amount,
		MethodCode: strings.TrimSpace(p.Method),
		MethodName: strings.TrimSpace(p.MethodName),
		Type:       strings.TrimSpace(p.Type),
	}, nil
}
