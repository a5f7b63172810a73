package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"psync/internal/ledger"
	"psync/internal/payment"
	"psync/internal/retry"
	"psync/pkg/models"
)

type scriptedPoster struct {
	// errs are returned in order per call; once exhausted calls succeed.
	errs  []error
	calls []models.PaymentRecordRequest
}

func (p *scriptedPoster) RecordPayment(_ context.Context, _ string, req models.PaymentRecordRequest) error {
	p.calls = append(p.calls, req)
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

func entry(date, amount, code, name string) models.PaymentEntry {
	d, _ := time.Parse(models.DateLayout, date)
	return models.PaymentEntry{Date: d, Amount: decimal.RequireFromString(amount), MethodCode: code, MethodName: name}
}

func conflict() error {
	return &ledger.APIError{Op: "RecordPayment", StatusCode: 409, Err: ledger.ErrWriteConflict}
}

func TestRecordRetriesConflictsAndFlagsSlow(t *testing.T) {
	poster := &scriptedPoster{errs: []error{conflict(), conflict()}}
	clock := retry.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	rec := payment.NewRecorder(poster, clock, payment.Config{})

	report, err := rec.Record(context.Background(), "inv_1", []models.PaymentEntry{entry("2025-02-01", "100", "CC", "Card")}, nil)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(report.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1", len(report.Outcomes))
	}
	out := report.Outcomes[0]
	if !out.Recorded || !out.Slow || out.Attempts != 3 {
		t.Errorf("outcome = %+v, want recorded, slow, 3 attempts", out)
	}
	if report.Recorded() != 1 || report.Slow() != 1 || report.Failed() != 0 {
		t.Errorf("counts recorded=%d slow=%d failed=%d", report.Recorded(), report.Slow(), report.Failed())
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	got := clock.Sleeps()
	if len(got) != len(want) {
		t.Fatalf("sleeps = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRecordExhaustionFailsOnlyThatPayment(t *testing.T) {
	errs := make([]error, payment.DefaultMaxAttempts)
	for i := range errs {
		errs[i] = conflict()
	}
	poster := &scriptedPoster{errs: errs}
	clock := retry.NewFakeClock(time.Now())
	rec := payment.NewRecorder(poster, clock, payment.Config{Delay: 3 * time.Second})

	payments := []models.PaymentEntry{
		entry("2025-01-10", "50", "BT", "Bank Transfer"),
		entry("2025-02-10", "25.50", "Cash", "Cash"),
	}
	report, err := rec.Record(context.Background(), "inv_1", payments, nil)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if report.Recorded() != 1 || report.Failed() != 1 {
		t.Fatalf("recorded=%d failed=%d, want 1/1", report.Recorded(), report.Failed())
	}
	first := report.Outcomes[0]
	if first.Attempts != payment.DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", first.Attempts, payment.DefaultMaxAttempts)
	}
	if !errors.Is(first.Err, retry.ErrExhausted) || !errors.Is(first.Err, ledger.ErrWriteConflict) {
		t.Errorf("error = %v, want exhausted write conflict", first.Err)
	}
	if !report.RecordedAmount().Equal(decimal.RequireFromString("25.50")) {
		t.Errorf("recorded amount = %s", report.RecordedAmount())
	}
	if len(report.Errors()) != 1 {
		t.Errorf("errors = %v", report.Errors())
	}

	// 1+2+3+4 s of backoff, then the 3 s gap before the second payment.
	var total time.Duration
	for _, d := range clock.Sleeps() {
		total += d
	}
	if total != 13*time.Second {
		t.Errorf("total sleep = %v, want 13s", total)
	}
}

func TestRecordDoesNotRetryOtherErrors(t *testing.T) {
	poster := &scriptedPoster{errs: []error{&ledger.APIError{Op: "RecordPayment", StatusCode: 403, Err: ledger.ErrPermission}}}
	rec := payment.NewRecorder(poster, retry.NewFakeClock(time.Now()), payment.Config{})

	report, err := rec.Record(context.Background(), "inv_1", []models.PaymentEntry{entry("2025-01-10", "10", "", "")}, nil)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if len(poster.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(poster.calls))
	}
	if !errors.Is(report.Outcomes[0].Err, ledger.ErrPermission) {
		t.Errorf("error = %v, want permission", report.Outcomes[0].Err)
	}
}

func TestRecordDelaysBetweenPostsAndReportsProgress(t *testing.T) {
	poster := &scriptedPoster{}
	clock := retry.NewFakeClock(time.Now())
	rec := payment.NewRecorder(poster, clock, payment.Config{Delay: 3 * time.Second})

	var seen [][2]int
	payments := []models.PaymentEntry{
		entry("2025-01-10", "10", "BT", "Bank Transfer"),
		entry("2025-01-11", "20", "DC", "Debit Card"),
		entry("2025-01-12", "30", "Cheque", "Cheque"),
	}
	if _, err := rec.Record(context.Background(), "inv_1", payments, func(cur, total int) {
		seen = append(seen, [2]int{cur, total})
	}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 3*time.Second || sleeps[1] != 3*time.Second {
		t.Errorf("sleeps = %v, want two 3s gaps", sleeps)
	}
	if len(seen) != 3 || seen[2] != [2]int{3, 3} {
		t.Errorf("progress = %v", seen)
	}
	if poster.calls[1].Mode != "debit_card" || poster.calls[1].Notes != "Debit Card - 2025-01-11" {
		t.Errorf("second request = %+v", poster.calls[1])
	}
}

func TestRecordStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := payment.NewRecorder(&scriptedPoster{}, retry.NewFakeClock(time.Now()), payment.Config{})

	_, err := rec.Record(ctx, "inv_1", []models.PaymentEntry{entry("2025-01-10", "10", "BT", "")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestMethodMode(t *testing.T) {
	tests := []struct {
		code, name, want string
	}{
		{"BT", "", "bank_transfer"},
		{"DD", "", "bank_transfer"},
		{"CC", "", "credit_card"},
		{"dc", "", "debit_card"},
		{"Cash", "", "cash"},
		{"Cheque", "", "cheque"},
		{"", "Cash", "cash"},
		{"", "", "bank_transfer"},
		{"PP", "PayPal", "other"},
	}
	for _, tt := range tests {
		if got := payment.MethodMode(tt.code, tt.name); got != tt.want {
			t.Errorf("MethodMode(%q, %q) = %q, want %q", tt.code, tt.name, got, tt.want)
		}
	}
}

func TestNotes(t *testing.T) {
	if got := payment.Notes(entry("2025-04-01", "1", "BT", "")); got != "Payment - 2025-04-01" {
		t.Errorf("Notes() = %q", got)
	}
}
