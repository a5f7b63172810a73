// Package payment posts past order payments to the ledger one at a time.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"psync/internal/ledger"
	"psync/internal/logger"
	"psync/internal/retry"
	"psync/pkg/models"
)

const (
	DefaultDelay       = 3 * time.Second
	DefaultMaxAttempts = 5
	DefaultBackoffStep = time.Second
)

// Poster records a payment against an invoice.
type Poster interface {
	RecordPayment(ctx context.Context, invoiceID string, req models.PaymentRecordRequest) error
}

// Config holds recorder settings. Zero values take the defaults above.
type Config struct {
	// Delay is the pause between consecutive posts.
	Delay       time.Duration
	MaxAttempts int
	BackoffStep time.Duration
}

// Recorder posts payments sequentially. Only write conflicts are retried.
type Recorder struct {
	poster Poster
	policy retry.Policy
	delay  time.Duration
	clock  retry.Clock
	log    zerolog.Logger
}

// NewRecorder returns a Recorder using clock for both the inter-post delay and backoff.
func NewRecorder(poster Poster, clock retry.Clock, cfg Config) *Recorder {
	if clock == nil {
		clock = retry.SystemClock{}
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffStep <= 0 {
		cfg.BackoffStep = DefaultBackoffStep
	}
	return &Recorder{
		poster: poster,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     retry.Linear(cfg.BackoffStep),
			Retryable:   IsConflict,
			Clock:       clock,
		},
		delay: cfg.Delay,
		clock: clock,
		log:   logger.WithComponent("payment-recorder"),
	}
}

// IsConflict reports whether err is a ledger write conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ledger.ErrWriteConflict)
}

// Outcome is the result of posting one payment.
type Outcome struct {
	Payment  models.PaymentEntry
	Recorded bool
	Attempts int
	// Slow is set when the post needed more than one attempt.
	Slow bool
	Err  error
}

// Report summarizes a batch.
type Report struct {
	Outcomes []Outcome
}

// Recorded counts successful posts.
func (r Report) Recorded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Recorded {
			n++
		}
	}
	return n
}

// Failed counts payments that could not be posted.
func (r Report) Failed() int {
	return len(r.Outcomes) - r.Recorded()
}

// Slow counts successful posts that needed a retry.
func (r Report) Slow() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Recorded && o.Slow {
			n++
		}
	}
	return n
}

// RecordedAmount sums the amounts that were posted.
func (r Report) RecordedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, o := range r.Outcomes {
		if o.Recorded {
			total = total.Add(o.Payment.Amount)
		}
	}
	return total
}

// Errors returns the failures, in batch order.
func (r Report) Errors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// ProgressFunc is told before each post which payment (1-based) of how many is next.
type ProgressFunc func(current, total int)

// Record posts every payment in order. A failed payment does not stop the
// batch; only context cancellation does.
func (r *Recorder) Record(ctx context.Context, invoiceID string, payments []models.PaymentEntry, progress ProgressFunc) (Report, error) {
	report := Report{Outcomes: make([]Outcome, 0, len(payments))}

	for i, p := range payments {
		if i > 0 && r.delay > 0 {
			if err := r.clock.Sleep(ctx, r.delay); err != nil {
				return report, err
			}
		}
		if progress != nil {
			progress(i+1, len(payments))
		}

		req := models.PaymentRecordRequest{
			Amount: p.Amount,
			Mode:   MethodMode(p.MethodCode, p.MethodName),
			Notes:  Notes(p),
		}

		attempts, err := r.policy.Do(ctx, func(ctx context.Context) error {
			return r.poster.RecordPayment(ctx, invoiceID, req)
		})
		if cerr := ctx.Err(); cerr != nil {
			return report, cerr
		}

		out := Outcome{Payment: p, Recorded: err == nil, Attempts: attempts, Slow: attempts > 1, Err: err}
		if err != nil {
			out.Err = fmt.Errorf("payment %d (%s, %s): %w", i+1, p.Date.Format(models.DateLayout), p.Amount.StringFixed(2), err)
		}
		report.Outcomes = append(report.Outcomes, out)

		ev := r.log.Info()
		if err != nil {
			ev = r.log.Warn().Err(err)
		}
		ev.Str("invoice_id", invoiceID).
			Int("payment", i+1).
			Int("of", len(payments)).
			Str("amount", p.Amount.StringFixed(2)).
			Str("mode", req.Mode).
			Int("attempts", attempts).
			Bool("recorded", out.Recorded).
			Msg("Payment posted")
	}

	return report, nil
}

// Notes is the payment memo, "<method name> - <date>".
func Notes(p models.PaymentEntry) string {
	name := p.MethodName
	if name == "" {
		name = "Payment"
	}
	return name + " - " + p.Date.Format(models.DateLayout)
}

var modes = map[string]string{
	"bt":            "bank_transfer",
	"dd":            "bank_transfer",
	"bank transfer": "bank_transfer",
	"direct debit":  "bank_transfer",
	"cc":            "credit_card",
	"credit card":   "credit_card",
	"dc":            "debit_card",
	"debit card":    "debit_card",
	"cash":          "cash",
	"cheque":        "cheque",
	"check":         "cheque",
}

// MethodMode maps an export payment method to a ledger payment mode. The code
// wins over the display name; with neither the payment is a bank transfer.
func MethodMode(code, name string) string {
	key := strings.ToLower(strings.TrimSpace(code))
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(name))
	}
	if key == "" {
		return "bank_transfer"
	}
	if mode, ok := modes[key]; ok {
		return mode
	}
	return "other"
}
