package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"psync/pkg/models"
)

func payment(date, amount string) models.PaymentEntry {
	d, _ := time.Parse(models.DateLayout, date)
	return models.PaymentEntry{Date: d, Amount: decimal.RequireFromString(amount)}
}

func TestSummarizePayments(t *testing.T) {
	orderDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	total := decimal.NewFromInt(100)

	tests := []struct {
		name     string
		payments []models.PaymentEntry
		status   models.SessionStatus
		deposit  string
		delivery string
	}{
		{"no payment lines", nil, models.SessionPaidInFull, "0", "2025-03-01"},
		{"lines short of total", []models.PaymentEntry{payment("2025-04-15", "30"), payment("2025-05-15", "30")},
			models.SessionDepositPlanActive, "40", "2025-05-15"},
		{"lines cover total", []models.PaymentEntry{payment("2025-03-01", "40"), payment("2025-04-15", "60")},
			models.SessionPaymentPlanActive, "0", "2025-04-15"},
		{"lines exceed total", []models.PaymentEntry{payment("2025-04-15", "120")},
			models.SessionPaymentPlanActive, "0", "2025-04-15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.SummarizePayments(total, tt.payments, orderDate)
			if got.Status != tt.status {
				t.Errorf("Status = %q, want %q", got.Status, tt.status)
			}
			if !got.Deposit.Equal(decimal.RequireFromString(tt.deposit)) {
				t.Errorf("Deposit = %s, want %s", got.Deposit, tt.deposit)
			}
			if d := got.DeliveryDate.Format(models.DateLayout); d != tt.delivery {
				t.Errorf("DeliveryDate = %s, want %s", d, tt.delivery)
			}
			if got.Count != len(tt.payments) {
				t.Errorf("Count = %d", got.Count)
			}
		})
	}
}
