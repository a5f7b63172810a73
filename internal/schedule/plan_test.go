package schedule_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"psync/internal/retry"
	"psync/internal/schedule"
	"psync/pkg/models"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		total int64
		count int
		want  []int64
	}{
		{1000, 3, []int64{334, 333, 333}},
		{10000, 2, []int64{5000, 5000}},
		{1, 3, []int64{1, 0, 0}},
		{999, 1, []int64{999}},
		{0, 2, []int64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.count), func(t *testing.T) {
			got, err := schedule.Split(tt.total, tt.count)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split() = %v, want %v", got, tt.want)
			}
			var sum int64
			for _, v := range got {
				sum += v
			}
			if sum != tt.total {
				t.Errorf("sum = %d, want %d", sum, tt.total)
			}
		})
	}
}

func TestSplitRejectsBadInput(t *testing.T) {
	if _, err := schedule.Split(100, 0); !errors.Is(err, schedule.ErrInvalidSplit) {
		t.Errorf("count 0: err = %v", err)
	}
	if _, err := schedule.Split(-1, 2); !errors.Is(err, schedule.ErrInvalidSplit) {
		t.Errorf("negative total: err = %v", err)
	}
}

func dates(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format("2006-01-02")
	}
	return out
}

func TestChargeDates(t *testing.T) {
	from := time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)

	got := dates(schedule.ChargeDates(from, 3, 31))
	want := []string{"2025-02-28", "2025-03-31", "2025-04-30"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("day 31 = %v, want %v", got, want)
	}

	got = dates(schedule.ChargeDates(from, 2, schedule.LastDayOfMonth))
	want = []string{"2025-02-28", "2025-03-31"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("last day = %v, want %v", got, want)
	}

	dec := time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)
	got = dates(schedule.ChargeDates(dec, 2, 15))
	want = []string{"2026-01-15", "2026-02-15"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("year rollover = %v, want %v", got, want)
	}
}

func TestUniqueName(t *testing.T) {
	got, err := schedule.UniqueName("Plan", []string{"Plan", "Plan-1"})
	if err != nil || got != "Plan-2" {
		t.Errorf("UniqueName() = %q, %v, want Plan-2", got, err)
	}
	got, err = schedule.UniqueName("Plan", []string{"Other"})
	if err != nil || got != "Plan" {
		t.Errorf("UniqueName() = %q, %v, want Plan", got, err)
	}

	taken := []string{"Plan"}
	for i := 1; i <= 100; i++ {
		taken = append(taken, fmt.Sprintf("Plan-%d", i))
	}
	if _, err := schedule.UniqueName("Plan", taken); !errors.Is(err, schedule.ErrNameExhausted) {
		t.Errorf("err = %v, want ErrNameExhausted", err)
	}
}

func TestParseRemainderPolicy(t *testing.T) {
	if p, err := schedule.ParseRemainderPolicy(""); err != nil || p != schedule.RemainderFirstInstalment {
		t.Errorf("default = %q, %v", p, err)
	}
	if p, err := schedule.ParseRemainderPolicy("Separate-First"); err != nil || p != schedule.RemainderSeparateFirst {
		t.Errorf("separate = %q, %v", p, err)
	}
	if _, err := schedule.ParseRemainderPolicy("split"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

type fakeStore struct {
	existing []models.InstalmentSchedule
	created  []models.ScheduleRequest
	fail     error
}

func (f *fakeStore) ListSchedules(context.Context, models.RemotePartyID) ([]models.InstalmentSchedule, error) {
	return f.existing, nil
}

func (f *fakeStore) CreateSchedule(_ context.Context, req models.ScheduleRequest) (*models.InstalmentSchedule, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.created = append(f.created, req)
	return &models.InstalmentSchedule{
		ID:          fmt.Sprintf("sch-%d", len(f.created)),
		Name:        req.Name,
		PartyID:     req.Contact.ID,
		Instalments: req.Instalments,
		LiveMode:    req.LiveMode,
	}, nil
}

func futurePayments(amounts ...string) []models.PaymentEntry {
	out := make([]models.PaymentEntry, len(amounts))
	for i, a := range amounts {
		out[i] = models.PaymentEntry{
			Date:   time.Date(2025, time.Month(4+i), 20, 0, 0, 0, 0, time.UTC),
			Amount: decimal.RequireFromString(a),
		}
	}
	return out
}

var runDate = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestCreateFirstInstalmentPolicy(t *testing.T) {
	store := &fakeStore{existing: []models.InstalmentSchedule{{Name: "Jane Doe - 5012 Payment Plan"}}}
	s := schedule.NewScheduler(store, retry.NewFakeClock(runDate), schedule.Config{Currency: "GBP", LiveMode: true})

	contact := models.Contact{ID: "abc", Name: "Jane Doe"}
	got, err := s.Create(context.Background(), contact, "5012", futurePayments("3.34", "3.33", "3.33"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("schedules = %d, want 1", len(got))
	}
	if got[0].Name != "Jane Doe - 5012 Payment Plan-1" {
		t.Errorf("name = %q", got[0].Name)
	}
	amounts := []int64{}
	for _, in := range got[0].Instalments {
		amounts = append(amounts, in.Amount)
	}
	if !reflect.DeepEqual(amounts, []int64{334, 333, 333}) {
		t.Errorf("amounts = %v", amounts)
	}
	if d := dates([]time.Time{got[0].Instalments[0].ChargeDate}); d[0] != "2025-04-20" {
		t.Errorf("first charge = %s, want next month on the payment's day", d[0])
	}
}

func TestCreateSeparateFirstPolicy(t *testing.T) {
	store := &fakeStore{}
	s := schedule.NewScheduler(store, retry.NewFakeClock(runDate), schedule.Config{
		Policy:     schedule.RemainderSeparateFirst,
		DayOfMonth: 15,
	})

	got, err := s.Create(context.Background(), models.Contact{ID: "abc", Name: "Jane Doe"}, "", futurePayments("5", "5"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	// 1000 over two instalments has no remainder, so no separate first schedule.
	if len(got) != 1 {
		t.Fatalf("even split: schedules = %d, want 1", len(got))
	}

	store = &fakeStore{}
	s = schedule.NewScheduler(store, retry.NewFakeClock(runDate), schedule.Config{Policy: schedule.RemainderSeparateFirst, DayOfMonth: 15})
	got, err = s.Create(context.Background(), models.Contact{ID: "abc", Name: "Jane Doe"}, "", futurePayments("3.34", "3.33", "3.33"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("schedules = %d, want 2", len(got))
	}
	if got[0].Name != "Jane Doe Payment 1" || got[0].Total() != 334 || len(got[0].Instalments) != 1 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Name != "Jane Doe Payment Plan" || got[1].Total() != 666 {
		t.Errorf("rest = %+v", got[1])
	}
	if got[0].Total()+got[1].Total() != 1000 {
		t.Error("schedules do not add up to the future total")
	}
}

func TestCreateNothingToSchedule(t *testing.T) {
	store := &fakeStore{}
	s := schedule.NewScheduler(store, retry.NewFakeClock(runDate), schedule.Config{})
	got, err := s.Create(context.Background(), models.Contact{ID: "abc"}, "", nil)
	if err != nil || len(got) != 0 || len(store.created) != 0 {
		t.Errorf("Create(nil) = %v, %v", got, err)
	}
}

func TestPlanCarriesDayOfMonth(t *testing.T) {
	contact := models.Contact{ID: "abc", Name: "Jane Doe"}
	tests := map[int]int{0: 20, schedule.LastDayOfMonth: -1, 5: 5}
	for configured, want := range tests {
		s := schedule.NewScheduler(&fakeStore{}, retry.NewFakeClock(runDate), schedule.Config{DayOfMonth: configured})
		plans, err := s.Plan(contact, "", futurePayments("10", "10"))
		if err != nil {
			t.Fatalf("Plan(day %d) error = %v", configured, err)
		}
		if plans[0].DayOfMonth != want {
			t.Errorf("day %d: DayOfMonth = %d, want %d", configured, plans[0].DayOfMonth, want)
		}
	}
}

func TestCreateRejectsZeroTotal(t *testing.T) {
	store := &fakeStore{}
	s := schedule.NewScheduler(store, retry.NewFakeClock(runDate), schedule.Config{LiveMode: true})

	got, err := s.Create(context.Background(), models.Contact{ID: "abc", Name: "Jane Doe"}, "", futurePayments("0", "0"))
	if !errors.Is(err, schedule.ErrInvalidSplit) {
		t.Fatalf("err = %v, want ErrInvalidSplit", err)
	}
	if len(got) != 0 || len(store.created) != 0 {
		t.Errorf("zero-value schedule created: %+v", store.created)
	}
}

func TestCreatePropagatesStoreError(t *testing.T) {
	boom := errors.New("boom")
	s := schedule.NewScheduler(&fakeStore{fail: boom}, retry.NewFakeClock(runDate), schedule.Config{})
	if _, err := s.Create(context.Background(), models.Contact{ID: "abc"}, "", futurePayments("10")); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}
