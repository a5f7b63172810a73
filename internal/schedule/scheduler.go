package schedule

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"psync/internal/logger"
	"psync/internal/retry"
	"psync/pkg/models"
)

// Store is the part of the ledger the scheduler writes to.
type Store interface {
	ListSchedules(ctx context.Context, contactID models.RemotePartyID) ([]models.InstalmentSchedule, error)
	CreateSchedule(ctx context.Context, req models.ScheduleRequest) (*models.InstalmentSchedule, error)
}

// Config holds scheduler settings.
type Config struct {
	Policy RemainderPolicy
	// DayOfMonth for every charge; 0 uses the first future payment's day, -1 the last day.
	DayOfMonth int
	Currency   string
	LiveMode   bool
}

// Scheduler plans and creates instalment schedules for future payments.
type Scheduler struct {
	store Store
	clock retry.Clock
	cfg   Config
	log   zerolog.Logger
}

// NewScheduler returns a Scheduler.
func NewScheduler(store Store, clock retry.Clock, cfg Config) *Scheduler {
	if cfg.Policy == "" {
		cfg.Policy = RemainderFirstInstalment
	}
	if clock == nil {
		clock = retry.SystemClock{}
	}
	return &Scheduler{
		store: store,
		clock: clock,
		cfg:   cfg,
		log:   logger.WithComponent("scheduler"),
	}
}

// PlanName is "<client> - <shoot> Payment Plan", or "<client> Payment Plan" without a shoot number.
func PlanName(clientName, shootNo string) string {
	if shootNo != "" {
		return fmt.Sprintf("%s - %s Payment Plan", clientName, shootNo)
	}
	return clientName + " Payment Plan"
}

func firstPaymentName(clientName, shootNo string) string {
	if shootNo != "" {
		return fmt.Sprintf("%s - %s Payment 1", clientName, shootNo)
	}
	return clientName + " Payment 1"
}

// Plan splits the future payments into schedule requests without touching the
// ledger. Names are not yet made unique. A non-positive total is rejected with
// ErrInvalidSplit.
func (s *Scheduler) Plan(contact models.Contact, shootNo string, future []models.PaymentEntry) ([]models.ScheduleRequest, error) {
	if len(future) == 0 {
		return nil, nil
	}

	total := ToMinor(models.SumPayments(future))
	if total <= 0 {
		return nil, fmt.Errorf("Plan: future payments total %d: %w", total, ErrInvalidSplit)
	}
	amounts, err := Split(total, len(future))
	if err != nil {
		return nil, fmt.Errorf("Plan: %w", err)
	}

	day := s.cfg.DayOfMonth
	if day == 0 {
		day = future[0].Date.Day()
	}
	dates := ChargeDates(s.clock.Now(), len(future), day)

	instalments := make([]models.Instalment, len(amounts))
	for i := range amounts {
		instalments[i] = models.Instalment{ChargeDate: dates[i], Amount: amounts[i]}
	}

	clientName := contact.Name
	base := models.ScheduleRequest{
		Contact:    contact,
		Currency:   s.cfg.Currency,
		LiveMode:   s.cfg.LiveMode,
		DayOfMonth: day,
	}

	hasRemainder := len(amounts) > 1 && amounts[0] != amounts[1]
	if s.cfg.Policy == RemainderSeparateFirst && hasRemainder {
		first := base
		first.Name = firstPaymentName(clientName, shootNo)
		first.Instalments = instalments[:1]

		rest := base
		rest.Name = PlanName(clientName, shootNo)
		rest.Instalments = instalments[1:]
		return []models.ScheduleRequest{first, rest}, nil
	}

	base.Name = PlanName(clientName, shootNo)
	base.Instalments = instalments
	return []models.ScheduleRequest{base}, nil
}

// Create plans and registers the schedules for future payments, giving each a
// name unique among the contact's schedules.
func (s *Scheduler) Create(ctx context.Context, contact models.Contact, shootNo string, future []models.PaymentEntry) ([]models.InstalmentSchedule, error) {
	const op = "Create"

	plans, err := s.Plan(contact, shootNo, future)
	if err != nil || len(plans) == 0 {
		return nil, err
	}

	existing, err := s.store.ListSchedules(ctx, contact.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: listing schedules: %w", op, err)
	}
	names := make([]string, 0, len(existing)+len(plans))
	for _, e := range existing {
		names = append(names, e.Name)
	}

	created := make([]models.InstalmentSchedule, 0, len(plans))
	for _, plan := range plans {
		name, err := UniqueName(plan.Name, names)
		if err != nil {
			return created, fmt.Errorf("%s: %w", op, err)
		}
		plan.Name = name
		names = append(names, name)

		sched, err := s.store.CreateSchedule(ctx, plan)
		if err != nil {
			return created, fmt.Errorf("%s: creating %q: %w", op, name, err)
		}
		created = append(created, *sched)

		s.log.Info().
			Str("schedule_id", sched.ID).
			Str("name", name).
			Int("instalments", len(plan.Instalments)).
			Int64("total_minor", plan.Total()).
			Msg("Instalment schedule created")
	}
	return created, nil
}
