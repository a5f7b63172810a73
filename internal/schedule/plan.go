// Package schedule splits an outstanding balance into a monthly instalment
// plan and registers it with the ledger.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// LastDayOfMonth as a day-of-month charges on the final day of every month.
const LastDayOfMonth = -1

// maxNameAttempts bounds the "-N" suffix search.
const maxNameAttempts = 100

var (
	// ErrNameExhausted is returned when every suffixed plan name is taken.
	ErrNameExhausted = errors.New("no free schedule name")

	// ErrInvalidSplit is returned for a non-positive instalment count or negative total.
	ErrInvalidSplit = errors.New("invalid instalment split")
)

// Split divides total minor units into count instalments. Every instalment is
// floor(total/count); the remainder goes on the first one.
func Split(total int64, count int) ([]int64, error) {
	if count < 1 {
		return nil, fmt.Errorf("Split: %d instalments: %w", count, ErrInvalidSplit)
	}
	if total < 0 {
		return nil, fmt.Errorf("Split: total %d: %w", total, ErrInvalidSplit)
	}
	per := total / int64(count)
	out := make([]int64, count)
	for i := range out {
		out[i] = per
	}
	out[0] += total - per*int64(count)
	return out, nil
}

// ChargeDates returns count monthly dates starting the month after from.
// dayOfMonth is clamped to each month's length; LastDayOfMonth picks the last day.
func ChargeDates(from time.Time, count, dayOfMonth int) []time.Time {
	if count < 1 {
		return nil
	}
	if dayOfMonth == 0 || dayOfMonth < LastDayOfMonth {
		dayOfMonth = 1
	}
	year, month, _ := from.Date()
	loc := from.Location()

	out := make([]time.Time, 0, count)
	for i := 1; i <= count; i++ {
		first := time.Date(year, month+time.Month(i), 1, 0, 0, 0, 0, loc)
		last := daysIn(first)
		day := dayOfMonth
		if day == LastDayOfMonth || day > last {
			day = last
		}
		out = append(out, time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, loc))
	}
	return out
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// UniqueName returns base if no existing name equals it, otherwise the first
// free "base-N" for N in 1..100.
func UniqueName(base string, existing []string) (string, error) {
	taken := make(map[string]bool, len(existing))
	for _, n := range existing {
		taken[strings.TrimSpace(n)] = true
	}
	if !taken[base] {
		return base, nil
	}
	for i := 1; i <= maxNameAttempts; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if !taken[candidate] {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("UniqueName: %q: %w", base, ErrNameExhausted)
}

// ToMinor converts a major-unit amount to integer minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// RemainderPolicy decides where the split remainder is billed.
type RemainderPolicy string

const (
	// RemainderFirstInstalment keeps one schedule and adds the remainder to its first charge.
	RemainderFirstInstalment RemainderPolicy = "first-instalment"

	// RemainderSeparateFirst bills the first charge, remainder included, as its
	// own one-off schedule and the rest as an even plan.
	RemainderSeparateFirst RemainderPolicy = "separate-first"
)

// ParseRemainderPolicy accepts the policy names, defaulting to RemainderFirstInstalment.
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch RemainderPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RemainderFirstInstalment:
		return RemainderFirstInstalment, nil
	case RemainderSeparateFirst:
		return RemainderSeparateFirst, nil
	default:
		return "", fmt.Errorf("unknown remainder policy %q", s)
	}
}
