package loanservice

import (
	"time"

	"github.com/shopspring/decimal"
)

// FineEngine computes the fine owed for a loan given elapsed time and the
// grace window.
type FineEngine struct {
	Grace time.Duration // window past the planned return date with no fine
}

// OverdueAt reports whether a loan with the given planned return date is
// past its grace window at now.
func (e FineEngine) OverdueAt(plannedReturn, now time.Time) bool {
	return now.After(plannedReturn.Add(e.Grace))
}

// InitialFine is the amount set when the sweeper first marks a loan
// OVERDUE: exactly one day's rate.
func (e FineEngine) InitialFine(dailyRate decimal.Decimal) decimal.Decimal {
	return dailyRate
}

// ReturnFine is the authoritative fine computed at return time: zero within
// the grace window, otherwise dailyRate times the number of late days
// (rounded up), counted from the planned return date. It overwrites
// whatever the sweeper accrued.
func (e FineEngine) ReturnFine(dailyRate decimal.Decimal, plannedReturn, now time.Time) decimal.Decimal {
	if !e.OverdueAt(plannedReturn, now) {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(ceilDays(now.Sub(plannedReturn))))
}

func ceilDays(d time.Duration) int64 {
	days := int64(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}
