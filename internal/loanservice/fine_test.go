package loanservice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var plannedReturn = time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

func TestOverdueAt(t *testing.T) {
	eng := FineEngine{Grace: 24 * time.Hour}
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before due date", plannedReturn.Add(-time.Hour), false},
		{"at due date", plannedReturn, false},
		{"inside grace", plannedReturn.Add(12 * time.Hour), false},
		{"at grace boundary", plannedReturn.Add(24 * time.Hour), false},
		{"just past grace", plannedReturn.Add(24*time.Hour + time.Second), true},
		{"days past grace", plannedReturn.Add(72 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eng.OverdueAt(plannedReturn, tt.now); got != tt.want {
				t.Errorf("OverdueAt(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestInitialFine(t *testing.T) {
	eng := FineEngine{Grace: 24 * time.Hour}
	rate := decimal.RequireFromString("0.50")
	if got := eng.InitialFine(rate); !got.Equal(rate) {
		t.Errorf("InitialFine = %s, want %s", got, rate)
	}
}

func TestReturnFine(t *testing.T) {
	eng := FineEngine{Grace: 24 * time.Hour}
	rate := decimal.RequireFromString("0.50")
	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"on time", plannedReturn.Add(-time.Hour), "0"},
		{"inside grace", plannedReturn.Add(20 * time.Hour), "0"},
		{"at grace boundary", plannedReturn.Add(24 * time.Hour), "0"},
		// Late days count from the planned return date, not the grace edge.
		{"just past grace", plannedReturn.Add(25 * time.Hour), "1"},
		{"two full days late", plannedReturn.Add(48 * time.Hour), "1"},
		{"partial third day rounds up", plannedReturn.Add(49 * time.Hour), "1.5"},
		{"ten days late", plannedReturn.Add(10 * 24 * time.Hour), "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := decimal.RequireFromString(tt.want)
			if got := eng.ReturnFine(rate, plannedReturn, tt.now); !got.Equal(want) {
				t.Errorf("ReturnFine(%v) = %s, want %s", tt.now, got, want)
			}
		})
	}
}

func TestCeilDays(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{time.Second, 1},
		{24 * time.Hour, 1},
		{24*time.Hour + time.Minute, 2},
		{48 * time.Hour, 2},
		{60 * time.Hour, 3},
	}
	for _, tt := range tests {
		if got := ceilDays(tt.d); got != tt.want {
			t.Errorf("ceilDays(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}
