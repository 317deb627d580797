// Package policy holds the lending policy (loan period, grace window,
// sweep cadence) behind an atomically swappable handle so edits to the
// config file take effect without a restart.
package policy

import (
	"sync/atomic"
	"time"
)

// Policy is one immutable snapshot of the lending parameters.
type Policy struct {
	LoanPeriodDays int
	GraceHours     int
	SweepInterval  time.Duration
	ReceiptPrefix  string
}

// Grace returns the grace window as a duration.
func (p Policy) Grace() time.Duration {
	return time.Duration(p.GraceHours) * time.Hour
}

// Default is the policy used when the config omits the lending section.
var Default = Policy{
	LoanPeriodDays: 7,
	GraceHours:     24,
	SweepInterval:  24 * time.Hour,
	ReceiptPrefix:  "FHU",
}

// Handle is a concurrency-safe holder for the current policy.
type Handle struct {
	p atomic.Pointer[Policy]
}

// NewHandle returns a handle initialised with p.
func NewHandle(p Policy) *Handle {
	h := &Handle{}
	h.p.Store(&p)
	return h
}

// Current returns the current policy snapshot.
func (h *Handle) Current() Policy {
	return *h.p.Load()
}

// Update swaps in a new policy.
func (h *Handle) Update(p Policy) {
	h.p.Store(&p)
}
