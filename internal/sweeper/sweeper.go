// Package sweeper runs the scheduled overdue detection and fine accrual
// pass over open loans.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/fehu/internal/apperr"
	"github.com/starford/fehu/internal/clock"
	"github.com/starford/fehu/internal/loanservice"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/policy"
	"github.com/starford/fehu/internal/store"
)

// systemActor is the principal the sweeper acts as. It bypasses role
// checks but never status checks.
var systemActor = models.Actor{ID: "sweeper", Role: models.RoleSystem}

// Sweeper walks open loans on a fixed cadence, moving expired ACTIVE loans
// to OVERDUE and accruing the daily fine on loans that were already
// OVERDUE before the run started.
type Sweeper struct {
	db     *store.DB
	loans  *loanservice.Service
	clk    clock.Clock
	policy *policy.Handle
	logger *slog.Logger

	mu sync.Mutex // serialises in-process runs; the DB marker guards cross-process ones
}

// New creates a sweeper. It is started explicitly via Run by the process
// entry point; nothing registers itself with a global scheduler.
func New(db *store.DB, loans *loanservice.Service, clk clock.Clock, pol *policy.Handle, logger *slog.Logger) *Sweeper {
	return &Sweeper{db: db, loans: loans, clk: clk, policy: pol, logger: logger}
}

// Run executes SweepOnce on the configured cadence until ctx is cancelled.
// The interval is re-read each cycle so policy reloads take effect.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("sweeper: started",
		slog.String("interval", s.policy.Current().SweepInterval.String()))
	for {
		timer := time.NewTimer(s.policy.Current().SweepInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sweeper: stopped")
			return nil
		case <-timer.C:
			report, err := s.SweepOnce(ctx, s.clk.Now())
			if err != nil {
				s.logger.Error("sweeper: run failed", slog.String("error", err.Error()))
				continue
			}
			s.logger.Info("sweeper: run finished",
				slog.Bool("skipped", report.Skipped),
				slog.Int("processed", report.Processed),
				slog.Int("transitioned", report.Transitioned),
				slog.Int("fined", report.Fined),
				slog.Int("errored", report.Errored))
		}
	}
}

// SweepOnce performs one sweep at the given instant in two passes:
//
//  1. ACTIVE loans past their grace window transition to OVERDUE through
//     the regular state machine, which sets the initial fine.
//  2. Loans that were already OVERDUE before this run started get one more
//     day's rate, at most once per calendar day.
//
// Separating the passes prevents double-charging a loan within one run.
// A per-loan failure is logged and counted, never aborts the run; a
// failure to enumerate the loan set is fatal for the run. Overlapping runs
// are detected via the run-in-progress marker and skipped.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (models.SweepReport, error) {
	report := models.SweepReport{StartedAt: now}

	if !s.mu.TryLock() {
		report.Skipped = true
		return report, nil
	}
	defer s.mu.Unlock()

	runID, err := s.db.BeginSweepRun(now)
	if errors.Is(err, apperr.ErrConflict) {
		s.logger.Warn("sweeper: previous run still in progress, skipping")
		report.Skipped = true
		return report, nil
	}
	if err != nil {
		return report, err
	}

	grace := s.policy.Current().Grace()
	fatal := s.sweep(ctx, now, grace, &report)

	if err := s.db.FinishSweepRun(runID, s.clk.Now(), report, fatal != nil); err != nil {
		s.logger.Error("sweeper: finish run record failed", slog.String("error", err.Error()))
	}
	if fatal != nil {
		return report, fatal
	}
	return report, nil
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time, grace time.Duration, report *models.SweepReport) error {
	// Pass 2 must only touch loans that were OVERDUE before pass 1 ran,
	// so enumerate them first.
	alreadyOverdue, err := s.db.OverdueLoanIDs()
	if err != nil {
		return fmt.Errorf("sweeper: enumerate overdue loans: %w", err)
	}

	expired, err := s.db.ActiveLoanIDsDueBefore(now.Add(-grace))
	if err != nil {
		return fmt.Errorf("sweeper: enumerate expired loans: %w", err)
	}

	for _, id := range expired {
		report.Processed++
		_, err := s.loans.Transition(ctx, id, models.ActionMarkOverdue, systemActor, loanservice.TransitionPayload{})
		switch {
		case err == nil:
			report.Transitioned++
		case errors.Is(err, apperr.ErrConflict) || errors.Is(err, apperr.ErrInvalidTransition):
			// Returned or otherwise moved between enumeration and here.
			s.logger.Debug("sweeper: loan moved during sweep", slog.String("loan", id))
		default:
			report.Errored++
			s.logger.Warn("sweeper: mark overdue failed",
				slog.String("loan", id), slog.String("error", err.Error()))
		}
	}

	for _, id := range alreadyOverdue {
		report.Processed++
		fined, err := s.loans.AccrueDailyFine(ctx, id, now)
		if err != nil {
			report.Errored++
			s.logger.Warn("sweeper: fine accrual failed",
				slog.String("loan", id), slog.String("error", err.Error()))
			continue
		}
		if fined {
			report.Fined++
		}
	}

	return nil
}
