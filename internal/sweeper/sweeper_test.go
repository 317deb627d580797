package sweeper

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/fehu/internal/clock"
	"github.com/starford/fehu/internal/loanservice"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/policy"
	"github.com/starford/fehu/internal/store"
	"github.com/starford/fehu/internal/testutil"
)

var t0 = testutil.Date(2026, time.March, 1, 10, 0)

type fixture struct {
	swp *Sweeper
	svc *loanservice.Service
	db  *store.DB
	clk *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.TestDB(t)
	clk := clock.NewFake(t0)
	pol := policy.NewHandle(policy.Policy{
		LoanPeriodDays: 7,
		GraceHours:     24,
		SweepInterval:  time.Hour,
		ReceiptPrefix:  "FHU",
	})
	svc := loanservice.NewService(db, clk, testutil.TestArtifacts(t), pol)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		swp: New(db, svc, clk, pol, logger),
		svc: svc,
		db:  db,
		clk: clk,
	}
}

// activeLoan walks a fresh loan to ACTIVE with the default 7-day period.
func (f *fixture) activeLoan(t *testing.T, itemID string) *models.Loan {
	t.Helper()
	return f.activeLoanFrom(t, itemID, t0)
}

func (f *fixture) activeLoanFrom(t *testing.T, itemID string, start time.Time) *models.Loan {
	t.Helper()
	testutil.SeedItem(t, f.db, itemID, 2, "0.50")
	ctx := context.Background()
	loan, err := f.svc.Submit(ctx, testutil.Borrower, itemID, start)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for _, step := range []struct {
		action  models.Action
		payload loanservice.TransitionPayload
	}{
		{models.ActionApprove, loanservice.TransitionPayload{}},
		{models.ActionShip, loanservice.TransitionPayload{}},
		{models.ActionReceive, loanservice.TransitionPayload{ProofRef: "proof.jpg"}},
	} {
		if loan, err = f.svc.Transition(ctx, loan.ID, step.action, testutil.Staff, step.payload); err != nil {
			t.Fatalf("Transition %s: %v", step.action, err)
		}
	}
	return loan
}

func TestSweepOnce_EmptyDatabase(t *testing.T) {
	f := newFixture(t)
	report, err := f.swp.SweepOnce(context.Background(), f.clk.Now())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if report.Skipped || report.Processed != 0 || report.Errored != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}

func TestSweepOnce_TransitionsExpiredLoans(t *testing.T) {
	f := newFixture(t)
	loan := f.activeLoan(t, "book-1")
	ctx := context.Background()

	f.clk.Set(loan.PlannedReturnDate.Add(25 * time.Hour))
	report, err := f.swp.SweepOnce(ctx, f.clk.Now())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if report.Transitioned != 1 || report.Fined != 0 {
		t.Errorf("report = %+v, want 1 transitioned, 0 fined", report)
	}

	got, _ := f.svc.GetLoan(ctx, loan.ID)
	if got.Status != models.StatusOverdue {
		t.Errorf("status = %s, want OVERDUE", got.Status)
	}
	if got.TotalFine.String() != "0.5" {
		t.Errorf("fine = %s, want the initial day's rate 0.5", got.TotalFine)
	}
}

func TestSweepOnce_RespectsGrace(t *testing.T) {
	f := newFixture(t)
	loan := f.activeLoan(t, "book-1")
	ctx := context.Background()

	// Past due but inside the 24h grace window.
	f.clk.Set(loan.PlannedReturnDate.Add(12 * time.Hour))
	report, err := f.swp.SweepOnce(ctx, f.clk.Now())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if report.Processed != 0 {
		t.Errorf("processed = %d inside grace, want 0", report.Processed)
	}
	got, _ := f.svc.GetLoan(ctx, loan.ID)
	if got.Status != models.StatusActive {
		t.Errorf("status = %s, want ACTIVE", got.Status)
	}
}

func TestSweepOnce_NoDoubleChargeWithinOneRun(t *testing.T) {
	f := newFixture(t)
	loan := f.activeLoan(t, "book-1")
	ctx := context.Background()

	// First sweep moves the loan to OVERDUE and sets the initial fine.
	f.clk.Set(loan.PlannedReturnDate.Add(25 * time.Hour))
	if _, err := f.swp.SweepOnce(ctx, f.clk.Now()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}

	// Second sweep the same day enumerates it as already overdue but the
	// daily stamp blocks another charge.
	report, err := f.swp.SweepOnce(ctx, f.clk.Now())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Fined != 0 || report.Transitioned != 0 {
		t.Errorf("report = %+v, want nothing fined or transitioned", report)
	}
	got, _ := f.svc.GetLoan(ctx, loan.ID)
	if got.TotalFine.String() != "0.5" {
		t.Errorf("fine = %s after same-day re-sweep, want 0.5", got.TotalFine)
	}
}

func TestSweepOnce_NextDayAddsOneDaysRate(t *testing.T) {
	f := newFixture(t)
	loan := f.activeLoan(t, "book-1")
	ctx := context.Background()

	f.clk.Set(loan.PlannedReturnDate.Add(25 * time.Hour))
	if _, err := f.swp.SweepOnce(ctx, f.clk.Now()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}

	f.clk.Advance(24 * time.Hour)
	report, err := f.swp.SweepOnce(ctx, f.clk.Now())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Fined != 1 {
		t.Errorf("fined = %d on the next day, want 1", report.Fined)
	}
	got, _ := f.svc.GetLoan(ctx, loan.ID)
	if got.TotalFine.String() != "1" {
		t.Errorf("fine = %s after two days, want 1", got.TotalFine)
	}
}

func TestSweepOnce_SkipsWhileMarkerHeld(t *testing.T) {
	f := newFixture(t)
	f.activeLoan(t, "book-1")

	// Simulate another process holding the run marker.
	if _, err := f.db.BeginSweepRun(f.clk.Now()); err != nil {
		t.Fatalf("BeginSweepRun: %v", err)
	}

	report, err := f.swp.SweepOnce(context.Background(), f.clk.Now())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if !report.Skipped {
		t.Error("expected the run to be skipped")
	}
	if report.Processed != 0 {
		t.Errorf("processed = %d on a skipped run, want 0", report.Processed)
	}
}

func TestSweepOnce_LoanReturnedBetweenSweeps(t *testing.T) {
	f := newFixture(t)
	loan := f.activeLoan(t, "book-1")
	ctx := context.Background()

	f.clk.Set(loan.PlannedReturnDate.Add(25 * time.Hour))
	if _, err := f.swp.SweepOnce(ctx, f.clk.Now()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if _, err := f.svc.Transition(ctx, loan.ID, models.ActionReturn, testutil.Borrower, loanservice.TransitionPayload{}); err != nil {
		t.Fatalf("return: %v", err)
	}

	// The returned loan no longer shows up in either pass.
	f.clk.Advance(24 * time.Hour)
	report, err := f.swp.SweepOnce(ctx, f.clk.Now())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if report.Processed != 0 {
		t.Errorf("processed = %d after return, want 0", report.Processed)
	}
}

func TestSweepOnce_MixedSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Three active loans: one already overdue before the run, one expiring
	// now, one not due for days.
	early := f.activeLoan(t, "book-1")                             // due t0+7d
	expiring := f.activeLoanFrom(t, "book-2", t0.AddDate(0, 0, 1)) // due t0+8d
	notDue := f.activeLoanFrom(t, "book-3", t0.AddDate(0, 0, 5))   // due t0+12d

	f.clk.Set(early.PlannedReturnDate.Add(25 * time.Hour))
	if _, err := f.swp.SweepOnce(ctx, f.clk.Now()); err != nil {
		t.Fatalf("seed sweep: %v", err)
	}

	f.clk.Advance(24 * time.Hour)
	report, err := f.swp.SweepOnce(ctx, f.clk.Now())
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if report.Transitioned != 1 {
		t.Errorf("transitioned = %d, want 1 (the newly expired loan)", report.Transitioned)
	}
	if report.Fined != 1 {
		t.Errorf("fined = %d, want 1 (the loan overdue since yesterday)", report.Fined)
	}

	gotEarly, _ := f.svc.GetLoan(ctx, early.ID)
	if gotEarly.TotalFine.String() != "1" {
		t.Errorf("early loan fine = %s, want 1", gotEarly.TotalFine)
	}
	gotExpiring, _ := f.svc.GetLoan(ctx, expiring.ID)
	if gotExpiring.Status != models.StatusOverdue {
		t.Errorf("expiring loan status = %s, want OVERDUE", gotExpiring.Status)
	}
	gotNotDue, _ := f.svc.GetLoan(ctx, notDue.ID)
	if gotNotDue.Status != models.StatusActive {
		t.Errorf("not-due loan status = %s, want ACTIVE", gotNotDue.Status)
	}
}
