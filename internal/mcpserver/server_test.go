package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/fehu/internal/clock"
	"github.com/starford/fehu/internal/loanservice"
	"github.com/starford/fehu/internal/policy"
	"github.com/starford/fehu/internal/sweeper"
	"github.com/starford/fehu/internal/testutil"
)

var t0 = testutil.Date(2026, time.March, 1, 10, 0)

func testServer(t *testing.T) (*Server, *loanservice.Service, *clock.Fake) {
	t.Helper()

	db := testutil.TestDB(t)
	clk := clock.NewFake(t0)
	pol := policy.NewHandle(policy.Default)
	svc := loanservice.NewService(db, clk, testutil.TestArtifacts(t), pol)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	swp := sweeper.New(db, svc, clk, pol, logger)

	testutil.SeedItem(t, db, "book-1", 2, "0.50")
	return New(svc, swp, clk), svc, clk
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct call-tool test helper, so invoke the handler
	// functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "get_loan":
		result, err = srv.getLoan(ctx, req)
	case "list_loans":
		result, err = srv.listLoans(ctx, req)
	case "loan_notifications":
		result, err = srv.loanNotifications(ctx, req)
	case "sweep_once":
		result, err = srv.sweepOnce(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGetLoan(t *testing.T) {
	srv, svc, _ := testServer(t)
	loan, err := svc.Submit(context.Background(), testutil.Borrower, "book-1", t0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	r := callTool(t, srv, "get_loan", map[string]interface{}{"id": loan.ID})
	if r.IsError {
		t.Fatalf("get_loan failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, loan.ID) || !strings.Contains(text, "PENDING") {
		t.Errorf("result = %q, want the loan id and status", text)
	}
}

func TestGetLoan_Missing(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "get_loan", map[string]interface{}{"id": "nope"})
	if !r.IsError {
		t.Error("expected error result for a missing loan")
	}
}

func TestListLoans(t *testing.T) {
	srv, svc, _ := testServer(t)
	if _, err := svc.Submit(context.Background(), testutil.Borrower, "book-1", t0); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	r := callTool(t, srv, "list_loans", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("list_loans failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), `"total": 1`) {
		t.Errorf("result = %q, want total 1", resultText(r))
	}

	r = callTool(t, srv, "list_loans", map[string]interface{}{"status": "RETURNED"})
	if !strings.Contains(resultText(r), `"total": 0`) {
		t.Errorf("filtered result = %q, want total 0", resultText(r))
	}
}

func TestListLoans_BadStatus(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "list_loans", map[string]interface{}{"status": "LOST"})
	if !r.IsError {
		t.Error("expected error for an unknown status")
	}
}

func TestLoanNotifications(t *testing.T) {
	srv, svc, _ := testServer(t)
	loan, err := svc.Submit(context.Background(), testutil.Borrower, "book-1", t0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	r := callTool(t, srv, "loan_notifications", map[string]interface{}{"id": loan.ID})
	if r.IsError {
		t.Fatalf("loan_notifications failed: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), "loan_submitted") {
		t.Errorf("result = %q, want the submission notification", resultText(r))
	}
}

func TestSweepOnce(t *testing.T) {
	srv, _, _ := testServer(t)
	r := callTool(t, srv, "sweep_once", map[string]interface{}{})
	if r.IsError {
		t.Fatalf("sweep_once failed: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.Contains(text, `"skipped": false`) {
		t.Errorf("result = %q, want a non-skipped report", text)
	}
}
