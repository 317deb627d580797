// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes back-office loan tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/fehu/internal/clock"
	"github.com/starford/fehu/internal/loanservice"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/sweeper"
)

// Server wraps the MCP server with Fehu tools. All tools act as a staff
// principal; the stdio transport is only reachable by an operator already
// on the box.
type Server struct {
	mcp *server.MCPServer
	svc *loanservice.Service
	swp *sweeper.Sweeper
	clk clock.Clock
}

// New creates a new MCP server with all Fehu tools registered.
func New(svc *loanservice.Service, swp *sweeper.Sweeper, clk clock.Clock) *Server {
	s := &Server{svc: svc, swp: swp, clk: clk}

	s.mcp = server.NewMCPServer(
		"Fehu",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_loan",
		mcp.WithDescription("Fetch one loan by id, including status, fine total, and receipt number."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Loan id")),
	), s.getLoan)

	s.mcp.AddTool(mcp.NewTool("list_loans",
		mcp.WithDescription("List loans, optionally filtered by status (PENDING, APPROVED, SHIPPED, ACTIVE, REJECTED, OVERDUE, RETURNED)."),
		mcp.WithString("status", mcp.Description("Optional status filter")),
	), s.listLoans)

	s.mcp.AddTool(mcp.NewTool("loan_notifications",
		mcp.WithDescription("List the notifications recorded for a loan, oldest first."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Loan id")),
	), s.loanNotifications)

	s.mcp.AddTool(mcp.NewTool("sweep_once",
		mcp.WithDescription("Run one overdue sweep now and return its report. "+
			"Skipped=true means a sweep was already in progress."),
	), s.sweepOnce)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getLoan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loan, err := s.svc.GetLoan(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loan %s: %v", id, err)), nil
	}
	out, _ := json.MarshalIndent(loan, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listLoans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := ""
	if v, err := req.RequireString("status"); err == nil {
		status = v
	}
	if status != "" && !models.Status(status).Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", status)), nil
	}
	loans, total, err := s.svc.ListLoans(ctx, status, "", 100, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"loans": loans, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) loanNotifications(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ns, err := s.svc.Notifications(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loan %s: %v", id, err)), nil
	}
	if len(ns) == 0 {
		return mcp.NewToolResultText("no notifications"), nil
	}
	out, _ := json.MarshalIndent(ns, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) sweepOnce(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.swp.SweepOnce(ctx, s.clk.Now())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
