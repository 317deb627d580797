// Package internal provides the main application initialization and
// runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/fehu/internal/api"
	"github.com/starford/fehu/internal/artifacts"
	"github.com/starford/fehu/internal/clock"
	"github.com/starford/fehu/internal/identity"
	"github.com/starford/fehu/internal/loanservice"
	"github.com/starford/fehu/internal/mcpserver"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/policy"
	"github.com/starford/fehu/internal/store"
	"github.com/starford/fehu/internal/sweeper"
	pkgconfig "github.com/starford/fehu/pkg/config"
)

// services bundles everything built from one configuration.
type services struct {
	db    *store.DB
	art   artifacts.Store
	pol   *policy.Handle
	clk   clock.Clock
	loans *loanservice.Service
	swp   *sweeper.Sweeper
}

func buildServices(app *application, logger *slog.Logger) (*services, error) {
	cfg := app.config

	clk := app.clock
	if clk == nil {
		clk = clock.System{}
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	if n, err := db.FailStaleSweepRuns(clk.Now()); err != nil {
		logger.Warn("stale sweep run cleanup failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Warn("cleared stale sweep run markers", slog.Int64("count", n))
	}

	art, err := artifacts.NewFS(cfg.Artifacts.Path)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	pol := policy.NewHandle(cfg.Lending.Policy())
	loans := loanservice.NewService(db, clk, art, pol)
	swp := sweeper.New(db, loans, clk, pol, logger)

	return &services{db: db, art: art, pol: pol, clk: clk, loans: loans, swp: swp}, nil
}

func newLogger(app *application) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP service, the overdue sweeper, and the policy
// watcher, and blocks until shutdown.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(app)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("artifacts_path", cfg.Artifacts.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svcs, err := buildServices(app, logger)
	if err != nil {
		return err
	}
	defer svcs.db.Close()

	resolver := identity.NewStaticResolver(principalsFromConfig(cfg))
	h := api.NewHandler(svcs.loans, svcs.swp, svcs.db, svcs.clk)
	apiRouter := api.NewRouter(h, svcs.art, cfg.Auth.AuthEnabled(), resolver)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the overdue sweeper.
	g.Go(func() error {
		return svcs.swp.Run(gCtx)
	})

	// Watch the config file for lending policy changes.
	if app.configPath != "" {
		configPath := app.configPath
		g.Go(func() error {
			return policy.Watch(gCtx, configPath, svcs.pol, func() (policy.Policy, error) {
				fresh := NewDefaultConfig()
				if err := pkgconfig.Load(configPath, fresh); err != nil {
					return policy.Policy{}, err
				}
				return fresh.Lending.Policy(), nil
			}, logger)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP stdio server over the same store and services.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	// Logging goes to stderr: stdout belongs to the MCP transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svcs, err := buildServices(app, logger)
	if err != nil {
		return err
	}
	defer svcs.db.Close()

	srv := mcpserver.New(svcs.loans, svcs.swp, svcs.clk)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

func principalsFromConfig(cfg *Config) []identity.Principal {
	out := make([]identity.Principal, 0, len(cfg.Auth.Principals))
	for _, p := range cfg.Auth.Principals {
		out = append(out, identity.Principal{
			Token: p.Token,
			ID:    p.ID,
			Role:  models.Role(p.Role),
		})
	}
	return out
}
