// Package app owns the application lifecycle: configuration, startup
// validation, serving, hot reload, and graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sophialabs/contractmock/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/contractmock/internal/infrastructure/outbound/logging"
	"github.com/sophialabs/contractmock/internal/infrastructure/wiring"
)

// App is the thin lifecycle manager delegating construction to the wiring
// container.
type App struct {
	cfg        Config
	container  *wiring.Container
	httpServer *http.Server
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	level := parseLogLevel(cfg.LogLevel)
	logger := logging.New(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	container, err := wiring.New(wiring.Params{
		SpecFile:        cfg.SpecFile,
		ScenariosDir:    cfg.ScenariosDir,
		Upstream:        cfg.Upstream,
		UpstreamTimeout: cfg.UpstreamTimeout,
		TraceSize:       cfg.TraceSize,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to wire infrastructure: %w", err)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      container.Server(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		container:  container,
		httpServer: httpServer,
	}, nil
}

// Run executes the full lifecycle: validate and load scenarios, start the
// watcher, serve HTTP, and shut down gracefully on SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	logger := a.container.Logger()
	server := a.container.Server()

	report, err := server.Reload()
	if err != nil {
		return fmt.Errorf("failed to load scenarios: %w", err)
	}
	if report.HasErrors() {
		// Startup is strict: an invalid scenario set never serves traffic.
		fmt.Fprintln(os.Stderr, report.Format())
		return errors.New("scenario validation failed")
	}

	if a.cfg.DefaultScenario != "" {
		if err := server.ActivateScenario(a.cfg.DefaultScenario); err != nil {
			return fmt.Errorf("failed to activate default scenario: %w", err)
		}
		logger.Info("default scenario active", "name", a.cfg.DefaultScenario)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Watch {
		if watcher := a.setupWatcher(); watcher != nil {
			defer watcher.Stop()
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting contractmock server",
			"addr", a.httpServer.Addr, "spec", a.cfg.SpecFile, "scenarios", a.cfg.ScenariosDir)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func (a *App) setupWatcher() *filesystem.Watcher {
	logger := a.container.Logger()
	server := a.container.Server()

	watcher, err := filesystem.NewWatcher(a.cfg.ScenariosDir, a.cfg.WatcherDebounce, logger, func() {
		report, err := server.Reload()
		if err != nil {
			logger.Error("hot reload failed", "error", err)
			return
		}
		if report.HasErrors() {
			logger.Error("hot reload rejected", "report", report.Format())
			return
		}
		logger.Info("hot reload complete")
	})
	if err != nil {
		logger.Warn("file watcher not available", "error", err)
		return nil
	}

	watcher.Start()
	logger.Info("file watcher started", "dir", a.cfg.ScenariosDir)
	return watcher
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
