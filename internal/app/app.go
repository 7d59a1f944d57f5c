// Package app wires the scheduler daemon together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/okeev/mailsched/internal/config"
	"github.com/okeev/mailsched/internal/mailer"
	"github.com/okeev/mailsched/internal/metrics"
	"github.com/okeev/mailsched/internal/scheduler"
	"github.com/okeev/mailsched/internal/store"
)

// App is the main application
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *store.DB
	scheduler     *scheduler.Scheduler
	metrics       *metrics.Metrics
	metricsServer *metrics.Server
}

// New creates a new application
func New(cfg *config.Config) (*App, error) {
	logger := SetupLogger(cfg.Logging)

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	campaigns := store.NewCampaignRepository(db.DB)
	attempts := store.NewAttemptRepository(db.DB)

	smtpMailer := mailer.NewSMTPMailer(mailer.Config{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		TLS:       cfg.SMTP.TLS,
		LocalName: cfg.SMTP.LocalName,
		Timeout:   cfg.SMTP.Timeout,
	}, logger.With("component", "mailer"))

	mx := metrics.New()

	exec := scheduler.NewExecutor(campaigns, attempts, smtpMailer, cfg.SMTP.From, mx, logger)
	sched := scheduler.New(campaigns, attempts, exec, mx, logger, scheduler.Config{
		TickInterval: cfg.Scheduler.TickInterval,
		Concurrency:  cfg.Scheduler.Concurrency,
	})

	app := &App{
		config:    cfg,
		logger:    logger,
		db:        db,
		scheduler: sched,
		metrics:   mx,
	}

	if cfg.Metrics.Enabled {
		app.metricsServer = metrics.NewServer(mx, cfg.Metrics.ListenAddr, cfg.Metrics.Path,
			cfg.Metrics.AllowedIPs, logger.With("component", "metrics"))
	}

	return app, nil
}

// Scheduler returns the scheduler, for out-of-band tick invocations.
func (a *App) Scheduler() *scheduler.Scheduler {
	return a.scheduler
}

// Close releases the application's resources.
func (a *App) Close() error {
	return a.db.Close()
}

// Run starts the daemon and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.metricsServer != nil {
		go func() {
			if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	a.scheduler.Start()
	a.logger.Info("mailsched running",
		"storage", a.config.Storage.Path,
		"relay", a.config.SMTP.Host,
		"tick_interval", a.config.Scheduler.TickInterval,
	)

	<-ctx.Done()

	a.scheduler.Stop()

	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown failed", "error", err)
		}
	}

	return a.db.Close()
}

// SetupLogger builds the process logger from the logging config and installs
// it as the slog default.
func SetupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch level {
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
