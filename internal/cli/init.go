// Package cli holds the startup code shared by cmd/timesheet,
// cmd/timesheet-worker and cmd/timesheetctl, plus the timesheetctl command tree.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"timesheet/internal/anomaly"
	"timesheet/internal/backend"
	"timesheet/internal/config"
	"timesheet/internal/core"
	"timesheet/internal/entries"
	"timesheet/internal/log"
	"timesheet/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	if cfg != nil {
		lc.Level = log.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and the
// optional policy file.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewChecker returns the remote anomaly client when ANOMALY_URL is set and the
// local rule checker otherwise.
func NewChecker(cfg *config.Config, logger *log.Logger) (anomaly.Checker, error) {
	if cfg.AnomalyURL == "" {
		return anomaly.NewRuleChecker(), nil
	}
	return anomaly.NewClient(anomaly.ClientConfig{
		URL:     cfg.AnomalyURL,
		APIKey:  cfg.AnomalyAPIKey,
		Timeout: cfg.AnomalyTimeout,
		Retries: cfg.AnomalyRetries,
		Logger:  logger,
	})
}

// NewTimesheet creates the configured backend and a TimesheetService on top of
// it, then hydrates the store. The caller owns the returned BackendResult and
// must Close it.
func NewTimesheet(ctx context.Context, cfg *config.Config, logger *log.Logger) (*services.TimesheetService, *backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}

	checker, err := NewChecker(cfg, logger)
	if err != nil {
		_ = res.Close()
		return nil, nil, fmt.Errorf("anomaly checker: %w", err)
	}

	store, _ := entries.New(nil)
	svc := services.NewTimesheetService(services.Options{
		Store: store,
		Guard: core.NewGuard(cfg.Policy.DailyCap, cfg.Policy.Dates),
		Aggregator: core.Aggregator{
			Classifier: core.Classifier{Week: cfg.Policy.WeekWindow},
			ByDocument: cfg.Policy.GroupByDocument,
		},
		Persistence: res.Backend,
		Catalog:     res.Backend,
		Snapshots:   res.Snapshots,
		Checker:     checker,
		OwnerID:     cfg.OwnerID,
		UserName:    cfg.UserName,
		Logger:      logger,
	})
	if err := svc.Load(ctx); err != nil {
		_ = res.Close()
		return nil, nil, fmt.Errorf("load entries: %w", err)
	}
	return svc, res, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when cleanup is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		sig := <-sigChan
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached", log.FieldOperation, log.OpShutdown)
			return
		}
		logger.Info("Shutdown complete", log.FieldOperation, log.OpShutdown)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
