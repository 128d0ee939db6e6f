package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"timesheet/internal/cli"
	apphttp "timesheet/internal/http"
	"timesheet/internal/log"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger(nil).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	svc, res, err := cli.NewTimesheet(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("Failed to initialize timesheet", log.FieldOperation, log.OpStartup,
			"backend", cfg.DataBackend, log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ping:               res.Ping,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend close error", log.FieldError, err)
		}
	})

	logger.Info("Starting timesheet server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"owner_id", cfg.OwnerID,
		"daily_cap", svc.DailyCap())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = res.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
