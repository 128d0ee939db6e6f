package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"timesheet/internal/amqp"
	"timesheet/internal/cli"
	"timesheet/internal/log"
	"timesheet/internal/services"
	gsheet "timesheet/internal/sheets/google"
	"timesheet/internal/storage"
	"timesheet/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger(nil).Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentWorker)
	logger.Info("Starting timesheet-worker")

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("GOOGLE_SPREADSHEET_ID is required: the worker only syncs SQLite to Google Sheets")
		os.Exit(1)
	}

	// Initialize SQLite repository holding the sync queue
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		CatalogSheetName:   cfg.GoogleCatalogSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	procCfg := services.DefaultSyncProcessorConfig()
	procCfg.PollInterval = cfg.SyncInterval
	procCfg.BatchSize = cfg.SyncBatchSize
	procCfg.CleanupInterval = cfg.CleanupInterval
	procCfg.CleanupAge = cfg.CleanupAge
	processor := services.NewSyncProcessor(repo, sheetsClient, procCfg)
	syncWorker := worker.NewSyncWorker(processor, repo, sheetsClient)

	// The local catalog feeds the web UI when Sheets is slow or down
	if err := syncWorker.RefreshCatalog(ctx); err != nil {
		logger.Warn("Initial catalog refresh failed", log.FieldError, err)
	}
	// Items queued while the worker was down
	syncWorker.StartupSyncCheck(ctx)

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start sync processor", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on polling only", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			g.Go(func() error {
				err := amqpClient.ConsumeSync(gctx, syncWorker.HandleSyncMessage)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			logger.Info("Consuming sync messages", "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("AMQP disabled - sync runs on the poll interval only", "interval", cfg.SyncInterval)
	}

	g.Go(func() error {
		return syncWorker.RunCatalogRefresh(gctx, 24*time.Hour)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
	}
	logger.Info("Stopping sync processor", log.FieldOperation, log.OpShutdown)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		logger.Error("Sync processor stop error", log.FieldError, err)
	}
	logger.Info("Worker stopped gracefully")
}
