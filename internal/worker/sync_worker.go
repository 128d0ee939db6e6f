package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"timesheet/internal/amqp"
	"timesheet/internal/sheets"
	"timesheet/internal/storage"
)

// QueueProcessor is the part of the sync processor the worker drives.
type QueueProcessor interface {
	Handle(ctx context.Context, id int64) error
	ProcessPending(ctx context.Context) int
}

// CatalogStore caches the project and document catalog locally.
type CatalogStore interface {
	ReplaceCatalog(ctx context.Context, kind string, names []string) error
}

// SyncWorker pushes queued timesheet changes from SQLite to Google Sheets and
// keeps the local catalog in step with the sheet's Catalog tab.
type SyncWorker struct {
	processor    QueueProcessor
	catalog      CatalogStore
	remote       sheets.CatalogReader
	startupLimit int
}

func NewSyncWorker(processor QueueProcessor, catalog CatalogStore, remote sheets.CatalogReader) *SyncWorker {
	return &SyncWorker{
		processor:    processor,
		catalog:      catalog,
		remote:       remote,
		startupLimit: 5,
	}
}

// HandleSyncMessage processes the queue item a message announces. Failures are
// recorded on the queue item for the poller to retry, so only infrastructure
// errors are returned and cause a requeue.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"queue_id", msg.QueueID,
		"owner_id", msg.OwnerID,
		"operation", msg.Operation)

	if err := w.processor.Handle(ctx, msg.QueueID); err != nil {
		return fmt.Errorf("handle queue item %d: %w", msg.QueueID, err)
	}
	return nil
}

// StartupSyncCheck drains items left pending while the worker was down.
// This recovers from lost AMQP messages.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) int {
	total := 0
	for i := 0; i < w.startupLimit; i++ {
		n := w.processor.ProcessPending(ctx)
		total += n
		if n == 0 || ctx.Err() != nil {
			break
		}
	}
	if total == 0 {
		slog.InfoContext(ctx, "No pending sync items found on startup")
	} else {
		slog.InfoContext(ctx, "Startup sync completed", "processed", total)
	}
	return total
}

// RefreshCatalog copies the remote project and document lists into SQLite.
// An empty remote list keeps the cached one.
func (w *SyncWorker) RefreshCatalog(ctx context.Context) error {
	if w.remote == nil || w.catalog == nil {
		return nil
	}
	projects, documents, err := w.remote.List(ctx)
	if err != nil {
		return fmt.Errorf("load catalog from Google Sheets: %w", err)
	}
	if err := w.catalog.ReplaceCatalog(ctx, storage.KindProject, projects); err != nil {
		return fmt.Errorf("cache projects: %w", err)
	}
	if err := w.catalog.ReplaceCatalog(ctx, storage.KindDocument, documents); err != nil {
		return fmt.Errorf("cache documents: %w", err)
	}

	slog.InfoContext(ctx, "Catalog successfully cached",
		"projects", len(projects),
		"documents", len(documents))
	return nil
}

// RunCatalogRefresh refreshes the catalog every interval until ctx is done.
func (w *SyncWorker) RunCatalogRefresh(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.RefreshCatalog(ctx); err != nil {
				slog.WarnContext(ctx, "Periodic catalog refresh failed", "error", err)
			}
		}
	}
}
