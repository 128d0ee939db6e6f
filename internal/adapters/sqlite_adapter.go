package adapters

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"timesheet/internal/amqp"
	"timesheet/internal/core"
	"timesheet/internal/storage"
)

// Publisher announces queued sync items to the worker.
type Publisher interface {
	PublishSync(ctx context.Context, msg *amqp.SyncMessage) error
}

// SQLiteAdapter adapts SQLiteRepository to the sheets.* ports. Each write is
// stored and queued locally first, then announced over AMQP so the worker can
// push it to Google Sheets.
type SQLiteAdapter struct {
	storage   *storage.SQLiteRepository
	publisher Publisher
	closer    io.Closer
}

// NewSQLiteAdapter wires the repository to an optional publisher. A nil
// publisher leaves the queued items to the worker's poller.
func NewSQLiteAdapter(storage *storage.SQLiteRepository, publisher Publisher) *SQLiteAdapter {
	a := &SQLiteAdapter{storage: storage, publisher: publisher}
	if c, ok := publisher.(io.Closer); ok {
		a.closer = c
	}
	return a
}

// Insert implements sheets.EntryWriter
func (a *SQLiteAdapter) Insert(ctx context.Context, ownerID string, e core.TimeEntry) (string, error) {
	w, err := a.storage.InsertEntry(ctx, ownerID, e)
	if err != nil {
		return "", fmt.Errorf("save entry: %w", err)
	}
	a.publish(ctx, w.QueueID, ownerID, storage.OpInsert)
	return w.RecordRef, nil
}

// ReplaceDay implements sheets.DayReplacer
func (a *SQLiteAdapter) ReplaceDay(ctx context.Context, ownerID string, d core.Date, entries []core.TimeEntry) error {
	queueID, err := a.storage.ReplaceDayEntries(ctx, ownerID, d, entries)
	if err != nil {
		return fmt.Errorf("replace day: %w", err)
	}
	a.publish(ctx, queueID, ownerID, storage.OpReplaceDay)
	return nil
}

// DeleteByOwner implements sheets.EntryResetter
func (a *SQLiteAdapter) DeleteByOwner(ctx context.Context, ownerID string) error {
	queueID, err := a.storage.DeleteOwnerEntries(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("delete owner entries: %w", err)
	}
	a.publish(ctx, queueID, ownerID, storage.OpReset)
	return nil
}

// ListByOwner implements sheets.EntryLister
func (a *SQLiteAdapter) ListByOwner(ctx context.Context, ownerID string) ([]core.TimeEntry, error) {
	return a.storage.ListByOwner(ctx, ownerID)
}

// List implements sheets.CatalogReader
func (a *SQLiteAdapter) List(ctx context.Context) ([]string, []string, error) {
	return a.storage.List(ctx)
}

// LoadSnapshot implements sheets.SnapshotStore
func (a *SQLiteAdapter) LoadSnapshot(ctx context.Context, key string) ([]core.TimeEntry, bool, error) {
	return a.storage.LoadSnapshot(ctx, key)
}

// SaveSnapshot implements sheets.SnapshotStore
func (a *SQLiteAdapter) SaveSnapshot(ctx context.Context, key string, entries []core.TimeEntry) error {
	return a.storage.SaveSnapshot(ctx, key, entries)
}

// Ping reports whether the database is reachable.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.storage.Ping(ctx)
}

// publish is best effort: the item is already queued in SQLite and the
// worker's poller picks it up if the message is lost.
func (a *SQLiteAdapter) publish(ctx context.Context, queueID int64, ownerID string, op storage.Operation) {
	if a.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, leaving item to the poller", "queue_id", queueID)
		return
	}
	if err := a.publisher.PublishSync(ctx, amqp.NewSyncMessage(queueID, ownerID, string(op))); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"queue_id", queueID,
			"operation", op,
			"error", err)
	}
}

// Close closes both storage and AMQP connections
func (a *SQLiteAdapter) Close() error {
	var errs []error

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close sqlite backend: %v", errs)
	}

	return nil
}
