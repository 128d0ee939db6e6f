package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Operation names a remote mutation waiting in the sync queue.
type Operation string

const (
	OpInsert     Operation = "insert"
	OpReplaceDay Operation = "replace_day"
	OpReset      Operation = "reset"
)

// Sync queue statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// SyncItem is one row of the sync queue.
type SyncItem struct {
	ID        int64
	OwnerID   string
	Operation Operation
	EntryID   string
	EntryDate string
	Status    string
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// SyncStats counts queue rows by status.
type SyncStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

func (o Operation) Valid() bool {
	switch o {
	case OpInsert, OpReplaceDay, OpReset:
		return true
	}
	return false
}

func enqueue(ctx context.Context, tx *sql.Tx, ownerID string, op Operation, entryID, entryDate string, now int64) (int64, error) {
	res, err := tx.ExecContext(ctx, enqueueSyncSQL, ownerID, op, entryID, entryDate, now, now)
	if err != nil {
		return 0, fmt.Errorf("enqueue %s: %w", op, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("enqueue %s id: %w", op, err)
	}
	return id, nil
}

// DequeueSyncBatch returns up to limit pending items, oldest first.
func (r *SQLiteRepository) DequeueSyncBatch(ctx context.Context, limit int) ([]SyncItem, error) {
	rows, err := r.db.QueryContext(ctx, dequeueSyncBatchSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue sync batch: %w", err)
	}
	defer rows.Close()

	var items []SyncItem
	for rows.Next() {
		item, err := scanSyncItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync batch: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) GetSyncItem(ctx context.Context, id int64) (SyncItem, error) {
	item, err := scanSyncItem(r.db.QueryRowContext(ctx, getSyncItemSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return SyncItem{}, fmt.Errorf("sync item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return SyncItem{}, fmt.Errorf("get sync item: %w", err)
	}
	return item, nil
}

// ClaimSyncItem moves a pending item to processing. It reports false when
// another consumer got there first.
func (r *SQLiteRepository) ClaimSyncItem(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, claimSyncItemSQL, r.now().Unix(), id)
	if err != nil {
		return false, fmt.Errorf("claim sync item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim sync item rows: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepository) MarkSyncComplete(ctx context.Context, id int64) error {
	now := r.now().Unix()
	if _, err := r.db.ExecContext(ctx, completeSyncItemSQL, now, now, id); err != nil {
		return fmt.Errorf("complete sync item: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, id int64, msg string) error {
	if _, err := r.db.ExecContext(ctx, failSyncItemSQL, msg, r.now().Unix(), id); err != nil {
		return fmt.Errorf("fail sync item: %w", err)
	}
	return nil
}

// IncrementSyncAttempt records a failed attempt and puts the item back in the queue.
func (r *SQLiteRepository) IncrementSyncAttempt(ctx context.Context, id int64, msg string) error {
	if _, err := r.db.ExecContext(ctx, retrySyncItemSQL, msg, r.now().Unix(), id); err != nil {
		return fmt.Errorf("retry sync item: %w", err)
	}
	return nil
}

// ResetStaleProcessing returns items left in processing by a crashed consumer.
func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, resetStaleProcessingSQL, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("reset stale processing: %w", err)
	}
	return res.RowsAffected()
}

// CleanupCompletedSyncs deletes completed items processed before the cutoff.
func (r *SQLiteRepository) CleanupCompletedSyncs(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, cleanupCompletedSyncsSQL, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup completed syncs: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, retryFailedSyncsSQL, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) GetSyncQueueStats(ctx context.Context) (SyncStats, error) {
	rows, err := r.db.QueryContext(ctx, syncQueueStatsSQL)
	if err != nil {
		return SyncStats{}, fmt.Errorf("sync queue stats: %w", err)
	}
	defer rows.Close()

	var stats SyncStats
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return SyncStats{}, fmt.Errorf("scan sync stats: %w", err)
		}
		switch status {
		case StatusPending:
			stats.Pending = n
		case StatusProcessing:
			stats.Processing = n
		case StatusCompleted:
			stats.Completed = n
		case StatusFailed:
			stats.Failed = n
		}
	}
	return stats, rows.Err()
}

func scanSyncItem(s scanner) (SyncItem, error) {
	var (
		item      SyncItem
		op        string
		createdAt int64
	)
	if err := s.Scan(&item.ID, &item.OwnerID, &op, &item.EntryID, &item.EntryDate,
		&item.Status, &item.Attempts, &item.LastError, &createdAt); err != nil {
		return SyncItem{}, err
	}
	item.Operation = Operation(op)
	item.CreatedAt = time.Unix(createdAt, 0).UTC()
	return item, nil
}
