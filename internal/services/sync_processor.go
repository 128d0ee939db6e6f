package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"timesheet/internal/core"
	"timesheet/internal/sheets"
	"timesheet/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum retry attempts before marking as failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration

	// OwnerConcurrency bounds how many owners are synced in parallel (default: 4)
	OwnerConcurrency int
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:     10 * time.Second,
		BatchSize:        10,
		MaxRetries:       3,
		CleanupInterval:  1 * time.Hour,
		CleanupAge:       24 * time.Hour,
		OwnerConcurrency: 4,
	}
}

// SyncQueue is the local side of the sync: the queue plus the entries it refers to.
type SyncQueue interface {
	DequeueSyncBatch(ctx context.Context, limit int) ([]storage.SyncItem, error)
	GetSyncItem(ctx context.Context, id int64) (storage.SyncItem, error)
	ClaimSyncItem(ctx context.Context, id int64) (bool, error)
	MarkSyncComplete(ctx context.Context, id int64) error
	MarkSyncFailed(ctx context.Context, id int64, msg string) error
	IncrementSyncAttempt(ctx context.Context, id int64, msg string) error
	ResetStaleProcessing(ctx context.Context) (int64, error)
	CleanupCompletedSyncs(ctx context.Context, before time.Time) (int64, error)
	RetryFailedSyncs(ctx context.Context) (int64, error)
	GetSyncQueueStats(ctx context.Context) (storage.SyncStats, error)

	GetEntry(ctx context.Context, id string) (core.TimeEntry, error)
	EntriesForDay(ctx context.Context, ownerID string, d core.Date) ([]core.TimeEntry, error)
	MarkSynced(ctx context.Context, ids ...string) error
	MarkSyncError(ctx context.Context, id string) error
}

// RemoteSink is the remote side of the sync.
type RemoteSink interface {
	sheets.EntryWriter
	sheets.DayReplacer
	sheets.EntryResetter
}

// SyncProcessor drains the SQLite sync queue into the remote sheet
type SyncProcessor struct {
	queue  SyncQueue
	remote RemoteSink
	config SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(queue SyncQueue, remote RemoteSink, config SyncProcessorConfig) *SyncProcessor {
	if config.OwnerConcurrency <= 0 {
		config.OwnerConcurrency = 1
	}
	return &SyncProcessor{
		queue:  queue,
		remote: remote,
		config: config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Reset any stale processing items from previous crashes
	if n, err := p.queue.ResetStaleProcessing(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale processing items", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "Reset stale processing items", "count", n)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Process immediately on startup
	p.ProcessPending(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessPending(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// ProcessPending processes one batch of pending items. Items of the same owner
// run in queue order; different owners run in parallel.
func (p *SyncProcessor) ProcessPending(ctx context.Context) int {
	items, err := p.queue.DequeueSyncBatch(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue sync batch", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))

	byOwner := make(map[string][]storage.SyncItem)
	var owners []string
	for _, item := range items {
		if _, ok := byOwner[item.OwnerID]; !ok {
			owners = append(owners, item.OwnerID)
		}
		byOwner[item.OwnerID] = append(byOwner[item.OwnerID], item)
	}
	sort.Strings(owners)

	var (
		mu        sync.Mutex
		processed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.OwnerConcurrency)
	for _, owner := range owners {
		ownerItems := byOwner[owner]
		g.Go(func() error {
			for _, item := range ownerItems {
				if p.stopping(gctx) {
					return nil
				}
				ok, err := p.queue.ClaimSyncItem(gctx, item.ID)
				if err != nil {
					slog.ErrorContext(gctx, "Failed to claim sync item", "id", item.ID, "error", err)
					continue
				}
				if !ok {
					continue
				}
				p.run(gctx, item)
				mu.Lock()
				processed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return processed
}

// Handle processes one queue item announced over AMQP. An item that is no
// longer pending was already taken by the poller and is skipped.
func (p *SyncProcessor) Handle(ctx context.Context, id int64) error {
	item, err := p.queue.GetSyncItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Sync item no longer exists", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync item %d: %w", id, err)
	}

	ok, err := p.queue.ClaimSyncItem(ctx, id)
	if err != nil {
		return fmt.Errorf("claim sync item %d: %w", id, err)
	}
	if !ok {
		slog.DebugContext(ctx, "Sync item already claimed", "id", id, "status", item.Status)
		return nil
	}
	p.run(ctx, item)
	return nil
}

func (p *SyncProcessor) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
	}
	if p.stopCh == nil {
		return false
	}
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

func (p *SyncProcessor) run(ctx context.Context, item storage.SyncItem) {
	if err := p.processItem(ctx, item); err != nil {
		p.handleFailure(ctx, item, err)
		return
	}
	p.handleSuccess(ctx, item)
}

func (p *SyncProcessor) processItem(ctx context.Context, item storage.SyncItem) error {
	switch item.Operation {
	case storage.OpInsert:
		return p.processInsert(ctx, item)
	case storage.OpReplaceDay:
		return p.processReplaceDay(ctx, item)
	case storage.OpReset:
		return p.processReset(ctx, item)
	default:
		return fmt.Errorf("unknown operation: %s", item.Operation)
	}
}

func (p *SyncProcessor) processInsert(ctx context.Context, item storage.SyncItem) error {
	e, err := p.queue.GetEntry(ctx, item.EntryID)
	if errors.Is(err, storage.ErrNotFound) {
		// A later day replacement or reset removed it, nothing to push.
		slog.InfoContext(ctx, "Entry gone before sync, skipping", "entry_id", item.EntryID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get entry %s: %w", item.EntryID, err)
	}

	ref, err := p.remote.Insert(ctx, item.OwnerID, e)
	if err != nil {
		return fmt.Errorf("insert into sheets: %w", err)
	}

	if err := p.queue.MarkSynced(ctx, e.ID); err != nil {
		slog.WarnContext(ctx, "Failed to mark entry as synced",
			"entry_id", e.ID, "error", err)
		// Don't fail the queue item - sync actually succeeded
	}

	slog.InfoContext(ctx, "Synced entry to Google Sheets",
		"entry_id", e.ID,
		"owner_id", item.OwnerID,
		"sheets_ref", ref)
	return nil
}

// processReplaceDay pushes the day as it is now, so older replacements of the
// same day converge on the latest state.
func (p *SyncProcessor) processReplaceDay(ctx context.Context, item storage.SyncItem) error {
	d, err := core.ParseDate(item.EntryDate)
	if err != nil {
		return fmt.Errorf("replace day: %w", err)
	}
	list, err := p.queue.EntriesForDay(ctx, item.OwnerID, d)
	if err != nil {
		return fmt.Errorf("list day entries: %w", err)
	}
	if err := p.remote.ReplaceDay(ctx, item.OwnerID, d, list); err != nil {
		return fmt.Errorf("replace day in sheets: %w", err)
	}

	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	if err := p.queue.MarkSynced(ctx, ids...); err != nil {
		slog.WarnContext(ctx, "Failed to mark day entries as synced", "date", d.String(), "error", err)
	}

	slog.InfoContext(ctx, "Synced day to Google Sheets",
		"date", d.String(),
		"owner_id", item.OwnerID,
		"count", len(list))
	return nil
}

func (p *SyncProcessor) processReset(ctx context.Context, item storage.SyncItem) error {
	if err := p.remote.DeleteByOwner(ctx, item.OwnerID); err != nil {
		return fmt.Errorf("delete owner rows: %w", err)
	}
	slog.InfoContext(ctx, "Cleared owner rows in Google Sheets", "owner_id", item.OwnerID)
	return nil
}

func (p *SyncProcessor) handleSuccess(ctx context.Context, item storage.SyncItem) {
	if err := p.queue.MarkSyncComplete(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync complete",
			"id", item.ID, "error", err)
	}
}

// handleFailure puts the item back in the queue until MaxRetries is reached.
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.SyncItem, processErr error) {
	slog.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		"operation", item.Operation,
		"attempt", item.Attempts+1,
		"error", processErr)

	if item.Attempts+1 < p.config.MaxRetries {
		if err := p.queue.IncrementSyncAttempt(ctx, item.ID, processErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to increment sync attempt",
				"id", item.ID, "error", err)
		}
		return
	}

	if err := p.queue.MarkSyncFailed(ctx, item.ID, processErr.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync as failed",
			"id", item.ID, "error", err)
	}
	if item.Operation == storage.OpInsert {
		if err := p.queue.MarkSyncError(ctx, item.EntryID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark entry sync error",
				"entry_id", item.EntryID, "error", err)
		}
	}

	slog.ErrorContext(ctx, "Sync item failed permanently after max retries",
		"id", item.ID,
		"operation", item.Operation,
		"attempts", item.Attempts+1)
}

func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	n, err := p.queue.CleanupCompletedSyncs(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup completed syncs", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up completed syncs", "count", n)
	}
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.SyncStats, error) {
	return p.queue.GetSyncQueueStats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.queue.RetryFailedSyncs(ctx)
}
