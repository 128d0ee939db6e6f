package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"timesheet/internal/anomaly"
	"timesheet/internal/core"
	"timesheet/internal/storage"
)

type mockPersistence struct{ mock.Mock }

func (m *mockPersistence) Insert(ctx context.Context, ownerID string, e core.TimeEntry) (string, error) {
	args := m.Called(ctx, ownerID, e)
	return args.String(0), args.Error(1)
}

func (m *mockPersistence) ReplaceDay(ctx context.Context, ownerID string, d core.Date, entries []core.TimeEntry) error {
	return m.Called(ctx, ownerID, d, entries).Error(0)
}

func (m *mockPersistence) DeleteByOwner(ctx context.Context, ownerID string) error {
	return m.Called(ctx, ownerID).Error(0)
}

func (m *mockPersistence) ListByOwner(ctx context.Context, ownerID string) ([]core.TimeEntry, error) {
	args := m.Called(ctx, ownerID)
	list, _ := args.Get(0).([]core.TimeEntry)
	return list, args.Error(1)
}

type mockSnapshots struct{ mock.Mock }

func (m *mockSnapshots) LoadSnapshot(ctx context.Context, key string) ([]core.TimeEntry, bool, error) {
	args := m.Called(ctx, key)
	list, _ := args.Get(0).([]core.TimeEntry)
	return list, args.Bool(1), args.Error(2)
}

func (m *mockSnapshots) SaveSnapshot(ctx context.Context, key string, entries []core.TimeEntry) error {
	return m.Called(ctx, key, entries).Error(0)
}

type mockChecker struct{ mock.Mock }

func (m *mockChecker) Check(ctx context.Context, req anomaly.Request) (anomaly.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(anomaly.Result), args.Error(1)
}

type mockQueue struct{ mock.Mock }

func (m *mockQueue) DequeueSyncBatch(ctx context.Context, limit int) ([]storage.SyncItem, error) {
	args := m.Called(ctx, limit)
	items, _ := args.Get(0).([]storage.SyncItem)
	return items, args.Error(1)
}

func (m *mockQueue) GetSyncItem(ctx context.Context, id int64) (storage.SyncItem, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(storage.SyncItem), args.Error(1)
}

func (m *mockQueue) ClaimSyncItem(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockQueue) MarkSyncComplete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockQueue) MarkSyncFailed(ctx context.Context, id int64, msg string) error {
	return m.Called(ctx, id, msg).Error(0)
}

func (m *mockQueue) IncrementSyncAttempt(ctx context.Context, id int64, msg string) error {
	return m.Called(ctx, id, msg).Error(0)
}

func (m *mockQueue) ResetStaleProcessing(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockQueue) CleanupCompletedSyncs(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockQueue) RetryFailedSyncs(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockQueue) GetSyncQueueStats(ctx context.Context) (storage.SyncStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(storage.SyncStats), args.Error(1)
}

func (m *mockQueue) GetEntry(ctx context.Context, id string) (core.TimeEntry, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(core.TimeEntry), args.Error(1)
}

func (m *mockQueue) EntriesForDay(ctx context.Context, ownerID string, d core.Date) ([]core.TimeEntry, error) {
	args := m.Called(ctx, ownerID, d)
	list, _ := args.Get(0).([]core.TimeEntry)
	return list, args.Error(1)
}

func (m *mockQueue) MarkSynced(ctx context.Context, ids ...string) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *mockQueue) MarkSyncError(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
