package storage

const (
	insertEntrySQL = `INSERT INTO time_entries (id, owner_id, entry_date, project, document, hours, description, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectEntryColumns = `SELECT id, entry_date, project, document, hours, description FROM time_entries`

	listEntriesByOwnerSQL = selectEntryColumns + ` WHERE owner_id = ? ORDER BY seq`

	listEntriesByDaySQL = selectEntryColumns + ` WHERE owner_id = ? AND entry_date = ? ORDER BY seq`

	getEntrySQL = selectEntryColumns + ` WHERE id = ?`

	deleteEntriesByDaySQL = `DELETE FROM time_entries WHERE owner_id = ? AND entry_date = ?`

	deleteEntriesByOwnerSQL = `DELETE FROM time_entries WHERE owner_id = ?`

	markEntrySyncedSQL = `UPDATE time_entries SET sync_status = 'synced', synced_at = ? WHERE id = ?`

	markEntrySyncErrorSQL = `UPDATE time_entries SET sync_status = 'error' WHERE id = ?`

	enqueueSyncSQL = `INSERT INTO sync_queue (owner_id, operation, entry_id, entry_date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`

	selectSyncColumns = `SELECT id, owner_id, operation, entry_id, entry_date, status, attempts, last_error, created_at FROM sync_queue`

	dequeueSyncBatchSQL = selectSyncColumns + ` WHERE status = 'pending' ORDER BY id LIMIT ?`

	getSyncItemSQL = selectSyncColumns + ` WHERE id = ?`

	claimSyncItemSQL = `UPDATE sync_queue SET status = 'processing', updated_at = ? WHERE id = ? AND status = 'pending'`

	completeSyncItemSQL = `UPDATE sync_queue SET status = 'completed', updated_at = ?, processed_at = ? WHERE id = ?`

	failSyncItemSQL = `UPDATE sync_queue SET status = 'failed', attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`

	retrySyncItemSQL = `UPDATE sync_queue SET status = 'pending', attempts = attempts + 1, last_error = ?, updated_at = ? WHERE id = ?`

	resetStaleProcessingSQL = `UPDATE sync_queue SET status = 'pending', updated_at = ? WHERE status = 'processing'`

	cleanupCompletedSyncsSQL = `DELETE FROM sync_queue WHERE status = 'completed' AND processed_at < ?`

	retryFailedSyncsSQL = `UPDATE sync_queue SET status = 'pending', attempts = 0, updated_at = ? WHERE status = 'failed'`

	syncQueueStatsSQL = `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`

	loadSnapshotSQL = `SELECT payload FROM snapshots WHERE key = ?`

	saveSnapshotSQL = `INSERT INTO snapshots (key, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

	listCatalogSQL = `SELECT kind, name FROM catalog ORDER BY kind, position, name`

	deleteCatalogKindSQL = `DELETE FROM catalog WHERE kind = ?`

	insertCatalogSQL = `INSERT OR IGNORE INTO catalog (kind, name, position) VALUES (?, ?, ?)`
)
