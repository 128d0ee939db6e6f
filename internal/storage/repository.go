package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"timesheet/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Catalog kinds.
const (
	KindProject  = "project"
	KindDocument = "document"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// Written describes what a mutation stored: the record reference of an inserted
// entry and the sync queue item created alongside it.
type Written struct {
	RecordRef string
	QueueID   int64
}

// NewSQLiteRepository opens dbPath, or a private in-memory database for
// ":memory:", and migrates it before returning.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dbPath != memoryDSN {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if dbPath == memoryDSN {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := Migrate(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "schema_version", version)

	return NewSQLiteRepositoryFromDB(db), nil
}

// NewSQLiteRepositoryFromDB wraps an already migrated database.
func NewSQLiteRepositoryFromDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// InsertEntry stores the entry and queues it for remote sync in one transaction.
func (r *SQLiteRepository) InsertEntry(ctx context.Context, ownerID string, e core.TimeEntry) (Written, error) {
	if err := e.Validate(); err != nil {
		return Written{}, fmt.Errorf("validation failed: %w", err)
	}
	var w Written
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		now := r.now().Unix()
		res, err := tx.ExecContext(ctx, insertEntrySQL,
			e.ID, ownerID, e.Date.String(), e.Project, e.Document, e.Hours.String(), e.Description, now)
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert entry id: %w", err)
		}
		w.RecordRef = strconv.FormatInt(seq, 10)
		w.QueueID, err = enqueue(ctx, tx, ownerID, OpInsert, e.ID, e.Date.String(), now)
		return err
	})
	if err != nil {
		return Written{}, err
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"id", e.ID,
		"seq", w.RecordRef,
		"date", e.Date.String(),
		"hours", e.Hours.String())
	return w, nil
}

// ReplaceDayEntries swaps every entry of the owner's date for entries and queues
// a day replacement for remote sync.
func (r *SQLiteRepository) ReplaceDayEntries(ctx context.Context, ownerID string, d core.Date, entries []core.TimeEntry) (int64, error) {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return 0, fmt.Errorf("validation failed: %w", err)
		}
		if !e.Date.Same(d) {
			return 0, fmt.Errorf("entry %s is dated %s, not %s", e.ID, e.Date, d)
		}
	}
	var queueID int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		now := r.now().Unix()
		if _, err := tx.ExecContext(ctx, deleteEntriesByDaySQL, ownerID, d.String()); err != nil {
			return fmt.Errorf("delete day entries: %w", err)
		}
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, insertEntrySQL,
				e.ID, ownerID, e.Date.String(), e.Project, e.Document, e.Hours.String(), e.Description, now); err != nil {
				return fmt.Errorf("insert entry %s: %w", e.ID, err)
			}
		}
		var err error
		queueID, err = enqueue(ctx, tx, ownerID, OpReplaceDay, "", d.String(), now)
		return err
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Day replaced in SQLite", "date", d.String(), "count", len(entries))
	return queueID, nil
}

// DeleteOwnerEntries removes every entry of the owner and queues a remote reset.
func (r *SQLiteRepository) DeleteOwnerEntries(ctx context.Context, ownerID string) (int64, error) {
	var queueID int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		now := r.now().Unix()
		if _, err := tx.ExecContext(ctx, deleteEntriesByOwnerSQL, ownerID); err != nil {
			return fmt.Errorf("delete owner entries: %w", err)
		}
		var err error
		queueID, err = enqueue(ctx, tx, ownerID, OpReset, "", "", now)
		return err
	})
	return queueID, err
}

// ListByOwner implements sheets.EntryLister
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]core.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, listEntriesByOwnerSQL, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return scanEntries(rows)
}

// EntriesForDay returns the owner's entries dated d.
func (r *SQLiteRepository) EntriesForDay(ctx context.Context, ownerID string, d core.Date) ([]core.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, listEntriesByDaySQL, ownerID, d.String())
	if err != nil {
		return nil, fmt.Errorf("list day entries: %w", err)
	}
	return scanEntries(rows)
}

// GetEntry returns the entry with the given id or ErrNotFound.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (core.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, getEntrySQL, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TimeEntry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("get entry by id: %w", err)
	}
	return e, nil
}

// MarkSynced marks entries as written to the remote sheet.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids ...string) error {
	now := r.now().Unix()
	for _, id := range ids {
		if _, err := r.db.ExecContext(ctx, markEntrySyncedSQL, now, id); err != nil {
			return fmt.Errorf("mark entry synced: %w", err)
		}
	}
	return nil
}

// MarkSyncError flags an entry whose sync failed permanently.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, markEntrySyncErrorSQL, id); err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	slog.WarnContext(ctx, "Entry marked with sync error", "id", id)
	return nil
}

// List implements sheets.CatalogReader
func (r *SQLiteRepository) List(ctx context.Context) ([]string, []string, error) {
	rows, err := r.db.QueryContext(ctx, listCatalogSQL)
	if err != nil {
		return nil, nil, fmt.Errorf("list catalog: %w", err)
	}
	defer rows.Close()

	var projects, documents []string
	for rows.Next() {
		var kind, name string
		if err := rows.Scan(&kind, &name); err != nil {
			return nil, nil, fmt.Errorf("scan catalog: %w", err)
		}
		switch kind {
		case KindProject:
			projects = append(projects, name)
		case KindDocument:
			documents = append(documents, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return projects, documents, nil
}

// ReplaceCatalog overwrites one catalog kind with names, keeping their order.
// Empty input leaves the stored catalog untouched.
func (r *SQLiteRepository) ReplaceCatalog(ctx context.Context, kind string, names []string) error {
	if kind != KindProject && kind != KindDocument {
		return fmt.Errorf("unsupported catalog kind: %s", kind)
	}
	if len(names) == 0 {
		slog.InfoContext(ctx, "Skipping empty catalog refresh", "kind", kind)
		return nil
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteCatalogKindSQL, kind); err != nil {
			return fmt.Errorf("clear %s catalog: %w", kind, err)
		}
		pos := 0
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			pos++
			if _, err := tx.ExecContext(ctx, insertCatalogSQL, kind, name, pos); err != nil {
				return fmt.Errorf("insert %s %q: %w", kind, name, err)
			}
		}
		return nil
	})
}

// LoadSnapshot implements sheets.SnapshotStore
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context, key string) ([]core.TimeEntry, bool, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, loadSnapshotSQL, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	entries, err := decodeSnapshot([]byte(payload))
	if err != nil {
		return nil, false, err
	}
	return entries, true, nil
}

// SaveSnapshot implements sheets.SnapshotStore
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, key string, entries []core.TimeEntry) error {
	payload, err := encodeSnapshot(entries)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, saveSnapshotSQL, key, string(payload), r.now().Unix()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (core.TimeEntry, error) {
	var id, date, project, document, hours, description string
	if err := s.Scan(&id, &date, &project, &document, &hours, &description); err != nil {
		return core.TimeEntry{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("entry %s: bad date %q", id, date)
	}
	h, err := decimal.NewFromString(hours)
	if err != nil {
		return core.TimeEntry{}, fmt.Errorf("entry %s: bad hours %q", id, hours)
	}
	return core.TimeEntry{ID: id, Date: d, Project: project, Document: document, Hours: h, Description: description}, nil
}

func scanEntries(rows *sql.Rows) ([]core.TimeEntry, error) {
	defer rows.Close()
	var out []core.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func encodeSnapshot(entries []core.TimeEntry) ([]byte, error) {
	if entries == nil {
		entries = []core.TimeEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return b, nil
}

func decodeSnapshot(b []byte) ([]core.TimeEntry, error) {
	var entries []core.TimeEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("decode snapshot: entry %d: %w", i, err)
		}
	}
	return entries, nil
}
