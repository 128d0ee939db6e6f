package backend

import (
	"context"
	"time"

	"timesheet/internal/services"
	"timesheet/internal/sheets"
)

// Backend is everything the timesheet service needs from persistence.
type Backend interface {
	services.Persistence
	sheets.CatalogReader
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult is a ready backend plus the snapshot store that goes with it.
type BackendResult struct {
	Backend   Backend
	Snapshots sheets.SnapshotStore
	Cleanup   CleanupFunc

	// Ping is nil when the backend has nothing to probe.
	Ping func(context.Context) error
}

// Close runs Cleanup if there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleCatalogSheetName   string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	CatalogTTL               time.Duration

	// Memory backend seed files
	DataDirectory string

	// SnapshotDir selects file snapshots; empty uses the backend's own store.
	SnapshotDir string

	// Catalog overrides from the policy file.
	Projects  []string
	Documents []string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
