package sheets

import (
	"context"

	"timesheet/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryWriter inserts one entry for an owner and returns the record id
	// assigned by the backend.
	EntryWriter interface {
		Insert(ctx context.Context, ownerID string, e core.TimeEntry) (recordRef string, err error)
	}

	// DayReplacer swaps every stored entry of an owner's date for a new set.
	DayReplacer interface {
		ReplaceDay(ctx context.Context, ownerID string, d core.Date, entries []core.TimeEntry) error
	}

	// EntryLister returns the stored entries of an owner.
	EntryLister interface {
		ListByOwner(ctx context.Context, ownerID string) ([]core.TimeEntry, error)
	}

	// EntryResetter deletes every stored entry of an owner.
	EntryResetter interface {
		DeleteByOwner(ctx context.Context, ownerID string) error
	}

	// CatalogReader returns the selectable projects and documents.
	CatalogReader interface {
		List(ctx context.Context) (projects []string, documents []string, err error)
	}

	// SnapshotStore keeps the whole entry list under a fixed key.
	SnapshotStore interface {
		LoadSnapshot(ctx context.Context, key string) (entries []core.TimeEntry, found bool, err error)
		SaveSnapshot(ctx context.Context, key string, entries []core.TimeEntry) error
	}
)
