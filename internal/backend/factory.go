package backend

import (
	"context"
	"fmt"

	"timesheet/internal/adapters"
	"timesheet/internal/amqp"
	"timesheet/internal/cache"
	"timesheet/internal/log"
	"timesheet/internal/sheets"
	gsheet "timesheet/internal/sheets/google"
	"timesheet/internal/sheets/memory"
	"timesheet/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.SnapshotDir != "" {
		snaps, err := storage.NewFileSnapshotStore(config.SnapshotDir)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
		}
		res.Snapshots = snaps
		f.logger.Info("Using file snapshots", "dir", config.SnapshotDir)
	}
	if len(config.Projects) > 0 || len(config.Documents) > 0 {
		res.Backend = withCatalog(res.Backend, overrideCatalog{
			base:      res.Backend,
			projects:  config.Projects,
			documents: config.Documents,
		})
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// A nil interface, not a typed nil, keeps the adapter from publishing.
	var publisher adapters.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", log.FieldError, err)
		} else {
			publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	adapter := adapters.NewSQLiteAdapter(repo, publisher)

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend:   adapter,
		Snapshots: adapter,
		Cleanup:   adapter.Close,
		Ping:      adapter.Ping,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		SheetName:          config.GoogleSheetName,
		CatalogSheetName:   config.GoogleCatalogSheetName,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	ttl := config.CatalogTTL
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	catalog := cache.NewCatalogCache(cli, ttl)

	// Sheets has no key/value area; snapshots stay in process unless a
	// snapshot directory is configured.
	f.logger.InfoContext(ctx, "Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &BackendResult{
		Backend:   withCatalog(cli, catalog),
		Snapshots: memory.New(nil, nil),
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Backend:   store,
		Snapshots: store,
	}, nil
}

// catalogBackend swaps the catalog of a backend.
type catalogBackend struct {
	Backend
	catalog sheets.CatalogReader
}

func withCatalog(b Backend, c sheets.CatalogReader) Backend {
	return catalogBackend{Backend: b, catalog: c}
}

func (b catalogBackend) List(ctx context.Context) ([]string, []string, error) {
	return b.catalog.List(ctx)
}

// overrideCatalog serves configured lists and falls back to the backend for
// whichever list is not configured.
type overrideCatalog struct {
	base      sheets.CatalogReader
	projects  []string
	documents []string
}

func (o overrideCatalog) List(ctx context.Context) ([]string, []string, error) {
	projects, documents := o.projects, o.documents
	if len(projects) > 0 && len(documents) > 0 {
		return clone(projects), clone(documents), nil
	}
	baseProjects, baseDocuments, err := o.base.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(projects) == 0 {
		projects = baseProjects
	}
	if len(documents) == 0 {
		documents = baseDocuments
	}
	return clone(projects), clone(documents), nil
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
