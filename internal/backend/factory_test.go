package backend

import (
	"context"
	"path/filepath"
	"testing"

	"timesheet/internal/config"
	"timesheet/internal/core"
	"timesheet/internal/storage"
)

func TestBackendType_IsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		if !bt.IsValid() {
			t.Errorf("%s should be valid", bt)
		}
	}
	if BackendType("postgres").IsValid() {
		t.Error("postgres should not be valid")
	}
	if got := GetBackendTypeStrings(); len(got) != 3 {
		t.Errorf("GetBackendTypeStrings() = %v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sheets without id", Config{Type: SheetsBackend, GoogleSheetName: "Timesheet"}, true},
		{"sheets without name", Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc"}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("nil config should fail")
	}

	app := &config.Config{
		DataBackend:  "sqlite",
		SQLiteDBPath: "/tmp/t.db",
		SnapshotPath: "/tmp/snaps",
		Policy:       config.Policy{Projects: []string{"Apollo"}},
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SnapshotDir != "/tmp/snaps" || len(cfg.Projects) != 1 {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}

	app.DataBackend = "csv"
	if _, err := FromAppConfig(app); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	projects, documents, err := res.Backend.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 3 || len(documents) != 3 {
		t.Errorf("default catalog = %v / %v", projects, documents)
	}
	if res.Snapshots == nil {
		t.Error("memory backend should provide snapshots")
	}
}

func TestCreateBackend_CatalogOverride(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:          MemoryBackend,
		DataDirectory: t.TempDir(),
		Projects:      []string{"Apollo", "Gemini"},
	})
	if err != nil {
		t.Fatal(err)
	}

	projects, documents, err := res.Backend.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 2 || projects[0] != "Apollo" {
		t.Errorf("projects = %v", projects)
	}
	if len(documents) != 3 {
		t.Errorf("documents should fall back to the backend, got %v", documents)
	}
}

func TestCreateBackend_FileSnapshots(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	res, err := NewFactory(nil).CreateBackend(ctx, Config{
		Type:          MemoryBackend,
		DataDirectory: dir,
		SnapshotDir:   filepath.Join(dir, "snaps"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Snapshots.(*storage.FileSnapshotStore); !ok {
		t.Errorf("Snapshots = %T, want *storage.FileSnapshotStore", res.Snapshots)
	}
}

func TestCreateBackend_SQLite(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "timesheet.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: dbPath})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	if res.Ping == nil {
		t.Fatal("sqlite backend should be pingable")
	}
	if err := res.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	e := core.TimeEntry{ID: core.NewID(), Date: core.NewDate(2024, 3, 4), Project: "Project A", Hours: core.Hours(2)}
	if _, err := res.Backend.Insert(ctx, "alice", e); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	got, err := res.Backend.ListByOwner(ctx, "alice")
	if err != nil || len(got) != 1 {
		t.Fatalf("ListByOwner() = %v, %v", got, err)
	}
}

func TestCreateBackend_Invalid(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "csv"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
