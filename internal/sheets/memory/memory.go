package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"timesheet/internal/core"
	ports "timesheet/internal/sheets"
)

var (
	_ ports.EntryWriter   = (*Store)(nil)
	_ ports.DayReplacer   = (*Store)(nil)
	_ ports.EntryLister   = (*Store)(nil)
	_ ports.EntryResetter = (*Store)(nil)
	_ ports.CatalogReader = (*Store)(nil)
	_ ports.SnapshotStore = (*Store)(nil)
)

// Store is the in-process persistence backend. It keeps entries per owner and
// snapshots per key.
type Store struct {
	mu        sync.Mutex
	projects  []string
	documents []string
	byOwner   map[string][]core.TimeEntry
	snapshots map[string][]core.TimeEntry
	inserted  int
}

func New(projects, documents []string) *Store {
	return &Store{
		projects:  dedupe(projects),
		documents: dedupe(documents),
		byOwner:   make(map[string][]core.TimeEntry),
		snapshots: make(map[string][]core.TimeEntry),
	}
}

// NewFromFiles seeds the catalog from seed_projects.txt and seed_documents.txt
// in base, falling back to a small default catalog.
func NewFromFiles(base string) *Store {
	projects := readLines(filepath.Join(base, "seed_projects.txt"))
	documents := readLines(filepath.Join(base, "seed_documents.txt"))
	if len(projects) == 0 {
		projects = []string{"Project A", "Project B", "Project C"}
	}
	if len(documents) == 0 {
		documents = []string{"Document 1", "Document 2", "Document 3"}
	}
	return New(projects, documents)
}

// Insert stores the entry and returns a synthetic record reference.
func (s *Store) Insert(_ context.Context, ownerID string, e core.TimeEntry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byOwner[ownerID] {
		if existing.ID == e.ID {
			return "", fmt.Errorf("%w: %s", core.ErrDuplicateID, e.ID)
		}
	}
	s.byOwner[ownerID] = append(s.byOwner[ownerID], e)
	s.inserted++
	return fmt.Sprintf("mem:%d", s.inserted), nil
}

func (s *Store) ReplaceDay(_ context.Context, ownerID string, d core.Date, entries []core.TimeEntry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := make([]core.TimeEntry, 0, len(s.byOwner[ownerID])+len(entries))
	for _, e := range s.byOwner[ownerID] {
		if !e.Date.Same(d) {
			kept = append(kept, e)
		}
	}
	s.byOwner[ownerID] = append(kept, entries...)
	return nil
}

func (s *Store) ListByOwner(_ context.Context, ownerID string) ([]core.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Clone(s.byOwner[ownerID]), nil
}

func (s *Store) DeleteByOwner(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byOwner, ownerID)
	return nil
}

// List returns projects and documents.
func (s *Store) List(_ context.Context) ([]string, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.projects...), append([]string(nil), s.documents...), nil
}

func (s *Store) LoadSnapshot(_ context.Context, key string) ([]core.TimeEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.snapshots[key]
	return core.Clone(entries), ok, nil
}

func (s *Store) SaveSnapshot(_ context.Context, key string, entries []core.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[key] = core.Clone(entries)
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
