// Package entries holds the authoritative in-memory list of time entries for a
// session. Entries are never modified in place: the store only appends, swaps
// out every entry of a date, or resets.
package entries

import (
	"fmt"
	"sync"

	"timesheet/internal/core"
)

// Store is an ordered collection of time entries with unique ids.
type Store struct {
	mu      sync.RWMutex
	entries []core.TimeEntry
	version uint64
}

// New returns a store holding a copy of initial. Duplicate ids in initial are
// rejected.
func New(initial []core.TimeEntry) (*Store, error) {
	s := &Store{}
	if err := s.Load(initial); err != nil {
		return nil, err
	}
	return s, nil
}

// Append adds one entry after all others.
func (s *Store) Append(e core.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.entries {
		if existing.ID == e.ID {
			return fmt.Errorf("%w: %s", core.ErrDuplicateID, e.ID)
		}
	}
	s.entries = append(s.entries, e)
	s.version++
	return nil
}

// ReplaceForDate removes every entry dated d and appends replacement in its
// place. Readers observe either the old or the new state, never a mix.
// Entries in replacement dated other than d are rejected.
func (s *Store) ReplaceForDate(d core.Date, replacement []core.TimeEntry) error {
	ids := make(map[string]struct{}, len(replacement))
	for _, e := range replacement {
		if !e.Date.Same(d) {
			return fmt.Errorf("entry %s is dated %s, not %s", e.ID, e.Date, d)
		}
		if _, dup := ids[e.ID]; dup {
			return fmt.Errorf("%w: %s", core.ErrDuplicateID, e.ID)
		}
		ids[e.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]core.TimeEntry, 0, len(s.entries)+len(replacement))
	for _, e := range s.entries {
		if e.Date.Same(d) {
			continue
		}
		if _, clash := ids[e.ID]; clash {
			return fmt.Errorf("%w: %s", core.ErrDuplicateID, e.ID)
		}
		next = append(next, e)
	}
	next = append(next, replacement...)
	s.entries = next
	s.version++
	return nil
}

// All returns a copy of every entry in insertion order.
func (s *Store) All() []core.TimeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Clone(s.entries)
}

// Snapshot returns a copy of the entries together with the store version.
func (s *Store) Snapshot() ([]core.TimeEntry, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Clone(s.entries), s.version
}

// ForDate returns a copy of the entries dated d.
func (s *Store) ForDate(d core.Date) []core.TimeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.OnDate(s.entries, d)
}

// Get looks an entry up by id.
func (s *Store) Get(id string) (core.TimeEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return core.TimeEntry{}, false
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Version increases on every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Reset drops every entry.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.version++
}

// Load replaces the whole content of the store, e.g. from a snapshot.
func (s *Store) Load(entries []core.TimeEntry) error {
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("%w: %s", core.ErrDuplicateID, e.ID)
		}
		seen[e.ID] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = core.Clone(entries)
	s.version++
	return nil
}
