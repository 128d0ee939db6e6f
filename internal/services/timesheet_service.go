package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"timesheet/internal/anomaly"
	"timesheet/internal/core"
	"timesheet/internal/entries"
	"timesheet/internal/log"
	"timesheet/internal/sheets"
)

// DefaultSnapshotKey is the key the whole entry list is cached under.
const DefaultSnapshotKey = "timesheet-entries"

const defaultPersistTimeout = 15 * time.Second

// Persistence is the write-through collaborator behind the in-memory store.
type Persistence interface {
	sheets.EntryWriter
	sheets.DayReplacer
	sheets.EntryResetter
	sheets.EntryLister
}

// Options wires a TimesheetService. Only Store and Guard are required.
type Options struct {
	Store          *entries.Store
	Guard          *core.Guard
	Aggregator     core.Aggregator
	Persistence    Persistence
	Catalog        sheets.CatalogReader
	Snapshots      sheets.SnapshotStore
	SnapshotKey    string
	Checker        anomaly.Checker
	OwnerID        string
	UserName       string
	PersistTimeout time.Duration
	Logger         *log.Logger
}

// Result is what a mutation returns: the accepted entries, the summaries
// recomputed right after the mutation, and a persistence warning if the
// write-through failed. A warning never undoes the mutation.
type Result struct {
	Entries   []core.TimeEntry
	Summaries core.SummarySet
	Warning   error
}

// TimesheetService runs validate, store, persist and recompute as one unit per
// user action.
type TimesheetService struct {
	mu sync.Mutex

	store          *entries.Store
	guard          *core.Guard
	aggregator     core.Aggregator
	persistence    Persistence
	catalog        sheets.CatalogReader
	snapshots      sheets.SnapshotStore
	snapshotKey    string
	checker        anomaly.Checker
	ownerID        string
	userName       string
	persistTimeout time.Duration
	logger         *log.Logger

	ready atomic.Bool
}

func NewTimesheetService(opts Options) *TimesheetService {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	key := opts.SnapshotKey
	if key == "" {
		key = DefaultSnapshotKey
	}
	timeout := opts.PersistTimeout
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	store := opts.Store
	if store == nil {
		store, _ = entries.New(nil)
	}
	guard := opts.Guard
	if guard == nil {
		guard = core.NewGuard(core.DefaultDailyCap, core.DefaultDatePolicy())
	}
	return &TimesheetService{
		store:          store,
		guard:          guard,
		aggregator:     opts.Aggregator,
		persistence:    opts.Persistence,
		catalog:        opts.Catalog,
		snapshots:      opts.Snapshots,
		snapshotKey:    key,
		checker:        opts.Checker,
		ownerID:        opts.OwnerID,
		userName:       opts.UserName,
		persistTimeout: timeout,
		logger:         logger.WithComponent(log.ComponentTimesheet),
	}
}

// Load hydrates the store once at startup: from the snapshot when one exists,
// otherwise from the persistence collaborator by owner. Collaborator failures
// leave the store empty and are logged.
func (s *TimesheetService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.ready.Store(true)

	logger := s.logger.With(log.FieldOperation, log.OpLoad, log.FieldOwner, s.ownerID)

	if s.snapshots != nil {
		list, found, err := s.snapshots.LoadSnapshot(ctx, s.snapshotKey)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "Snapshot unreadable, falling back to backend", log.FieldError, err)
		case found:
			if err := s.store.Load(list); err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}
			logger.InfoContext(ctx, "Entries restored from snapshot", log.FieldCount, len(list))
			return nil
		}
	}

	if s.persistence == nil {
		logger.InfoContext(ctx, "Starting with an empty timesheet")
		return nil
	}

	list, err := s.persistence.ListByOwner(ctx, s.ownerID)
	if err != nil {
		logger.WarnContext(ctx, "Backend query failed, starting empty",
			log.FieldError, fmt.Errorf("%w: %w", core.ErrPersistence, err))
		return nil
	}
	if err := s.store.Load(list); err != nil {
		return fmt.Errorf("load backend entries: %w", err)
	}
	logger.InfoContext(ctx, "Entries loaded from backend", log.FieldCount, len(list))
	return nil
}

// Ready reports whether Load has run.
func (s *TimesheetService) Ready() bool {
	return s.ready.Load()
}

// Submit validates c against the entries of its date, appends it and writes
// it through. A zero ref recomputes summaries for today.
func (s *TimesheetService) Submit(ctx context.Context, c core.Candidate, ref core.Date) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.guard.Validate(c, s.store.ForDate(c.Date))
	if err != nil {
		s.logger.InfoContext(ctx, "Entry rejected",
			log.FieldOperation, log.OpSubmit,
			log.FieldDate, c.Date.String(),
			log.FieldError, err)
		return nil, err
	}
	if err := s.store.Append(e); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Entry accepted", log.NewFields().
		WithOperation(log.OpSubmit).
		WithEntry(e.ID, e.Date.String(), e.Project, e.Hours).
		ToSlice()...)

	warning := s.writeThrough(ctx, log.OpSubmit, func(ctx context.Context) error {
		recordRef, err := s.persistence.Insert(ctx, s.ownerID, e)
		if err == nil {
			s.logger.DebugContext(ctx, "Entry persisted", log.FieldEntryID, e.ID, log.FieldSheetsRef, recordRef)
		}
		return err
	})
	return s.result([]core.TimeEntry{e}, ref, warning), nil
}

// ReplaceDay swaps every entry of d for the validated candidates. The daily cap
// applies to the replacement set as a whole. An empty set clears the day.
func (s *TimesheetService) ReplaceDay(ctx context.Context, d core.Date, candidates []core.Candidate, ref core.Date) (*Result, error) {
	if d.IsZero() {
		return nil, &core.ValidationError{Kind: core.ErrMissingField, Field: "date", Message: "date is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	accepted, err := s.guard.ValidateDay(d, candidates)
	if err != nil {
		s.logger.InfoContext(ctx, "Day replacement rejected",
			log.FieldOperation, log.OpReplaceDay,
			log.FieldDate, d.String(),
			log.FieldError, err)
		return nil, err
	}
	if err := s.store.ReplaceForDate(d, accepted); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Day replaced",
		log.FieldOperation, log.OpReplaceDay,
		log.FieldDate, d.String(),
		log.FieldCount, len(accepted),
		log.FieldHours, core.SumHours(accepted).String())

	warning := s.writeThrough(ctx, log.OpReplaceDay, func(ctx context.Context) error {
		return s.persistence.ReplaceDay(ctx, s.ownerID, d, accepted)
	})
	return s.result(accepted, ref, warning), nil
}

// Reset empties the store and deletes the owner's persisted entries.
func (s *TimesheetService) Reset(ctx context.Context, ref core.Date) *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.store.Len()
	s.store.Reset()
	s.logger.InfoContext(ctx, "Timesheet reset", log.FieldOperation, log.OpReset, log.FieldCount, n)

	warning := s.writeThrough(ctx, log.OpReset, func(ctx context.Context) error {
		return s.persistence.DeleteByOwner(ctx, s.ownerID)
	})
	return s.result(nil, ref, warning)
}

// Precheck runs the Guard on c against the entries already logged for its
// date without storing anything. Callers use it before asking for an anomaly
// confirmation so that only acceptable entries are ever confirmed.
func (s *TimesheetService) Precheck(c core.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.guard.Validate(c, s.store.ForDate(c.Date))
	return err
}

// CheckAnomaly asks the advisory checker about c. Any failure counts as
// "no anomaly" so the submit can go ahead.
func (s *TimesheetService) CheckAnomaly(ctx context.Context, c core.Candidate) anomaly.Result {
	if s.checker == nil || !c.Hours.Valid || c.Date.IsZero() {
		return anomaly.Result{}
	}
	res, err := s.checker.Check(ctx, anomaly.Request{
		Date:     c.Date,
		Project:  c.Project,
		Hours:    c.Hours.Decimal,
		UserName: s.userName,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Anomaly check failed, treating as no anomaly",
			log.FieldOperation, log.OpAdvise,
			log.FieldError, fmt.Errorf("%w: %w", core.ErrRemoteAdvisory, err))
		return anomaly.Result{}
	}
	return res
}

// Summaries recomputes all three buckets for ref.
func (s *TimesheetService) Summaries(ref core.Date) core.SummarySet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregator.AggregateAll(s.store.All(), s.refOrToday(ref))
}

// Summary recomputes a single bucket for ref.
func (s *TimesheetService) Summary(b core.Bucket, ref core.Date) core.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregator.Aggregate(s.store.All(), b, s.refOrToday(ref))
}

// Entries returns a copy of every entry in store order.
func (s *TimesheetService) Entries() []core.TimeEntry {
	return s.store.All()
}

// EntriesFor returns the entries dated d.
func (s *TimesheetService) EntriesFor(d core.Date) []core.TimeEntry {
	return s.store.ForDate(d)
}

// Catalog returns the selectable projects and documents.
func (s *TimesheetService) Catalog(ctx context.Context) ([]string, []string, error) {
	if s.catalog == nil {
		return nil, nil, nil
	}
	return s.catalog.List(ctx)
}

// DailyCap is the cap the guard enforces.
func (s *TimesheetService) DailyCap() string {
	return core.FormatHours(s.guard.DailyCap)
}

func (s *TimesheetService) result(accepted []core.TimeEntry, ref core.Date, warning error) *Result {
	return &Result{
		Entries:   accepted,
		Summaries: s.aggregator.AggregateAll(s.store.All(), s.refOrToday(ref)),
		Warning:   warning,
	}
}

func (s *TimesheetService) refOrToday(ref core.Date) core.Date {
	if ref.IsZero() {
		return core.Today()
	}
	return ref
}

// writeThrough runs the backend write and saves the snapshot. Neither may be
// cancelled by the caller once issued, so they run on a detached context with
// their own timeout. Failures come back as one ErrPersistence warning.
func (s *TimesheetService) writeThrough(ctx context.Context, op string, write func(context.Context) error) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	var errs []error
	if s.persistence != nil {
		if err := write(pctx); err != nil {
			errs = append(errs, fmt.Errorf("backend: %w", err))
		}
	}
	if s.snapshots != nil {
		if err := s.snapshots.SaveSnapshot(pctx, s.snapshotKey, s.store.All()); err != nil {
			errs = append(errs, fmt.Errorf("snapshot: %w", err))
		}
	}
	if len(errs) == 0 {
		return nil
	}

	warning := fmt.Errorf("%w: %w", core.ErrPersistence, errors.Join(errs...))
	s.logger.WarnContext(ctx, "Write-through failed, entry kept in memory",
		log.FieldOperation, op,
		log.FieldError, warning)
	return warning
}
