package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"timesheet/internal/anomaly"
	"timesheet/internal/core"
	"timesheet/internal/entries"
)

var june10 = core.NewDate(2024, 6, 10)

func candidate(d core.Date, project string, hours int64) core.Candidate {
	return core.Candidate{Date: d, Project: project, Hours: core.NullHours(hours)}
}

type fixture struct {
	svc       *TimesheetService
	store     *entries.Store
	persist   *mockPersistence
	snapshots *mockSnapshots
	checker   *mockChecker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := entries.New(nil)
	require.NoError(t, err)

	n := 0
	guard := core.NewGuard(core.DefaultDailyCap, core.DefaultDatePolicy())
	guard.NewID = func() string {
		n++
		return "id-" + string(rune('0'+n))
	}

	f := &fixture{
		store:     store,
		persist:   &mockPersistence{},
		snapshots: &mockSnapshots{},
		checker:   &mockChecker{},
	}
	f.svc = NewTimesheetService(Options{
		Store:       store,
		Guard:       guard,
		Persistence: f.persist,
		Snapshots:   f.snapshots,
		Checker:     f.checker,
		OwnerID:     "local",
		UserName:    "ada",
	})
	return f
}

func TestSubmit_ScenarioA(t *testing.T) {
	f := newFixture(t)
	f.persist.On("Insert", mock.Anything, "local", mock.Anything).Return("mem:1", nil)
	f.snapshots.On("SaveSnapshot", mock.Anything, DefaultSnapshotKey, mock.Anything).Return(nil)

	_, err := f.svc.Submit(context.Background(), candidate(june10, "Project A", 3), june10)
	require.NoError(t, err)
	res, err := f.svc.Submit(context.Background(), candidate(june10, "Project B", 5), june10)
	require.NoError(t, err)
	require.NoError(t, res.Warning)

	daily := res.Summaries.Daily
	assert.Equal(t, map[string]string{"Project A": "3", "Project B": "5"}, labeledStrings(daily))
	assert.Equal(t, "8", daily.Total.String())

	f.persist.AssertNumberOfCalls(t, "Insert", 2)
	f.snapshots.AssertNumberOfCalls(t, "SaveSnapshot", 2)
}

func TestSubmit_ScenarioB_CapReportsLoggedHours(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Append(core.TimeEntry{ID: "a", Date: june10, Project: "Project A", Hours: core.Hours(3)}))
	require.NoError(t, f.store.Append(core.TimeEntry{ID: "b", Date: june10, Project: "Project B", Hours: core.Hours(5)}))

	_, err := f.svc.Submit(context.Background(), core.Candidate{Date: june10, Hours: core.NullHours(1)}, june10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDailyCapExceeded))

	var ve *core.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "8", ve.Logged.String())
	assert.Equal(t, 2, f.store.Len())
	f.persist.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_ScenarioD_MissingProjectLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), candidate(june10, "  ", 2), june10)
	assert.ErrorIs(t, err, core.ErrMissingField)
	assert.Equal(t, 0, f.store.Len())
	f.snapshots.AssertNotCalled(t, "SaveSnapshot", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmit_PersistenceFailureKeepsEntry(t *testing.T) {
	f := newFixture(t)
	f.persist.On("Insert", mock.Anything, "local", mock.Anything).Return("", errors.New("sheet unavailable"))
	f.snapshots.On("SaveSnapshot", mock.Anything, DefaultSnapshotKey, mock.Anything).Return(nil)

	res, err := f.svc.Submit(context.Background(), candidate(june10, "Project A", 4), june10)
	require.NoError(t, err)
	require.Error(t, res.Warning)
	assert.ErrorIs(t, res.Warning, core.ErrPersistence)
	assert.Contains(t, res.Warning.Error(), "sheet unavailable")

	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, "4", res.Summaries.Daily.Total.String())
}

func TestSubmit_SnapshotFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	f.persist.On("Insert", mock.Anything, "local", mock.Anything).Return("mem:1", nil)
	f.snapshots.On("SaveSnapshot", mock.Anything, DefaultSnapshotKey, mock.Anything).Return(errors.New("disk full"))

	res, err := f.svc.Submit(context.Background(), candidate(june10, "Project A", 4), june10)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Warning, core.ErrPersistence)
	assert.Equal(t, 1, f.store.Len())
}

func TestSubmit_PersistsDetachedFromCaller(t *testing.T) {
	f := newFixture(t)
	var persistCtxErr error
	f.persist.On("Insert", mock.Anything, "local", mock.Anything).
		Run(func(args mock.Arguments) { persistCtxErr = args.Get(0).(context.Context).Err() }).
		Return("mem:1", nil)
	f.snapshots.On("SaveSnapshot", mock.Anything, DefaultSnapshotKey, mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.svc.Submit(ctx, candidate(june10, "Project A", 1), june10)
	require.NoError(t, err)
	assert.NoError(t, persistCtxErr)
}

func TestReplaceDay(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Append(core.TimeEntry{ID: "a", Date: june10, Project: "Project A", Hours: core.Hours(3)}))
	require.NoError(t, f.store.Append(core.TimeEntry{ID: "b", Date: june10.AddDays(1), Project: "Project B", Hours: core.Hours(5)}))

	f.persist.On("ReplaceDay", mock.Anything, "local", june10, mock.Anything).Return(nil)
	f.snapshots.On("SaveSnapshot", mock.Anything, DefaultSnapshotKey, mock.Anything).Return(nil)

	res, err := f.svc.ReplaceDay(context.Background(), june10, []core.Candidate{
		{Project: "Project C", Hours: core.NullHours(6)},
		{Project: "Project A", Hours: core.NullHours(2), Description: "review"},
	}, june10)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.True(t, res.Entries[0].Date.Same(june10))

	day := f.svc.EntriesFor(june10)
	require.Len(t, day, 2)
	assert.Equal(t, "Project C", day[0].Project)
	assert.Equal(t, 3, f.store.Len())
}

func TestReplaceDay_CapAppliesToWholeSet(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Append(core.TimeEntry{ID: "a", Date: june10, Project: "Project A", Hours: core.Hours(8)}))

	_, err := f.svc.ReplaceDay(context.Background(), june10, []core.Candidate{
		{Project: "Project A", Hours: core.NullHours(5)},
		{Project: "Project B", Hours: core.NullHours(4)},
	}, june10)
	assert.ErrorIs(t, err, core.ErrDailyCapExceeded)

	day := f.svc.EntriesFor(june10)
	require.Len(t, day, 1)
	assert.Equal(t, "a", day[0].ID)
}

func TestReplaceDay_EmptySetClearsDay(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Append(core.TimeEntry{ID: "a", Date: june10, Project: "Project A", Hours: core.Hours(8)}))
	f.persist.On("ReplaceDay", mock.Anything, "local", june10, mock.Anything).Return(nil)
	f.snapshots.On("SaveSnapshot", mock.Anything, DefaultSnapshotKey, mock.Anything).Return(nil)

	res, err := f.svc.ReplaceDay(context.Background(), june10, nil, june10)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.Equal(t, 0, f.store.Len())
	assert.True(t, res.Summaries.Daily.Total.IsZero())
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Append(core.TimeEntry{ID: "a", Date: june10, Project: "Project A", Hours: core.Hours(8)}))
	f.persist.On("DeleteByOwner", mock.Anything, "local").Return(errors.New("offline"))
	f.snapshots.On("SaveSnapshot", mock.Anything, DefaultSnapshotKey, mock.Anything).Return(nil)

	res := f.svc.Reset(context.Background(), june10)
	assert.ErrorIs(t, res.Warning, core.ErrPersistence)
	assert.Equal(t, 0, f.store.Len())
}

func TestLoad_PrefersSnapshot(t *testing.T) {
	f := newFixture(t)
	snap := []core.TimeEntry{{ID: "s1", Date: june10, Project: "Project A", Hours: core.Hours(2)}}
	f.snapshots.On("LoadSnapshot", mock.Anything, DefaultSnapshotKey).Return(snap, true, nil)

	require.False(t, f.svc.Ready())
	require.NoError(t, f.svc.Load(context.Background()))
	assert.True(t, f.svc.Ready())
	assert.Equal(t, snap, f.svc.Entries())
	f.persist.AssertNotCalled(t, "ListByOwner", mock.Anything, mock.Anything)
}

func TestLoad_FallsBackToBackend(t *testing.T) {
	f := newFixture(t)
	remote := []core.TimeEntry{{ID: "r1", Date: june10, Project: "Project B", Hours: core.Hours(5)}}
	f.snapshots.On("LoadSnapshot", mock.Anything, DefaultSnapshotKey).Return(nil, false, nil)
	f.persist.On("ListByOwner", mock.Anything, "local").Return(remote, nil)

	require.NoError(t, f.svc.Load(context.Background()))
	assert.Equal(t, remote, f.svc.Entries())
}

func TestLoad_BackendFailureStartsEmpty(t *testing.T) {
	f := newFixture(t)
	f.snapshots.On("LoadSnapshot", mock.Anything, DefaultSnapshotKey).Return(nil, false, errors.New("corrupt"))
	f.persist.On("ListByOwner", mock.Anything, "local").Return(nil, errors.New("offline"))

	require.NoError(t, f.svc.Load(context.Background()))
	assert.True(t, f.svc.Ready())
	assert.Empty(t, f.svc.Entries())
}

func TestPrecheck(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Append(core.TimeEntry{ID: "a", Date: june10, Project: "Project A", Hours: core.Hours(6)}))

	assert.NoError(t, f.svc.Precheck(candidate(june10, "Project B", 2)))
	assert.ErrorIs(t, f.svc.Precheck(candidate(june10, "Project B", 3)), core.ErrDailyCapExceeded)
	assert.ErrorIs(t, f.svc.Precheck(candidate(june10, "", 1)), core.ErrMissingField)
	assert.NoError(t, f.svc.Precheck(candidate(june10.AddDays(1), "Project B", 8)), "other dates do not count")

	assert.Len(t, f.svc.Entries(), 1, "precheck never stores")
	f.persist.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckAnomaly(t *testing.T) {
	t.Run("confirmation needed", func(t *testing.T) {
		f := newFixture(t)
		f.checker.On("Check", mock.Anything, mock.MatchedBy(func(r anomaly.Request) bool {
			return r.UserName == "ada" && r.Project == "Project A" && r.Hours.Equal(core.Hours(12))
		})).Return(anomaly.Result{ConfirmationNeeded: true, Reason: "long day"}, nil)

		got := f.svc.CheckAnomaly(context.Background(), candidate(june10, "Project A", 12))
		assert.True(t, got.ConfirmationNeeded)
		assert.Equal(t, "long day", got.Reason)
	})

	t.Run("failure means no anomaly", func(t *testing.T) {
		f := newFixture(t)
		f.checker.On("Check", mock.Anything, mock.Anything).Return(anomaly.Result{}, errors.New("timeout"))

		got := f.svc.CheckAnomaly(context.Background(), candidate(june10, "Project A", 12))
		assert.False(t, got.ConfirmationNeeded)
	})

	t.Run("incomplete candidate is not checked", func(t *testing.T) {
		f := newFixture(t)
		got := f.svc.CheckAnomaly(context.Background(), core.Candidate{Date: june10, Project: "Project A"})
		assert.False(t, got.ConfirmationNeeded)
		f.checker.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
	})
}

func TestService_WithoutCollaborators(t *testing.T) {
	svc := NewTimesheetService(Options{})
	res, err := svc.Submit(context.Background(), candidate(june10, "Project A", 2), june10)
	require.NoError(t, err)
	assert.NoError(t, res.Warning)
	assert.Equal(t, "2", svc.Summary(core.Monthly, june10).Total.String())

	projects, documents, err := svc.Catalog(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, projects)
	assert.Nil(t, documents)
}

func labeledStrings(s core.Summary) map[string]string {
	out := make(map[string]string)
	for k, v := range s.Labeled() {
		out[k] = v.String()
	}
	return out
}
