package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soochol/dbadmin/internal/config"
	"github.com/soochol/dbadmin/internal/dbadmin"
	"github.com/soochol/dbadmin/internal/eventbus"
)

// fakeAccess is an in-memory ports.DataAccess whose calls can be overridden.
type fakeAccess struct {
	mu      sync.Mutex
	records []dbadmin.DatabaseRecord
	nextID  int64
	calls   map[string]int

	listFn   func() ([]dbadmin.DatabaseRecord, error)
	getErr   error
	createFn func(rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error)
	updateFn func(rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error)
	deleteFn func(id int64) error
	syncFn   func(id int64) error
	sampleFn func() (*dbadmin.DatabaseRecord, error)
}

func newFakeAccess(records ...dbadmin.DatabaseRecord) *fakeAccess {
	f := &fakeAccess{records: records, nextID: 100, calls: make(map[string]int)}
	return f
}

func (f *fakeAccess) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAccess) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAccess) ListDatabases(context.Context) ([]dbadmin.DatabaseRecord, error) {
	f.hit("list")
	if f.listFn != nil {
		return f.listFn()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dbadmin.DatabaseRecord, len(f.records))
	for i, r := range f.records {
		out[i] = r.Clone()
	}
	return out, nil
}

func (f *fakeAccess) GetDatabase(_ context.Context, id int64) (*dbadmin.DatabaseRecord, error) {
	f.hit("get")
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			c := r.Clone()
			return &c, nil
		}
	}
	return nil, dbadmin.NotFoundf("database %d not found", id)
}

func (f *fakeAccess) CreateDatabase(_ context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
	f.hit("create")
	if f.createFn != nil {
		return f.createFn(rec)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	saved := rec.Clone()
	saved.ID = f.nextID
	saved.Created = true
	f.records = append(f.records, saved)
	out := saved.Clone()
	return &out, nil
}

func (f *fakeAccess) UpdateDatabase(_ context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
	f.hit("update")
	if f.updateFn != nil {
		return f.updateFn(rec)
	}
	out := rec.Clone()
	return &out, nil
}

func (f *fakeAccess) DeleteDatabase(_ context.Context, id int64) error {
	f.hit("delete")
	if f.deleteFn != nil {
		return f.deleteFn(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return dbadmin.NotFoundf("database %d not found", id)
}

func (f *fakeAccess) SyncMetadata(_ context.Context, id int64) error {
	f.hit("sync")
	if f.syncFn != nil {
		return f.syncFn(id)
	}
	return nil
}

func (f *fakeAccess) AddSampleDataset(context.Context) (*dbadmin.DatabaseRecord, error) {
	f.hit("sample")
	if f.sampleFn != nil {
		return f.sampleFn()
	}
	return &dbadmin.DatabaseRecord{ID: 50, Name: "Sample Dataset", Engine: "h2", IsSample: true}, nil
}

type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) Navigate(path string) {
	n.mu.Lock()
	n.paths = append(n.paths, path)
	n.mu.Unlock()
}

func (n *recordingNav) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type recordingTracker struct {
	mu     sync.Mutex
	events []dbadmin.TrackingEvent
}

func (r *recordingTracker) Track(_ context.Context, ev dbadmin.TrackingEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingTracker) all() []dbadmin.TrackingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dbadmin.TrackingEvent(nil), r.events...)
}

type fixture struct {
	access  *fakeAccess
	nav     *recordingNav
	tracker *recordingTracker
	mgr     *RegistryManager
}

func newFixture(t *testing.T, records ...dbadmin.DatabaseRecord) *fixture {
	t.Helper()
	f := &fixture{
		access:  newFakeAccess(records...),
		nav:     &recordingNav{},
		tracker: &recordingTracker{},
	}
	f.mgr = NewRegistryManager(f.access, f.nav, f.tracker, config.EngineCatalog{{Name: "mysql"}, {Name: "postgres"}, {Name: "h2"}})
	f.mgr.SetRetryPolicy(dbadmin.RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1})
	return f
}

func event(action, label string) dbadmin.TrackingEvent {
	return dbadmin.TrackingEvent{Category: dbadmin.TrackCategory, Action: action, Label: label}
}

func TestRegistryManager_FetchAllReplacesRegistry(t *testing.T) {
	records := []dbadmin.DatabaseRecord{
		{ID: 9, Name: "Zeta", Engine: "h2"},
		{ID: 2, Name: "Alpha", Engine: "postgres"},
	}
	f := newFixture(t, records...)

	require.NoError(t, f.mgr.FetchAll(context.Background()))

	assert.Equal(t, records, f.mgr.State().Registry)
}

func TestRegistryManager_FetchAllFailureLeavesState(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 1, Name: "a", Engine: "h2"})
	require.NoError(t, f.mgr.FetchAll(context.Background()))

	f.access.listFn = func() ([]dbadmin.DatabaseRecord, error) {
		return nil, dbadmin.Networkf(nil, "connection refused")
	}
	err := f.mgr.FetchAll(context.Background())

	assert.ErrorIs(t, err, dbadmin.ErrNetwork)
	assert.Len(t, f.mgr.State().Registry, 1)
	assert.Equal(t, 1+3, f.access.count("list"), "network failures are retried")
}

func TestRegistryManager_FetchAllRetriesThenSucceeds(t *testing.T) {
	f := newFixture(t)
	var attempts atomic.Int32
	f.access.listFn = func() ([]dbadmin.DatabaseRecord, error) {
		if attempts.Add(1) == 1 {
			return nil, dbadmin.Networkf(nil, "timeout")
		}
		return []dbadmin.DatabaseRecord{{ID: 3, Name: "c", Engine: "h2"}}, nil
	}

	require.NoError(t, f.mgr.FetchAll(context.Background()))
	assert.Len(t, f.mgr.State().Registry, 1)
}

func TestRegistryManager_FetchAllRejectsRecordsWithoutID(t *testing.T) {
	f := newFixture(t)
	f.access.listFn = func() ([]dbadmin.DatabaseRecord, error) {
		return []dbadmin.DatabaseRecord{{Name: "ghost", Engine: "h2"}}, nil
	}

	err := f.mgr.FetchAll(context.Background())

	assert.Equal(t, dbadmin.KindUnknown, dbadmin.KindOf(err))
	assert.Nil(t, f.mgr.State().Registry)
}

func TestRegistryManager_InitializeFreshDraftUsesFirstEngine(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.mgr.InitializeDraft(context.Background(), 0))

	st := f.mgr.State()
	require.NotNil(t, st.Draft)
	assert.Equal(t, dbadmin.DatabaseRecord{Name: "", Engine: "mysql", Details: dbadmin.Details{}, Created: false}, *st.Draft)
	assert.Zero(t, f.access.count("get"))
}

func TestRegistryManager_InitializeExistingDraft(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 4, Name: "Prod", Engine: "postgres", Details: dbadmin.Details{"host": "db"}})

	require.NoError(t, f.mgr.InitializeDraft(context.Background(), 4))

	st := f.mgr.State()
	require.NotNil(t, st.Draft)
	assert.Equal(t, int64(4), st.Draft.ID)
	assert.Equal(t, "db", st.Draft.Details["host"])
}

func TestRegistryManager_InitializeNotFoundNavigatesToList(t *testing.T) {
	f := newFixture(t)

	err := f.mgr.InitializeDraft(context.Background(), 404)

	assert.ErrorIs(t, err, dbadmin.ErrNotFound)
	assert.Equal(t, []string{dbadmin.ListPath}, f.nav.all())
	assert.Nil(t, f.mgr.State().Draft)
	assert.Equal(t, 1, f.access.count("get"), "not found is not retried")
}

func TestRegistryManager_InitializeOtherFailureOnlyLogs(t *testing.T) {
	f := newFixture(t)
	f.access.getErr = errors.New("boom")

	err := f.mgr.InitializeDraft(context.Background(), 4)

	assert.Error(t, err)
	assert.Empty(t, f.nav.all())
}

func TestRegistryManager_SelectEngineScenario(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.InitializeDraft(context.Background(), 0))

	f.mgr.SelectEngine("postgres")

	st := f.mgr.State()
	require.NotNil(t, st.Draft)
	assert.Equal(t, dbadmin.DatabaseRecord{Name: "", Engine: "postgres", Details: dbadmin.Details{}}, *st.Draft)
}

func TestRegistryManager_AddSampleDataset(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 1, Name: "a", Engine: "h2"})
	require.NoError(t, f.mgr.FetchAll(context.Background()))

	rec, err := f.mgr.AddSampleDataset(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)

	st := f.mgr.State()
	require.Len(t, st.Registry, 2)
	assert.True(t, st.Registry[1].IsSample)
	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackAddSample, "")}, f.tracker.all())
}

func TestRegistryManager_AddSampleDatasetFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.access.sampleFn = func() (*dbadmin.DatabaseRecord, error) {
		return nil, dbadmin.Networkf(nil, "unreachable")
	}

	_, err := f.mgr.AddSampleDataset(context.Background())

	assert.Error(t, err)
	st := f.mgr.State()
	require.NotNil(t, st.FormResult.Error)
	assert.Equal(t, dbadmin.KindNetwork, st.FormResult.Error.Kind)
	assert.Empty(t, f.tracker.all())
}

func TestRegistryManager_UpdateSuccess(t *testing.T) {
	f := newFixture(t)
	draft := dbadmin.DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql", Details: dbadmin.Details{"port": 3306}}

	res := f.mgr.SaveDraft(context.Background(), draft, dbadmin.Details{"host": "db1"})

	require.NotNil(t, res.FormResult.Success)
	assert.Equal(t, dbadmin.SaveSuccessMessage, res.FormResult.Success.Message)
	require.NotNil(t, res.Database)
	assert.Equal(t, dbadmin.Details{"host": "db1", "port": 3306}, res.Database.Details)

	st := f.mgr.State()
	require.NotNil(t, st.Draft)
	assert.Equal(t, "db1", st.Draft.Details["host"])
	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackUpdate, "mysql")}, f.tracker.all())
	assert.Empty(t, f.nav.all())
}

func TestRegistryManager_UpdateFailureScenario(t *testing.T) {
	f := newFixture(t)
	netErr := dbadmin.Networkf(nil, "connection reset")
	f.access.updateFn = func(*dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
		return nil, netErr
	}

	res := f.mgr.SaveDraft(context.Background(),
		dbadmin.DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql"},
		dbadmin.Details{"host": "db1"})

	assert.Nil(t, res.Database)
	assert.Nil(t, res.FormResult.Success)
	assert.Same(t, netErr, res.FormResult.Error)

	st := f.mgr.State()
	require.NotNil(t, st.Draft)
	assert.Equal(t, dbadmin.DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql", Details: dbadmin.Details{"host": "db1"}}, *st.Draft)
	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackUpdateFailed, "mysql")}, f.tracker.all())
	assert.Equal(t, 1, f.access.count("update"), "mutations are never retried")
}

func TestRegistryManager_CreateSuccess(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 1, Name: "Existing", Engine: "h2"})
	bus := eventbus.New()
	var kinds []dbadmin.IntentKind
	var pendingWhileFetched []int
	bus.Subscribe(func(c dbadmin.StateChange) {
		kinds = append(kinds, c.Intent)
		if c.Intent == dbadmin.IntentFetchCompleted {
			pendingWhileFetched = append(pendingWhileFetched, len(c.State.PendingAdds))
		}
	})
	f.mgr.SetEventBus(bus)

	res := f.mgr.SaveDraft(context.Background(),
		dbadmin.DatabaseRecord{Name: "Warehouse", Engine: "postgres", Details: dbadmin.Details{}},
		dbadmin.Details{"host": "wh"})

	require.NotNil(t, res.Database)
	assert.Equal(t, int64(101), res.Database.ID)
	require.NotNil(t, res.FormResult.Success)

	st := f.mgr.State()
	assert.Empty(t, st.PendingAdds)
	_, found := st.Lookup(101)
	assert.True(t, found)

	assert.Equal(t, []string{dbadmin.ListPath, dbadmin.CreatedPath(101)}, f.nav.all())
	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackCreate, "postgres")}, f.tracker.all())
	assert.Equal(t, []dbadmin.IntentKind{
		dbadmin.IntentAddStarted,
		dbadmin.IntentFetchCompleted,
		dbadmin.IntentSaveCompleted,
	}, kinds)
	assert.Equal(t, []int{1}, pendingWhileFetched, "the pending entry stays until the refreshed list includes the database")
}

func TestRegistryManager_CreateFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.access.createFn = func(*dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
		return nil, dbadmin.Validationf("duplicate name")
	}

	res := f.mgr.SaveDraft(context.Background(), dbadmin.DatabaseRecord{Name: "Dup", Engine: "h2"}, nil)

	require.NotNil(t, res.FormResult.Error)
	assert.Equal(t, dbadmin.KindValidation, res.FormResult.Error.Kind)
	st := f.mgr.State()
	assert.Empty(t, st.PendingAdds)
	assert.Equal(t, []string{dbadmin.ListPath}, f.nav.all())
	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackCreateFailed, "h2")}, f.tracker.all())
	assert.Zero(t, f.access.count("list"))
}

func TestRegistryManager_CreatePendingWhileInFlight(t *testing.T) {
	f := newFixture(t)
	entered := make(chan struct{})
	proceed := make(chan struct{})
	f.access.createFn = func(rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
		close(entered)
		<-proceed
		return &dbadmin.DatabaseRecord{ID: 7, Name: rec.Name, Engine: rec.Engine}, nil
	}

	done := make(chan SaveResult)
	go func() {
		done <- f.mgr.SaveDraft(context.Background(), dbadmin.DatabaseRecord{Name: "Slow", Engine: "h2"}, nil)
	}()

	<-entered
	st := f.mgr.State()
	require.Len(t, st.PendingAdds, 1)
	assert.Equal(t, "Slow", st.PendingAdds[0].Name)

	close(proceed)
	res := <-done
	require.NotNil(t, res.Database)
	assert.Empty(t, f.mgr.State().PendingAdds)
}

func TestRegistryManager_ValidationRejectsBeforeRemote(t *testing.T) {
	f := newFixture(t)
	v, err := NewDraftValidator(config.DefaultEngines())
	require.NoError(t, err)
	f.mgr.SetValidator(v)

	res := f.mgr.SaveDraft(context.Background(), dbadmin.DatabaseRecord{Name: "", Engine: "postgres"}, dbadmin.Details{"host": "h"})

	require.NotNil(t, res.FormResult.Error)
	assert.Equal(t, dbadmin.KindValidation, res.FormResult.Error.Kind)
	assert.Contains(t, res.FormResult.Error.Fields, "name")
	assert.Zero(t, f.access.count("create"))
	assert.Empty(t, f.nav.all())
	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackCreateFailed, "postgres")}, f.tracker.all())
	assert.Empty(t, f.mgr.State().PendingAdds)
}

func TestRegistryManager_ValidatedUpdateFailureScenario(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql", Details: dbadmin.Details{}})
	v, err := NewDraftValidator(config.DefaultEngines())
	require.NoError(t, err)
	f.mgr.SetValidator(v)
	f.access.updateFn = func(*dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
		return nil, dbadmin.Networkf(nil, "connection refused")
	}

	res := f.mgr.SaveDraft(context.Background(),
		dbadmin.DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql", Details: dbadmin.Details{}},
		dbadmin.Details{"host": "db1"})

	require.NotNil(t, res.FormResult.Error)
	assert.Nil(t, res.Database)
	assert.Zero(t, f.access.count("update"), "incomplete details are refused locally")
	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackUpdateFailed, "mysql")}, f.tracker.all())

	st := f.mgr.State()
	require.NotNil(t, st.Draft)
	assert.Equal(t, "db1", st.Draft.Details["host"], "the draft keeps the submitted values")

	res = f.mgr.SaveDraft(context.Background(),
		dbadmin.DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql", Details: dbadmin.Details{}},
		dbadmin.Details{"host": "db1", "dbname": "prod", "user": "admin"})

	require.NotNil(t, res.FormResult.Error)
	assert.Equal(t, dbadmin.KindNetwork, res.FormResult.Error.Kind)
	assert.Equal(t, 1, f.access.count("update"))
	assert.Equal(t, []dbadmin.TrackingEvent{
		event(dbadmin.TrackUpdateFailed, "mysql"),
		event(dbadmin.TrackUpdateFailed, "mysql"),
	}, f.tracker.all())
}

func TestRegistryManager_CreateKeepsSavedWhenRefreshFails(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 1, Name: "Existing", Engine: "h2"})
	require.NoError(t, f.mgr.FetchAll(context.Background()))
	f.access.listFn = func() ([]dbadmin.DatabaseRecord, error) {
		return nil, dbadmin.Networkf(nil, "list unavailable")
	}

	res := f.mgr.SaveDraft(context.Background(),
		dbadmin.DatabaseRecord{Name: "Warehouse", Engine: "postgres", Details: dbadmin.Details{}},
		dbadmin.Details{"host": "wh"})

	require.NotNil(t, res.Database)
	require.NotNil(t, res.FormResult.Success)

	st := f.mgr.State()
	assert.Empty(t, st.PendingAdds)
	require.Len(t, st.Registry, 2)
	got, found := st.Lookup(res.Database.ID)
	require.True(t, found)
	assert.Equal(t, "Warehouse", got.Name)
}

func TestRegistryManager_LoadingDraftClearsSaveResult(t *testing.T) {
	f := newFixture(t,
		dbadmin.DatabaseRecord{ID: 5, Name: "Prod", Engine: "h2"},
		dbadmin.DatabaseRecord{ID: 6, Name: "Stage", Engine: "h2"},
	)
	require.NoError(t, f.mgr.InitializeDraft(context.Background(), 5))
	res := f.mgr.SaveDraft(context.Background(), *f.mgr.State().Draft, nil)
	require.NotNil(t, res.FormResult.Success)

	require.NoError(t, f.mgr.InitializeDraft(context.Background(), 6))

	assert.True(t, f.mgr.State().FormResult.Empty())
}

func TestRegistryManager_DeleteFromListScenario(t *testing.T) {
	f := newFixture(t,
		dbadmin.DatabaseRecord{ID: 3, Name: "a", Engine: "h2"},
		dbadmin.DatabaseRecord{ID: 7, Name: "b", Engine: "h2"},
	)
	require.NoError(t, f.mgr.FetchAll(context.Background()))

	require.NoError(t, f.mgr.Delete(context.Background(), 7, false))

	st := f.mgr.State()
	_, found := st.Lookup(7)
	assert.False(t, found)
	assert.Empty(t, st.PendingDeletes)
	assert.Equal(t, []string{dbadmin.ListPath}, f.nav.all())
	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackDelete, dbadmin.TrackLabelFromList)}, f.tracker.all())
}

func TestRegistryManager_DeleteFromDetailLabel(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 3, Name: "a", Engine: "h2"})

	require.NoError(t, f.mgr.Delete(context.Background(), 3, true))

	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackDelete, dbadmin.TrackLabelFromDetail)}, f.tracker.all())
}

func TestRegistryManager_DeleteFailureRollsBack(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 3, Name: "a", Engine: "h2"})
	require.NoError(t, f.mgr.FetchAll(context.Background()))
	f.access.deleteFn = func(int64) error { return dbadmin.Networkf(nil, "timeout") }

	err := f.mgr.Delete(context.Background(), 3, true)

	assert.Error(t, err)
	st := f.mgr.State()
	assert.Empty(t, st.PendingDeletes)
	_, found := st.Lookup(3)
	assert.True(t, found)
	assert.Empty(t, f.tracker.all())
}

func TestRegistryManager_DeletePendingWhileInFlight(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 3, Name: "a", Engine: "h2"})
	require.NoError(t, f.mgr.FetchAll(context.Background()))
	entered := make(chan struct{})
	proceed := make(chan struct{})
	f.access.deleteFn = func(int64) error {
		close(entered)
		<-proceed
		return nil
	}

	done := make(chan error)
	go func() { done <- f.mgr.Delete(context.Background(), 3, false) }()

	<-entered
	st := f.mgr.State()
	assert.True(t, st.DeletePending(3))
	_, stillListed := st.Lookup(3)
	assert.True(t, stillListed)

	close(proceed)
	require.NoError(t, <-done)
	assert.False(t, f.mgr.State().DeletePending(3))
}

func TestRegistryManager_SyncMetadataTracksAndKeepsRegistry(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 3, Name: "a", Engine: "h2"})
	require.NoError(t, f.mgr.FetchAll(context.Background()))
	before := f.mgr.State()

	require.NoError(t, f.mgr.SyncMetadata(context.Background(), 3))

	assert.Equal(t, before, f.mgr.State())
	assert.Equal(t, []dbadmin.TrackingEvent{event(dbadmin.TrackManualSync, "")}, f.tracker.all())
}

func TestRegistryManager_SyncAllJoinsFailures(t *testing.T) {
	f := newFixture(t,
		dbadmin.DatabaseRecord{ID: 1, Name: "a", Engine: "h2"},
		dbadmin.DatabaseRecord{ID: 2, Name: "b", Engine: "h2"},
		dbadmin.DatabaseRecord{ID: 3, Name: "c", Engine: "h2"},
	)
	require.NoError(t, f.mgr.FetchAll(context.Background()))

	var inFlight, peak atomic.Int32
	f.access.syncFn = func(id int64) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if id == 2 {
			return dbadmin.Networkf(nil, "unreachable")
		}
		return nil
	}

	err := f.mgr.SyncAll(context.Background(), 2)

	require.Error(t, err)
	assert.ErrorIs(t, err, dbadmin.ErrNetwork)
	assert.Contains(t, err.Error(), "sync database 2")
	assert.Equal(t, 3, f.access.count("sync"))
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Len(t, f.tracker.all(), 3)
}

func TestRegistryManager_BackgroundSyncIsUntracked(t *testing.T) {
	f := newFixture(t,
		dbadmin.DatabaseRecord{ID: 1, Name: "a", Engine: "h2"},
		dbadmin.DatabaseRecord{ID: 2, Name: "b", Engine: "h2"},
	)
	require.NoError(t, f.mgr.FetchAll(context.Background()))

	require.NoError(t, f.mgr.BackgroundSync(context.Background(), 2))

	assert.Equal(t, 2, f.access.count("sync"))
	assert.Empty(t, f.tracker.all())
}

func TestRegistryManager_ResetIsIdempotent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mgr.InitializeDraft(context.Background(), 0))

	f.mgr.Reset()
	once := f.mgr.State()
	f.mgr.Reset()

	assert.Equal(t, once, f.mgr.State())
	assert.Nil(t, once.Draft)
	assert.True(t, once.FormResult.Empty())
}

func TestRegistryManager_SerializesMutationsPerDatabase(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 5, Name: "Prod", Engine: "h2"})
	f.mgr.SetMutationLimiter(NewMutationLimiter(dbadmin.MutationLimits{GlobalMax: 4, PerDatabase: 1}))

	var inFlight, peak atomic.Int32
	f.access.updateFn = func(rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error) {
		n := inFlight.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		out := rec.Clone()
		return &out, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.mgr.SaveDraft(context.Background(), dbadmin.DatabaseRecord{ID: 5, Name: "Prod", Engine: "h2"}, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, 4, f.access.count("update"))
}

func TestRegistryManager_StateIsACopy(t *testing.T) {
	f := newFixture(t, dbadmin.DatabaseRecord{ID: 1, Name: "a", Engine: "h2", Details: dbadmin.Details{"db": "x"}})
	require.NoError(t, f.mgr.FetchAll(context.Background()))

	st := f.mgr.State()
	st.Registry[0].Details["db"] = "changed"

	assert.Equal(t, "x", f.mgr.State().Registry[0].Details["db"])
}
