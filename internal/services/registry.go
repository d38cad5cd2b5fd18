package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soochol/dbadmin/internal/dbadmin"
	"github.com/soochol/dbadmin/internal/dbadmin/ports"
	"github.com/soochol/dbadmin/internal/eventbus"
)

// SaveResult is what SaveDraft hands back to the form.
type SaveResult struct {
	Database   *dbadmin.DatabaseRecord `json:"database"`
	FormResult dbadmin.FormResult      `json:"formState"`
}

// RegistryManager owns the state of the database admin screen. Remote calls
// run without holding the state lock; each resolved result is applied as one
// atomic transition and then published on the event bus.
type RegistryManager struct {
	remote  ports.DataAccess
	nav     ports.Navigator
	tracker ports.Tracker
	engines ports.EngineSource

	bus       *eventbus.Bus
	validator *DraftValidator
	limiter   *MutationLimiter
	retry     dbadmin.RetryPolicy
	now       func() time.Time

	mu    sync.Mutex
	pubMu sync.Mutex // keeps publish order equal to apply order
	state dbadmin.State
}

func NewRegistryManager(remote ports.DataAccess, nav ports.Navigator, tracker ports.Tracker, engines ports.EngineSource) *RegistryManager {
	return &RegistryManager{
		remote:  remote,
		nav:     nav,
		tracker: tracker,
		engines: engines,
		retry:   dbadmin.DefaultRetryPolicy(),
		now:     time.Now,
	}
}

// SetEventBus publishes every applied transition on bus.
func (m *RegistryManager) SetEventBus(bus *eventbus.Bus) {
	m.bus = bus
}

// SetValidator checks drafts before they are sent.
func (m *RegistryManager) SetValidator(v *DraftValidator) {
	m.validator = v
}

// SetMutationLimiter serializes mutations per database. Without a limiter
// mutations run unbounded.
func (m *RegistryManager) SetMutationLimiter(l *MutationLimiter) {
	m.limiter = l
}

// SetRetryPolicy configures retries of list and get calls.
func (m *RegistryManager) SetRetryPolicy(p dbadmin.RetryPolicy) {
	m.retry = p
}

// State returns a deep copy of the current state.
func (m *RegistryManager) State() dbadmin.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

// Reset drops the draft and the last form result.
func (m *RegistryManager) Reset() {
	m.dispatch(dbadmin.Reset{})
}

// FetchAll replaces the registry with the server's list. Failures leave the
// state untouched and are only logged.
func (m *RegistryManager) FetchAll(ctx context.Context) error {
	records, err := retryRead(ctx, m.retry, "list databases", m.remote.ListDatabases)
	if err == nil {
		err = checkIdentified(records)
	}
	if err != nil {
		slog.Error("registry: fetch databases failed", "err", err)
		return err
	}
	m.dispatch(dbadmin.FetchCompleted{Records: records})
	return nil
}

// InitializeDraft starts editing database id, or a blank draft for the first
// configured engine when id is zero. An unknown id sends the user back to
// the listing.
func (m *RegistryManager) InitializeDraft(ctx context.Context, id int64) error {
	if id == 0 {
		m.dispatch(dbadmin.DraftInitialized{Draft: dbadmin.NewDraft(m.defaultEngine())})
		return nil
	}

	rec, err := retryRead(ctx, m.retry, "get database", func(ctx context.Context) (*dbadmin.DatabaseRecord, error) {
		return m.remote.GetDatabase(ctx, id)
	})
	if err != nil {
		if errors.Is(err, dbadmin.ErrNotFound) {
			slog.Warn("registry: database not found", "id", id)
			m.navigate(dbadmin.ListPath)
		} else {
			slog.Error("registry: fetch database failed", "id", id, "err", err)
		}
		return err
	}
	m.dispatch(dbadmin.DraftInitialized{Draft: *rec})
	return nil
}

// SelectEngine switches the engine of the current draft.
func (m *RegistryManager) SelectEngine(engine string) {
	m.dispatch(dbadmin.EngineSelected{Engine: engine})
}

// AddSampleDataset asks the server for the sample dataset and appends it to
// the registry. Failures are shown on the form.
func (m *RegistryManager) AddSampleDataset(ctx context.Context) (*dbadmin.DatabaseRecord, error) {
	release, err := m.acquire(ctx, sampleKey)
	var rec *dbadmin.DatabaseRecord
	if err == nil {
		rec, err = m.remote.AddSampleDataset(ctx)
		release()
	}
	if err != nil {
		slog.Error("registry: add sample dataset failed", "err", err)
		m.dispatch(dbadmin.SampleFailed{Err: dbadmin.AsError(err)})
		return nil, err
	}

	m.track(ctx, dbadmin.TrackAddSample, "")
	if rec != nil {
		m.dispatch(dbadmin.SampleAdded{Record: *rec})
	}
	return rec, nil
}

// SaveDraft merges details into record and creates or updates it depending
// on whether it has an id.
func (m *RegistryManager) SaveDraft(ctx context.Context, record dbadmin.DatabaseRecord, details dbadmin.Details) SaveResult {
	submitted := record.Clone()
	submitted.Details = record.Details.Merge(details)

	if m.validator != nil {
		if err := m.validator.Validate(submitted); err != nil {
			slog.Info("registry: draft rejected", "name", submitted.Name, "err", err)
			action := dbadmin.TrackCreateFailed
			if submitted.Persisted() {
				action = dbadmin.TrackUpdateFailed
			}
			m.track(ctx, action, submitted.Engine)
			st := m.dispatch(dbadmin.SaveRejected{Submitted: submitted, Err: dbadmin.AsError(err)})
			return SaveResult{FormResult: st.FormResult}
		}
	}

	if submitted.Persisted() {
		return m.update(ctx, submitted)
	}
	return m.create(ctx, submitted)
}

func (m *RegistryManager) update(ctx context.Context, submitted dbadmin.DatabaseRecord) SaveResult {
	release, err := m.acquire(ctx, idKey(submitted.ID))
	var saved *dbadmin.DatabaseRecord
	if err == nil {
		req := submitted.Clone()
		saved, err = m.remote.UpdateDatabase(ctx, &req)
		release()
	}
	if err != nil {
		slog.Error("registry: update database failed", "id", submitted.ID, "err", err)
		m.track(ctx, dbadmin.TrackUpdateFailed, submitted.Engine)
		return m.finishSave(dbadmin.SaveCompleted{Submitted: submitted, Err: dbadmin.AsError(err)})
	}

	m.track(ctx, dbadmin.TrackUpdate, submitted.Engine)
	return m.finishSave(dbadmin.SaveCompleted{Submitted: submitted, Saved: saved})
}

func (m *RegistryManager) create(ctx context.Context, submitted dbadmin.DatabaseRecord) SaveResult {
	m.dispatch(dbadmin.AddStarted{Draft: submitted})
	m.navigate(dbadmin.ListPath)

	release, err := m.acquire(ctx, nameKey(submitted.Name))
	var saved *dbadmin.DatabaseRecord
	if err == nil {
		req := submitted.Clone()
		saved, err = m.remote.CreateDatabase(ctx, &req)
		release()
	}
	if err == nil && (saved == nil || !saved.Persisted()) {
		err = &dbadmin.Error{Kind: dbadmin.KindUnknown, Message: "create returned no database id"}
	}
	if err != nil {
		slog.Error("registry: create database failed", "name", submitted.Name, "err", err)
		m.track(ctx, dbadmin.TrackCreateFailed, submitted.Engine)
		return m.finishSave(dbadmin.SaveCompleted{Submitted: submitted, Err: dbadmin.AsError(err)})
	}

	m.track(ctx, dbadmin.TrackCreate, submitted.Engine)
	// Refresh before clearing the pending entry so the new database is never
	// missing from both.
	_ = m.FetchAll(ctx)
	m.navigate(dbadmin.CreatedPath(saved.ID))
	return m.finishSave(dbadmin.SaveCompleted{Submitted: submitted, Saved: saved})
}

func (m *RegistryManager) finishSave(in dbadmin.SaveCompleted) SaveResult {
	st := m.dispatch(in)
	res := SaveResult{FormResult: st.FormResult}
	if in.Saved != nil {
		saved := in.Saved.Clone()
		res.Database = &saved
	}
	return res
}

// Delete optimistically marks id as deleting and removes it once the server
// confirms. fromDetailView only changes the tracking label.
func (m *RegistryManager) Delete(ctx context.Context, id int64, fromDetailView bool) error {
	m.dispatch(dbadmin.DeleteStarted{ID: id})
	m.navigate(dbadmin.ListPath)

	release, err := m.acquire(ctx, idKey(id))
	if err == nil {
		err = m.remote.DeleteDatabase(ctx, id)
		release()
	}
	if err != nil {
		slog.Error("registry: delete database failed", "id", id, "err", err)
		m.dispatch(dbadmin.DeleteFailed{ID: id})
		return err
	}

	m.dispatch(dbadmin.DeleteCompleted{ID: id})
	label := dbadmin.TrackLabelFromList
	if fromDetailView {
		label = dbadmin.TrackLabelFromDetail
	}
	m.track(ctx, dbadmin.TrackDelete, label)
	return nil
}

// SyncMetadata triggers a metadata sync. The registry is not touched.
func (m *RegistryManager) SyncMetadata(ctx context.Context, id int64) error {
	return m.syncOne(ctx, id, true)
}

func (m *RegistryManager) syncOne(ctx context.Context, id int64, tracked bool) error {
	release, err := m.acquire(ctx, idKey(id))
	if err == nil {
		err = m.remote.SyncMetadata(ctx, id)
		release()
	}
	if tracked {
		m.track(ctx, dbadmin.TrackManualSync, "")
	}
	if err != nil {
		slog.Error("registry: sync database failed", "id", id, "err", err)
		return err
	}
	return nil
}

// SyncAll syncs every database of the current registry, at most concurrency
// at a time (unbounded when concurrency <= 0). Databases with a pending
// delete are skipped. All failures are joined. Each sync is tracked as a
// manual one.
func (m *RegistryManager) SyncAll(ctx context.Context, concurrency int) error {
	return m.syncAll(ctx, concurrency, true)
}

// BackgroundSync is SyncAll for scheduled runs: no usage events are emitted.
func (m *RegistryManager) BackgroundSync(ctx context.Context, concurrency int) error {
	return m.syncAll(ctx, concurrency, false)
}

func (m *RegistryManager) syncAll(ctx context.Context, concurrency int, tracked bool) error {
	st := m.State()

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	var mu sync.Mutex
	var errs []error
	for _, rec := range st.Registry {
		if st.DeletePending(rec.ID) {
			continue
		}
		id := rec.ID
		g.Go(func() error {
			if err := m.syncOne(ctx, id, tracked); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("sync database %d: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		slog.Warn("registry: sync all finished with failures", "failed", len(errs), "total", len(st.Registry))
	}
	return errors.Join(errs...)
}

// dispatch applies in and publishes the resulting snapshot.
func (m *RegistryManager) dispatch(in dbadmin.Intent) dbadmin.State {
	m.mu.Lock()
	m.state = dbadmin.Apply(m.state, in)
	snapshot := m.state.Clone()
	m.pubMu.Lock()
	m.mu.Unlock()
	defer m.pubMu.Unlock()

	if m.bus != nil {
		m.bus.Publish(dbadmin.StateChange{Intent: in.Kind(), State: snapshot.Clone(), At: m.now()})
	}
	return snapshot
}

const sampleKey = "sample"

func (m *RegistryManager) acquire(ctx context.Context, key string) (release func(), err error) {
	if m.limiter == nil {
		return func() {}, nil
	}
	if err := m.limiter.Acquire(ctx, key); err != nil {
		return nil, err
	}
	return func() { m.limiter.Release(key) }, nil
}

func (m *RegistryManager) track(ctx context.Context, action, label string) {
	if m.tracker == nil {
		return
	}
	m.tracker.Track(ctx, dbadmin.TrackingEvent{
		Category: dbadmin.TrackCategory,
		Action:   action,
		Label:    label,
	})
}

func (m *RegistryManager) navigate(path string) {
	if m.nav != nil {
		m.nav.Navigate(path)
	}
}

func (m *RegistryManager) defaultEngine() string {
	if m.engines == nil {
		return ""
	}
	if types := m.engines.ListEngineTypes(); len(types) > 0 {
		return types[0]
	}
	return ""
}

// checkIdentified rejects list results that contain unpersisted records.
func checkIdentified(records []dbadmin.DatabaseRecord) error {
	for _, r := range records {
		if !r.Persisted() {
			return &dbadmin.Error{
				Kind:    dbadmin.KindUnknown,
				Message: fmt.Sprintf("server returned database %q without id", r.Name),
			}
		}
	}
	return nil
}
