package dbadmin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistry() []DatabaseRecord {
	return []DatabaseRecord{
		{ID: 3, Name: "Warehouse", Engine: "postgres", Details: Details{"host": "wh"}},
		{ID: 1, Name: "Analytics", Engine: "mysql", Details: Details{}},
		{ID: 7, Name: "Legacy", Engine: "h2", Details: Details{}},
	}
}

func TestApply_ResetIsIdempotent(t *testing.T) {
	s := State{
		Registry:   sampleRegistry(),
		Draft:      &DatabaseRecord{ID: 3, Name: "Warehouse", Engine: "postgres"},
		FormResult: FormResult{Success: &FormSuccess{Message: SaveSuccessMessage}},
	}

	once := Apply(s, Reset{})
	twice := Apply(once, Reset{})

	assert.Equal(t, once, twice)
	assert.Nil(t, once.Draft)
	assert.True(t, once.FormResult.Empty())
	assert.Equal(t, s.Registry, once.Registry)
}

func TestApply_FetchCompletedReplacesRegistryExactly(t *testing.T) {
	s := State{Registry: []DatabaseRecord{{ID: 99, Name: "Stale", Engine: "h2"}}}
	fetched := sampleRegistry()

	got := Apply(s, FetchCompleted{Records: fetched})

	require.Len(t, got.Registry, 3)
	assert.Equal(t, fetched, got.Registry)
	assert.Equal(t, int64(3), got.Registry[0].ID, "server order must be kept")

	// The state must not alias the caller's slice.
	fetched[0].Name = "Mutated"
	assert.Equal(t, "Warehouse", got.Registry[0].Name)
}

func TestApply_FetchCompletedEmptyResultMarksLoaded(t *testing.T) {
	got := Apply(State{}, FetchCompleted{})
	assert.NotNil(t, got.Registry)
	assert.Empty(t, got.Registry)
}

func TestApply_SelectEngineKeepsOtherFields(t *testing.T) {
	s := Apply(State{}, DraftInitialized{Draft: DatabaseRecord{Name: "", Engine: "mysql", Details: Details{}}})

	got := Apply(s, EngineSelected{Engine: "postgres"})

	require.NotNil(t, got.Draft)
	assert.Equal(t, DatabaseRecord{Name: "", Engine: "postgres", Details: Details{}}, *got.Draft)
	assert.Equal(t, "mysql", s.Draft.Engine, "previous state must be untouched")
}

func TestApply_SelectEngineWithoutDraftIsNoop(t *testing.T) {
	got := Apply(State{}, EngineSelected{Engine: "postgres"})
	assert.Nil(t, got.Draft)
}

func TestApply_DraftInitializedClearsFormResult(t *testing.T) {
	s := State{FormResult: FormResult{Error: Validationf("bad")}}

	fresh := Apply(s, DraftInitialized{Draft: NewDraft("h2")})
	assert.True(t, fresh.FormResult.Empty())

	saved := State{FormResult: FormResult{Success: &FormSuccess{Message: SaveSuccessMessage}}}
	loaded := Apply(saved, DraftInitialized{Draft: DatabaseRecord{ID: 6, Name: "b", Engine: "h2"}})
	assert.True(t, loaded.FormResult.Empty(), "loading another record starts without the last save result")
}

func TestApply_UpdateFailureKeepsSubmittedDraft(t *testing.T) {
	submitted := DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql", Details: Details{"host": "db1"}}
	netErr := Networkf(nil, "connection refused")
	s := State{Draft: &DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql", Details: Details{}}}

	got := Apply(s, SaveCompleted{Submitted: submitted, Err: netErr})

	require.NotNil(t, got.Draft)
	assert.Equal(t, submitted, *got.Draft)
	assert.Same(t, netErr, got.FormResult.Error)
	assert.Nil(t, got.FormResult.Success)
}

func TestApply_UpdateSuccessSetsSavedDraft(t *testing.T) {
	submitted := DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql"}
	saved := DatabaseRecord{ID: 5, Name: "Prod", Engine: "mysql", Created: true}

	got := Apply(State{}, SaveCompleted{Submitted: submitted, Saved: &saved})

	require.NotNil(t, got.Draft)
	assert.True(t, got.Draft.Created)
	require.NotNil(t, got.FormResult.Success)
	assert.Equal(t, SaveSuccessMessage, got.FormResult.Success.Message)
}

func TestApply_CreateReconcilesPendingAddByName(t *testing.T) {
	draft := DatabaseRecord{Name: "New", Engine: "postgres", Details: Details{}}
	other := DatabaseRecord{Name: "Other", Engine: "h2", Details: Details{}}
	s := Apply(State{}, AddStarted{Draft: draft})
	s = Apply(s, AddStarted{Draft: other})
	s = Apply(s, AddStarted{Draft: draft})
	require.Len(t, s.PendingAdds, 3)

	saved := DatabaseRecord{ID: 12, Name: "New", Engine: "postgres"}
	got := Apply(s, SaveCompleted{Submitted: draft, Saved: &saved})

	require.Len(t, got.PendingAdds, 2, "only one entry of the multiset is reconciled")
	assert.Equal(t, "Other", got.PendingAdds[0].Name)
	assert.Equal(t, "New", got.PendingAdds[1].Name)
}

func TestApply_CreateSuccessKeepsSavedVisible(t *testing.T) {
	draft := DatabaseRecord{Name: "New", Engine: "postgres"}
	s := Apply(State{Registry: sampleRegistry()}, AddStarted{Draft: draft})

	saved := DatabaseRecord{ID: 12, Name: "New", Engine: "postgres"}
	got := Apply(s, SaveCompleted{Submitted: draft, Saved: &saved})

	assert.Empty(t, got.PendingAdds)
	require.Len(t, got.Registry, 4)
	assert.Equal(t, saved, got.Registry[3])

	again := Apply(got, SaveCompleted{Submitted: draft, Saved: &saved})
	assert.Len(t, again.Registry, 4, "a record already listed is not duplicated")

	updated := Apply(State{Registry: sampleRegistry()}, SaveCompleted{Submitted: sampleRegistry()[0], Saved: &saved})
	assert.Len(t, updated.Registry, 3, "updates leave the registry to the next fetch")
}

func TestApply_CreateFailureCompensatesPendingAdd(t *testing.T) {
	draft := DatabaseRecord{Name: "New", Engine: "postgres"}
	s := Apply(State{}, AddStarted{Draft: draft})

	got := Apply(s, SaveCompleted{Submitted: draft, Err: Validationf("host is required")})

	assert.Empty(t, got.PendingAdds)
	require.NotNil(t, got.FormResult.Error)
	assert.Equal(t, KindValidation, got.FormResult.Error.Kind)
}

func TestApply_CreateMatchesSubmittedNameWhenServerRenames(t *testing.T) {
	draft := DatabaseRecord{Name: " spaced ", Engine: "postgres"}
	s := Apply(State{}, AddStarted{Draft: draft})

	saved := DatabaseRecord{ID: 4, Name: "spaced", Engine: "postgres"}
	got := Apply(s, SaveCompleted{Submitted: draft, Saved: &saved})

	assert.Empty(t, got.PendingAdds)
}

func TestApply_UpdateDoesNotTouchPendingAdds(t *testing.T) {
	s := Apply(State{}, AddStarted{Draft: DatabaseRecord{Name: "Prod", Engine: "h2"}})
	saved := DatabaseRecord{ID: 5, Name: "Prod", Engine: "h2"}

	got := Apply(s, SaveCompleted{Submitted: saved, Saved: &saved})

	assert.Len(t, got.PendingAdds, 1)
}

func TestApply_SaveRejectedKeepsPendingAdds(t *testing.T) {
	inFlight := DatabaseRecord{Name: "New", Engine: "postgres"}
	s := Apply(State{}, AddStarted{Draft: inFlight})

	rejected := DatabaseRecord{Name: "New", Engine: "oracle"}
	got := Apply(s, SaveRejected{Submitted: rejected, Err: Validationf("unsupported engine")})

	assert.Len(t, got.PendingAdds, 1, "another in-flight create with the same name stays pending")
	require.NotNil(t, got.Draft)
	assert.Equal(t, "oracle", got.Draft.Engine)
	require.NotNil(t, got.FormResult.Error)
}

func TestApply_DeleteLifecycle(t *testing.T) {
	s := State{
		Registry: sampleRegistry(),
		Draft:    &DatabaseRecord{ID: 7, Name: "Legacy", Engine: "h2"},
	}

	started := Apply(s, DeleteStarted{ID: 7})
	assert.True(t, started.DeletePending(7))
	_, stillListed := started.Lookup(7)
	assert.True(t, stillListed, "registry is only patched on confirmation")

	again := Apply(started, DeleteStarted{ID: 7})
	assert.Equal(t, []int64{7}, again.PendingDeletes, "pending deletes is a set")

	done := Apply(started, DeleteCompleted{ID: 7})
	assert.False(t, done.DeletePending(7))
	_, listed := done.Lookup(7)
	assert.False(t, listed)
	assert.Len(t, done.Registry, 2)
	assert.Nil(t, done.Draft)
}

func TestApply_DeleteFailedRollsBackPending(t *testing.T) {
	s := Apply(State{Registry: sampleRegistry()}, DeleteStarted{ID: 1})

	got := Apply(s, DeleteFailed{ID: 1})

	assert.Empty(t, got.PendingDeletes)
	assert.Len(t, got.Registry, 3)
}

func TestApply_SampleAddedAppends(t *testing.T) {
	s := State{Registry: sampleRegistry()}
	sample := DatabaseRecord{ID: 8, Name: "Sample Dataset", Engine: "h2", IsSample: true}

	got := Apply(s, SampleAdded{Record: sample})

	require.Len(t, got.Registry, 4)
	assert.Equal(t, sample, got.Registry[3])
	assert.Len(t, s.Registry, 3)
}

func TestApply_SampleFailedSurfacesError(t *testing.T) {
	got := Apply(State{}, SampleFailed{Err: Networkf(nil, "timeout")})
	require.NotNil(t, got.FormResult.Error)
	assert.Equal(t, KindNetwork, got.FormResult.Error.Kind)
}

func TestState_CloneIsDeep(t *testing.T) {
	s := State{
		Registry:       sampleRegistry(),
		Draft:          &DatabaseRecord{Name: "d", Details: Details{"k": "v"}},
		PendingDeletes: []int64{1},
	}

	c := s.Clone()
	c.Registry[0].Details["host"] = "changed"
	c.Draft.Details["k"] = "changed"
	c.PendingDeletes[0] = 2

	assert.Equal(t, "wh", s.Registry[0].Details["host"])
	assert.Equal(t, "v", s.Draft.Details["k"])
	assert.Equal(t, int64(1), s.PendingDeletes[0])
}

func TestDetails_Merge(t *testing.T) {
	base := Details{"host": "a", "port": 5432}
	got := base.Merge(Details{"host": "b", "ssl": true})

	assert.Equal(t, Details{"host": "b", "port": 5432, "ssl": true}, got)
	assert.Equal(t, "a", base["host"])
	assert.Equal(t, Details{"x": 1}, Details(nil).Merge(Details{"x": 1}))
}

func TestError_KindMatching(t *testing.T) {
	err := NotFoundf("database %d not found", 4)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrNetwork)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindUnknown, KindOf(assert.AnError))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
	assert.Nil(t, AsError(nil))
}
