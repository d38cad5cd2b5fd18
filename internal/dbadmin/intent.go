package dbadmin

// IntentKind names a state transition.
type IntentKind string

const (
	IntentReset            IntentKind = "reset"
	IntentFetchCompleted   IntentKind = "fetch_completed"
	IntentDraftInitialized IntentKind = "draft_initialized"
	IntentEngineSelected   IntentKind = "engine_selected"
	IntentSampleAdded      IntentKind = "sample_added"
	IntentSampleFailed     IntentKind = "sample_failed"
	IntentAddStarted       IntentKind = "add_started"
	IntentSaveCompleted    IntentKind = "save_completed"
	IntentSaveRejected     IntentKind = "save_rejected"
	IntentDeleteStarted    IntentKind = "delete_started"
	IntentDeleteCompleted  IntentKind = "delete_completed"
	IntentDeleteFailed     IntentKind = "delete_failed"
)

// Intent is a resolved state transition. The concrete types below are the
// only implementations.
type Intent interface {
	Kind() IntentKind
}

// Reset clears the draft and the form result.
type Reset struct{}

// FetchCompleted carries a successful list result.
type FetchCompleted struct {
	Records []DatabaseRecord
}

// DraftInitialized starts an editing session, for a new draft or a loaded
// record. The previous form result is dropped.
type DraftInitialized struct {
	Draft DatabaseRecord
}

// EngineSelected switches the engine of the current draft.
type EngineSelected struct {
	Engine string
}

// SampleAdded carries the sample dataset record returned by the server.
type SampleAdded struct {
	Record DatabaseRecord
}

// SampleFailed records a failed sample dataset request.
type SampleFailed struct {
	Err *Error
}

// AddStarted registers a draft as an optimistic pending create.
type AddStarted struct {
	Draft DatabaseRecord
}

// SaveCompleted resolves a save. Saved is nil when Err is set.
type SaveCompleted struct {
	Submitted DatabaseRecord
	Saved     *DatabaseRecord
	Err       *Error
}

// creating reports whether the save went through the create path.
func (s SaveCompleted) creating() bool {
	return !s.Submitted.Persisted()
}

// SaveRejected records a draft refused before any remote call. Unlike a
// failed SaveCompleted it never touches pending creates.
type SaveRejected struct {
	Submitted DatabaseRecord
	Err       *Error
}

// DeleteStarted registers an optimistic pending delete.
type DeleteStarted struct {
	ID int64
}

// DeleteCompleted confirms a delete.
type DeleteCompleted struct {
	ID int64
}

// DeleteFailed rolls back a pending delete.
type DeleteFailed struct {
	ID int64
}

func (Reset) Kind() IntentKind            { return IntentReset }
func (FetchCompleted) Kind() IntentKind   { return IntentFetchCompleted }
func (DraftInitialized) Kind() IntentKind { return IntentDraftInitialized }
func (EngineSelected) Kind() IntentKind   { return IntentEngineSelected }
func (SampleAdded) Kind() IntentKind      { return IntentSampleAdded }
func (SampleFailed) Kind() IntentKind     { return IntentSampleFailed }
func (AddStarted) Kind() IntentKind       { return IntentAddStarted }
func (SaveCompleted) Kind() IntentKind    { return IntentSaveCompleted }
func (SaveRejected) Kind() IntentKind     { return IntentSaveRejected }
func (DeleteStarted) Kind() IntentKind    { return IntentDeleteStarted }
func (DeleteCompleted) Kind() IntentKind  { return IntentDeleteCompleted }
func (DeleteFailed) Kind() IntentKind     { return IntentDeleteFailed }
