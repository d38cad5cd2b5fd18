package dbadmin

import (
	"fmt"
	"slices"
	"time"
)

// SaveSuccessMessage is the form message shown after a successful save.
const SaveSuccessMessage = "Successfully saved!"

// Navigation targets used by the registry manager.
const ListPath = "/admin/databases"

// CreatedPath is the listing view highlighting a freshly created database.
func CreatedPath(id int64) string {
	return fmt.Sprintf("%s?created=%d", ListPath, id)
}

// FormSuccess is the payload of a successful save.
type FormSuccess struct {
	Message string `json:"message"`
}

// FormResult is the outcome of the last save attempt. Both fields are nil
// when no save happened since the last reset.
type FormResult struct {
	Success *FormSuccess `json:"formSuccess"`
	Error   *Error       `json:"formError"`
}

// Empty reports whether no outcome is recorded.
func (f FormResult) Empty() bool {
	return f.Success == nil && f.Error == nil
}

// State is the full client-side state of the database admin screen.
type State struct {
	// Registry is nil until the first successful fetch.
	Registry       []DatabaseRecord `json:"registry"`
	Draft          *DatabaseRecord  `json:"draft"`
	FormResult     FormResult       `json:"formResult"`
	PendingAdds    []DatabaseRecord `json:"pendingAdds"`
	PendingDeletes []int64          `json:"pendingDeletes"`
}

// Clone returns a deep copy safe to hand to readers outside the manager.
func (s State) Clone() State {
	out := State{
		FormResult:     s.FormResult,
		PendingDeletes: slices.Clone(s.PendingDeletes),
	}
	if s.Registry != nil {
		out.Registry = cloneRecords(s.Registry)
	}
	if s.PendingAdds != nil {
		out.PendingAdds = cloneRecords(s.PendingAdds)
	}
	if s.Draft != nil {
		d := s.Draft.Clone()
		out.Draft = &d
	}
	return out
}

// Lookup returns the registry record with the given id.
func (s State) Lookup(id int64) (DatabaseRecord, bool) {
	for _, r := range s.Registry {
		if r.ID == id {
			return r, true
		}
	}
	return DatabaseRecord{}, false
}

// DeletePending reports whether id has an unconfirmed delete in flight.
func (s State) DeletePending(id int64) bool {
	return slices.Contains(s.PendingDeletes, id)
}

// StateChange is published after every applied intent.
type StateChange struct {
	Intent IntentKind `json:"intent"`
	State  State      `json:"state"`
	At     time.Time  `json:"at"`
}

func cloneRecords(in []DatabaseRecord) []DatabaseRecord {
	out := make([]DatabaseRecord, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
