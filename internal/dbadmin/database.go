package dbadmin

import (
	"maps"
	"time"
)

// Details holds opaque engine-specific connection settings (host, port, ...).
type Details map[string]any

// Clone returns a shallow copy of d. A nil Details clones to an empty map.
func (d Details) Clone() Details {
	if d == nil {
		return Details{}
	}
	return maps.Clone(d)
}

// Merge returns a copy of d with every key of overlay applied on top.
func (d Details) Merge(overlay Details) Details {
	out := d.Clone()
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// DatabaseRecord is a data source configuration as known to the admin screen.
// A zero ID means the record has not been persisted yet.
type DatabaseRecord struct {
	ID               int64      `json:"id,omitempty"`
	Name             string     `json:"name" validate:"required,max=254"`
	Engine           string     `json:"engine" validate:"required"`
	Details          Details    `json:"details"`
	Created          bool       `json:"created"`
	IsSample         bool       `json:"is_sample,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	MetadataSyncedAt *time.Time `json:"metadata_synced_at,omitempty"`
}

// Persisted reports whether the record carries a server-assigned identifier.
func (r DatabaseRecord) Persisted() bool {
	return r.ID != 0
}

// Clone returns a copy of r that shares no mutable state with it.
func (r DatabaseRecord) Clone() DatabaseRecord {
	out := r
	if r.Details != nil {
		out.Details = r.Details.Clone()
	}
	return out
}

// NewDraft returns the blank record used when a create session starts.
func NewDraft(engine string) DatabaseRecord {
	return DatabaseRecord{
		Name:    "",
		Engine:  engine,
		Details: Details{},
		Created: false,
	}
}

// Tracking categories and actions emitted by the registry manager.
const (
	TrackCategory = "Databases"

	TrackAddSample    = "Add Sample Data"
	TrackCreate       = "Create"
	TrackCreateFailed = "Create Failed"
	TrackUpdate       = "Update"
	TrackUpdateFailed = "Update Failed"
	TrackDelete       = "Delete"
	TrackManualSync   = "Manual Sync"

	TrackLabelFromDetail = "Using Detail"
	TrackLabelFromList   = "Using List"
)

// TrackingEvent is a usage-tracking record.
type TrackingEvent struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Action    string    `json:"action"`
	Label     string    `json:"label,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
