package ports

import (
	"context"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// DataAccess is the remote registry service the admin screen talks to.
// Implementations report failures as *dbadmin.Error so callers can branch
// on the error kind.
type DataAccess interface {
	ListDatabases(ctx context.Context) ([]dbadmin.DatabaseRecord, error)
	// GetDatabase fails with a dbadmin.KindNotFound error for unknown ids.
	GetDatabase(ctx context.Context, id int64) (*dbadmin.DatabaseRecord, error)
	// CreateDatabase persists rec and returns it with a server-assigned id.
	CreateDatabase(ctx context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error)
	UpdateDatabase(ctx context.Context, rec *dbadmin.DatabaseRecord) (*dbadmin.DatabaseRecord, error)
	DeleteDatabase(ctx context.Context, id int64) error
	SyncMetadata(ctx context.Context, id int64) error
	AddSampleDataset(ctx context.Context) (*dbadmin.DatabaseRecord, error)
}
