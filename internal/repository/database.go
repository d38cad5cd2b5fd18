package repository

import (
	"cmp"
	"context"
	"strings"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// DatabaseRepository stores registered database configurations.
// Missing records are reported with dbadmin.KindNotFound errors.
type DatabaseRepository interface {
	// Create stores rec, assigning rec.ID when it is zero.
	Create(ctx context.Context, rec *dbadmin.DatabaseRecord) error
	Get(ctx context.Context, id int64) (*dbadmin.DatabaseRecord, error)
	// List returns records ordered by case-insensitive name, then id.
	List(ctx context.Context) ([]*dbadmin.DatabaseRecord, error)
	Update(ctx context.Context, rec *dbadmin.DatabaseRecord) error
	Delete(ctx context.Context, id int64) error
}

func compareDatabases(a, b *dbadmin.DatabaseRecord) int {
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
