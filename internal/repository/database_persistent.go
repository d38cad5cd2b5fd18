package repository

import (
	"context"
	"log/slog"

	"github.com/soochol/dbadmin/internal/db"
	"github.com/soochol/dbadmin/internal/dbadmin"
)

// PersistentDatabaseRepository wraps MemoryDatabaseRepository with PostgreSQL.
// Ids are allocated by the memory layer, so Load must run before the first
// Create to seed the id counter from existing rows.
type PersistentDatabaseRepository struct {
	mem *MemoryDatabaseRepository
	db  *db.DB
}

func NewPersistentDatabaseRepository(mem *MemoryDatabaseRepository, database *db.DB) *PersistentDatabaseRepository {
	return &PersistentDatabaseRepository{mem: mem, db: database}
}

// Load copies every stored row into the memory layer.
func (r *PersistentDatabaseRepository) Load(ctx context.Context) error {
	recs, err := r.db.ListDatabases(ctx)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := r.mem.Create(ctx, rec); err != nil {
			slog.Warn("skipping duplicate database row", "id", rec.ID, "err", err)
		}
	}
	slog.Info("loaded registered databases", "count", len(recs))
	return nil
}

func (r *PersistentDatabaseRepository) Create(ctx context.Context, rec *dbadmin.DatabaseRecord) error {
	if err := r.mem.Create(ctx, rec); err != nil {
		return err
	}
	if err := r.db.CreateDatabase(ctx, rec); err != nil {
		slog.Warn("db create database failed, in-memory only", "id", rec.ID, "err", err)
	}
	return nil
}

func (r *PersistentDatabaseRepository) Get(ctx context.Context, id int64) (*dbadmin.DatabaseRecord, error) {
	if rec, err := r.mem.Get(ctx, id); err == nil {
		return rec, nil
	}
	rec, err := r.db.GetDatabase(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = r.mem.Create(ctx, rec)
	return rec, nil
}

func (r *PersistentDatabaseRepository) List(ctx context.Context) ([]*dbadmin.DatabaseRecord, error) {
	recs, err := r.db.ListDatabases(ctx)
	if err == nil {
		return recs, nil
	}
	slog.Warn("db list databases failed, falling back to in-memory", "err", err)
	return r.mem.List(ctx)
}

func (r *PersistentDatabaseRepository) Update(ctx context.Context, rec *dbadmin.DatabaseRecord) error {
	memErr := r.mem.Update(ctx, rec)
	dbErr := r.db.UpdateDatabase(ctx, rec)
	if memErr != nil && dbErr != nil {
		return memErr
	}
	if dbErr != nil {
		slog.Warn("db update database failed, in-memory only", "id", rec.ID, "err", dbErr)
	}
	return nil
}

func (r *PersistentDatabaseRepository) Delete(ctx context.Context, id int64) error {
	memErr := r.mem.Delete(ctx, id)
	dbErr := r.db.DeleteDatabase(ctx, id)
	if memErr != nil && dbErr != nil {
		return memErr
	}
	if dbErr != nil {
		slog.Warn("db delete database failed", "id", id, "err", dbErr)
	}
	return nil
}
