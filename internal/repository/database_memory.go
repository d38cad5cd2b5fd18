package repository

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/soochol/dbadmin/internal/dbadmin"
	memstore "github.com/soochol/dbadmin/internal/repository/memory"
)

// MemoryDatabaseRepository is a thread-safe in-memory database store.
// Records are copied on the way in and out.
type MemoryDatabaseRepository struct {
	store  *memstore.Store[int64, *dbadmin.DatabaseRecord]
	lastID atomic.Int64
}

func NewMemoryDatabaseRepository() *MemoryDatabaseRepository {
	return &MemoryDatabaseRepository{
		store: memstore.New(func(r *dbadmin.DatabaseRecord) int64 { return r.ID }, compareDatabases),
	}
}

func (r *MemoryDatabaseRepository) Create(ctx context.Context, rec *dbadmin.DatabaseRecord) error {
	if rec.ID == 0 {
		rec.ID = r.lastID.Add(1)
	} else {
		r.bumpLastID(rec.ID)
	}
	c := rec.Clone()
	if !r.store.Insert(ctx, &c) {
		return dbadmin.Validationf("database %d already exists", rec.ID)
	}
	return nil
}

func (r *MemoryDatabaseRepository) Get(ctx context.Context, id int64) (*dbadmin.DatabaseRecord, error) {
	rec, err := r.store.Get(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return nil, dbadmin.NotFoundf("database %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	c := rec.Clone()
	return &c, nil
}

func (r *MemoryDatabaseRepository) List(ctx context.Context) ([]*dbadmin.DatabaseRecord, error) {
	all, err := r.store.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*dbadmin.DatabaseRecord, len(all))
	for i, rec := range all {
		c := rec.Clone()
		out[i] = &c
	}
	return out, nil
}

func (r *MemoryDatabaseRepository) Update(ctx context.Context, rec *dbadmin.DatabaseRecord) error {
	if !r.store.Has(ctx, rec.ID) {
		return dbadmin.NotFoundf("database %d not found", rec.ID)
	}
	c := rec.Clone()
	return r.store.Set(ctx, &c)
}

func (r *MemoryDatabaseRepository) Delete(ctx context.Context, id int64) error {
	err := r.store.Delete(ctx, id)
	if errors.Is(err, memstore.ErrNotFound) {
		return dbadmin.NotFoundf("database %d not found", id)
	}
	return err
}

// bumpLastID keeps generated ids above explicitly provided ones.
func (r *MemoryDatabaseRepository) bumpLastID(id int64) {
	for {
		cur := r.lastID.Load()
		if id <= cur || r.lastID.CompareAndSwap(cur, id) {
			return
		}
	}
}
