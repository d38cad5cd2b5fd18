package repository

import (
	"context"
	"log/slog"

	"github.com/soochol/dbadmin/internal/db"
	"github.com/soochol/dbadmin/internal/dbadmin"
)

// PersistentTrackingRepository wraps MemoryTrackingRepository with PostgreSQL.
type PersistentTrackingRepository struct {
	mem *MemoryTrackingRepository
	db  *db.DB
}

func NewPersistentTrackingRepository(mem *MemoryTrackingRepository, database *db.DB) *PersistentTrackingRepository {
	return &PersistentTrackingRepository{mem: mem, db: database}
}

func (r *PersistentTrackingRepository) Append(ctx context.Context, ev dbadmin.TrackingEvent) error {
	_ = r.mem.Append(ctx, ev)
	if err := r.db.InsertTrackingEvent(ctx, ev); err != nil {
		slog.Warn("db insert tracking event failed, in-memory only", "err", err)
	}
	return nil
}

func (r *PersistentTrackingRepository) Recent(ctx context.Context, limit int) ([]dbadmin.TrackingEvent, error) {
	events, err := r.db.RecentTrackingEvents(ctx, limit)
	if err == nil {
		return events, nil
	}
	slog.Warn("db list tracking events failed, falling back to in-memory", "err", err)
	return r.mem.Recent(ctx, limit)
}
