package repository

import (
	"context"
	"sync"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// MemoryTrackingRepository keeps the most recent events in a ring.
type MemoryTrackingRepository struct {
	mu     sync.RWMutex
	events []dbadmin.TrackingEvent
	max    int
}

// NewMemoryTrackingRepository keeps up to max events (1000 when max <= 0).
func NewMemoryTrackingRepository(max int) *MemoryTrackingRepository {
	if max <= 0 {
		max = 1000
	}
	return &MemoryTrackingRepository{max: max}
}

func (r *MemoryTrackingRepository) Append(_ context.Context, ev dbadmin.TrackingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if over := len(r.events) - r.max; over > 0 {
		r.events = append(r.events[:0], r.events[over:]...)
	}
	return nil
}

func (r *MemoryTrackingRepository) Recent(_ context.Context, limit int) ([]dbadmin.TrackingEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.events) {
		limit = len(r.events)
	}
	out := make([]dbadmin.TrackingEvent, 0, limit)
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}
