// Package tracking provides ports.Tracker implementations.
package tracking

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/soochol/dbadmin/internal/dbadmin"
	"github.com/soochol/dbadmin/internal/dbadmin/ports"
	"github.com/soochol/dbadmin/internal/repository"
)

// LogTracker writes every event to the structured log.
type LogTracker struct{}

func (LogTracker) Track(_ context.Context, ev dbadmin.TrackingEvent) {
	slog.Info("tracking event",
		"category", ev.Category, "action", ev.Action, "label", ev.Label)
}

// StoreTracker appends events to a TrackingRepository. Store failures are
// logged and dropped.
type StoreTracker struct {
	repo repository.TrackingRepository
	now  func() time.Time
}

func NewStoreTracker(repo repository.TrackingRepository) *StoreTracker {
	return &StoreTracker{repo: repo, now: time.Now}
}

func (t *StoreTracker) Track(ctx context.Context, ev dbadmin.TrackingEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = t.now().UTC()
	}
	if err := t.repo.Append(ctx, ev); err != nil {
		slog.Warn("tracking: append failed", "action", ev.Action, "err", err)
	}
}

// Multi fans events out to several trackers in order.
type Multi []ports.Tracker

func (m Multi) Track(ctx context.Context, ev dbadmin.TrackingEvent) {
	for _, t := range m {
		t.Track(ctx, ev)
	}
}
