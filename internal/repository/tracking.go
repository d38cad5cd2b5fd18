package repository

import (
	"context"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// TrackingRepository stores usage-tracking events.
type TrackingRepository interface {
	Append(ctx context.Context, ev dbadmin.TrackingEvent) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]dbadmin.TrackingEvent, error)
}
