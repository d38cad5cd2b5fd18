package db

import (
	"context"
	"fmt"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

func (d *DB) InsertTrackingEvent(ctx context.Context, ev dbadmin.TrackingEvent) error {
	_, err := d.Pool.ExecContext(ctx,
		`INSERT INTO tracking_events (id, category, action, label, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.Category, ev.Action, ev.Label, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert tracking event: %w", err)
	}
	return nil
}

// RecentTrackingEvents returns up to limit events, newest first.
func (d *DB) RecentTrackingEvents(ctx context.Context, limit int) ([]dbadmin.TrackingEvent, error) {
	rows, err := d.Pool.QueryContext(ctx,
		`SELECT id, category, action, label, timestamp FROM tracking_events ORDER BY timestamp DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list tracking events: %w", err)
	}
	defer rows.Close()

	var result []dbadmin.TrackingEvent
	for rows.Next() {
		var ev dbadmin.TrackingEvent
		if err := rows.Scan(&ev.ID, &ev.Category, &ev.Action, &ev.Label, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan tracking event: %w", err)
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}
