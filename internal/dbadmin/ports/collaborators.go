package ports

import (
	"context"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// Navigator moves the presentation layer to another view.
type Navigator interface {
	Navigate(path string)
}

// Tracker records usage-tracking events. Implementations must not block on
// slow sinks for long and swallow their own failures.
type Tracker interface {
	Track(ctx context.Context, ev dbadmin.TrackingEvent)
}

// EngineSource lists the supported engine types in display order.
type EngineSource interface {
	ListEngineTypes() []string
}
