package visitors

import (
	"context"
	"time"
)

// Store persists visitor events and aggregates them per period.
type Store interface {
	Insert(ctx context.Context, event *Event) error
	Stats(ctx context.Context, period Period) (Stats, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
