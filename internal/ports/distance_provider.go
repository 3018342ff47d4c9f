package ports

import (
	"context"
	"fleet-dispatch-service/internal/domain"
	"time"
)

// Travel duration for one origin/destination cell of a matrix lookup.
// OK is false when the provider reported a non-success status for the cell.
type DurationResult struct {
	Seconds int64
	OK      bool
}

// Contract for retrieving travel durations between coordinates.
type DurationProvider interface {
	// Return one row per origin with one cell per destination.
	// Any error means the whole batch is unusable.
	Durations(
		ctx context.Context,
		origins []domain.Coordinates,
		destinations []domain.Coordinates,
		departAt time.Time,
	) ([][]DurationResult, error)
}
