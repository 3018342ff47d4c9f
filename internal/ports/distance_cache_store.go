package ports

import (
	"context"
	"fleet-dispatch-service/internal/domain"
)

// Port: persistence for distance samples shared across dispatch runs.
type DistanceCacheStore interface {
	// Load every sample taken at or after since (unix seconds).
	LoadSamples(ctx context.Context, since int64) ([]domain.DistanceSample, error)
	// Upsert samples keyed by exact coordinates and sample time.
	SaveSamples(ctx context.Context, samples []domain.DistanceSample) error
	// Delete samples taken before cutoff and report how many were removed.
	PruneBefore(ctx context.Context, cutoff int64) (int64, error)
}
