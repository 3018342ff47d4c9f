package cache

import (
	"context"
	"database/sql"
	"errors"
	"fleet-dispatch-service/internal/domain"
	"fmt"
)

// SQLite backed store for distance samples. Coordinates are stored exactly
// as sampled; fuzzy matching happens in memory after loading.
type SqliteDistanceCache struct {
	DB *sql.DB
}

func NewSqliteDistanceCache(db *sql.DB) *SqliteDistanceCache {
	return &SqliteDistanceCache{DB: db}
}

func (s *SqliteDistanceCache) LoadSamples(ctx context.Context, since int64) ([]domain.DistanceSample, error) {
	if s.DB == nil {
		return nil, errors.New("distance store: db is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT
        origin_lat,
        origin_lng,
        dest_lat,
        dest_lng,
        sampled_at,
        duration_seconds
    FROM distance_samples
    WHERE sampled_at >= ?
    ORDER BY origin_lat, origin_lng, dest_lat, dest_lng, sampled_at;
	`, since)
	if err != nil {
		return nil, fmt.Errorf("load distance samples: query distance_samples table: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

func (s *SqliteDistanceCache) SaveSamples(ctx context.Context, samples []domain.DistanceSample) error {
	if s.DB == nil {
		return errors.New("distance store: db is nil")
	}

	if len(samples) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save distance samples: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO distance_samples (
        origin_lat,
        origin_lng,
        dest_lat,
        dest_lng,
        sampled_at,
        duration_seconds
    )
    VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save distance samples: db prepare: %w", err)
	}
	defer stmt.Close()

	for _, smp := range samples {
		if _, err := stmt.ExecContext(ctx,
			smp.Origin.Lat, smp.Origin.Lng,
			smp.Destination.Lat, smp.Destination.Lng,
			smp.SampledAt, smp.Seconds,
		); err != nil {
			return fmt.Errorf("save distance sample %s -> %s: %w", smp.Origin, smp.Destination, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save distance samples commit: %w", err)
	}

	return nil
}

func (s *SqliteDistanceCache) PruneBefore(ctx context.Context, cutoff int64) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("distance store: db is nil")
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM distance_samples WHERE sampled_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune distance samples: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune distance samples: rows affected: %w", err)
	}
	return n, nil
}
