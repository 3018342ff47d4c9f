package cache

import (
	"context"
	"database/sql"
	"errors"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/platform/obs"
	"fmt"
)

// SQLDistanceCache persists distance samples in Postgres.
type SQLDistanceCache struct {
	DB *sql.DB
}

func NewSQLDistanceCache(db *sql.DB) *SQLDistanceCache {
	return &SQLDistanceCache{DB: db}
}

// Load samples taken at or after since.
func (s *SQLDistanceCache) LoadSamples(ctx context.Context, since int64) (_ []domain.DistanceSample, err error) {
	defer obs.Time(ctx, "distance.store.LoadSamples")(&err)

	if s.DB == nil {
		return nil, errors.New("distance store: db is nil")
	}

	q := `
	SELECT origin_lat, origin_lng, dest_lat, dest_lng, sampled_at, duration_seconds
    FROM distance_samples
    WHERE sampled_at >= $1
    ORDER BY origin_lat, origin_lng, dest_lat, dest_lng, sampled_at;
	`

	rows, err := s.DB.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("load distance samples: query distance_samples table: %w", err)
	}
	defer rows.Close()

	return scanSamples(rows)
}

// Store samples, overwriting the duration of an existing pair and timestamp.
func (s *SQLDistanceCache) SaveSamples(ctx context.Context, samples []domain.DistanceSample) (err error) {
	defer obs.Time(ctx, "distance.store.SaveSamples")(&err)

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
	INSERT INTO distance_samples (origin_lat, origin_lng, dest_lat, dest_lng, sampled_at, duration_seconds)
    VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (origin_lat, origin_lng, dest_lat, dest_lng, sampled_at) DO UPDATE
	SET duration_seconds = EXCLUDED.duration_seconds;
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

// Delete samples taken before cutoff and report how many were removed.
func (s *SQLDistanceCache) PruneBefore(ctx context.Context, cutoff int64) (int64, error) {
	if s.DB == nil {
		return 0, errors.New("distance store: db is nil")
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM distance_samples WHERE sampled_at < $1;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune distance samples: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune distance samples: rows affected: %w", err)
	}
	return n, nil
}

func scanSamples(rows *sql.Rows) ([]domain.DistanceSample, error) {
	out := []domain.DistanceSample{}
	for rows.Next() {
		var smp domain.DistanceSample
		if err := rows.Scan(
			&smp.Origin.Lat, &smp.Origin.Lng,
			&smp.Destination.Lat, &smp.Destination.Lng,
			&smp.SampledAt, &smp.Seconds,
		); err != nil {
			return nil, fmt.Errorf("load distance samples: scan rows: %w", err)
		}
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load distance samples: row iteration: %w", err)
	}
	return out, nil
}
