package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fleet-dispatch-service/internal/domain"
	"fmt"
	"io"
	"os"
)

// Initialize the distance sample schema. The statements are valid for both
// SQLite and Postgres.
func InitSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createSamplesQuery := `
	CREATE TABLE IF NOT EXISTS distance_samples (
        origin_lat DOUBLE PRECISION NOT NULL,
        origin_lng DOUBLE PRECISION NOT NULL,
        dest_lat DOUBLE PRECISION NOT NULL,
        dest_lng DOUBLE PRECISION NOT NULL,
        sampled_at BIGINT NOT NULL,
        duration_seconds BIGINT NOT NULL,
        PRIMARY KEY (origin_lat, origin_lng, dest_lat, dest_lng, sampled_at)
    );
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_distance_samples_sampled_at
    ON distance_samples(sampled_at);
	`

	statements := []string{
		createSamplesQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// SampleRecord is the file format used by cache export and import.
type SampleRecord struct {
	OriginLat       float64 `json:"origin_lat"`
	OriginLng       float64 `json:"origin_lng"`
	DestLat         float64 `json:"dest_lat"`
	DestLng         float64 `json:"dest_lng"`
	SampledAt       int64   `json:"sampled_at"`
	DurationSeconds int64   `json:"duration_seconds"`
}

// Read distance samples from a JSON file written by WriteSamplesJSON.
func ReadSamplesJSON(jsonPath string) ([]domain.DistanceSample, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("read samples: read %q: %w", jsonPath, err)
	}

	var data []SampleRecord
	if err := json.Unmarshal(bytes, &data); err != nil {
		return nil, fmt.Errorf("read samples: parse json: %w", err)
	}

	out := make([]domain.DistanceSample, 0, len(data))
	for i, item := range data {
		smp := domain.DistanceSample{
			Origin:      domain.Coordinates{Lat: item.OriginLat, Lng: item.OriginLng},
			Destination: domain.Coordinates{Lat: item.DestLat, Lng: item.DestLng},
			SampledAt:   item.SampledAt,
			Seconds:     item.DurationSeconds,
		}
		if !smp.Origin.Valid() || !smp.Destination.Valid() {
			return nil, fmt.Errorf("read samples: invalid coordinates at index %d", i+1)
		}
		if smp.Seconds < 0 {
			return nil, fmt.Errorf("read samples: negative duration at index %d: %d", i+1, smp.Seconds)
		}
		out = append(out, smp)
	}

	return out, nil
}

// Write distance samples as an indented JSON array.
func WriteSamplesJSON(w io.Writer, samples []domain.DistanceSample) error {
	data := make([]SampleRecord, 0, len(samples))
	for _, smp := range samples {
		data = append(data, SampleRecord{
			OriginLat:       smp.Origin.Lat,
			OriginLng:       smp.Origin.Lng,
			DestLat:         smp.Destination.Lat,
			DestLng:         smp.Destination.Lng,
			SampledAt:       smp.SampledAt,
			DurationSeconds: smp.Seconds,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}
