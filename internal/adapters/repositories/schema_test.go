package repositories

import (
	"fleet-dispatch-service/internal/domain"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplesJSONExportImport(t *testing.T) {
	samples := []domain.DistanceSample{
		{
			Origin:      domain.Coordinates{Lat: 34.05, Lng: -118.25},
			Destination: domain.Coordinates{Lat: 34.06, Lng: -118.24},
			SampledAt:   1_700_000_000,
			Seconds:     420,
		},
	}

	path := filepath.Join(t.TempDir(), "samples.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteSamplesJSON(f, samples))
	require.NoError(t, f.Close())

	got, err := ReadSamplesJSON(path)
	require.NoError(t, err)
	assert.Equal(t, samples, got)
}

func TestReadSamplesJSONRejectsBadRecords(t *testing.T) {
	cases := map[string]string{
		"malformed":         `[{"origin_lat":`,
		"out of range":      `[{"origin_lat":95,"origin_lng":1,"dest_lat":1,"dest_lng":1,"sampled_at":1,"duration_seconds":1}]`,
		"negative duration": `[{"origin_lat":1,"origin_lng":1,"dest_lat":1,"dest_lng":1,"sampled_at":1,"duration_seconds":-5}]`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "samples.json")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

			_, err := ReadSamplesJSON(path)
			assert.Error(t, err)
		})
	}
}

func TestReadSamplesJSONMissingFile(t *testing.T) {
	_, err := ReadSamplesJSON(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestInitSchemaNilDB(t *testing.T) {
	assert.Error(t, InitSchema(nil))
}
