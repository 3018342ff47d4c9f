package services

import (
	"fleet-dispatch-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const t0 = int64(1_700_000_000)

func TestDistanceCacheFuzzyLookup(t *testing.T) {
	c := NewDistanceCache(DefaultParams())

	a := domain.Coordinates{Lat: 34.1, Lng: -118.3}
	b := domain.Coordinates{Lat: 34.2, Lng: -118.4}
	c.Store(a, b, t0, 600)

	near := func(p domain.Coordinates, dLat, dLng float64) domain.Coordinates {
		return domain.Coordinates{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
	}

	secs, ok := c.Lookup(near(a, 0.0003, -0.0003), near(b, -0.0004, 0), t0+60)
	require.True(t, ok, "fuzzy match within tolerance")
	assert.Equal(t, int64(600), secs)

	secs, ok = c.Lookup(near(b, 0.0002, 0), near(a, 0, 0.0002), t0+60)
	require.True(t, ok, "reversed direction matches")
	assert.Equal(t, int64(600), secs)

	_, ok = c.Lookup(near(a, 0.0006, 0), b, t0+60)
	assert.False(t, ok, "origin outside tolerance")

	_, ok = c.Lookup(a, near(b, 0.0004, 0.0004), t0+60)
	assert.False(t, ok, "destination outside tolerance by true distance")
}

func TestDistanceCacheAcrossGridBoundary(t *testing.T) {
	c := NewDistanceCache(DefaultParams())

	// 0.0005 grid: these straddle a cell edge but are 0.0002 apart.
	a := domain.Coordinates{Lat: 10.00049, Lng: 20.00049}
	q := domain.Coordinates{Lat: 10.00051, Lng: 20.00051}
	b := domain.Coordinates{Lat: 10.5, Lng: 20.5}

	c.Store(a, b, t0, 321)

	secs, ok := c.Lookup(q, b, t0)
	require.True(t, ok)
	assert.Equal(t, int64(321), secs)
}

func TestDistanceCacheFreshness(t *testing.T) {
	params := DefaultParams()
	c := NewDistanceCache(params)

	a := domain.Coordinates{Lat: 1, Lng: 1}
	b := domain.Coordinates{Lat: 2, Lng: 2}
	c.Store(a, b, t0, 100)
	c.Store(a, b, t0+600, 140)

	secs, ok := c.Lookup(a, b, t0+900)
	require.True(t, ok)
	assert.Equal(t, int64(140), secs, "newest fresh sample wins")

	ttl := int64(params.CacheTTL.Seconds())
	secs, ok = c.Lookup(a, b, t0+ttl+1)
	require.True(t, ok, "second sample still fresh")
	assert.Equal(t, int64(140), secs)

	_, ok = c.Lookup(a, b, t0+600+ttl+1)
	assert.False(t, ok, "every sample expired")

	assert.Equal(t, 1, c.Prune(t0+ttl+1))
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, c.Prune(t0+600+ttl+1))
	assert.Equal(t, 0, c.Len())
}

func TestDistanceCacheCapsSamples(t *testing.T) {
	params := DefaultParams()
	params.CacheMaxSamples = 2
	c := NewDistanceCache(params)

	a := domain.Coordinates{Lat: 1, Lng: 1}
	b := domain.Coordinates{Lat: 2, Lng: 2}
	c.Store(a, b, t0, 1)
	c.Store(a, b, t0+1, 2)
	c.Store(a, b, t0+2, 3)
	c.Store(a, b, t0+2, 4)

	samples := c.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, t0+1, samples[0].SampledAt)
	assert.Equal(t, int64(4), samples[1].Seconds, "same timestamp overwrites")
}

func TestDistanceCacheExportLoad(t *testing.T) {
	c := NewDistanceCache(DefaultParams())
	c.Store(domain.Coordinates{Lat: 3, Lng: 3}, domain.Coordinates{Lat: 4, Lng: 4}, t0, 30)
	c.Store(domain.Coordinates{Lat: 1, Lng: 1}, domain.Coordinates{Lat: 2, Lng: 2}, t0, 10)

	exported := c.Samples()
	require.Len(t, exported, 2)
	assert.Equal(t, 1.0, exported[0].Origin.Lat, "export is sorted")

	restored := NewDistanceCache(DefaultParams())
	restored.Load(exported)
	assert.Equal(t, exported, restored.Samples())

	secs, ok := restored.Lookup(domain.Coordinates{Lat: 2, Lng: 2}, domain.Coordinates{Lat: 1, Lng: 1}, t0)
	require.True(t, ok)
	assert.Equal(t, int64(10), secs)
}
