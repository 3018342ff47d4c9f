package services

import (
	"context"
	"fleet-dispatch-service/internal/adapters/distance"
	"fleet-dispatch-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeETAs(t *testing.T) {
	c1 := idleCourier(34.0, -118.0)
	o1 := unassigned(34.01, -118.0, 7200)
	o2 := committed(domain.StatusAssigned, "c1")
	o2.Location = domain.Coordinates{Lat: 34.02, Lng: -118.0}

	provider := distance.NewMockDurationProvider([]distance.MockPair{
		{From: c1.Location, To: o1.Location, Seconds: 333},
	})
	params := DefaultParams()
	params.ProviderBatchSize = 1
	d, err := NewDispatcher(provider, nil, params)
	require.NoError(t, err)

	snap := domain.Snapshot{
		Orders: map[string]domain.Order{
			"o1": o1,
			"o2": o2,
			"o3": committed(domain.StatusComplete, "c1"),
		},
		Couriers: map[string]domain.Courier{
			"c1": c1,
			"c2": {Zones: []int{1}},
		},
		Now: t0,
	}

	etas, calls, err := d.ComputeETAs(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, ETAMatrix{
		"o1": {"c1": 333},
		"o2": {"c1": params.EstimateSeconds(c1.Location, o2.Location)},
	}, etas)
	assert.Equal(t, int64(2), calls, "one request per block")
	assert.Equal(t, 1, d.Cache().Len())

	// o1 now comes from the cache; only the o2 block is requested again.
	_, calls, err = d.ComputeETAs(context.Background(), snap, RunOptions{ProviderCalls: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls)
	assert.Equal(t, 3, provider.Calls())
}

func TestComputeETAsWithoutCouriers(t *testing.T) {
	d := newTestDispatcher(t, nil)

	snap := domain.Snapshot{
		Orders:   map[string]domain.Order{"o1": unassigned(34.01, -118.0, 7200)},
		Couriers: map[string]domain.Courier{"offline": {Zones: []int{1}}},
		Now:      t0,
	}

	etas, calls, err := d.ComputeETAs(context.Background(), snap, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, ETAMatrix{"o1": {}}, etas)
	assert.Zero(t, calls)
}

func TestMatrixFailingProvider(t *testing.T) {
	params := DefaultParams()
	svc := NewDistanceService(distance.NewFailingDurationProvider(), nil, params, noOpts)

	origins := []domain.Coordinates{depot, custA}
	dests := []domain.Coordinates{custA, custB}
	m := svc.Matrix(context.Background(), origins, dests)

	assert.Equal(t, params.EstimateSeconds(depot, custA), m[0][0])
	assert.Equal(t, params.EstimateSeconds(depot, custB), m[0][1])
	assert.Equal(t, int64(0), m[1][0], "same location")
	assert.Equal(t, params.EstimateSeconds(custA, custB), m[1][1])
	assert.Equal(t, int64(1), svc.Calls())
}
