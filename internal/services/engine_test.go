package services

import (
	"context"
	"errors"
	"fleet-dispatch-service/internal/adapters/distance"
	"fleet-dispatch-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	samples []domain.DistanceSample
	saveErr error
	since   int64
}

func (m *memoryStore) LoadSamples(_ context.Context, since int64) ([]domain.DistanceSample, error) {
	m.since = since
	var out []domain.DistanceSample
	for _, s := range m.samples {
		if s.SampledAt >= since {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryStore) SaveSamples(_ context.Context, samples []domain.DistanceSample) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.samples = append(m.samples, samples...)
	return nil
}

func (m *memoryStore) PruneBefore(_ context.Context, cutoff int64) (int64, error) {
	kept := m.samples[:0]
	var n int64
	for _, s := range m.samples {
		if s.SampledAt < cutoff {
			n++
			continue
		}
		kept = append(kept, s)
	}
	m.samples = kept
	return n, nil
}

type recordingPublisher struct {
	runs []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, s *domain.Suggestion) error {
	p.runs = append(p.runs, s.RunID)
	return p.err
}

func engineSnapshot() (domain.Snapshot, []distance.MockPair) {
	snap := domain.Snapshot{
		Orders:   map[string]domain.Order{"o1": unassigned(34.01, -118.0, 7200)},
		Couriers: map[string]domain.Courier{"c1": idleCourier(34.0, -118.0)},
		Now:      t0,
	}
	pairs := []distance.MockPair{
		{From: snap.Couriers["c1"].Location, To: snap.Orders["o1"].Location, Seconds: 240},
	}
	return snap, pairs
}

func TestEngineSuggestPersistsAndPublishes(t *testing.T) {
	snap, pairs := engineSnapshot()
	d, err := NewDispatcher(distance.NewMockDurationProvider(pairs), nil, DefaultParams())
	require.NoError(t, err)

	store := &memoryStore{}
	pub := &recordingPublisher{}
	e := NewEngine(d, store, pub, nil)

	s, err := e.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, t0+240+1200, *s.Results["o1"].ETF)
	require.Len(t, store.samples, 1)
	assert.Equal(t, int64(240), store.samples[0].Seconds)
	assert.Equal(t, t0, store.samples[0].SampledAt)
	assert.Equal(t, []string{s.RunID}, pub.runs)
}

func TestEngineSideEffectFailuresDoNotFailRun(t *testing.T) {
	snap, pairs := engineSnapshot()
	d, err := NewDispatcher(distance.NewMockDurationProvider(pairs), nil, DefaultParams())
	require.NoError(t, err)

	e := NewEngine(d, &memoryStore{saveErr: errors.New("disk full")}, &recordingPublisher{err: errors.New("broker down")}, nil)

	s, err := e.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "c1", s.Results["o1"].CourierID)
}

func TestEngineCallerCacheStaysPrivate(t *testing.T) {
	snap, pairs := engineSnapshot()
	d, err := NewDispatcher(distance.NewMockDurationProvider(pairs), nil, DefaultParams())
	require.NoError(t, err)

	store := &memoryStore{}
	e := NewEngine(d, store, nil, nil)

	private := NewDistanceCache(d.Params())
	_, err = e.Suggest(context.Background(), snap, RunOptions{Cache: private})
	require.NoError(t, err)

	assert.Equal(t, 1, private.Len())
	assert.Equal(t, 0, d.Cache().Len())
	assert.Empty(t, store.samples)
}

func TestEngineRestoreAndPrune(t *testing.T) {
	params := DefaultParams()
	ttl := int64(params.CacheTTL.Seconds())
	old := domain.DistanceSample{Origin: depot, Destination: custA, SampledAt: t0 - ttl - 10, Seconds: 100}
	recent := domain.DistanceSample{Origin: depot, Destination: custB, SampledAt: t0 - 60, Seconds: 200}

	d, err := NewDispatcher(nil, nil, params)
	require.NoError(t, err)
	store := &memoryStore{samples: []domain.DistanceSample{old, recent}}
	e := NewEngine(d, store, nil, nil)

	n, err := e.Restore(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, t0-ttl, store.since)
	assert.Equal(t, []domain.DistanceSample{recent}, d.Cache().Samples())

	pruned, err := e.Prune(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
	assert.Equal(t, []domain.DistanceSample{recent}, store.samples)
}

func TestEngineWithoutStore(t *testing.T) {
	d, err := NewDispatcher(nil, nil, DefaultParams())
	require.NoError(t, err)
	e := NewEngine(d, nil, nil, nil)

	n, err := e.Restore(context.Background(), t0)
	require.NoError(t, err)
	assert.Zero(t, n)

	etas, _, err := e.ComputeETAs(context.Background(), fleetSnapshot(), RunOptions{})
	require.NoError(t, err)
	assert.Contains(t, etas, "o1")
}
