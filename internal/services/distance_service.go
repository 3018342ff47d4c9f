package services

import (
	"context"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/platform/logger"
	"fleet-dispatch-service/internal/platform/obs"
	"fleet-dispatch-service/internal/ports"
	"sync/atomic"
	"time"
)

// DistanceOptions configures one DistanceService.
type DistanceOptions struct {
	// Now is the processing time used for cache freshness and sample stamps.
	Now int64
	// Simulation shifts provider departure times far into the future so
	// replays of historical snapshots stay stable.
	Simulation bool
	// InitialCalls seeds the provider call counter for cross-run continuity.
	InitialCalls int64
	Metrics      *obs.Metrics
	Logger       logger.Logger
}

// DistanceService resolves travel durations through the chain
// cache -> provider -> analytic estimate. It never returns an error.
type DistanceService struct {
	provider ports.DurationProvider
	cache    *DistanceCache
	params   Params
	now      int64
	departAt time.Time
	calls    atomic.Int64
	metrics  *obs.Metrics
	log      logger.Logger
}

func NewDistanceService(
	provider ports.DurationProvider,
	cache *DistanceCache,
	params Params,
	opts DistanceOptions,
) *DistanceService {
	if cache == nil {
		cache = NewDistanceCache(params)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NopLogger{}
	}

	departAt := time.Unix(opts.Now, 0)
	if opts.Simulation {
		departAt = departAt.Add(params.SimulationDepartureOffset)
	}

	s := &DistanceService{
		provider: provider,
		cache:    cache,
		params:   params,
		now:      opts.Now,
		departAt: departAt,
		metrics:  opts.Metrics,
		log:      log,
	}
	s.calls.Store(opts.InitialCalls)
	return s
}

// Calls is the number of provider requests attempted, including the seed.
func (s *DistanceService) Calls() int64 { return s.calls.Load() }

// Cache exposes the backing cache so callers can export it after a run.
func (s *DistanceService) Cache() *DistanceCache { return s.cache }

// Duration returns the travel time in seconds from one point to another.
func (s *DistanceService) Duration(ctx context.Context, from, to domain.Coordinates) int64 {
	if from.Within(to, s.params.SameLocationRadius) {
		return 0
	}

	if secs, ok := s.cache.Lookup(from, to, s.now); ok {
		s.metrics.CacheLookup(true)
		return secs
	}
	s.metrics.CacheLookup(false)

	if s.provider == nil {
		return s.params.EstimateSeconds(from, to)
	}

	secs, ok := s.fetchOne(ctx, from, to)
	if !ok {
		return s.params.EstimateSeconds(from, to)
	}
	s.cache.Store(from, to, s.now, secs)
	return secs
}

func (s *DistanceService) fetchOne(ctx context.Context, from, to domain.Coordinates) (int64, bool) {
	s.calls.Add(1)

	ctx, cancel := context.WithTimeout(ctx, s.params.ProviderTimeout)
	defer cancel()

	rows, err := s.provider.Durations(ctx, []domain.Coordinates{from}, []domain.Coordinates{to}, s.departAt)
	if err != nil {
		s.metrics.ProviderCall("error")
		s.log.Warnf("distance provider failed %s -> %s: %v", from, to, err)
		return 0, false
	}
	if len(rows) != 1 || len(rows[0]) != 1 || !rows[0][0].OK || rows[0][0].Seconds < 0 {
		s.metrics.ProviderCall("invalid")
		s.log.Warnf("distance provider returned no usable duration %s -> %s", from, to)
		return 0, false
	}

	s.metrics.ProviderCall("ok")
	return rows[0][0].Seconds, true
}
