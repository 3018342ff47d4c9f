package services

import (
	"errors"
	"fleet-dispatch-service/internal/domain"
	"fmt"
	"math"
	"time"
)

// ServiceClass maps a delivered quantity to its nominal service duration.
type ServiceClass struct {
	Gallons float64
	Minutes int
}

// Params is the tuning of one dispatcher, passed by value into every run.
type Params struct {
	// Radii in coordinate degrees.
	NearbyRadius       float64
	SameLocationRadius float64
	CacheTolerance     float64

	ServiceClasses        []ServiceClass
	GenericServiceMinutes int
	ServiceClassTolerance float64
	NearbyServiceFactor   float64

	TravelTimeFactor    float64
	L1SecondsPerDegree  float64
	NotConnectedPenalty time.Duration

	UrgencyHorizon   time.Duration
	UrgencyThreshold float64

	MaxClusterSize    int
	ClusterGrace      time.Duration
	ClusterRelaxShort time.Duration
	ClusterRelaxLong  time.Duration

	CacheTTL                  time.Duration
	CacheMaxSamples           int
	SimulationDepartureOffset time.Duration

	ProviderTimeout     time.Duration
	ProviderBatchSize   int
	ProviderConcurrency int
}

// DefaultParams returns the production tuning.
func DefaultParams() Params {
	return Params{
		NearbyRadius:       0.001,
		SameLocationRadius: 0.0001,
		CacheTolerance:     0.0005,

		ServiceClasses: []ServiceClass{
			{Gallons: 10, Minutes: 20},
			{Gallons: 15, Minutes: 25},
		},
		GenericServiceMinutes: 25,
		ServiceClassTolerance: 0.05,
		NearbyServiceFactor:   0.75,

		TravelTimeFactor:    2.5,
		L1SecondsPerDegree:  15000,
		NotConnectedPenalty: 15 * time.Minute,

		UrgencyHorizon:   60 * time.Minute,
		UrgencyThreshold: 0.8,

		MaxClusterSize:    3,
		ClusterGrace:      10 * time.Minute,
		ClusterRelaxShort: 3 * time.Minute,
		ClusterRelaxLong:  6 * time.Minute,

		CacheTTL:                  30 * time.Minute,
		CacheMaxSamples:           8,
		SimulationDepartureOffset: 365 * 24 * time.Hour,

		ProviderTimeout:     5 * time.Second,
		ProviderBatchSize:   25,
		ProviderConcurrency: 4,
	}
}

// Validate rejects tunings that would make the heuristics meaningless.
func (p Params) Validate() error {
	if p.NearbyRadius <= 0 || p.SameLocationRadius <= 0 || p.CacheTolerance <= 0 {
		return errors.New("params: radii must be positive")
	}
	if p.SameLocationRadius > p.NearbyRadius {
		return fmt.Errorf("params: same location radius %v exceeds nearby radius %v", p.SameLocationRadius, p.NearbyRadius)
	}
	if p.GenericServiceMinutes <= 0 {
		return errors.New("params: generic service minutes must be positive")
	}
	for _, c := range p.ServiceClasses {
		if c.Gallons <= 0 || c.Minutes <= 0 {
			return fmt.Errorf("params: invalid service class %+v", c)
		}
	}
	if p.ServiceClassTolerance < 0 || p.ServiceClassTolerance >= 1 {
		return errors.New("params: service class tolerance must be in [0,1)")
	}
	if p.NearbyServiceFactor <= 0 || p.NearbyServiceFactor > 1 {
		return errors.New("params: nearby service factor must be in (0,1]")
	}
	if p.TravelTimeFactor < 0 || p.L1SecondsPerDegree <= 0 {
		return errors.New("params: travel factors must be positive")
	}
	if p.UrgencyThreshold <= 0 || p.UrgencyThreshold > 1 {
		return errors.New("params: urgency threshold must be in (0,1]")
	}
	if p.MaxClusterSize < 1 {
		return errors.New("params: max cluster size must be at least 1")
	}
	if p.CacheTTL <= 0 || p.CacheMaxSamples < 1 {
		return errors.New("params: cache ttl and max samples must be positive")
	}
	if p.ProviderBatchSize < 1 || p.ProviderConcurrency < 1 {
		return errors.New("params: provider batch size and concurrency must be positive")
	}
	return nil
}

// ServiceSeconds is the nominal service duration of an order. The quantity
// is matched to the closest service class within the relative tolerance;
// anything else gets the generic duration.
func (p Params) ServiceSeconds(o domain.Order) int64 {
	best := -1
	bestDiff := math.MaxFloat64
	for i, c := range p.ServiceClasses {
		diff := math.Abs(o.Gallons - c.Gallons)
		if diff <= c.Gallons*p.ServiceClassTolerance && diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best < 0 {
		return int64(p.GenericServiceMinutes) * 60
	}
	return int64(p.ServiceClasses[best].Minutes) * 60
}

// NearbyServiceSeconds is the discounted duration for an order reached
// without a travel leg.
func (p Params) NearbyServiceSeconds(o domain.Order) int64 {
	return int64(math.Round(p.NearbyServiceFactor * float64(p.ServiceSeconds(o))))
}

// ClusterServiceSeconds is the relaxed duration used by cluster fit checks.
// Wider delivery windows tolerate a shorter estimate.
func (p Params) ClusterServiceSeconds(o domain.Order) int64 {
	base := p.ServiceSeconds(o)
	switch w := o.Window(); {
	case w <= 3600:
		return base
	case w <= 7200:
		return base - int64(p.ClusterRelaxShort.Seconds())
	default:
		return base - int64(p.ClusterRelaxLong.Seconds())
	}
}

// EstimateSeconds is the analytic travel estimate used when no provider data exists.
func (p Params) EstimateSeconds(from, to domain.Coordinates) int64 {
	return int64(math.Round(p.L1SecondsPerDegree * from.L1(to)))
}
