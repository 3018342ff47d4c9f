package config

import (
	"fleet-dispatch-service/internal/services"
	"fmt"
	"time"
)

type ServiceClassConfig struct {
	Gallons float64 `json:"gallons"`
	Minutes int     `json:"minutes"`
}

// DispatchConfig is the file form of services.Params. Durations are whole
// minutes (hours for the simulation offset), radii are in degrees.
type DispatchConfig struct {
	NearbyRadiusDeg       float64 `json:"nearby_radius_deg"`
	SameLocationRadiusDeg float64 `json:"same_location_radius_deg"`
	CacheToleranceDeg     float64 `json:"cache_tolerance_deg"`

	ServiceClasses        []ServiceClassConfig `json:"service_classes"`
	GenericServiceMinutes int                  `json:"generic_service_minutes"`
	ServiceClassTolerance float64              `json:"service_class_tolerance"`
	NearbyServiceFactor   float64              `json:"nearby_service_factor"`

	TravelTimeFactor           float64 `json:"travel_time_factor"`
	L1SecondsPerDegree         float64 `json:"l1_seconds_per_degree"`
	NotConnectedPenaltyMinutes int     `json:"not_connected_penalty_minutes"`

	UrgencyHorizonMinutes int     `json:"urgency_horizon_minutes"`
	UrgencyThreshold      float64 `json:"urgency_threshold"`

	ClusterMaxSize           int `json:"cluster_max_size"`
	ClusterGraceMinutes      int `json:"cluster_grace_minutes"`
	ClusterRelaxShortMinutes int `json:"cluster_relax_short_minutes"`
	ClusterRelaxLongMinutes  int `json:"cluster_relax_long_minutes"`

	CacheTTLMinutes                int `json:"cache_ttl_minutes"`
	CacheMaxSamples                int `json:"cache_max_samples"`
	SimulationDepartureOffsetHours int `json:"simulation_departure_offset_hours"`
}

// DefaultDispatchConfig mirrors services.DefaultParams. Service classes are
// filled by SetDefaults so a configured list replaces them whole.
func DefaultDispatchConfig() DispatchConfig {
	p := services.DefaultParams()
	return DispatchConfig{
		NearbyRadiusDeg:       p.NearbyRadius,
		SameLocationRadiusDeg: p.SameLocationRadius,
		CacheToleranceDeg:     p.CacheTolerance,

		GenericServiceMinutes: p.GenericServiceMinutes,
		ServiceClassTolerance: p.ServiceClassTolerance,
		NearbyServiceFactor:   p.NearbyServiceFactor,

		TravelTimeFactor:           p.TravelTimeFactor,
		L1SecondsPerDegree:         p.L1SecondsPerDegree,
		NotConnectedPenaltyMinutes: minutes(p.NotConnectedPenalty),

		UrgencyHorizonMinutes: minutes(p.UrgencyHorizon),
		UrgencyThreshold:      p.UrgencyThreshold,

		ClusterMaxSize:           p.MaxClusterSize,
		ClusterGraceMinutes:      minutes(p.ClusterGrace),
		ClusterRelaxShortMinutes: minutes(p.ClusterRelaxShort),
		ClusterRelaxLongMinutes:  minutes(p.ClusterRelaxLong),

		CacheTTLMinutes:                minutes(p.CacheTTL),
		CacheMaxSamples:                p.CacheMaxSamples,
		SimulationDepartureOffsetHours: int(p.SimulationDepartureOffset / time.Hour),
	}
}

func (c *DispatchConfig) SetDefaults() {
	if len(c.ServiceClasses) == 0 {
		for _, sc := range services.DefaultParams().ServiceClasses {
			c.ServiceClasses = append(c.ServiceClasses, ServiceClassConfig{Gallons: sc.Gallons, Minutes: sc.Minutes})
		}
	}
}

// Params builds the validated dispatcher tuning, including the provider limits.
func (c Config) Params() (services.Params, error) {
	d := c.Dispatch
	p := services.Params{
		NearbyRadius:       d.NearbyRadiusDeg,
		SameLocationRadius: d.SameLocationRadiusDeg,
		CacheTolerance:     d.CacheToleranceDeg,

		GenericServiceMinutes: d.GenericServiceMinutes,
		ServiceClassTolerance: d.ServiceClassTolerance,
		NearbyServiceFactor:   d.NearbyServiceFactor,

		TravelTimeFactor:    d.TravelTimeFactor,
		L1SecondsPerDegree:  d.L1SecondsPerDegree,
		NotConnectedPenalty: time.Duration(d.NotConnectedPenaltyMinutes) * time.Minute,

		UrgencyHorizon:   time.Duration(d.UrgencyHorizonMinutes) * time.Minute,
		UrgencyThreshold: d.UrgencyThreshold,

		MaxClusterSize:    d.ClusterMaxSize,
		ClusterGrace:      time.Duration(d.ClusterGraceMinutes) * time.Minute,
		ClusterRelaxShort: time.Duration(d.ClusterRelaxShortMinutes) * time.Minute,
		ClusterRelaxLong:  time.Duration(d.ClusterRelaxLongMinutes) * time.Minute,

		CacheTTL:                  time.Duration(d.CacheTTLMinutes) * time.Minute,
		CacheMaxSamples:           d.CacheMaxSamples,
		SimulationDepartureOffset: time.Duration(d.SimulationDepartureOffsetHours) * time.Hour,

		ProviderTimeout:     time.Duration(c.Provider.TimeoutSeconds) * time.Second,
		ProviderBatchSize:   c.Provider.MaxElements,
		ProviderConcurrency: c.Provider.Concurrency,
	}
	for _, sc := range d.ServiceClasses {
		p.ServiceClasses = append(p.ServiceClasses, services.ServiceClass{Gallons: sc.Gallons, Minutes: sc.Minutes})
	}

	if err := p.Validate(); err != nil {
		return services.Params{}, fmt.Errorf("config: dispatch: %w", err)
	}
	return p, nil
}

func minutes(d time.Duration) int { return int(d / time.Minute) }
