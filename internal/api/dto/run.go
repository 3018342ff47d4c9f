package dto

import (
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/services"
	"time"
)

// RunOptions builds the per-call flags. A request supplied cache gets its
// own DistanceCache so the shared one is never touched.
func (r *SnapshotRequest) RunOptions(params services.Params) services.RunOptions {
	opts := services.RunOptions{
		Simulation:    r.SimulationMode,
		ProviderCalls: r.GoogleDistanceCalls,
	}
	if samples := r.Samples(); samples != nil {
		opts.Cache = services.NewDistanceCache(params)
		opts.Cache.Load(samples)
	}
	return opts
}

// View collects what the response needs from a finished run. The cache
// exported in verbose mode is the one the run used.
func (r *SnapshotRequest) View(s *domain.Suggestion, shared *services.DistanceCache, opts services.RunOptions, loc *time.Location) SuggestionView {
	v := SuggestionView{
		Suggestion: s,
		Verbose:    r.VerboseOutput,
		Format:     TimeFormat{Human: r.HumanTimeFormat, Location: loc},
	}
	if !r.VerboseOutput {
		return v
	}

	v.ByCourier = services.GroupByCourier(s)
	used := shared
	if opts.Cache != nil {
		used = opts.Cache
	}
	if used != nil {
		v.Cache = used.Samples()
	}
	return v
}
