package services

import (
	"context"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/platform/logger"
	"fleet-dispatch-service/internal/ports"
	"fmt"
)

// Engine couples a Dispatcher with distance sample persistence and
// suggestion publication. Store and publisher are optional; their failures
// are logged and never fail a run.
type Engine struct {
	d     *Dispatcher
	store ports.DistanceCacheStore
	pub   ports.SuggestionPublisher
	log   logger.Logger
}

func NewEngine(d *Dispatcher, store ports.DistanceCacheStore, pub ports.SuggestionPublisher, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{d: d, store: store, pub: pub, log: log}
}

func (e *Engine) Dispatcher() *Dispatcher { return e.d }

// Restore loads samples still fresh at now into the shared cache.
func (e *Engine) Restore(ctx context.Context, now int64) (int, error) {
	if e.store == nil {
		return 0, nil
	}
	since := now - int64(e.d.params.CacheTTL.Seconds())
	samples, err := e.store.LoadSamples(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("restore distance cache: %w", err)
	}
	e.d.cache.Load(samples)
	return len(samples), nil
}

// Prune deletes persisted samples that are stale at now.
func (e *Engine) Prune(ctx context.Context, now int64) (int64, error) {
	if e.store == nil {
		return 0, nil
	}
	cutoff := now - int64(e.d.params.CacheTTL.Seconds())
	n, err := e.store.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune distance store: %w", err)
	}
	return n, nil
}

// Suggest runs the dispatcher, then persists the samples gathered during the
// run and publishes the new assignments.
func (e *Engine) Suggest(ctx context.Context, snap domain.Snapshot, opts RunOptions) (*domain.Suggestion, error) {
	s, err := e.d.Suggest(ctx, snap, opts)
	if err != nil {
		return nil, err
	}

	e.persist(ctx, snap.Now, opts)

	if e.pub != nil {
		if err := e.pub.Publish(ctx, s); err != nil {
			e.log.Warnf("publish run %s: %v", s.RunID, err)
		}
	}
	return s, nil
}

// ComputeETAs runs the ETA matrix and persists the samples it gathered.
func (e *Engine) ComputeETAs(ctx context.Context, snap domain.Snapshot, opts RunOptions) (ETAMatrix, int64, error) {
	etas, calls, err := e.d.ComputeETAs(ctx, snap, opts)
	if err != nil {
		return nil, 0, err
	}
	e.persist(ctx, snap.Now, opts)
	return etas, calls, nil
}

// persist saves the samples stamped during a run on the shared cache.
// Runs with a caller supplied cache keep their samples private.
func (e *Engine) persist(ctx context.Context, now int64, opts RunOptions) {
	if e.store == nil || opts.Cache != nil {
		return
	}
	fresh := e.d.cache.SamplesSince(now)
	if len(fresh) == 0 {
		return
	}
	if err := e.store.SaveSamples(ctx, fresh); err != nil {
		e.log.Warnf("save %d distance samples: %v", len(fresh), err)
		return
	}
	e.log.Debugf("saved %d distance samples", len(fresh))
}
