package services

import (
	"cmp"
	"context"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/platform/logger"
	"fleet-dispatch-service/internal/platform/obs"
	"fleet-dispatch-service/internal/ports"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Dispatcher turns fleet snapshots into assignment suggestions.
// A Dispatcher is safe for concurrent use; each call owns its run state and
// only the distance cache is shared.
type Dispatcher struct {
	provider ports.DurationProvider
	cache    *DistanceCache
	params   Params
	metrics  *obs.Metrics
	log      logger.Logger
}

type DispatcherOption func(*Dispatcher)

func WithMetrics(m *obs.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithLogger(l logger.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// NewDispatcher validates params and wires the shared cache. A nil provider
// makes every uncached lookup use the analytic estimate.
func NewDispatcher(
	provider ports.DurationProvider,
	cache *DistanceCache,
	params Params,
	opts ...DispatcherOption,
) (*Dispatcher, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("new dispatcher: %w", err)
	}
	if cache == nil {
		cache = NewDistanceCache(params)
	}

	d := &Dispatcher{
		provider: provider,
		cache:    cache,
		params:   params,
		log:      logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Params returns the dispatcher tuning.
func (d *Dispatcher) Params() Params { return d.params }

// Cache returns the shared distance cache.
func (d *Dispatcher) Cache() *DistanceCache { return d.cache }

// RunOptions are the per-call flags carried by a snapshot request.
type RunOptions struct {
	// Simulation disables cache eviction and shifts provider departure times.
	Simulation bool
	// Cache replaces the shared cache for this call when non-nil.
	Cache *DistanceCache
	// ProviderCalls seeds the provider call counter.
	ProviderCalls int64
}

func (d *Dispatcher) distanceFor(snap domain.Snapshot, opts RunOptions) *DistanceService {
	cache := d.cache
	if opts.Cache != nil {
		cache = opts.Cache
	}
	if !opts.Simulation {
		if n := cache.Prune(snap.Now); n > 0 {
			d.log.Debugf("pruned %d stale distance samples", n)
		}
	}
	return NewDistanceService(d.provider, cache, d.params, DistanceOptions{
		Now:          snap.Now,
		Simulation:   opts.Simulation,
		InitialCalls: opts.ProviderCalls,
		Metrics:      d.metrics,
		Logger:       d.log,
	})
}

// Suggest runs the full pipeline: courier validation, finish-state
// projection, classification, sorting, clustering and assignment.
//
// When the snapshot holds no unassigned order the result is empty: there is
// nothing to do, which is different from having no feasible assignment.
func (d *Dispatcher) Suggest(ctx context.Context, snap domain.Snapshot, opts RunOptions) (_ *domain.Suggestion, err error) {
	defer obs.Time(ctx, "dispatch.Suggest")(&err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &domain.Suggestion{
		RunID:         uuid.NewString(),
		Now:           snap.Now,
		Results:       map[string]domain.OrderResult{},
		SortedOrders:  []string{},
		Clusters:      [][]string{},
		ProviderCalls: opts.ProviderCalls,
		ValidCouriers: map[string]bool{},
	}
	if !snap.HasUnassigned() {
		return s, nil
	}

	dist := d.distanceFor(snap, opts)
	r := newDispatchRun(snap, d.params, dist, d.log)

	r.validateCouriers()
	r.projectFinishStates(ctx)
	r.classifyOrders(ctx)
	sorted := r.sortOrders()
	clusters := r.clusterOrders(sorted)
	r.assignClusters(ctx, clusters)

	s.SortedOrders = sorted
	s.Clusters = clusters
	s.ProviderCalls = dist.Calls()
	newCount, unplaced := 0, 0
	for _, oid := range r.orderIDs {
		res := r.orders[oid].result()
		s.Results[oid] = res
		if res.NewAssignment {
			newCount++
		}
		if res.CourierID == "" {
			unplaced++
		}
	}
	for _, cid := range r.courierIDs {
		s.ValidCouriers[cid] = r.couriers[cid].valid
	}

	d.metrics.RunCompleted()
	d.metrics.OrdersAssigned("new", newCount)
	d.metrics.OrdersAssigned("unplaced", unplaced)
	d.log.Infof("run %s: %d orders, %d clusters, %d new assignments, %d provider calls",
		s.RunID, len(r.orderIDs), len(clusters), newCount, s.ProviderCalls)

	return s, nil
}

func (o *orderState) result() domain.OrderResult {
	res := domain.OrderResult{
		OrderID:       o.order.ID,
		Status:        o.order.Status,
		CourierID:     o.courierID,
		NewAssignment: o.newAssignment,
		Notes:         slices.Clone(o.notes),
	}
	if o.pos > 0 {
		pos := o.pos
		res.CourierPos = &pos
	}
	if o.hasETF {
		etf := o.etf
		res.ETF = &etf
	}
	if o.tagged {
		tag := o.tag
		res.Tag = &tag
	}
	if o.clusterFirst != "" {
		first := o.clusterFirst
		res.ClusterFirstOrder = &first
	}
	return res
}

// GroupByCourier lists the results handed to each courier of the run. Orders
// of valid couriers are ordered by queue position, others by order id.
func GroupByCourier(s *domain.Suggestion) map[string][]domain.OrderResult {
	out := make(map[string][]domain.OrderResult, len(s.ValidCouriers))
	for cid := range s.ValidCouriers {
		out[cid] = []domain.OrderResult{}
	}

	for _, res := range s.Results {
		if _, ok := out[res.CourierID]; ok {
			out[res.CourierID] = append(out[res.CourierID], res)
		}
	}

	for cid, list := range out {
		valid := s.ValidCouriers[cid]
		slices.SortFunc(list, func(a, b domain.OrderResult) int {
			if valid && a.CourierPos != nil && b.CourierPos != nil {
				if c := cmp.Compare(*a.CourierPos, *b.CourierPos); c != 0 {
					return c
				}
			}
			return cmp.Compare(a.OrderID, b.OrderID)
		})
	}
	return out
}
