package services

import (
	"context"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/platform/logger"
	"fmt"
	"slices"
)

// durationSource is the slice of DistanceService the pipeline needs.
type durationSource interface {
	Duration(ctx context.Context, from, to domain.Coordinates) int64
}

// orderState holds everything the pipeline computes for one order.
// The input order itself is never modified.
type orderState struct {
	order domain.Order

	// courierID is the courier the order is committed or suggested to.
	courierID       string
	clusterEligible bool

	tagged bool
	tag    domain.Tag
	score  float64

	hasETF bool
	etf    int64
	pos    int

	clusterFirst  string
	newAssignment bool
	notes         []string
}

func (o *orderState) note(format string, args ...any) {
	o.notes = append(o.notes, fmt.Sprintf(format, args...))
}

func (o *orderState) stamp(etf int64, pos int) {
	o.hasETF, o.etf, o.pos = true, etf, pos
}

// courierState is the projected future of one courier during a run.
type courierState struct {
	courier domain.Courier
	queue   []string
	valid   bool

	finishTime int64
	finishAt   domain.Coordinates
}

func (c *courierState) canServe(o domain.Order) bool {
	return c.valid && c.courier.Serves(o)
}

// dispatchRun is the per-invocation side table keyed by order/courier id.
type dispatchRun struct {
	params Params
	now    int64
	dist   durationSource
	log    logger.Logger

	orders     map[string]*orderState
	couriers   map[string]*courierState
	orderIDs   []string
	courierIDs []string
}

// newDispatchRun builds state for active orders only.
func newDispatchRun(snap domain.Snapshot, params Params, dist durationSource, log logger.Logger) *dispatchRun {
	r := &dispatchRun{
		params:   params,
		now:      snap.Now,
		dist:     dist,
		log:      log,
		orders:   make(map[string]*orderState, len(snap.Orders)),
		couriers: make(map[string]*courierState, len(snap.Couriers)),
	}

	for id, o := range snap.Orders {
		if !o.Status.Active() {
			continue
		}
		o.ID = id
		st := &orderState{order: o}
		if o.Status.Committed() {
			st.courierID = o.CourierID
		}
		r.orders[id] = st
		r.orderIDs = append(r.orderIDs, id)
	}
	slices.Sort(r.orderIDs)

	for id, c := range snap.Couriers {
		c.ID = id
		r.couriers[id] = &courierState{courier: c}
		r.courierIDs = append(r.courierIDs, id)
	}
	slices.Sort(r.courierIDs)

	return r
}

func (r *dispatchRun) travel(ctx context.Context, from, to domain.Coordinates) int64 {
	return r.dist.Duration(ctx, from, to)
}
