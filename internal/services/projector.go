package services

import (
	"context"
	"fleet-dispatch-service/internal/domain"
)

// projectFinishStates walks each valid courier's queue forward from now,
// stamping etf and queue position on every visited order and recording
// where and when the courier becomes free. Invalid couriers only get the etf
// of a working first order.
func (r *dispatchRun) projectFinishStates(ctx context.Context) {
	for _, cid := range r.courierIDs {
		cs := r.couriers[cid]

		if !cs.valid {
			if len(cs.queue) > 0 {
				first := r.orders[cs.queue[0]]
				if first.order.Status.Working() {
					first.hasETF = true
					first.etf = r.now + r.firstLegSeconds(ctx, cs, first.order)
				}
			}
			continue
		}

		t := r.now
		at := cs.courier.Location

		for i, oid := range cs.queue {
			o := r.orders[oid]
			switch {
			case i == 0:
				t += r.firstLegSeconds(ctx, cs, o.order)
			case o.order.Location.Within(at, r.params.NearbyRadius):
				t += r.params.NearbyServiceSeconds(o.order)
			default:
				t += r.travel(ctx, at, o.order.Location) + r.params.ServiceSeconds(o.order)
			}
			o.stamp(t, i+1)
			at = o.order.Location
		}

		cs.finishTime = t
		cs.finishAt = at
	}
}

// firstLegSeconds is the time until the courier finishes the head of its queue.
func (r *dispatchRun) firstLegSeconds(ctx context.Context, cs *courierState, o domain.Order) int64 {
	service := r.params.ServiceSeconds(o)
	switch {
	case o.Status == domain.StatusServicing:
		return service / 2
	case cs.courier.HasUsableLocation():
		return r.travel(ctx, cs.courier.Location, o.Location) + service
	default:
		return service + int64(r.params.NotConnectedPenalty.Seconds())
	}
}
