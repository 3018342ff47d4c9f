package services

import (
	"cmp"
	"slices"
)

// validateCouriers derives each courier's queue and validity flag, then marks
// which orders may anchor or extend a cluster.
//
// A courier is valid when its finish state can be projected with confidence:
//   - no queued orders and a usable live location
//   - exactly one queued order
//   - exactly two queued orders of which exactly one is being worked on;
//     that order is moved to the front
//
// Anything else (idle without location, two orders with zero or two working,
// three or more orders) is invalid.
func (r *dispatchRun) validateCouriers() {
	for _, cid := range r.courierIDs {
		cs := r.couriers[cid]

		queue := []string{}
		for _, oid := range r.orderIDs {
			o := r.orders[oid]
			if o.order.Status.Committed() && o.courierID == cid {
				queue = append(queue, oid)
			}
		}
		slices.SortStableFunc(queue, func(a, b string) int {
			return cmp.Compare(r.orders[a].order.Status.QueueRank(), r.orders[b].order.Status.QueueRank())
		})

		switch len(queue) {
		case 0:
			cs.valid = cs.courier.HasUsableLocation()
		case 1:
			cs.valid = true
		case 2:
			first := r.orders[queue[0]].order.Status.Working()
			second := r.orders[queue[1]].order.Status.Working()
			switch {
			case first && !second:
				cs.valid = true
			case second && !first:
				queue[0], queue[1] = queue[1], queue[0]
				cs.valid = true
			default:
				cs.valid = false
			}
		default:
			cs.valid = false
		}
		cs.queue = queue

		if !cs.valid {
			r.log.Debugf("courier %s invalid: %d queued orders, usable location %t",
				cid, len(queue), cs.courier.HasUsableLocation())
		}
	}

	r.markClusterEligibility()
}

// markClusterEligibility flags orders that may seed or extend a cluster: every
// unassigned order, and the last queued order of a valid courier.
func (r *dispatchRun) markClusterEligibility() {
	for _, cid := range r.courierIDs {
		cs := r.couriers[cid]
		if !cs.valid || len(cs.queue) == 0 {
			continue
		}
		r.orders[cs.queue[len(cs.queue)-1]].clusterEligible = true
	}

	for _, oid := range r.orderIDs {
		o := r.orders[oid]
		if !o.order.Status.Committed() {
			o.clusterEligible = true
			continue
		}
		if _, ok := r.couriers[o.courierID]; !ok {
			o.note("committed to unknown courier %q; left untouched", o.courierID)
		}
	}
}
