package services

import (
	"cmp"
	"slices"
)

// sortOrders returns every active order id, highest priority first:
// servicing, enroute, accepted, assigned, unassigned. Unassigned orders are
// ordered late, urgent, normal and then by ascending score; committed orders
// of the same status by ascending etf, with unknown etf last. Ids break the
// remaining ties so the order is total.
func (r *dispatchRun) sortOrders() []string {
	ids := slices.Clone(r.orderIDs)
	slices.SortFunc(ids, func(a, b string) int {
		return r.compareOrders(a, b)
	})
	return ids
}

func (r *dispatchRun) compareOrders(a, b string) int {
	oa, ob := r.orders[a], r.orders[b]

	if c := cmp.Compare(oa.order.Status.Priority(), ob.order.Status.Priority()); c != 0 {
		return c
	}

	if oa.tagged && ob.tagged {
		if c := cmp.Compare(oa.tag.Rank(), ob.tag.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(oa.score, ob.score); c != 0 {
			return c
		}
	} else {
		switch {
		case oa.hasETF && ob.hasETF:
			if c := cmp.Compare(oa.etf, ob.etf); c != 0 {
				return c
			}
		case oa.hasETF:
			return -1
		case ob.hasETF:
			return 1
		}
	}

	return cmp.Compare(a, b)
}
