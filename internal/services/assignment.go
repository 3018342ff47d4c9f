package services

import (
	"context"
	"fleet-dispatch-service/internal/domain"
	"math"
	"slices"
)

// courierBid is the projected outcome of handing a cluster to one courier.
type courierBid struct {
	courierID string
	etfs      []int64
	score     int64
	onTime    bool
}

// assignClusters hands each cluster, in priority order, to a courier and
// advances that courier's finish state so later clusters see the new load.
func (r *dispatchRun) assignClusters(ctx context.Context, clusters [][]string) {
	for _, cluster := range clusters {
		anchor := r.orders[cluster[0]]

		if anchor.order.Status.Committed() {
			r.extendCommitted(anchor, cluster)
			continue
		}

		bid, ok := r.bestBid(ctx, cluster)
		if !ok {
			for _, id := range cluster {
				r.orders[id].note("no valid courier can serve this order")
			}
			continue
		}
		if !bid.onTime {
			for _, id := range cluster {
				r.orders[id].note("best effort: courier %s cannot meet every deadline", bid.courierID)
			}
		}
		r.commit(r.couriers[bid.courierID], cluster, bid.etfs)
	}
}

// extendCommitted appends the new members of a cluster anchored on an order
// that already has a courier.
func (r *dispatchRun) extendCommitted(anchor *orderState, cluster []string) {
	cs, ok := r.couriers[anchor.courierID]
	if !ok || !cs.valid {
		return
	}

	var members []string
	for _, id := range cluster {
		if !slices.Contains(cs.queue, id) {
			members = append(members, id)
		}
	}
	if len(members) == 0 {
		return
	}

	t := cs.finishTime
	etfs := make([]int64, 0, len(members))
	for _, id := range members {
		t += r.params.NearbyServiceSeconds(r.orders[id].order)
		etfs = append(etfs, t)
	}
	r.commit(cs, members, etfs)
}

// bestBid scores every valid courier able to serve all members.
// The first on-time bid beats every late one; after that only a strictly
// lower on-time score replaces it. Until an on-time bid exists the lowest
// score wins. Couriers are visited in id order so ties are deterministic.
func (r *dispatchRun) bestBid(ctx context.Context, cluster []string) (courierBid, bool) {
	var (
		best  courierBid
		found bool
	)

	for _, cid := range r.courierIDs {
		cs := r.couriers[cid]
		if !r.canServeAll(cs, cluster) {
			continue
		}

		bid := r.bid(ctx, cs, cluster)
		switch {
		case !found:
			best, found = bid, true
		case !best.onTime && (bid.onTime || bid.score < best.score):
			best = bid
		case best.onTime && bid.onTime && bid.score < best.score:
			best = bid
		}
	}

	return best, found
}

func (r *dispatchRun) canServeAll(cs *courierState, cluster []string) bool {
	for _, id := range cluster {
		if !cs.canServe(r.orders[id].order) {
			return false
		}
	}
	return true
}

func (r *dispatchRun) bid(ctx context.Context, cs *courierState, cluster []string) courierBid {
	anchor := r.orders[cluster[0]].order
	travel := r.travel(ctx, cs.finishAt, anchor.Location)

	t := cs.finishTime + travel + r.params.ServiceSeconds(anchor)
	etfs := []int64{t}
	onTime := t <= anchor.TargetEnd

	for _, id := range cluster[1:] {
		o := r.orders[id].order
		t += r.params.NearbyServiceSeconds(o)
		etfs = append(etfs, t)
		onTime = onTime && t <= o.TargetEnd
	}

	score := t + int64(math.Round(r.params.TravelTimeFactor*float64(travel))) + crossZonePenalty(anchor, cs)

	return courierBid{
		courierID: cs.courier.ID,
		etfs:      etfs,
		score:     score,
		onTime:    onTime,
	}
}

// commit appends members to the courier's queue with the given etfs and moves
// the courier's finish state to the last member.
func (r *dispatchRun) commit(cs *courierState, members []string, etfs []int64) {
	var last domain.Coordinates
	for i, id := range members {
		o := r.orders[id]
		cs.queue = append(cs.queue, id)
		o.courierID = cs.courier.ID
		o.newAssignment = true
		o.stamp(etfs[i], len(cs.queue))
		last = o.order.Location
	}
	cs.finishTime = etfs[len(etfs)-1]
	cs.finishAt = last
}
