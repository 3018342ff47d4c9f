package services

import (
	"context"
	"fleet-dispatch-service/internal/domain"
	"math"
)

// crossZonePenalty is the cost of pulling a courier out of its home zone.
// No penalty function is defined yet, so it is always zero.
func crossZonePenalty(domain.Order, *courierState) int64 { return 0 }

// classifyOrders tags and scores every unassigned order against the finish
// state of each valid, zone-eligible courier.
//
// For a courier that frees up before the deadline:
//
//	ratio = (travel + service) / (deadline - finish)
//	slack = travel_time_factor*travel + (deadline - finish)
//
// late:   min ratio > 1 (nobody can make it); score = deadline
// urgent: min ratio >= threshold, or deadline within the horizon; score = 1/min ratio
// normal: otherwise; score = min slack
//
// Lower scores are served first within a tag.
func (r *dispatchRun) classifyOrders(ctx context.Context) {
	horizon := int64(r.params.UrgencyHorizon.Seconds())

	for _, oid := range r.orderIDs {
		o := r.orders[oid]
		if o.order.Status != domain.StatusUnassigned {
			continue
		}

		deadline := o.order.TargetEnd
		service := r.params.ServiceSeconds(o.order)
		minRatio := math.Inf(1)
		minSlack := math.Inf(1)

		for _, cid := range r.courierIDs {
			cs := r.couriers[cid]
			if !cs.canServe(o.order) || cs.finishTime >= deadline {
				continue
			}
			travel := r.travel(ctx, cs.finishAt, o.order.Location)
			remaining := float64(deadline - cs.finishTime)

			ratio := float64(travel+service) / remaining
			slack := r.params.TravelTimeFactor*float64(travel) + remaining
			minRatio = math.Min(minRatio, ratio)
			minSlack = math.Min(minSlack, slack)
		}

		o.tagged = true
		switch {
		case minRatio > 1:
			o.tag = domain.TagLate
			o.score = float64(deadline)
			o.note("late: no courier can finish before the deadline")
		case minRatio >= r.params.UrgencyThreshold || deadline-r.now <= horizon:
			o.tag = domain.TagUrgent
			o.score = 1 / minRatio
		default:
			o.tag = domain.TagNormal
			o.score = minSlack
		}
	}
}
