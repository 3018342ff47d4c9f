package services

// clusterOrders greedily groups the sorted orders into sequential-service
// batches. The first pending order anchors a cluster and the remaining list
// is scanned once for nearby candidates that pass every gate.
func (r *dispatchRun) clusterOrders(sorted []string) [][]string {
	pending := append([]string(nil), sorted...)
	clusters := [][]string{}

	for len(pending) > 0 {
		anchorID := pending[0]
		anchor := r.orders[anchorID]
		cluster := []string{anchorID}

		rest := make([]string, 0, len(pending)-1)
		for _, cid := range pending[1:] {
			cand := r.orders[cid]

			sameLocation := cand.order.Location.Within(anchor.order.Location, r.params.SameLocationRadius)
			if !sameLocation && !cand.order.Location.Within(anchor.order.Location, r.params.NearbyRadius) {
				rest = append(rest, cid)
				continue
			}

			if reason := r.rejectCandidate(anchor, cluster, cand, sameLocation); reason != "" {
				cand.note("not clustered with %s: %s", anchorID, reason)
				rest = append(rest, cid)
				continue
			}

			cluster = append(cluster, cid)
			if sameLocation {
				cand.note("clustered with %s (same location)", anchorID)
			} else {
				cand.note("clustered with %s (nearby)", anchorID)
			}
		}

		for _, id := range cluster {
			r.orders[id].clusterFirst = anchorID
		}
		if len(cluster) > 1 {
			anchor.note("anchors cluster of %d orders", len(cluster))
		}

		clusters = append(clusters, cluster)
		pending = rest
	}

	return clusters
}

// rejectCandidate returns why cand may not join the cluster, or "".
// Same-location candidates skip the size cap and the anchor eligibility gate.
func (r *dispatchRun) rejectCandidate(anchor *orderState, cluster []string, cand *orderState, sameLocation bool) string {
	if cand.courierID != "" && cand.courierID != anchor.courierID {
		return "committed to a different courier"
	}
	if !sameLocation && len(cluster) >= r.params.MaxClusterSize {
		return "cluster is full"
	}
	if !sameLocation && !anchor.clusterEligible {
		return "anchor cannot be extended"
	}
	if anchor.courierID != "" {
		cs, ok := r.couriers[anchor.courierID]
		if !ok || !cs.valid {
			return "anchor courier has no projectable finish state"
		}
		if cand.courierID == "" && !cs.canServe(cand.order) {
			return "anchor courier does not serve this zone"
		}
	} else if !r.sharedCourier(cluster, cand) {
		return "no courier serves every zone of the cluster"
	}
	if !r.fitsDeadline(cluster, cand) {
		return "cluster would miss the deadline"
	}
	return ""
}

// sharedCourier reports whether one valid courier can serve every member of
// the cluster and cand.
func (r *dispatchRun) sharedCourier(cluster []string, cand *orderState) bool {
	for _, cid := range r.courierIDs {
		cs := r.couriers[cid]
		if cs.canServe(cand.order) && r.canServeAll(cs, cluster) {
			return true
		}
	}
	return false
}

// fitsDeadline checks that servicing the whole cluster back to back, after a
// grace period to reach it, still finishes before cand's deadline.
func (r *dispatchRun) fitsDeadline(cluster []string, cand *orderState) bool {
	total := r.params.ClusterServiceSeconds(cand.order)
	for _, id := range cluster {
		total += r.params.ClusterServiceSeconds(r.orders[id].order)
	}
	grace := int64(r.params.ClusterGrace.Seconds())
	return r.now+grace+total <= cand.order.TargetEnd
}
