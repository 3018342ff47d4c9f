package services

import (
	"context"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/platform/obs"
	"slices"

	"golang.org/x/sync/errgroup"
)

// ETAMatrix maps order id -> courier id -> driving seconds from the courier's
// live position to the order.
type ETAMatrix map[string]map[string]int64

// ComputeETAs returns driving times from every courier with a usable location
// to every active order. Batches are fetched concurrently; any batch or cell
// the provider cannot answer falls back to the analytic estimate.
func (d *Dispatcher) ComputeETAs(ctx context.Context, snap domain.Snapshot, opts RunOptions) (_ ETAMatrix, calls int64, err error) {
	defer obs.Time(ctx, "dispatch.ComputeETAs")(&err)

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	orderIDs := make([]string, 0, len(snap.Orders))
	for id, o := range snap.Orders {
		if o.Status.Active() {
			orderIDs = append(orderIDs, id)
		}
	}
	slices.Sort(orderIDs)

	courierIDs := make([]string, 0, len(snap.Couriers))
	for id, c := range snap.Couriers {
		if c.HasUsableLocation() {
			courierIDs = append(courierIDs, id)
		}
	}
	slices.Sort(courierIDs)

	out := make(ETAMatrix, len(orderIDs))
	for _, id := range orderIDs {
		out[id] = map[string]int64{}
	}
	if len(orderIDs) == 0 || len(courierIDs) == 0 {
		return out, opts.ProviderCalls, nil
	}

	origins := make([]domain.Coordinates, len(courierIDs))
	for i, id := range courierIDs {
		origins[i] = snap.Couriers[id].Location
	}
	dests := make([]domain.Coordinates, len(orderIDs))
	for i, id := range orderIDs {
		dests[i] = snap.Orders[id].Location
	}

	dist := d.distanceFor(snap, opts)
	m := dist.Matrix(ctx, origins, dests)
	for i, cid := range courierIDs {
		for j, oid := range orderIDs {
			out[oid][cid] = m[i][j]
		}
	}

	return out, dist.Calls(), nil
}

// Matrix resolves durations for every origin x destination cell. Cached and
// same-location cells are answered locally; the rest is requested from the
// provider in blocks of at most ProviderBatchSize origins and destinations.
func (s *DistanceService) Matrix(ctx context.Context, origins, dests []domain.Coordinates) [][]int64 {
	out := make([][]int64, len(origins))
	missing := make([][]bool, len(origins))
	for i, o := range origins {
		out[i] = make([]int64, len(dests))
		missing[i] = make([]bool, len(dests))
		for j, d := range dests {
			if o.Within(d, s.params.SameLocationRadius) {
				continue
			}
			if secs, ok := s.cache.Lookup(o, d, s.now); ok {
				s.metrics.CacheLookup(true)
				out[i][j] = secs
				continue
			}
			s.metrics.CacheLookup(false)
			missing[i][j] = true
		}
	}

	if s.provider != nil {
		var g errgroup.Group
		g.SetLimit(s.params.ProviderConcurrency)

		size := s.params.ProviderBatchSize
		for oi := 0; oi < len(origins); oi += size {
			oEnd := min(oi+size, len(origins))
			for dj := 0; dj < len(dests); dj += size {
				dEnd := min(dj+size, len(dests))
				if !anyMissing(missing, oi, oEnd, dj, dEnd) {
					continue
				}
				g.Go(func() error {
					s.fetchBlock(ctx, origins, dests, oi, oEnd, dj, dEnd, out, missing)
					return nil
				})
			}
		}
		_ = g.Wait()
	}

	for i := range origins {
		for j := range dests {
			if missing[i][j] {
				out[i][j] = s.params.EstimateSeconds(origins[i], dests[j])
			}
		}
	}
	return out
}

// fetchBlock fills the missing cells of one block. Blocks never overlap, so
// concurrent calls write disjoint cells.
func (s *DistanceService) fetchBlock(
	ctx context.Context,
	origins, dests []domain.Coordinates,
	oi, oEnd, dj, dEnd int,
	out [][]int64,
	missing [][]bool,
) {
	s.calls.Add(1)

	ctx, cancel := context.WithTimeout(ctx, s.params.ProviderTimeout)
	defer cancel()

	rows, err := s.provider.Durations(ctx, origins[oi:oEnd], dests[dj:dEnd], s.departAt)
	if err != nil {
		s.metrics.ProviderCall("error")
		s.log.Warnf("distance provider batch %dx%d failed: %v", oEnd-oi, dEnd-dj, err)
		return
	}
	if len(rows) != oEnd-oi {
		s.metrics.ProviderCall("invalid")
		s.log.Warnf("distance provider returned %d rows, want %d", len(rows), oEnd-oi)
		return
	}

	complete := true
	for r, row := range rows {
		if len(row) != dEnd-dj {
			complete = false
			continue
		}
		i := oi + r
		for c, cell := range row {
			j := dj + c
			if !missing[i][j] {
				continue
			}
			if !cell.OK || cell.Seconds < 0 {
				complete = false
				continue
			}
			out[i][j] = cell.Seconds
			missing[i][j] = false
			s.cache.Store(origins[i], dests[j], s.now, cell.Seconds)
		}
	}

	if complete {
		s.metrics.ProviderCall("ok")
	} else {
		s.metrics.ProviderCall("partial")
	}
}

func anyMissing(missing [][]bool, oi, oEnd, dj, dEnd int) bool {
	for i := oi; i < oEnd; i++ {
		for j := dj; j < dEnd; j++ {
			if missing[i][j] {
				return true
			}
		}
	}
	return false
}
