package services

import (
	"cmp"
	"fleet-dispatch-service/internal/domain"
	"math"
	"slices"
	"sync"
)

type gridCell struct {
	x, y int64
}

type pairKey struct {
	origin, dest domain.Coordinates
}

type cacheEntry struct {
	key     pairKey
	samples []sampleAt
}

type sampleAt struct {
	at      int64
	seconds int64
}

// DistanceCache stores provider durations keyed by exact coordinates and
// answers fuzzy lookups: a stored pair matches when both endpoints are within
// the tolerance of the queried ones, in either direction.
//
// Entries are bucketed on a grid whose cell size equals the tolerance, so a
// lookup only inspects the 3x3 block of cells around the queried origin
// (and around the destination for the reversed direction); every candidate is
// re-checked with the true distance.
//
// The cache is safe for concurrent use.
type DistanceCache struct {
	mu         sync.Mutex
	tolerance  float64
	ttl        int64
	maxSamples int
	entries    map[pairKey]*cacheEntry
	cells      map[gridCell][]*cacheEntry
}

func NewDistanceCache(params Params) *DistanceCache {
	return &DistanceCache{
		tolerance:  params.CacheTolerance,
		ttl:        int64(params.CacheTTL.Seconds()),
		maxSamples: params.CacheMaxSamples,
		entries:    make(map[pairKey]*cacheEntry),
		cells:      make(map[gridCell][]*cacheEntry),
	}
}

func (c *DistanceCache) cellOf(p domain.Coordinates) gridCell {
	return gridCell{
		x: int64(math.Floor(p.Lat / c.tolerance)),
		y: int64(math.Floor(p.Lng / c.tolerance)),
	}
}

func (c *DistanceCache) fresh(at, now int64) bool {
	d := now - at
	if d < 0 {
		d = -d
	}
	return d <= c.ttl
}

// Lookup returns the newest fresh duration for a fuzzy match of origin/dest.
func (c *DistanceCache) Lookup(origin, dest domain.Coordinates, now int64) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		best    sampleAt
		bestKey pairKey
		found   bool
	)

	consider := func(e *cacheEntry) {
		for _, s := range e.samples {
			if !c.fresh(s.at, now) {
				continue
			}
			if !found || s.at > best.at || (s.at == best.at && lessPair(e.key, bestKey)) {
				best, bestKey, found = s, e.key, true
			}
		}
	}

	scan := func(from, to domain.Coordinates) {
		center := c.cellOf(from)
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for _, e := range c.cells[gridCell{center.x + dx, center.y + dy}] {
					if e.key.origin.Within(from, c.tolerance) && e.key.dest.Within(to, c.tolerance) {
						consider(e)
					}
				}
			}
		}
	}

	scan(origin, dest)
	scan(dest, origin)

	return best.seconds, found
}

// Store records a sample under the exact queried coordinates.
func (c *DistanceCache) Store(origin, dest domain.Coordinates, now, seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked(pairKey{origin: origin, dest: dest}, sampleAt{at: now, seconds: seconds})
}

func (c *DistanceCache) storeLocked(key pairKey, s sampleAt) {
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{key: key}
		c.entries[key] = e
		cell := c.cellOf(key.origin)
		c.cells[cell] = append(c.cells[cell], e)
	}

	for i := range e.samples {
		if e.samples[i].at == s.at {
			e.samples[i].seconds = s.seconds
			return
		}
	}
	e.samples = append(e.samples, s)
	slices.SortFunc(e.samples, func(a, b sampleAt) int { return cmp.Compare(a.at, b.at) })
	if len(e.samples) > c.maxSamples {
		e.samples = e.samples[len(e.samples)-c.maxSamples:]
	}
}

// Prune drops samples outside the freshness window and returns how many
// were removed. Entries left without samples are forgotten.
func (c *DistanceCache) Prune(now int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		kept := e.samples[:0]
		for _, s := range e.samples {
			if c.fresh(s.at, now) {
				kept = append(kept, s)
			} else {
				removed++
			}
		}
		e.samples = kept
		if len(kept) == 0 {
			delete(c.entries, key)
			c.unlinkLocked(e)
		}
	}
	return removed
}

func (c *DistanceCache) unlinkLocked(e *cacheEntry) {
	cell := c.cellOf(e.key.origin)
	list := c.cells[cell]
	for i, x := range list {
		if x == e {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.cells, cell)
		return
	}
	c.cells[cell] = list
}

// Load merges previously exported samples.
func (c *DistanceCache) Load(samples []domain.DistanceSample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range samples {
		c.storeLocked(
			pairKey{origin: s.Origin, dest: s.Destination},
			sampleAt{at: s.SampledAt, seconds: s.Seconds},
		)
	}
}

// Samples exports every stored sample in a stable order.
func (c *DistanceCache) Samples() []domain.DistanceSample {
	return c.SamplesSince(math.MinInt64)
}

// SamplesSince exports the samples taken at or after since.
func (c *DistanceCache) SamplesSince(since int64) []domain.DistanceSample {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.DistanceSample, 0, len(c.entries))
	for _, e := range c.entries {
		for _, s := range e.samples {
			if s.at < since {
				continue
			}
			out = append(out, domain.DistanceSample{
				Origin:      e.key.origin,
				Destination: e.key.dest,
				SampledAt:   s.at,
				Seconds:     s.seconds,
			})
		}
	}
	slices.SortFunc(out, func(a, b domain.DistanceSample) int {
		ka := pairKey{origin: a.Origin, dest: a.Destination}
		kb := pairKey{origin: b.Origin, dest: b.Destination}
		if lessPair(ka, kb) {
			return -1
		}
		if lessPair(kb, ka) {
			return 1
		}
		return cmp.Compare(a.SampledAt, b.SampledAt)
	})
	return out
}

// Len returns the number of distinct coordinate pairs held.
func (c *DistanceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func lessPair(a, b pairKey) bool {
	av := [4]float64{a.origin.Lat, a.origin.Lng, a.dest.Lat, a.dest.Lng}
	bv := [4]float64{b.origin.Lat, b.origin.Lng, b.dest.Lat, b.dest.Lng}
	for i := range av {
		if av[i] != bv[i] {
			return av[i] < bv[i]
		}
	}
	return false
}
