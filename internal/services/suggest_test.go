package services

import (
	"context"
	"fleet-dispatch-service/internal/adapters/distance"
	"fleet-dispatch-service/internal/domain"
	"fleet-dispatch-service/internal/platform/obs"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, provider *distance.MockDurationProvider) *Dispatcher {
	t.Helper()
	var d *Dispatcher
	var err error
	if provider == nil {
		d, err = NewDispatcher(nil, nil, DefaultParams())
	} else {
		d, err = NewDispatcher(provider, nil, DefaultParams())
	}
	require.NoError(t, err)
	return d
}

func unassigned(lat, lng float64, window int64) domain.Order {
	return domain.Order{
		Location:    domain.Coordinates{Lat: lat, Lng: lng},
		Zones:       []int{1},
		Gallons:     10,
		TargetStart: t0,
		TargetEnd:   t0 + window,
		Status:      domain.StatusUnassigned,
	}
}

func idleCourier(lat, lng float64) domain.Courier {
	return domain.Courier{
		Location:  domain.Coordinates{Lat: lat, Lng: lng},
		Connected: true,
		Zones:     []int{1},
	}
}

func TestSuggestClustersNearbyOrders(t *testing.T) {
	d := newTestDispatcher(t, nil)

	snap := domain.Snapshot{
		Orders: map[string]domain.Order{
			"o1": unassigned(34.01, -118.0, 7200),
			"o2": unassigned(34.0104, -118.0, 7200),
		},
		Couriers: map[string]domain.Courier{"c1": idleCourier(34.0, -118.0)},
		Now:      t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	require.Equal(t, [][]string{{"o1", "o2"}}, s.Clusters)

	r1, r2 := s.Results["o1"], s.Results["o2"]
	assert.Equal(t, "c1", r1.CourierID)
	assert.Equal(t, "c1", r2.CourierID)
	require.NotNil(t, r1.CourierPos)
	require.NotNil(t, r2.CourierPos)
	assert.Equal(t, 1, *r1.CourierPos)
	assert.Equal(t, 2, *r2.CourierPos)
	require.NotNil(t, r1.ETF)
	require.NotNil(t, r2.ETF)
	assert.Equal(t, t0+150+1200, *r1.ETF)
	assert.Equal(t, int64(900), *r2.ETF-*r1.ETF, "nearby increment")
	assert.Equal(t, "o1", *r1.ClusterFirstOrder)
	assert.Equal(t, "o1", *r2.ClusterFirstOrder)
	assert.Equal(t, domain.TagNormal, *r1.Tag)
	assert.True(t, r1.NewAssignment)
}

func TestSuggestLateOrderGetsBestEffort(t *testing.T) {
	d := newTestDispatcher(t, nil)

	late := unassigned(34.05, -118.0, 600)
	late.TargetStart = t0 - 3000

	snap := domain.Snapshot{
		Orders:   map[string]domain.Order{"o1": late},
		Couriers: map[string]domain.Courier{"c1": idleCourier(34.0, -118.0)},
		Now:      t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	res := s.Results["o1"]
	require.NotNil(t, res.Tag)
	assert.Equal(t, domain.TagLate, *res.Tag)
	assert.Equal(t, "c1", res.CourierID)
	assert.True(t, res.NewAssignment)
	require.NotNil(t, res.ETF)
	assert.Equal(t, t0+750+1200, *res.ETF)
	assert.True(t, hasNote(res.Notes, "best effort"), "notes: %v", res.Notes)
}

func TestSuggestNoEligibleCourier(t *testing.T) {
	d := newTestDispatcher(t, nil)

	c := idleCourier(34.0, -118.0)
	c.Zones = []int{2}
	snap := domain.Snapshot{
		Orders:   map[string]domain.Order{"o1": unassigned(34.01, -118.0, 7200)},
		Couriers: map[string]domain.Courier{"c1": c},
		Now:      t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	res := s.Results["o1"]
	assert.Empty(t, res.CourierID)
	assert.Nil(t, res.CourierPos)
	assert.Nil(t, res.ETF)
	assert.False(t, res.NewAssignment)
	assert.Equal(t, domain.TagLate, *res.Tag)
	assert.True(t, hasNote(res.Notes, "no valid courier"), "notes: %v", res.Notes)
}

func TestSuggestUnservableNeighbourDoesNotBlockCluster(t *testing.T) {
	d := newTestDispatcher(t, nil)

	stray := unassigned(34.0104, -118.0, 7200)
	stray.Zones = []int{2}
	snap := domain.Snapshot{
		Orders: map[string]domain.Order{
			"o1": unassigned(34.01, -118.0, 7200),
			"o2": stray,
		},
		Couriers: map[string]domain.Courier{"c1": idleCourier(34.0, -118.0)},
		Now:      t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"o2"}, {"o1"}}, s.Clusters)

	res := s.Results["o1"]
	assert.Equal(t, "c1", res.CourierID)
	require.NotNil(t, res.CourierPos)
	assert.Equal(t, 1, *res.CourierPos)
	require.NotNil(t, res.ETF)
	assert.Equal(t, t0+150+1200, *res.ETF)
	assert.True(t, hasNote(res.Notes, "not clustered with o2"), "notes: %v", res.Notes)

	other := s.Results["o2"]
	assert.Empty(t, other.CourierID)
	assert.Equal(t, domain.TagLate, *other.Tag)
	assert.True(t, hasNote(other.Notes, "no valid courier"), "notes: %v", other.Notes)
}

func TestSuggestCommittedAnchorKeepsZones(t *testing.T) {
	d := newTestDispatcher(t, nil)

	held := committed(domain.StatusAssigned, "c1")
	foreign := unassigned(held.Location.Lat, held.Location.Lng, 7200)
	foreign.Zones = []int{2}

	other := idleCourier(34.1, -118.0)
	other.Zones = []int{2}

	snap := domain.Snapshot{
		Orders: map[string]domain.Order{
			"o-a": held,
			"o-x": foreign,
		},
		Couriers: map[string]domain.Courier{
			"c1": idleCourier(34.0, -118.0),
			"c2": other,
		},
		Now: t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"o-a"}, {"o-x"}}, s.Clusters)

	res := s.Results["o-x"]
	assert.Equal(t, "c2", res.CourierID)
	require.NotNil(t, res.CourierPos)
	assert.Equal(t, 1, *res.CourierPos)
	assert.True(t, hasNote(res.Notes, "does not serve this zone"), "notes: %v", res.Notes)

	assert.Equal(t, "c1", s.Results["o-a"].CourierID)
	assert.False(t, s.Results["o-a"].NewAssignment)
}

func TestSuggestExcludesFinishedOrders(t *testing.T) {
	d := newTestDispatcher(t, nil)

	done := committed(domain.StatusComplete, "c1")
	cancelled := unassigned(34.02, -118.0, 7200)
	cancelled.Status = domain.StatusCancelled

	snap := domain.Snapshot{
		Orders: map[string]domain.Order{
			"o1": unassigned(34.01, -118.0, 7200),
			"o2": done,
			"o3": cancelled,
		},
		Couriers: map[string]domain.Courier{"c1": idleCourier(34.0, -118.0)},
		Now:      t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	assert.Len(t, s.Results, 1)
	assert.Contains(t, s.Results, "o1")
	assert.Equal(t, []string{"o1"}, s.SortedOrders)
	assert.Equal(t, 1, *s.Results["o1"].CourierPos, "complete order does not occupy the queue")
}

func TestSuggestNothingToDo(t *testing.T) {
	d := newTestDispatcher(t, nil)

	snap := domain.Snapshot{
		Orders:   map[string]domain.Order{"o1": committed(domain.StatusAccepted, "c1")},
		Couriers: map[string]domain.Courier{"c1": idleCourier(34.0, -118.0)},
		Now:      t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{ProviderCalls: 4})
	require.NoError(t, err)
	assert.Empty(t, s.Results)
	assert.Empty(t, s.Clusters)
	assert.Equal(t, int64(4), s.ProviderCalls)
	assert.NotEmpty(t, s.RunID)
}

func TestSuggestAppendsAfterCommittedQueue(t *testing.T) {
	d := newTestDispatcher(t, nil)

	enroute := committed(domain.StatusEnroute, "c1")
	enroute.Location = domain.Coordinates{Lat: 34.02, Lng: -118.0}
	assigned := committed(domain.StatusAssigned, "c1")
	assigned.Location = domain.Coordinates{Lat: 34.03, Lng: -118.0}

	snap := domain.Snapshot{
		Orders: map[string]domain.Order{
			"o-a": assigned,
			"o-b": enroute,
			"o-c": unassigned(35.0, -118.0, 4*3600),
		},
		Couriers: map[string]domain.Courier{"c1": idleCourier(34.0, -118.0)},
		Now:      t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	b, a, c := s.Results["o-b"], s.Results["o-a"], s.Results["o-c"]
	assert.Equal(t, 1, *b.CourierPos)
	assert.Equal(t, t0+300+1200, *b.ETF)
	assert.Equal(t, 2, *a.CourierPos)
	assert.Equal(t, t0+1500+150+1200, *a.ETF)
	assert.False(t, a.NewAssignment)
	assert.False(t, b.NewAssignment)

	assert.Equal(t, "c1", c.CourierID)
	assert.Equal(t, 3, *c.CourierPos)
	assert.Equal(t, *a.ETF+14550+1200, *c.ETF)
	assert.True(t, c.NewAssignment)

	assert.Equal(t, []string{"o-b", "o-a", "o-c"}, s.SortedOrders)
	assert.True(t, s.ValidCouriers["c1"])
}

func TestSuggestPrefersOnTimeCourier(t *testing.T) {
	d := newTestDispatcher(t, nil)

	held := committed(domain.StatusAccepted, "a-busy")
	held.Location = domain.Coordinates{Lat: 34.0, Lng: -118.0}

	snap := domain.Snapshot{
		Orders: map[string]domain.Order{
			"held": held,
			"new":  unassigned(34.003, -118.0, 3000),
		},
		Couriers: map[string]domain.Courier{
			// a-busy frees up at t0+2100 next to the order, b-free is idle but 1455s away.
			"a-busy": {Zones: []int{1}},
			"b-free": idleCourier(34.1, -118.0),
		},
		Now: t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, t0+2100, *s.Results["held"].ETF)

	res := s.Results["new"]
	assert.Equal(t, "b-free", res.CourierID)
	assert.Equal(t, 1, *res.CourierPos)
	assert.Equal(t, t0+1455+1200, *res.ETF)
	assert.False(t, hasNote(res.Notes, "best effort"))
}

func TestSuggestDeterministicReplay(t *testing.T) {
	snap := fleetSnapshot()
	pairs := []distance.MockPair{
		{From: snap.Couriers["c1"].Location, To: snap.Orders["o1"].Location, Seconds: 200},
		{From: snap.Couriers["c2"].Location, To: snap.Orders["o3"].Location, Seconds: 90},
		{From: snap.Couriers["c3"].Location, To: snap.Orders["o5"].Location, Seconds: 640},
	}

	run := func() (*Dispatcher, *distance.MockDurationProvider, *domain.Suggestion) {
		provider := distance.NewMockDurationProvider(pairs)
		d := newTestDispatcher(t, provider)
		s, err := d.Suggest(context.Background(), snap, RunOptions{Simulation: true})
		require.NoError(t, err)
		return d, provider, s
	}

	d1, p1, s1 := run()
	d2, p2, s2 := run()

	assert.Equal(t, s1.Results, s2.Results)
	assert.Equal(t, s1.SortedOrders, s2.SortedOrders)
	assert.Equal(t, s1.Clusters, s2.Clusters)
	assert.Equal(t, s1.ProviderCalls, s2.ProviderCalls)
	assert.Equal(t, d1.Cache().Samples(), d2.Cache().Samples())
	assert.Equal(t, p1.Calls(), p2.Calls())
	assert.NotEqual(t, s1.RunID, s2.RunID)

	assert.Equal(t, t0+int64(d1.Params().SimulationDepartureOffset.Seconds()), p1.LastDeparture().Unix())
}

func TestSuggestQueuesAreContiguous(t *testing.T) {
	d := newTestDispatcher(t, nil)
	s, err := d.Suggest(context.Background(), fleetSnapshot(), RunOptions{})
	require.NoError(t, err)

	for oid, res := range s.Results {
		if res.NewAssignment {
			require.NotNil(t, res.CourierPos, oid)
			require.NotNil(t, res.ETF, oid)
			assert.GreaterOrEqual(t, *res.CourierPos, 1, oid)
			assert.GreaterOrEqual(t, *res.ETF, t0, oid)
		}
	}

	for cid, list := range GroupByCourier(s) {
		if !s.ValidCouriers[cid] {
			continue
		}
		var prev int64
		for i, res := range list {
			require.NotNil(t, res.CourierPos, res.OrderID)
			assert.Equal(t, i+1, *res.CourierPos, "courier %s order %s", cid, res.OrderID)
			assert.GreaterOrEqual(t, *res.ETF, prev)
			prev = *res.ETF
		}
	}
}

func TestSuggestFailingProviderUsesEstimates(t *testing.T) {
	provider := distance.NewFailingDurationProvider()
	d := newTestDispatcher(t, provider)

	snap := domain.Snapshot{
		Orders:   map[string]domain.Order{"o1": unassigned(34.01, -118.0, 7200)},
		Couriers: map[string]domain.Courier{"c1": idleCourier(34.0, -118.0)},
		Now:      t0,
	}

	s, err := d.Suggest(context.Background(), snap, RunOptions{ProviderCalls: 10})
	require.NoError(t, err)

	res := s.Results["o1"]
	assert.Equal(t, "c1", res.CourierID)
	assert.Equal(t, t0+150+1200, *res.ETF)
	assert.Greater(t, s.ProviderCalls, int64(10))
	assert.Equal(t, int64(provider.Calls())+10, s.ProviderCalls)
	assert.Equal(t, 0, d.Cache().Len())
}

func TestSuggestRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := obs.NewMetrics(reg)
	require.NoError(t, err)

	d, err := NewDispatcher(nil, nil, DefaultParams(), WithMetrics(m))
	require.NoError(t, err)

	_, err = d.Suggest(context.Background(), fleetSnapshot(), RunOptions{})
	require.NoError(t, err)

	expected := `
# HELP dispatch_suggestion_runs_total Completed suggestion runs
# TYPE dispatch_suggestion_runs_total counter
dispatch_suggestion_runs_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "dispatch_suggestion_runs_total"))
}

func TestSuggestCancelledContext(t *testing.T) {
	d := newTestDispatcher(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Suggest(ctx, fleetSnapshot(), RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGroupByCourier(t *testing.T) {
	pos := func(n int) *int { return &n }
	s := &domain.Suggestion{
		Results: map[string]domain.OrderResult{
			"b": {OrderID: "b", CourierID: "c1", CourierPos: pos(1)},
			"a": {OrderID: "a", CourierID: "c1", CourierPos: pos(2)},
			"d": {OrderID: "d", CourierID: "c2"},
			"c": {OrderID: "c", CourierID: "c2", CourierPos: pos(1)},
			"e": {OrderID: "e"},
		},
		ValidCouriers: map[string]bool{"c1": true, "c2": false, "c3": true},
	}

	got := GroupByCourier(s)

	ids := func(list []domain.OrderResult) []string {
		out := make([]string, len(list))
		for i, r := range list {
			out[i] = r.OrderID
		}
		return out
	}
	assert.Equal(t, []string{"b", "a"}, ids(got["c1"]))
	assert.Equal(t, []string{"c", "d"}, ids(got["c2"]))
	assert.Empty(t, got["c3"])
	assert.Len(t, got, 3)
}

// fleetSnapshot is a mixed fleet: an idle courier, one with a valid two order
// queue, one overloaded, and one offline.
func fleetSnapshot() domain.Snapshot {
	enroute := committed(domain.StatusEnroute, "c2")
	enroute.Location = domain.Coordinates{Lat: 34.06, Lng: -118.21}
	accepted := committed(domain.StatusAccepted, "c2")
	accepted.Location = domain.Coordinates{Lat: 34.08, Lng: -118.25}

	overloaded := map[string]domain.Order{}
	for _, id := range []string{"x1", "x2", "x3"} {
		o := committed(domain.StatusAssigned, "c3")
		o.Location = domain.Coordinates{Lat: 34.2, Lng: -118.4}
		overloaded[id] = o
	}

	orders := map[string]domain.Order{
		"o1": unassigned(34.01, -118.0, 7200),
		"o2": unassigned(34.0105, -118.0003, 7200),
		"o3": unassigned(34.07, -118.22, 3*3600),
		"o4": unassigned(34.3, -118.5, 1800),
		"o5": unassigned(34.15, -118.35, 5*3600),
		"e1": enroute,
		"e2": accepted,
	}
	for id, o := range overloaded {
		orders[id] = o
	}

	return domain.Snapshot{
		Orders: orders,
		Couriers: map[string]domain.Courier{
			"c1": idleCourier(34.0, -118.0),
			"c2": idleCourier(34.05, -118.2),
			"c3": idleCourier(34.2, -118.4),
			"c4": {Zones: []int{1}},
		},
		Now: t0,
	}
}

func hasNote(notes []string, fragment string) bool {
	for _, n := range notes {
		if strings.Contains(n, fragment) {
			return true
		}
	}
	return false
}
