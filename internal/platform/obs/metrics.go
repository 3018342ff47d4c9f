package obs

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records dispatcher activity in Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	providerCalls *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	runs          prometheus.Counter
	assigned      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

var defaultMetrics *Metrics

// NewMetrics registers the dispatcher collectors on reg. If reg is nil the
// default registerer is used. Collectors that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	providerCalls, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_provider_calls_total",
		Help: "Distance provider requests by outcome",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	cacheLookups, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_cache_lookups_total",
		Help: "Distance cache lookups by result",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	runs, err := registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatch_suggestion_runs_total",
		Help: "Completed suggestion runs",
	}))
	if err != nil {
		return nil, err
	}
	assigned, err := registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_orders_assigned_total",
		Help: "Orders placed on a courier queue by a suggestion run",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}
	duration, err := registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_operation_duration_seconds",
		Help:    "Duration of timed operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		providerCalls: providerCalls,
		cacheLookups:  cacheLookups,
		runs:          runs,
		assigned:      assigned,
		duration:      duration,
	}, nil
}

// SetDefault makes m the target of Time observations.
func SetDefault(m *Metrics) { defaultMetrics = m }

func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ProviderCall counts one distance provider request by outcome: ok, error, invalid or partial.
func (m *Metrics) ProviderCall(outcome string) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(outcome).Inc()
}

// CacheLookup counts one distance cache lookup.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RunCompleted counts one finished suggestion run.
func (m *Metrics) RunCompleted() {
	if m == nil {
		return
	}
	m.runs.Inc()
}

// OrdersAssigned adds n orders of the given kind ("new", "unplaced").
func (m *Metrics) OrdersAssigned(kind string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.assigned.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) observe(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}
