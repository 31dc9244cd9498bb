package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/rebalance/core/metrics"
)

// PromSink records allocation runs in Prometheus metrics.
type PromSink struct {
	runs       prometheus.Counter
	assigned   prometheus.Counter
	unassigned prometheus.Gauge
	shortfall  prometheus.Counter
	duration   prometheus.Histogram
	distance   prometheus.Histogram
	orders     *prometheus.CounterVec
}

// NewPromSink registers relocation metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relocation_runs_total",
			Help: "Total number of allocation runs",
		}),
		assigned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relocation_units_assigned_total",
			Help: "Total number of units assigned to a target",
		}),
		unassigned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relocation_units_unassigned",
			Help: "Units left in the pool by the last run",
		}),
		shortfall: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relocation_target_shortfall_total",
			Help: "Units requested by targets but not provided",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relocation_run_duration_seconds",
			Help:    "Wall time of an allocation run",
			Buckets: prometheus.DefBuckets,
		}),
		distance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relocation_travel_distance",
			Help:    "Distance between a unit and its target, in the configured distance unit",
			Buckets: prometheus.ExponentialBuckets(10, 2, 14),
		}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relocation_orders_total",
			Help: "Relocation orders published to units",
		}, []string{"published"}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.assigned, err = register(reg, s.assigned); err != nil {
		return nil, err
	}
	if s.unassigned, err = register(reg, s.unassigned); err != nil {
		return nil, err
	}
	if s.shortfall, err = register(reg, s.shortfall); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.distance, err = register(reg, s.distance); err != nil {
		return nil, err
	}
	if s.orders, err = register(reg, s.orders); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when the same metric was
// registered by an earlier sink.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAllocationRun updates run counters and distance histograms.
func (s *PromSink) RecordAllocationRun(ev coremetrics.AllocationRunEvent) error {
	s.runs.Inc()
	s.assigned.Add(float64(ev.Assigned))
	s.unassigned.Set(float64(ev.Unassigned))
	s.duration.Observe(ev.Duration.Seconds())
	for _, d := range ev.Distances {
		s.distance.Observe(d)
	}
	return nil
}

// RecordTargetFill accumulates the shortfall of every under-served target.
// Targets are not labelled since requests may name arbitrary targets.
func (s *PromSink) RecordTargetFill(evs []coremetrics.TargetFillEvent) error {
	for _, ev := range evs {
		if short := ev.Required - ev.Assigned; short > 0 {
			s.shortfall.Add(float64(short))
		}
	}
	return nil
}

// RecordRelocationOrder counts published and failed orders.
func (s *PromSink) RecordRelocationOrder(ev coremetrics.RelocationOrderEvent) error {
	label := "true"
	if !ev.Published {
		label = "false"
	}
	s.orders.WithLabelValues(label).Inc()
	return nil
}
