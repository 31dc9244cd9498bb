package metrics

import "errors"

// MultiSink fans events out to several sinks. Optional recorder interfaces
// are only forwarded to sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAllocationRun forwards the event to all sinks. Every sink is tried;
// errors are joined.
func (m *MultiSink) RecordAllocationRun(ev AllocationRunEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordAllocationRun(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordTargetFill forwards fill events.
func (m *MultiSink) RecordTargetFill(evs []TargetFillEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(TargetFillRecorder); ok {
			if err := rec.RecordTargetFill(evs); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordRelocationOrder forwards order events.
func (m *MultiSink) RecordRelocationOrder(ev RelocationOrderEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(RelocationOrderRecorder); ok {
			if err := rec.RecordRelocationOrder(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close releases the sinks that hold resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
