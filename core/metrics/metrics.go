package metrics

import "time"

// AllocationRunEvent summarises one allocation run.
type AllocationRunEvent struct {
	RunID         string
	Units         int
	Targets       int
	Requested     int
	Assigned      int
	Unassigned    int
	Unsatisfied   int
	TotalDistance float64
	MeanDistance  float64
	MaxDistance   float64
	// Distances travelled by each assigned unit, in the allocator distance unit.
	Distances []float64
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records allocation runs for observability purposes.
type MetricsSink interface {
	RecordAllocationRun(ev AllocationRunEvent) error
}

// TargetFillEvent captures how well a single target was served.
type TargetFillEvent struct {
	RunID       string
	TargetIndex int
	Label       string
	Required    int
	Assigned    int
	Time        time.Time
}

// TargetFillRecorder records per-target fill levels.
type TargetFillRecorder interface {
	RecordTargetFill(evs []TargetFillEvent) error
}

// RelocationOrderEvent represents a relocation command sent to a unit.
type RelocationOrderEvent struct {
	RunID     string
	CommandID string
	UnitID    string
	Published bool
	Error     string
	Time      time.Time
}

// RelocationOrderRecorder records orders published to units.
type RelocationOrderRecorder interface {
	RecordRelocationOrder(ev RelocationOrderEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAllocationRun(AllocationRunEvent) error     { return nil }
func (NopSink) RecordTargetFill([]TargetFillEvent) error         { return nil }
func (NopSink) RecordRelocationOrder(RelocationOrderEvent) error { return nil }
