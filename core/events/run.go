package events

import (
	"time"

	"github.com/kilianp07/rebalance/core/allocation"
)

// RunEvent is published once per allocation run.
type RunEvent struct {
	RunID    string
	Result   allocation.Result
	Summary  allocation.Summary
	Duration time.Duration
	// Orders holds one event per relocation order of the run.
	Orders []OrderEvent
	Err    error
	Time   time.Time
}

// TargetEvent is published after each target of a run.
type TargetEvent struct {
	RunID   string
	Outcome allocation.TargetOutcome
	Time    time.Time
}
