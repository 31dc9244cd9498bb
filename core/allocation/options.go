package allocation

import "github.com/kilianp07/rebalance/core/logger"

// ProgressFunc is called after each target has been fully processed.
type ProgressFunc func(TargetOutcome)

// Option configures a GreedyAllocator.
type Option func(*GreedyAllocator)

// WithLogger sets the logger used for per-target debug output.
func WithLogger(l logger.Logger) Option {
	return func(a *GreedyAllocator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithProgress registers a callback invoked once per processed target.
func WithProgress(f ProgressFunc) Option {
	return func(a *GreedyAllocator) { a.progress = f }
}
