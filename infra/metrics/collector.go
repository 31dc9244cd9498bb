package metrics

import (
	"context"
	"errors"

	"github.com/kilianp07/rebalance/core/events"
	coremetrics "github.com/kilianp07/rebalance/core/metrics"
	"github.com/kilianp07/rebalance/infra/logger"
	"github.com/kilianp07/rebalance/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// relocation events until ctx is cancelled or the bus is closed. The returned
// channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("metrics-collector")
	sub := bus.SubscribeMatching(func(ev eventbus.Event) bool {
		_, ok := ev.(events.RunEvent)
		return ok
	})
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		defer func() {
			if d, ok := bus.(interface{ Dropped() uint64 }); ok && d.Dropped() > 0 {
				log.Warnf("event bus dropped %d deliveries to slow subscribers", d.Dropped())
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

// record stores a finished run. Target fills and orders travel with the run
// event, so a burst of per-target progress events that overflows the
// subscriber buffer cannot skew them.
func record(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	e, ok := ev.(events.RunEvent)
	if !ok || e.Err != nil {
		return nil
	}
	errs := []error{sink.RecordAllocationRun(RunEventToMetrics(e))}
	if r, ok := sink.(coremetrics.TargetFillRecorder); ok && len(e.Result.Targets) > 0 {
		errs = append(errs, r.RecordTargetFill(TargetFills(e)))
	}
	if r, ok := sink.(coremetrics.RelocationOrderRecorder); ok {
		for _, o := range e.Orders {
			errs = append(errs, r.RecordRelocationOrder(OrderEventToMetrics(o)))
		}
	}
	return errors.Join(errs...)
}

// TargetFills converts the per-target outcomes of a run.
func TargetFills(e events.RunEvent) []coremetrics.TargetFillEvent {
	out := make([]coremetrics.TargetFillEvent, len(e.Result.Targets))
	for i, o := range e.Result.Targets {
		out[i] = coremetrics.TargetFillEvent{
			RunID:       e.RunID,
			TargetIndex: o.Index,
			Label:       o.Label,
			Required:    o.Required,
			Assigned:    o.Assigned,
			Time:        e.Time,
		}
	}
	return out
}

// OrderEventToMetrics converts one relocation order outcome.
func OrderEventToMetrics(e events.OrderEvent) coremetrics.RelocationOrderEvent {
	errStr := ""
	if e.Err != nil {
		errStr = e.Err.Error()
	}
	return coremetrics.RelocationOrderEvent{
		RunID:     e.RunID,
		CommandID: e.CommandID,
		UnitID:    e.UnitID,
		Published: e.Err == nil,
		Error:     errStr,
		Time:      e.Time,
	}
}

// RunEventToMetrics converts a finished run into its metrics event.
func RunEventToMetrics(e events.RunEvent) coremetrics.AllocationRunEvent {
	ds := make([]float64, len(e.Result.Assignments))
	for i, a := range e.Result.Assignments {
		ds[i] = a.Distance
	}
	return coremetrics.AllocationRunEvent{
		RunID:         e.RunID,
		Units:         e.Summary.Units,
		Targets:       e.Summary.Targets,
		Requested:     e.Summary.Requested,
		Assigned:      e.Summary.Assigned,
		Unassigned:    e.Summary.Unassigned,
		Unsatisfied:   e.Summary.Unsatisfied,
		TotalDistance: e.Summary.TotalDistance,
		MeanDistance:  e.Summary.MeanDistance,
		MaxDistance:   e.Summary.MaxDistance,
		Distances:     ds,
		Duration:      e.Duration,
		Time:          e.Time,
	}
}
