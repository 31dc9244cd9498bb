// Package app wires the allocator to its plan store, relocation transport,
// metrics and event bus.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/rebalance/core/allocation"
	"github.com/kilianp07/rebalance/core/events"
	"github.com/kilianp07/rebalance/core/geo"
	coremon "github.com/kilianp07/rebalance/core/monitoring"
	"github.com/kilianp07/rebalance/core/model"
	coremqtt "github.com/kilianp07/rebalance/core/mqtt"
	"github.com/kilianp07/rebalance/infra/logger"
	"github.com/kilianp07/rebalance/infra/store"
	"github.com/kilianp07/rebalance/internal/eventbus"
)

// ErrInvalidInput wraps validation failures of the unit and target tables.
var ErrInvalidInput = errors.New("invalid input")

// Options tunes a single Relocate call.
type Options struct {
	// DryRun computes and stores the plan without publishing orders.
	DryRun bool
}

// OrderStatus reports the outcome of publishing one relocation order.
type OrderStatus struct {
	UnitID    string `json:"unit_id"`
	CommandID string `json:"command_id,omitempty"`
	Acked     bool   `json:"acked"`
	Error     string `json:"error,omitempty"`
}

// Plan is the outcome of one Relocate call.
type Plan struct {
	RunID    string             `json:"run_id"`
	Result   allocation.Result  `json:"result"`
	Summary  allocation.Summary `json:"summary"`
	Orders   []OrderStatus      `json:"orders,omitempty"`
	Duration time.Duration      `json:"duration"`
}

// Deps are the collaborators of a Service. Only Distance is required.
type Deps struct {
	Distance  geo.DistanceFunc
	Store     store.PlanStore
	Publisher coremqtt.Publisher
	Bus       eventbus.EventBus
	Logger    logger.Logger
	// AckTimeout bounds the wait for each order acknowledgment. Zero skips
	// waiting.
	AckTimeout time.Duration
	// SkipValidation runs the allocator on unchecked input.
	SkipValidation bool
}

// Service runs relocation plans end to end.
type Service struct {
	dist       geo.DistanceFunc
	store      store.PlanStore
	publisher  coremqtt.Publisher
	bus        eventbus.EventBus
	log        logger.Logger
	ackTimeout time.Duration
	validate   bool

	now   func() time.Time
	newID func() string
}

// NewService creates a Service from its collaborators.
func NewService(d Deps) (*Service, error) {
	if d.Distance == nil {
		return nil, errors.New("distance function is required")
	}
	s := &Service{
		dist:       d.Distance,
		store:      d.Store,
		publisher:  d.Publisher,
		bus:        d.Bus,
		log:        d.Logger,
		ackTimeout: d.AckTimeout,
		validate:   !d.SkipValidation,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	if s.store == nil {
		s.store = store.NopStore{}
	}
	if s.bus == nil {
		s.bus = eventbus.New()
	}
	if s.log == nil {
		s.log = logger.NopLogger{}
	}
	return s, nil
}

// Bus returns the event bus relocation events are published on.
func (s *Service) Bus() eventbus.EventBus { return s.bus }

// Relocate validates the input, allocates units to targets, stores the plan
// and, unless opts.DryRun is set, publishes one relocation order per
// assignment. Publishing failures are reported per order and never change
// the plan. On cancellation the plan holds the targets completed so far.
func (s *Service) Relocate(ctx context.Context, units []model.Unit, targets []model.Target, opts Options) (Plan, error) {
	runID := s.newID()
	start := s.now()
	plan := Plan{RunID: runID}

	if s.validate {
		if err := allocation.Validate(units, targets); err != nil {
			err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
			s.bus.Publish(events.RunEvent{RunID: runID, Err: err, Time: start})
			return plan, err
		}
	}

	alloc := allocation.NewGreedyAllocator(s.dist,
		allocation.WithLogger(s.log),
		allocation.WithProgress(func(o allocation.TargetOutcome) {
			s.bus.Publish(events.TargetEvent{RunID: runID, Outcome: o, Time: s.now()})
		}),
	)
	res, allocErr := alloc.Allocate(ctx, units, targets)
	plan.Result = res
	plan.Summary = res.Summarize()
	plan.Duration = s.now().Sub(start)
	if allocErr != nil {
		coremon.CaptureRunError(allocErr, runID, "allocation")
		s.bus.Publish(events.RunEvent{RunID: runID, Result: res, Summary: plan.Summary, Duration: plan.Duration, Err: allocErr, Time: start})
		return plan, allocErr
	}

	var errs []error
	rec := store.PlanRecord{
		RunID:     runID,
		Timestamp: start,
		Units:     units,
		Targets:   targets,
		Result:    res,
		Summary:   plan.Summary,
		DryRun:    opts.DryRun,
	}
	if err := s.store.Append(ctx, rec); err != nil {
		s.log.Errorf("store plan %s: %v", runID, err)
		coremon.CaptureRunError(err, runID, "store")
		errs = append(errs, fmt.Errorf("store plan: %w", err))
	}

	var orders []events.OrderEvent
	if !opts.DryRun && s.publisher != nil {
		plan.Orders, orders = s.publish(ctx, runID, res, targets)
	}

	s.bus.Publish(events.RunEvent{RunID: runID, Result: res, Summary: plan.Summary, Duration: plan.Duration, Orders: orders, Time: start})
	s.log.Infof("run %s: %d/%d units assigned, %d targets short", runID, plan.Summary.Assigned, plan.Summary.Units, plan.Summary.Unsatisfied)
	return plan, errors.Join(errs...)
}

func (s *Service) publish(ctx context.Context, runID string, res allocation.Result, targets []model.Target) ([]OrderStatus, []events.OrderEvent) {
	out := make([]OrderStatus, 0, len(res.Assignments))
	evs := make([]events.OrderEvent, 0, len(res.Assignments))
	for _, a := range res.Assignments {
		st := OrderStatus{UnitID: a.UnitID}
		order := coremqtt.RelocationOrder{
			RunID:  runID,
			UnitID: a.UnitID,
			Lat:    a.Lat,
			Lon:    a.Lon,
			Target: targets[a.TargetIndex].Label(a.TargetIndex),
		}
		cmdID, err := s.publisher.SendRelocation(ctx, order)
		st.CommandID = cmdID
		ev := events.OrderEvent{RunID: runID, CommandID: cmdID, UnitID: a.UnitID, Err: err, Time: s.now()}
		evs = append(evs, ev)
		s.bus.Publish(ev)
		if err == nil {
			if s.ackTimeout > 0 {
				st.Acked, err = s.publisher.WaitForAck(cmdID, s.ackTimeout)
			} else {
				s.publisher.Forget(cmdID)
			}
		}
		if err != nil {
			st.Error = err.Error()
			s.log.Warnf("order for unit %s: %v", a.UnitID, err)
		}
		out = append(out, st)
	}
	return out, evs
}

// History returns the stored plans matching q.
func (s *Service) History(ctx context.Context, q store.PlanQuery) ([]store.PlanRecord, error) {
	return s.store.Query(ctx, q)
}
