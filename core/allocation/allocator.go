package allocation

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/kilianp07/rebalance/core/geo"
	"github.com/kilianp07/rebalance/core/logger"
	"github.com/kilianp07/rebalance/core/model"
)

// Allocator assigns units to targets.
type Allocator interface {
	Allocate(ctx context.Context, units []model.Unit, targets []model.Target) (Result, error)
}

// GreedyAllocator implements nearest-first sequential allocation. It holds
// only configuration and can be shared between goroutines; every call to
// Allocate works on its own pool.
type GreedyAllocator struct {
	dist     geo.DistanceFunc
	log      logger.Logger
	progress ProgressFunc
}

// NewGreedyAllocator returns an allocator ranking units with dist. A nil dist
// defaults to haversine meters.
func NewGreedyAllocator(dist geo.DistanceFunc, opts ...Option) *GreedyAllocator {
	if dist == nil {
		dist = geo.Haversine(geo.Meters)
	}
	a := &GreedyAllocator{dist: dist, log: logger.NopLogger{}}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Allocate is a shorthand for a one-off run without cancellation.
func Allocate(units []model.Unit, targets []model.Target, dist geo.DistanceFunc) Result {
	res, _ := NewGreedyAllocator(dist).Allocate(context.Background(), units, targets)
	return res
}

type candidate struct {
	idx  int
	dist float64
}

// Allocate processes targets in order. The context is only consulted between
// targets; on cancellation the result holds everything decided so far and
// the pool reflects exactly the completed targets.
func (a *GreedyAllocator) Allocate(ctx context.Context, units []model.Unit, targets []model.Target) (Result, error) {
	p := newPool(units)
	res := Result{
		Assignments: make([]model.Assignment, 0, min(len(units), requested(targets))),
		Targets:     make([]TargetOutcome, 0, len(targets)),
	}

	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			res.Leftover = p.leftover()
			return res, fmt.Errorf("allocation stopped before target %d: %w", i, err)
		}

		out := TargetOutcome{Index: i, Label: t.Label(i), Required: t.Required, PoolBefore: p.size()}
		selected := a.rank(p, t)
		dst := t.Position()
		for _, c := range selected {
			u := p.units[c.idx]
			res.Assignments = append(res.Assignments, model.Assignment{
				UnitID:      u.ID,
				Lat:         t.Lat,
				Lon:         t.Lon,
				TargetIndex: i,
				From:        u.Position(),
				Distance:    c.dist,
			})
		}
		claimed := make([]int, len(selected))
		for j, c := range selected {
			claimed[j] = c.idx
		}
		p.claim(claimed)
		out.Assigned = len(selected)

		a.log.Debugw("target processed", map[string]any{
			"target":      out.Label,
			"position":    dst.String(),
			"required":    out.Required,
			"assigned":    out.Assigned,
			"pool_before": out.PoolBefore,
		})
		if out.Assigned < out.Required {
			a.log.Warnf("target %s short by %d units", out.Label, out.Shortfall())
		}
		res.Targets = append(res.Targets, out)
		if a.progress != nil {
			a.progress(out)
		}
	}

	res.Leftover = p.leftover()
	a.log.Infof("allocated %d of %d units to %d targets, %d left", len(res.Assignments), len(units), len(targets), len(res.Leftover))
	return res, nil
}

// rank returns the units selected for t, nearest first. Units whose distance
// cannot be computed (NaN) are never selected and stay in the pool.
func (a *GreedyAllocator) rank(p *pool, t model.Target) []candidate {
	if t.Required <= 0 || p.size() == 0 {
		return nil
	}
	dst := t.Position()
	avail := p.available()
	cands := make([]candidate, 0, len(avail))
	for _, idx := range avail {
		d := a.dist(p.units[idx].Position(), dst)
		if math.IsNaN(d) {
			continue
		}
		cands = append(cands, candidate{idx: idx, dist: d})
	}
	slices.SortStableFunc(cands, func(x, y candidate) int {
		switch {
		case x.dist < y.dist:
			return -1
		case x.dist > y.dist:
			return 1
		default:
			return 0
		}
	})
	if len(cands) > t.Required {
		cands = cands[:t.Required]
	}
	return cands
}

func requested(targets []model.Target) int {
	n := 0
	for _, t := range targets {
		if t.Required > 0 {
			n += t.Required
		}
	}
	return n
}
