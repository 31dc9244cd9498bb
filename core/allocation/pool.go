package allocation

import "github.com/kilianp07/rebalance/core/model"

// pool is the working set of a single run. Units keep their input order and
// are never removed from the backing slice; claimed marks those already
// assigned.
type pool struct {
	units   []model.Unit
	claimed []bool
	free    int
}

func newPool(units []model.Unit) *pool {
	cp := make([]model.Unit, len(units))
	copy(cp, units)
	return &pool{units: cp, claimed: make([]bool, len(cp)), free: len(cp)}
}

// size returns the number of unclaimed units.
func (p *pool) size() int { return p.free }

// available returns the indexes of unclaimed units in pool order.
func (p *pool) available() []int {
	idx := make([]int, 0, p.free)
	for i, c := range p.claimed {
		if !c {
			idx = append(idx, i)
		}
	}
	return idx
}

// claim removes the given units from the pool. Indexes already claimed are
// ignored.
func (p *pool) claim(idx []int) {
	for _, i := range idx {
		if !p.claimed[i] {
			p.claimed[i] = true
			p.free--
		}
	}
}

// leftover returns the unclaimed units in their original order.
func (p *pool) leftover() []model.Unit {
	out := make([]model.Unit, 0, p.free)
	for i, u := range p.units {
		if !p.claimed[i] {
			out = append(out, u)
		}
	}
	return out
}
