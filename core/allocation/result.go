package allocation

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/rebalance/core/model"
)

// Result is the outcome of one allocation run.
type Result struct {
	// Assignments in production order: target-major, nearest first.
	Assignments []model.Assignment `json:"assignments"`
	// Leftover holds units never assigned, in input order and with their
	// original coordinates.
	Leftover []model.Unit `json:"leftover"`
	// Targets reports one outcome per processed target.
	Targets []TargetOutcome `json:"targets"`
}

// TargetOutcome describes how a single target was served.
type TargetOutcome struct {
	Index      int    `json:"index"`
	Label      string `json:"label"`
	Required   int    `json:"required"`
	Assigned   int    `json:"assigned"`
	PoolBefore int    `json:"pool_before"`
}

// Shortfall returns how many required units could not be provided.
func (o TargetOutcome) Shortfall() int {
	if o.Assigned >= o.Required {
		return 0
	}
	return o.Required - o.Assigned
}

// AssignedTo returns the assignments of the target at index i.
func (r Result) AssignedTo(i int) []model.Assignment {
	var out []model.Assignment
	for _, a := range r.Assignments {
		if a.TargetIndex == i {
			out = append(out, a)
		}
	}
	return out
}

// Summary aggregates a Result for reporting.
type Summary struct {
	Units          int     `json:"units"`
	Targets        int     `json:"targets"`
	Requested      int     `json:"requested"`
	Assigned       int     `json:"assigned"`
	Unassigned     int     `json:"unassigned"`
	Unsatisfied    int     `json:"unsatisfied"`
	TotalDistance  float64 `json:"total_distance"`
	MeanDistance   float64 `json:"mean_distance"`
	MedianDistance float64 `json:"median_distance"`
	MaxDistance    float64 `json:"max_distance"`
}

// Summarize computes run totals and distance statistics.
func (r Result) Summarize() Summary {
	s := Summary{
		Targets:    len(r.Targets),
		Assigned:   len(r.Assignments),
		Unassigned: len(r.Leftover),
	}
	s.Units = s.Assigned + s.Unassigned
	for _, t := range r.Targets {
		if t.Required > 0 {
			s.Requested += t.Required
		}
		if t.Shortfall() > 0 {
			s.Unsatisfied++
		}
	}
	if len(r.Assignments) == 0 {
		return s
	}
	ds := make([]float64, len(r.Assignments))
	for i, a := range r.Assignments {
		ds[i] = a.Distance
	}
	sort.Float64s(ds)
	s.TotalDistance = floats.Sum(ds)
	s.MeanDistance = stat.Mean(ds, nil)
	s.MedianDistance = stat.Quantile(0.5, stat.Empirical, ds, nil)
	s.MaxDistance = floats.Max(ds)
	return s
}
