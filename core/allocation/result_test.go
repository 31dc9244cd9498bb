package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/rebalance/core/model"
)

func TestSummarize(t *testing.T) {
	res := Result{
		Assignments: []model.Assignment{
			{UnitID: "a", Distance: 1},
			{UnitID: "b", Distance: 5},
			{UnitID: "c", Distance: 3, TargetIndex: 1},
		},
		Leftover: []model.Unit{{ID: "d"}},
		Targets: []TargetOutcome{
			{Index: 0, Required: 2, Assigned: 2},
			{Index: 1, Required: 4, Assigned: 1},
			{Index: 2, Required: 0},
		},
	}
	s := res.Summarize()
	assert.Equal(t, 4, s.Units)
	assert.Equal(t, 3, s.Targets)
	assert.Equal(t, 6, s.Requested)
	assert.Equal(t, 3, s.Assigned)
	assert.Equal(t, 1, s.Unassigned)
	assert.Equal(t, 1, s.Unsatisfied)
	assert.Equal(t, 9.0, s.TotalDistance)
	assert.Equal(t, 3.0, s.MeanDistance)
	assert.Equal(t, 3.0, s.MedianDistance)
	assert.Equal(t, 5.0, s.MaxDistance)
}

func TestSummarize_NoAssignments(t *testing.T) {
	s := Result{Leftover: []model.Unit{{ID: "a"}}}.Summarize()
	assert.Equal(t, Summary{Units: 1, Unassigned: 1}, s)
}

func TestAssignedTo(t *testing.T) {
	res := Result{Assignments: []model.Assignment{{UnitID: "a"}, {UnitID: "b", TargetIndex: 1}, {UnitID: "c"}}}
	got := res.AssignedTo(0)
	assert.Len(t, got, 2)
	assert.Equal(t, "c", got[1].UnitID)
	assert.Empty(t, res.AssignedTo(3))
}
