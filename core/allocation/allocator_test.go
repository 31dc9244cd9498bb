package allocation

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rebalance/core/geo"
	"github.com/kilianp07/rebalance/core/model"
)

// planar treats coordinates as plane coordinates; handy for exact values.
func planar(a, b model.Point) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

func ids(as []model.Assignment) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.UnitID
	}
	return out
}

func unitIDs(us []model.Unit) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.ID
	}
	return out
}

func TestAllocate_NearestUnitsForSingleTarget(t *testing.T) {
	units := []model.Unit{{ID: "A", Lat: 0, Lon: 0}, {ID: "B", Lat: 0, Lon: 1}, {ID: "C", Lat: 0, Lon: 2}}
	targets := []model.Target{{Lat: 0, Lon: 0, Required: 2}}

	res := Allocate(units, targets, geo.Haversine(geo.Meters))

	assert.Equal(t, []string{"A", "B"}, ids(res.Assignments))
	for _, a := range res.Assignments {
		assert.Equal(t, 0.0, a.Lat)
		assert.Equal(t, 0.0, a.Lon)
	}
	assert.Equal(t, []string{"C"}, unitIDs(res.Leftover))
}

func TestAllocate_PoolExhausted(t *testing.T) {
	units := []model.Unit{{ID: "A", Lat: 0, Lon: 0}}
	targets := []model.Target{
		{ID: "T1", Lat: 0, Lon: 0, Required: 1},
		{ID: "T2", Lat: 0, Lon: 5, Required: 1},
	}

	res := Allocate(units, targets, geo.Haversine(geo.Meters))

	require.Len(t, res.Assignments, 1)
	assert.Equal(t, model.Assignment{UnitID: "A", Lat: 0, Lon: 0, TargetIndex: 0, From: model.Point{}}, res.Assignments[0])
	assert.Empty(t, res.AssignedTo(1))
	assert.Equal(t, 0, res.Targets[1].Assigned)
	assert.Equal(t, 0, res.Targets[1].PoolBefore)
	assert.Equal(t, 1, res.Targets[1].Shortfall())
	assert.Empty(t, res.Leftover)
}

func TestAllocate_TieKeepsPoolOrder(t *testing.T) {
	units := []model.Unit{{ID: "B2", Lat: 0, Lon: 0}, {ID: "A1", Lat: 0, Lon: 0}}
	targets := []model.Target{{Lat: 1, Lon: 1, Required: 1}}

	res := Allocate(units, targets, geo.Haversine(geo.Meters))

	assert.Equal(t, []string{"B2"}, ids(res.Assignments))
	assert.Equal(t, []string{"A1"}, unitIDs(res.Leftover))
}

func TestAllocate_TieAfterClaims(t *testing.T) {
	units := []model.Unit{
		{ID: "A", Lat: 0, Lon: 0},
		{ID: "B", Lat: 0, Lon: 2},
		{ID: "C", Lat: 0, Lon: 2},
		{ID: "D", Lat: 0, Lon: 2},
	}
	targets := []model.Target{
		{Lat: 0, Lon: 2, Required: 1},
		{Lat: 0, Lon: 2, Required: 1},
		{Lat: 0, Lon: 2, Required: 5},
	}

	res := Allocate(units, targets, planar)

	assert.Equal(t, []string{"B", "C", "D", "A"}, ids(res.Assignments))
	assert.Equal(t, []int{0, 1, 2, 2}, []int{
		res.Assignments[0].TargetIndex, res.Assignments[1].TargetIndex,
		res.Assignments[2].TargetIndex, res.Assignments[3].TargetIndex,
	})
}

func TestAllocate_ZeroRequired(t *testing.T) {
	units := []model.Unit{{ID: "A", Lat: 0, Lon: 0}, {ID: "B", Lat: 0, Lon: 1}}
	targets := []model.Target{
		{Lat: 0, Lon: 0, Required: 0},
		{Lat: 0, Lon: 1, Required: 1},
	}

	res := Allocate(units, targets, planar)

	assert.Empty(t, res.AssignedTo(0))
	assert.Equal(t, 2, res.Targets[0].PoolBefore)
	assert.Equal(t, 2, res.Targets[1].PoolBefore)
	assert.Equal(t, []string{"B"}, ids(res.Assignments))
	assert.Equal(t, []string{"A"}, unitIDs(res.Leftover))
}

func TestAllocate_NegativeRequiredSelectsNothing(t *testing.T) {
	units := []model.Unit{{ID: "A"}}
	res := Allocate(units, []model.Target{{Required: -3}}, planar)
	assert.Empty(t, res.Assignments)
	assert.Equal(t, 0, res.Targets[0].Shortfall())
	assert.Len(t, res.Leftover, 1)
}

func TestAllocate_EmptyInputs(t *testing.T) {
	res := Allocate(nil, []model.Target{{Required: 3}, {Required: 1}}, planar)
	assert.Empty(t, res.Assignments)
	assert.Empty(t, res.Leftover)
	assert.Len(t, res.Targets, 2)

	res = Allocate([]model.Unit{{ID: "A"}}, nil, planar)
	assert.Empty(t, res.Assignments)
	assert.Equal(t, []string{"A"}, unitIDs(res.Leftover))
}

func TestAllocate_OrderSensitivity(t *testing.T) {
	units := []model.Unit{{ID: "A", Lat: 0, Lon: 0}, {ID: "B", Lat: 0, Lon: 10}}
	t1 := model.Target{ID: "T1", Lat: 0, Lon: 4, Required: 1}
	t2 := model.Target{ID: "T2", Lat: 0, Lon: 1, Required: 1}

	fwd := Allocate(units, []model.Target{t1, t2}, planar)
	rev := Allocate(units, []model.Target{t2, t1}, planar)

	assert.Equal(t, "A", fwd.Assignments[0].UnitID)
	assert.Equal(t, 4.0, fwd.Assignments[0].Lon)
	assert.Equal(t, "A", rev.Assignments[0].UnitID)
	assert.Equal(t, 1.0, rev.Assignments[0].Lon)
	assert.NotEqual(t, fwd.Assignments, rev.Assignments)
}

func TestAllocate_DoesNotMutateInput(t *testing.T) {
	units := []model.Unit{{ID: "A", Lat: 1, Lon: 1}, {ID: "B", Lat: 2, Lon: 2}}
	before := append([]model.Unit(nil), units...)
	res := Allocate(units, []model.Target{{Lat: 9, Lon: 9, Required: 1}}, planar)
	assert.Equal(t, before, units)
	require.Len(t, res.Leftover, 1)
	assert.Equal(t, before[0], res.Leftover[0])
}

func TestAllocate_NaNDistanceNeverSelected(t *testing.T) {
	units := []model.Unit{{ID: "bad"}, {ID: "good", Lat: 5}}
	dist := func(a, b model.Point) float64 {
		if a.Lat == 0 {
			return math.NaN()
		}
		return planar(a, b)
	}
	res := Allocate(units, []model.Target{{Required: 2}}, dist)
	assert.Equal(t, []string{"good"}, ids(res.Assignments))
	assert.Equal(t, []string{"bad"}, unitIDs(res.Leftover))
}

func TestAllocate_RecordsTravelDistance(t *testing.T) {
	units := []model.Unit{{ID: "A", Lat: 3, Lon: 4}}
	res := Allocate(units, []model.Target{{Required: 1}}, planar)
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, 5.0, res.Assignments[0].Distance)
	assert.Equal(t, model.Point{Lat: 3, Lon: 4}, res.Assignments[0].From)
}

func TestAllocate_CancelledBetweenTargets(t *testing.T) {
	units := []model.Unit{{ID: "A"}, {ID: "B", Lat: 1}, {ID: "C", Lat: 2}}
	targets := []model.Target{{Required: 1}, {Required: 1}, {Required: 1}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var seen []int
	alloc := NewGreedyAllocator(planar, WithProgress(func(o TargetOutcome) {
		seen = append(seen, o.Index)
		cancel()
	}))

	res, err := alloc.Allocate(ctx, units, targets)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, []int{0}, seen)
	assert.Equal(t, []string{"A"}, ids(res.Assignments))
	assert.Equal(t, []string{"B", "C"}, unitIDs(res.Leftover))
	assert.Len(t, res.Targets, 1)
}

func TestAllocate_ProgressPerTarget(t *testing.T) {
	var outs []TargetOutcome
	alloc := NewGreedyAllocator(planar, WithProgress(func(o TargetOutcome) { outs = append(outs, o) }))
	_, err := alloc.Allocate(context.Background(),
		[]model.Unit{{ID: "A"}, {ID: "B"}},
		[]model.Target{{ID: "x", Required: 3}, {Required: 1}})
	require.NoError(t, err)
	assert.Equal(t, []TargetOutcome{
		{Index: 0, Label: "x", Required: 3, Assigned: 2, PoolBefore: 2},
		{Index: 1, Label: "#1", Required: 1, Assigned: 0, PoolBefore: 0},
	}, outs)
}

func TestNewGreedyAllocator_DefaultDistance(t *testing.T) {
	a := NewGreedyAllocator(nil, WithLogger(nil))
	res, err := a.Allocate(context.Background(),
		[]model.Unit{{ID: "far", Lat: 1}, {ID: "near", Lat: 0.001}},
		[]model.Target{{Required: 1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, ids(res.Assignments))
	assert.InDelta(t, 111.19, res.Assignments[0].Distance, 0.01)
}

func randomInput(r *rand.Rand, nu, nt int) ([]model.Unit, []model.Target) {
	units := make([]model.Unit, nu)
	for i := range units {
		// a coarse grid forces plenty of distance ties
		units[i] = model.Unit{ID: "u" + string(rune('a'+i%26)) + string(rune('a'+i/26)), Lat: float64(r.Intn(6)), Lon: float64(r.Intn(6))}
	}
	targets := make([]model.Target, nt)
	for i := range targets {
		targets[i] = model.Target{Lat: float64(r.Intn(6)), Lon: float64(r.Intn(6)), Required: r.Intn(5)}
	}
	return units, targets
}

// TestAllocate_Invariants replays the algorithm step by step and checks
// capacity, exhaustion, partition, conservation and nearest-first.
func TestAllocate_Invariants(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		units, targets := randomInput(r, r.Intn(40), r.Intn(12))
		res := Allocate(units, targets, planar)

		seen := map[string]bool{}
		for _, a := range res.Assignments {
			require.False(t, seen[a.UnitID], "unit %s assigned twice", a.UnitID)
			seen[a.UnitID] = true
		}
		for _, u := range res.Leftover {
			require.False(t, seen[u.ID], "unit %s both assigned and left over", u.ID)
			seen[u.ID] = true
		}
		require.Len(t, seen, len(units))

		remaining := append([]model.Unit(nil), units...)
		for i, tg := range targets {
			got := res.AssignedTo(i)
			want := max(0, min(tg.Required, len(remaining)))
			require.Len(t, got, want)
			require.Equal(t, len(remaining), res.Targets[i].PoolBefore)

			chosen := map[string]bool{}
			worst := 0.0
			for _, a := range got {
				chosen[a.UnitID] = true
				assert.Equal(t, tg.Lat, a.Lat)
				assert.Equal(t, tg.Lon, a.Lon)
				worst = math.Max(worst, a.Distance)
			}
			next := remaining[:0:0]
			for _, u := range remaining {
				if chosen[u.ID] {
					continue
				}
				require.GreaterOrEqual(t, planar(u.Position(), tg.Position()), worst)
				next = append(next, u)
			}
			remaining = next
		}
		require.Equal(t, unitIDs(remaining), unitIDs(res.Leftover))
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	units, targets := randomInput(r, 60, 15)
	first := Allocate(units, targets, planar)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Allocate(units, targets, planar))
	}
}

func TestAllocate_ConcurrentRunsAreIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	units, targets := randomInput(r, 80, 20)
	alloc := NewGreedyAllocator(planar)
	want, err := alloc.Allocate(context.Background(), units, targets)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = alloc.Allocate(context.Background(), units, targets)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
