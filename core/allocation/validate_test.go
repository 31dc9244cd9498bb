package allocation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/rebalance/core/model"
)

func TestValidate_OK(t *testing.T) {
	units := []model.Unit{{ID: "a", Lat: 48.85, Lon: 2.35}, {ID: "b", Lat: 48.86, Lon: 2.34}}
	targets := []model.Target{{Lat: 48.85, Lon: 2.35, Required: 0}, {Lat: 48.8, Lon: 2.3, Required: 10}}
	assert.NoError(t, Validate(units, targets))
	assert.NoError(t, Validate(nil, nil))
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	units := []model.Unit{
		{ID: "a"},
		{ID: "a"},
		{ID: "", Lat: 1},
		{ID: "nan", Lat: math.NaN()},
	}
	targets := []model.Target{
		{ID: "north", Lat: 91},
		{Required: -1},
	}
	err := Validate(units, targets)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateUnit))
	assert.True(t, errors.Is(err, ErrEmptyUnitID))
	assert.True(t, errors.Is(err, ErrInvalidCoordinate))
	assert.True(t, errors.Is(err, ErrNegativeRequired))
	assert.Contains(t, err.Error(), "target north")
	assert.Contains(t, err.Error(), "target #1")
	assert.Contains(t, err.Error(), `unit 1 "a" (first seen at 0)`)
}
