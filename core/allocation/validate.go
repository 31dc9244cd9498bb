package allocation

import (
	"errors"
	"fmt"

	"github.com/kilianp07/rebalance/core/model"
)

var (
	// ErrEmptyUnitID is returned for a unit without identifier.
	ErrEmptyUnitID = errors.New("empty unit id")
	// ErrDuplicateUnit is returned when two units share an identifier.
	ErrDuplicateUnit = errors.New("duplicate unit id")
	// ErrInvalidCoordinate is returned for NaN, infinite or out-of-range
	// coordinates.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrNegativeRequired is returned for a target with a negative count.
	ErrNegativeRequired = errors.New("negative required count")
)

// Validate checks the input tables before a run. All problems are reported
// at once through errors.Join; use errors.Is to test for a given class.
func Validate(units []model.Unit, targets []model.Target) error {
	var errs []error
	seen := make(map[string]int, len(units))
	for i, u := range units {
		if u.ID == "" {
			errs = append(errs, fmt.Errorf("unit %d: %w", i, ErrEmptyUnitID))
		} else if first, ok := seen[u.ID]; ok {
			errs = append(errs, fmt.Errorf("unit %d %q (first seen at %d): %w", i, u.ID, first, ErrDuplicateUnit))
		} else {
			seen[u.ID] = i
		}
		if err := u.Position().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("unit %d %q: %w: %v", i, u.ID, ErrInvalidCoordinate, err))
		}
	}
	for i, t := range targets {
		if err := t.Position().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w: %v", t.Label(i), ErrInvalidCoordinate, err))
		}
		if t.Required < 0 {
			errs = append(errs, fmt.Errorf("target %s: %w (%d)", t.Label(i), ErrNegativeRequired, t.Required))
		}
	}
	return errors.Join(errs...)
}
