package tables

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/rebalance/core/model"
)

// unitRow and targetRow use pointers so that absent fields are reported
// instead of silently read as zero.
type unitRow struct {
	ID  string   `json:"id" yaml:"id"`
	Lat *float64 `json:"lat" yaml:"lat"`
	Lon *float64 `json:"lon" yaml:"lon"`
}

func (r unitRow) unit() (model.Unit, error) {
	if r.Lat == nil {
		return model.Unit{}, fmt.Errorf("%w: lat", ErrMissingColumn)
	}
	if r.Lon == nil {
		return model.Unit{}, fmt.Errorf("%w: lon", ErrMissingColumn)
	}
	return model.Unit{ID: r.ID, Lat: *r.Lat, Lon: *r.Lon}, nil
}

type targetRow struct {
	ID            string   `json:"id" yaml:"id"`
	Lat           *float64 `json:"lat" yaml:"lat"`
	Lon           *float64 `json:"lon" yaml:"lon"`
	Required      *int     `json:"required" yaml:"required"`
	NScootersNeed *int     `json:"n_scooters_need" yaml:"n_scooters_need"`
}

func (r targetRow) target() (model.Target, error) {
	if r.Lat == nil {
		return model.Target{}, fmt.Errorf("%w: lat", ErrMissingColumn)
	}
	if r.Lon == nil {
		return model.Target{}, fmt.Errorf("%w: lon", ErrMissingColumn)
	}
	req := r.Required
	if req == nil {
		req = r.NScootersNeed
	} else if r.NScootersNeed != nil && *r.NScootersNeed != *req {
		return model.Target{}, fmt.Errorf("required (%d) and n_scooters_need (%d) disagree", *req, *r.NScootersNeed)
	}
	if req == nil {
		return model.Target{}, fmt.Errorf("%w: required", ErrMissingColumn)
	}
	return model.Target{ID: r.ID, Lat: *r.Lat, Lon: *r.Lon, Required: *req}, nil
}

func decode(r io.Reader, format Format, v any) error {
	switch format {
	case JSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("decode json: %w", err)
		}
	case YAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(v); err != nil && err != io.EOF {
			return fmt.Errorf("decode yaml: %w", err)
		}
	}
	return nil
}
