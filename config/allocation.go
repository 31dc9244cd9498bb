package config

import (
	"fmt"

	"github.com/kilianp07/rebalance/core/geo"
	"github.com/kilianp07/rebalance/pkg/export"
)

// AllocationConfig selects the distance collaborator of the allocator.
type AllocationConfig struct {
	// Metric is "haversine" or "equirectangular".
	Metric string `json:"metric"`
	// Unit is the length unit of reported distances: m, km, mi, nmi or ft.
	Unit string `json:"unit"`
	// SkipValidation runs the allocator on unchecked input.
	SkipValidation bool `json:"skip_validation"`
}

func (c *AllocationConfig) SetDefaults() {
	if c.Metric == "" {
		c.Metric = "haversine"
	}
	if c.Unit == "" {
		c.Unit = string(geo.Meters)
	}
}

func (c AllocationConfig) Validate() error {
	u, err := geo.ParseUnit(c.Unit)
	if err != nil {
		return err
	}
	_, err = geo.New(c.Metric, u)
	return err
}

// DistanceFunc builds the configured distance function.
func (c AllocationConfig) DistanceFunc() (geo.DistanceFunc, error) {
	u, err := geo.ParseUnit(c.Unit)
	if err != nil {
		return nil, err
	}
	return geo.New(c.Metric, u)
}

// InputConfig points at the unit and target tables.
type InputConfig struct {
	Units   string `json:"units"`
	Targets string `json:"targets"`
}

// OutputConfig controls where and how plans are written.
type OutputConfig struct {
	// Format is json, csv or geojson.
	Format string `json:"format"`
	// Path of the plan file; empty or "-" writes to stdout.
	Path string `json:"path"`
	// Chart is an optional HTML fill chart path.
	Chart string `json:"chart"`
}

func (c *OutputConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = string(export.FormatJSON)
	}
}

func (c OutputConfig) Validate() error {
	_, err := export.ParseFormat(c.Format)
	return err
}

// PublishConfig controls relocation order publishing over MQTT.
type PublishConfig struct {
	Enabled bool `json:"enabled"`
	// AckTimeoutSeconds bounds the wait for each unit acknowledgment. Zero
	// disables waiting.
	AckTimeoutSeconds int `json:"ack_timeout_seconds"`
}

func (c PublishConfig) Validate() error {
	if c.AckTimeoutSeconds < 0 {
		return fmt.Errorf("ack_timeout_seconds must not be negative")
	}
	return nil
}
