package model

import "strconv"

// Target is a demand location requesting a fixed number of units.
// The order of a []Target is significant: earlier targets claim nearby
// units first.
type Target struct {
	// ID is an optional label used in reports. It never influences ordering.
	ID       string  `json:"id,omitempty" yaml:"id,omitempty"`
	Lat      float64 `json:"lat" yaml:"lat"`
	Lon      float64 `json:"lon" yaml:"lon"`
	Required int     `json:"required" yaml:"required"`
}

// Position returns the target coordinates.
func (t Target) Position() Point { return Point{Lat: t.Lat, Lon: t.Lon} }

// Label returns the target ID or a positional fallback such as "#3".
func (t Target) Label(index int) string {
	if t.ID != "" {
		return t.ID
	}
	return "#" + strconv.Itoa(index)
}
