package model

// Unit is a mobile unit (scooter, bike, vehicle) parked at a known position.
// Units are values: the allocator never mutates them, relocation is expressed
// through Assignments.
type Unit struct {
	ID  string  `json:"id" yaml:"id"`
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Position returns the unit's current coordinates.
func (u Unit) Position() Point { return Point{Lat: u.Lat, Lon: u.Lon} }
