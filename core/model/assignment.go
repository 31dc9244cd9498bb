package model

// Assignment records that a unit is relocated to a target's coordinates.
// The JSON field names match the relocation table consumed downstream
// (id, lat_new, lon_new).
type Assignment struct {
	UnitID string  `json:"id" yaml:"id"`
	Lat    float64 `json:"lat_new" yaml:"lat_new"`
	Lon    float64 `json:"lon_new" yaml:"lon_new"`

	// TargetIndex is the position of the claiming target in the input order.
	TargetIndex int `json:"target_index" yaml:"target_index"`
	// From is the unit position before relocation.
	From Point `json:"from" yaml:"from"`
	// Distance travelled, in the unit of the distance function used.
	Distance float64 `json:"distance" yaml:"distance"`
}

// Destination returns the new coordinates of the unit.
func (a Assignment) Destination() Point { return Point{Lat: a.Lat, Lon: a.Lon} }
