// Package geo provides distance functions between geographic points. The
// allocator only depends on the DistanceFunc signature; Haversine is the
// reference implementation used in production.
package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/kilianp07/rebalance/core/model"
)

// DistanceFunc returns a non-negative distance between two points. It must be
// symmetric and return zero iff the points coincide.
type DistanceFunc func(a, b model.Point) float64

// Unit selects the length unit returned by a distance function.
type Unit string

const (
	Kilometers    Unit = "km"
	Meters        Unit = "m"
	Miles         Unit = "mi"
	NauticalMiles Unit = "nmi"
	Feet          Unit = "ft"
)

// earthRadiusKm is the mean Earth radius (IUGG).
const earthRadiusKm = 6371.0088

var conversions = map[Unit]float64{
	Kilometers:    1.0,
	Meters:        1000.0,
	Miles:         0.621371192,
	NauticalMiles: 0.539956803,
	Feet:          3280.839895013,
}

// ParseUnit converts a configuration string to a Unit. Empty means meters.
func ParseUnit(s string) (Unit, error) {
	if s == "" {
		return Meters, nil
	}
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := conversions[u]; !ok {
		return "", fmt.Errorf("unknown distance unit %q", s)
	}
	return u, nil
}

func factor(u Unit) float64 {
	if f, ok := conversions[u]; ok {
		return f
	}
	return conversions[Meters]
}

// Haversine returns the great-circle distance function expressed in u.
func Haversine(u Unit) DistanceFunc {
	r := earthRadiusKm * factor(u)
	return func(a, b model.Point) float64 {
		lat1, lng1 := radians(a.Lat), radians(a.Lon)
		lat2, lng2 := radians(b.Lat), radians(b.Lon)
		dLat := lat2 - lat1
		dLng := lng2 - lng1
		d := math.Pow(math.Sin(dLat*0.5), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLng*0.5), 2)
		// rounding can push d slightly above 1 for antipodal points
		d = math.Min(1, math.Max(0, d))
		return 2 * r * math.Asin(math.Sqrt(d))
	}
}

// Equirectangular approximates the great-circle distance with a flat
// projection around the mean latitude. Good enough for ranking inside a city.
func Equirectangular(u Unit) DistanceFunc {
	r := earthRadiusKm * factor(u)
	return func(a, b model.Point) float64 {
		// shortest way around, so the antimeridian is not a wall
		dLon := math.Remainder(b.Lon-a.Lon, 360)
		x := radians(dLon) * math.Cos(radians((a.Lat+b.Lat)/2))
		y := radians(b.Lat - a.Lat)
		return r * math.Hypot(x, y)
	}
}

// New returns the distance function registered under metric, e.g.
// "haversine" or "equirectangular".
func New(metric string, u Unit) (DistanceFunc, error) {
	switch strings.ToLower(metric) {
	case "", "haversine":
		return Haversine(u), nil
	case "equirectangular":
		return Equirectangular(u), nil
	default:
		return nil, fmt.Errorf("unknown distance metric %q", metric)
	}
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
