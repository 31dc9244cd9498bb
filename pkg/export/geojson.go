package export

import (
	"encoding/json"
	"io"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/kilianp07/rebalance/core/model"
)

// FeatureCollection builds one LineString per assignment, from the unit's
// original position to its destination. GeoJSON orders coordinates lon, lat.
func FeatureCollection(assignments []model.Assignment, targets []model.Target) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(assignments))}
	for _, a := range assignments {
		line := geom.NewLineStringFlat(geom.XY, []float64{a.From.Lon, a.From.Lat, a.Lon, a.Lat})
		target := model.Target{}
		if a.TargetIndex >= 0 && a.TargetIndex < len(targets) {
			target = targets[a.TargetIndex]
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       a.UnitID,
			Geometry: line,
			Properties: map[string]interface{}{
				"id":           a.UnitID,
				"target":       target.Label(a.TargetIndex),
				"target_index": a.TargetIndex,
				"distance":     a.Distance,
			},
		})
	}
	return fc
}

// WriteGeoJSON writes the relocation moves as a GeoJSON FeatureCollection.
func WriteGeoJSON(w io.Writer, assignments []model.Assignment, targets []model.Target) error {
	b, err := json.Marshal(FeatureCollection(assignments, targets))
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}
