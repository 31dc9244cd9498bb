// Package export writes relocation plans in the formats consumed downstream.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kilianp07/rebalance/core/model"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat converts a flag value to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatCSV, FormatGeoJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Write encodes the assignments in the given format.
func Write(w io.Writer, f Format, assignments []model.Assignment, targets []model.Target) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, assignments)
	case FormatGeoJSON:
		return WriteGeoJSON(w, assignments, targets)
	default:
		return WriteJSON(w, assignments)
	}
}

// WriteJSON writes the relocation table to w as a JSON array.
func WriteJSON(w io.Writer, assignments []model.Assignment) error {
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(assignments)
}

// WriteCSV writes the relocation table with the id,lat_new,lon_new header in
// production order.
func WriteCSV(w io.Writer, assignments []model.Assignment) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "lat_new", "lon_new"}); err != nil {
		return err
	}
	for _, a := range assignments {
		rec := []string{
			a.UnitID,
			strconv.FormatFloat(a.Lat, 'f', -1, 64),
			strconv.FormatFloat(a.Lon, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
