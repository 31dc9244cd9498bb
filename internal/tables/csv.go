package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/kilianp07/rebalance/core/model"
)

// header maps lower-cased column names to their position.
type header map[string]int

func readHeader(cr *csv.Reader) (header, error) {
	names, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty table")
	}
	if err != nil {
		return nil, err
	}
	h := make(header, len(names))
	for i, n := range names {
		n = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(n, "\ufeff")))
		h[n] = i
	}
	return h, nil
}

// column returns the index of the first present name.
func (h header) column(names ...string) (string, int, bool) {
	for _, n := range names {
		if i, ok := h[n]; ok {
			return n, i, true
		}
	}
	return "", -1, false
}

func (h header) require(names ...string) (string, int, error) {
	n, i, ok := h.column(names...)
	if !ok {
		return "", -1, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(names, " or "))
	}
	return n, i, nil
}

// rows iterates over data records, numbering them from 1.
func rows(cr *csv.Reader, fn func(row int, rec []string) error) error {
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &CellError{Row: row, Err: err}
		}
		if err := fn(row, rec); err != nil {
			return err
		}
	}
}

func parseFloat(rec []string, row int, col string, i int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
	if err != nil {
		return 0, &CellError{Row: row, Column: col, Err: err}
	}
	return v, nil
}

// parseCount accepts integers and integral floats such as "3.0", which
// dataframe exports commonly produce.
func parseCount(rec []string, row int, col string, i int) (int, error) {
	s := strings.TrimSpace(rec[i])
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, &CellError{Row: row, Column: col, Err: fmt.Errorf("not an integer: %q", s)}
	}
	if f < math.MinInt || f >= -math.MinInt {
		return 0, &CellError{Row: row, Column: col, Err: fmt.Errorf("count out of range: %q", s)}
	}
	return int(f), nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}

func readUnitsCSV(r io.Reader) ([]model.Unit, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	_, idCol, err := h.require("id", "unit_id")
	if err != nil {
		return nil, err
	}
	latName, latCol, err := h.require("lat", "latitude")
	if err != nil {
		return nil, err
	}
	lonName, lonCol, err := h.require("lon", "lng", "longitude")
	if err != nil {
		return nil, err
	}

	var out []model.Unit
	err = rows(cr, func(row int, rec []string) error {
		lat, err := parseFloat(rec, row, latName, latCol)
		if err != nil {
			return err
		}
		lon, err := parseFloat(rec, row, lonName, lonCol)
		if err != nil {
			return err
		}
		out = append(out, model.Unit{ID: strings.TrimSpace(rec[idCol]), Lat: lat, Lon: lon})
		return nil
	})
	return out, err
}

func readTargetsCSV(r io.Reader) ([]model.Target, error) {
	cr := newCSVReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	latName, latCol, err := h.require("lat", "latitude")
	if err != nil {
		return nil, err
	}
	lonName, lonCol, err := h.require("lon", "lng", "longitude")
	if err != nil {
		return nil, err
	}
	reqName, reqCol, err := h.require("required", "n_scooters_need")
	if err != nil {
		return nil, err
	}
	_, idCol, hasID := h.column("id", "target_id")

	var out []model.Target
	err = rows(cr, func(row int, rec []string) error {
		lat, err := parseFloat(rec, row, latName, latCol)
		if err != nil {
			return err
		}
		lon, err := parseFloat(rec, row, lonName, lonCol)
		if err != nil {
			return err
		}
		req, err := parseCount(rec, row, reqName, reqCol)
		if err != nil {
			return err
		}
		t := model.Target{Lat: lat, Lon: lon, Required: req}
		if hasID {
			t.ID = strings.TrimSpace(rec[idCol])
		}
		out = append(out, t)
		return nil
	})
	return out, err
}
