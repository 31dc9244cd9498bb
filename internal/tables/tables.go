// Package tables loads unit and target tables from CSV, JSON or YAML files.
//
// Unit tables carry the columns id, lat and lon. Target tables carry lat, lon
// and the required count, named either required or n_scooters_need, plus an
// optional id used as a label in reports.
package tables

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilianp07/rebalance/core/model"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported table format")
	ErrMissingColumn     = errors.New("missing column")
)

// Format identifies the encoding of a table.
type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatOf infers the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSV, nil
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// CellError locates a parse problem in a table. Row numbers start at 1 for
// the first data row.
type CellError struct {
	Row    int
	Column string
	Err    error
}

func (e *CellError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// LoadUnits reads the unit table at path.
func LoadUnits(path string) ([]model.Unit, error) {
	f, format, err := open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	units, err := ReadUnits(f, format)
	if err != nil {
		return nil, fmt.Errorf("load units %s: %w", path, err)
	}
	return units, nil
}

// LoadTargets reads the target table at path.
func LoadTargets(path string) ([]model.Target, error) {
	f, format, err := open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	targets, err := ReadTargets(f, format)
	if err != nil {
		return nil, fmt.Errorf("load targets %s: %w", path, err)
	}
	return targets, nil
}

// ReadUnits decodes a unit table in the given format.
func ReadUnits(r io.Reader, format Format) ([]model.Unit, error) {
	switch format {
	case CSV:
		return readUnitsCSV(r)
	case JSON, YAML:
		var rows []unitRow
		if err := decode(r, format, &rows); err != nil {
			return nil, err
		}
		out := make([]model.Unit, len(rows))
		for i, row := range rows {
			u, err := row.unit()
			if err != nil {
				return nil, &CellError{Row: i + 1, Err: err}
			}
			out[i] = u
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ReadTargets decodes a target table in the given format.
func ReadTargets(r io.Reader, format Format) ([]model.Target, error) {
	switch format {
	case CSV:
		return readTargetsCSV(r)
	case JSON, YAML:
		var rows []targetRow
		if err := decode(r, format, &rows); err != nil {
			return nil, err
		}
		out := make([]model.Target, len(rows))
		for i, row := range rows {
			t, err := row.target()
			if err != nil {
				return nil, &CellError{Row: i + 1, Err: err}
			}
			out[i] = t
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func open(path string) (*os.File, Format, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	return f, format, nil
}
