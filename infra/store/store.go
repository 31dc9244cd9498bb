// Package store persists relocation plans so past runs can be audited with
// the history command.
package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/rebalance/core/allocation"
	"github.com/kilianp07/rebalance/core/model"
)

// PlanRecord captures one allocation run with its inputs and outcome.
type PlanRecord struct {
	RunID     string             `json:"run_id"`
	Timestamp time.Time          `json:"timestamp"`
	Units     []model.Unit       `json:"units"`
	Targets   []model.Target     `json:"targets"`
	Result    allocation.Result  `json:"result"`
	Summary   allocation.Summary `json:"summary"`
	DryRun    bool               `json:"dry_run,omitempty"`
}

// PlanQuery defines filters for retrieving records. Zero values match all.
type PlanQuery struct {
	Start  time.Time
	End    time.Time
	RunID  string
	UnitID string
	// Limit keeps only the most recent records when positive.
	Limit int
}

// PlanStore persists PlanRecords and supports querying.
type PlanStore interface {
	Append(ctx context.Context, rec PlanRecord) error
	Query(ctx context.Context, q PlanQuery) ([]PlanRecord, error)
	Close() error
}

// Config selects and tunes the plan store backend.
type Config struct {
	// Backend is "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation of the jsonl file. Zero disables rotation.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "plans.db"
		default:
			c.Path = "plans.jsonl"
		}
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite", "none":
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	if c.Backend != "none" && c.Path == "" {
		return fmt.Errorf("store path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("store rotation settings must not be negative")
	}
	return nil
}

// New builds the store selected by cfg.
func New(cfg Config) (PlanStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "none":
		return NopStore{}, nil
	default:
		if cfg.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return NewJSONLStore(cfg.Path)
	}
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, PlanRecord) error                { return nil }
func (NopStore) Query(context.Context, PlanQuery) ([]PlanRecord, error) { return nil, nil }
func (NopStore) Close() error                                            { return nil }

// Involves reports whether the unit was part of the run's input.
func (r PlanRecord) Involves(unitID string) bool {
	return slices.ContainsFunc(r.Units, func(u model.Unit) bool { return u.ID == unitID })
}

// matches applies the time, run and unit filters of q.
func (q PlanQuery) matches(r PlanRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.UnitID != "" && !r.Involves(q.UnitID) {
		return false
	}
	return true
}

// finish orders records by time and applies the limit.
func (q PlanQuery) finish(res []PlanRecord) []PlanRecord {
	slices.SortStableFunc(res, func(a, b PlanRecord) int { return a.Timestamp.Compare(b.Timestamp) })
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[len(res)-q.Limit:]
	}
	return res
}
