package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists plans to a SQLite database. Unit membership is
// indexed in a side table so unit filters run in SQL.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS plans (
    run_id TEXT PRIMARY KEY,
    ts INTEGER NOT NULL,
    record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS plans_ts ON plans(ts);
CREATE TABLE IF NOT EXISTS plan_units (
    run_id TEXT NOT NULL REFERENCES plans(run_id),
    unit_id TEXT NOT NULL,
    PRIMARY KEY(run_id, unit_id)
);`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record and its unit index in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec PlanRecord) (err error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO plans (run_id, ts, record) VALUES (?, ?, ?)`,
		rec.RunID, rec.Timestamp.UnixNano(), string(b)); err != nil {
		return fmt.Errorf("insert plan %s: %w", rec.RunID, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO plan_units (run_id, unit_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, u := range rec.Units {
		if _, err = stmt.ExecContext(ctx, rec.RunID, u.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q ordered by time.
func (s *SQLiteStore) Query(ctx context.Context, q PlanQuery) ([]PlanRecord, error) {
	var args []any
	query := `SELECT record FROM plans p WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND p.ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND p.ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.RunID != "" {
		query += ` AND p.run_id = ?`
		args = append(args, q.RunID)
	}
	if q.UnitID != "" {
		query += ` AND EXISTS (SELECT 1 FROM plan_units u WHERE u.run_id = p.run_id AND u.unit_id = ?)`
		args = append(args, q.UnitID)
	}
	query += ` ORDER BY p.ts`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []PlanRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r PlanRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return q.finish(res), nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
