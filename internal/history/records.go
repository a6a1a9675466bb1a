package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wfharness/wst/internal/status"
)

// Run is one recorded invocation of the runner.
type Run struct {
	ID         string    `json:"id"`
	Started    time.Time `json:"started"`
	Compositor string    `json:"compositor"`
	Total      int       `json:"total"`
	Failures   int       `json:"failures"`
}

// Record is one test outcome within a run.
type Record struct {
	RunID    string         `json:"run_id"`
	Started  time.Time      `json:"started"`
	Name     string         `json:"name"`
	Outcome  status.Outcome `json:"outcome"`
	Duration time.Duration  `json:"duration"`
	LogPath  string         `json:"log_path,omitempty"`
}

// RecordRun stores a run and its records in one transaction. Totals are
// computed from records. Recording the same run id twice fails.
func (s *Store) RecordRun(ctx context.Context, run Run, records []Record) error {
	run.Total = len(records)
	run.Failures = 0
	for _, r := range records {
		if r.Outcome.Status.Failed() {
			run.Failures++
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, compositor, total, failures)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Started.UnixMilli(), run.Compositor, run.Total, run.Failures)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (run_id, seq, name, status, message, duration_ms, log_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.ExecContext(ctx, run.ID, i, r.Name, r.Outcome.Status.String(),
			r.Outcome.Message, r.Duration.Milliseconds(), r.LogPath)
		if err != nil {
			return fmt.Errorf("record result %s: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, compositor, total, failures
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &started, &r.Compositor, &r.Total, &r.Failures); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMilli(started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Recent returns the records of the last limit runs, newest run first and
// in recorded order within a run.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	return s.queryRecords(ctx, `
		SELECT r.id, r.started_at, x.name, x.status, x.message, x.duration_ms, x.log_path
		FROM results x
		JOIN (SELECT id, started_at FROM runs ORDER BY started_at DESC, id LIMIT ?) r ON r.id = x.run_id
		ORDER BY r.started_at DESC, r.id, x.seq
	`, limit)
}

// TestHistory returns the last limit outcomes of one test, newest first.
func (s *Store) TestHistory(ctx context.Context, name string, limit int) ([]Record, error) {
	return s.queryRecords(ctx, `
		SELECT r.id, r.started_at, x.name, x.status, x.message, x.duration_ms, x.log_path
		FROM results x
		JOIN runs r ON r.id = x.run_id
		WHERE x.name = ?
		ORDER BY r.started_at DESC, r.id
		LIMIT ?
	`, name, limit)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec        Record
		started    int64
		statusText string
		durationMs int64
	)
	if err := rows.Scan(&rec.RunID, &started, &rec.Name, &statusText, &rec.Outcome.Message, &durationMs, &rec.LogPath); err != nil {
		return Record{}, fmt.Errorf("scan result: %w", err)
	}
	st, err := status.ParseStatus(statusText)
	if err != nil {
		return Record{}, fmt.Errorf("result %s: %w", rec.Name, err)
	}
	rec.Outcome.Status = st
	rec.Started = time.UnixMilli(started)
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return rec, nil
}
