package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tracktap/internal/services"
)

// DefaultListLimit bounds ListRuns when the caller passes a non-positive limit.
const DefaultListLimit = 20

// Run is a journaled capture run.
type Run struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	OutputDir string    `json:"output_dir"`
	Total     int       `json:"total"`
	Manual    bool      `json:"manual"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished,omitzero"`
	OK        int       `json:"ok"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	Error     string    `json:"error,omitempty"`
}

// InProgress reports whether the run has no finish time recorded.
func (r Run) InProgress() bool {
	return r.Finished.IsZero()
}

// Entry is one journaled track outcome.
type Entry struct {
	Position   int       `json:"position"`
	Title      string    `json:"title"`
	Artists    string    `json:"artists"`
	URI        string    `json:"uri,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	OutputPath string    `json:"output_path,omitempty"`
	Status     string    `json:"status"`
	Fallback   string    `json:"fallback,omitempty"`
	Killed     bool      `json:"killed,omitempty"`
	Bytes      int64     `json:"bytes"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, output_dir, total, manual, started_at,
			COALESCE(finished_at, ''), ok_count, skipped_count, error_count, COALESCE(error, '')
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, title, output_dir, total, manual, started_at,
			COALESCE(finished_at, ''), ok_count, skipped_count, error_count, COALESCE(error, '')
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, services.Wrap(services.ErrNotFound, "history", "get run", "no run with id "+id, nil)
	}
	return run, err
}

// Outcomes returns a run's track outcomes in playlist order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT position, title, artists, uri, duration_ms, output_path,
			status, fallback, killed, bytes, diagnostic, started_at, finished_at
		FROM outcomes WHERE run_id = ? ORDER BY position, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			killed            int
			started, finished string
		)
		if err := rows.Scan(&e.Position, &e.Title, &e.Artists, &e.URI, &e.DurationMS, &e.OutputPath,
			&e.Status, &e.Fallback, &killed, &e.Bytes, &e.Diagnostic, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		e.Killed = killed != 0
		e.Started = parseTime(started)
		e.Finished = parseTime(finished)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run               Run
		manual            int
		started, finished string
	)
	err := row.Scan(&run.ID, &run.Title, &run.OutputDir, &run.Total, &manual, &started,
		&finished, &run.OK, &run.Skipped, &run.Errors, &run.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Manual = manual != 0
	run.Started = parseTime(started)
	run.Finished = parseTime(finished)
	return run, nil
}
