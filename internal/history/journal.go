package history

import (
	"context"
	"fmt"
	"strings"

	"tracktap/internal/capture"
)

var _ capture.Journal = (*Store)(nil)

// RunStarted inserts the run row.
func (s *Store) RunStarted(ctx context.Context, info capture.RunInfo) error {
	err := s.exec(ctx, `INSERT INTO runs (id, title, output_dir, total, manual, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, output_dir = excluded.output_dir,
			total = excluded.total, manual = excluded.manual`,
		info.RunID, info.Title, info.OutputDir, info.Total, boolInt(info.Manual), formatTime(info.Started),
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// TrackFinished appends one track outcome to the run.
func (s *Store) TrackFinished(ctx context.Context, runID string, outcome capture.Outcome) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("record outcome: run id is empty")
	}
	err := s.exec(ctx, `INSERT INTO outcomes (
			run_id, position, title, artists, uri, duration_ms, output_path,
			status, fallback, killed, bytes, diagnostic, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		outcome.Index,
		outcome.Track.Title,
		outcome.Track.ArtistLine(),
		outcome.Track.URI,
		outcome.Track.DurationMS,
		outcome.OutputPath,
		string(outcome.Status),
		string(outcome.Fallback),
		boolInt(outcome.Killed),
		outcome.Bytes,
		outcome.Diagnostic,
		formatTime(outcome.Started),
		formatTime(outcome.Finished),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// RunFinished stores the run's final counts and any terminating error.
func (s *Store) RunFinished(ctx context.Context, report capture.Report, runErr error) error {
	counts := report.Counts()
	var errText any
	if runErr != nil {
		errText = runErr.Error()
	} else if report.Error != "" {
		errText = report.Error
	}
	err := s.exec(ctx, `UPDATE runs SET finished_at = ?, ok_count = ?, skipped_count = ?,
			error_count = ?, error = ?
		WHERE id = ?`,
		formatTime(report.Finished), counts.OK, counts.Skipped, counts.Error, errText, report.RunID,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
