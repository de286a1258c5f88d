package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tapedeck/tapedeck/internal/playback"
)

// RunInfo is the listing view of a stored playback run.
type RunInfo struct {
	ID          string
	RecordingID string
	Status      playback.Status
	StartedAt   time.Time
	CompletedAt time.Time
}

// AppendRun stores a terminal playback run under its recording. Run
// history is append-only.
func (s *Store) AppendRun(ctx context.Context, run *playback.Run) error {
	if !run.Status.Terminal() {
		return fmt.Errorf("append run %s: status %q is not terminal", run.ID, run.Status)
	}
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("append run %s: %w", run.ID, err)
	}

	var completed any
	if !run.CompletedAt.IsZero() {
		completed = formatTime(run.CompletedAt)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, recording_id, status, started_at, completed_at, body)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.RecordingID, string(run.Status),
		formatTime(run.StartedAt), completed, string(body))
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.ID, err)
	}
	s.logger.Debug("run appended", "id", run.ID, "recording_id", run.RecordingID, "status", run.Status)
	return nil
}

// GetRun loads a full stored run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*playback.Run, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM runs WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	var run playback.Run
	if err := json.Unmarshal([]byte(body), &run); err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns run history for a recording, newest first.
func (s *Store) ListRuns(ctx context.Context, recordingID string) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recording_id, status, started_at, completed_at
		FROM runs WHERE recording_id = ?
		ORDER BY started_at DESC`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var status, started string
		var completed sql.NullString
		if err := rows.Scan(&info.ID, &info.RecordingID, &status, &started, &completed); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		info.Status = playback.Status(status)
		info.StartedAt = parseTime(started)
		if completed.Valid {
			info.CompletedAt = parseTime(completed.String)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}
