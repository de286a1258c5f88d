package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tapedeck/tapedeck/internal/action"
)

// RecordingInfo is the listing view of a stored recording. It is built
// from indexed columns without parsing the serialized body.
type RecordingInfo struct {
	ID        string
	Name      string
	URL       string
	Actions   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveRecording validates rec and upserts it, along with the
// credential references its actions name. The stored body is the
// canonical serialized form; saving an invalid recording is refused.
func (s *Store) SaveRecording(ctx context.Context, rec *action.Recording) error {
	if err := action.Check(rec); err != nil {
		return fmt.Errorf("save recording: %w", err)
	}
	body, err := action.Marshal(rec)
	if err != nil {
		return fmt.Errorf("save recording: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save recording: begin: %w", err)
	}
	defer rollback(tx)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recordings (id, name, url, actions, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			actions = excluded.actions,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Name, rec.URL, len(rec.Actions), string(body),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("write recording %s: %w", rec.ID, err)
	}

	for _, a := range rec.Actions {
		if a.Credential == nil {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO credential_refs (name, field, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(name, field) DO NOTHING`,
			a.Credential.Name, a.Credential.Field, formatTime(rec.UpdatedAt))
		if err != nil {
			return fmt.Errorf("write credential ref %s/%s: %w", a.Credential.Name, a.Credential.Field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save recording: commit: %w", err)
	}
	s.logger.Debug("recording saved", "id", rec.ID, "name", rec.Name, "actions", len(rec.Actions))
	return nil
}

// GetRecording loads a recording by ID.
func (s *Store) GetRecording(ctx context.Context, id string) (*action.Recording, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM recordings WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", id, err)
	}
	rec, err := action.Unmarshal([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", id, err)
	}
	return rec, nil
}

// GetRecordingByName loads a recording by its name. Names are not
// unique; the most recently updated match wins.
func (s *Store) GetRecordingByName(ctx context.Context, name string) (*action.Recording, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `
		SELECT body FROM recordings WHERE name = ?
		ORDER BY updated_at DESC LIMIT 1`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recording %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read recording %q: %w", name, err)
	}
	rec, err := action.Unmarshal([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("read recording %q: %w", name, err)
	}
	return rec, nil
}

// ListRecordings returns listing metadata for all recordings, newest
// first.
func (s *Store) ListRecordings(ctx context.Context) ([]RecordingInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, actions, created_at, updated_at
		FROM recordings ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []RecordingInfo
	for rows.Next() {
		var info RecordingInfo
		var created, updated string
		if err := rows.Scan(&info.ID, &info.Name, &info.URL, &info.Actions, &created, &updated); err != nil {
			return nil, fmt.Errorf("list recordings: scan: %w", err)
		}
		info.CreatedAt = parseTime(created)
		info.UpdatedAt = parseTime(updated)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	return out, nil
}

// DeleteRecording removes a recording and, via the schema's cascade,
// its run history.
func (s *Store) DeleteRecording(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("recording deleted", "id", id)
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
