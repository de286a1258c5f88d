package store

import (
	"context"
	"fmt"
	"time"
)

// CredentialRefInfo is one known credential name/field pair. Only
// metadata lives here; secret values stay in the OS keyring.
type CredentialRefInfo struct {
	Name      string
	Field     string
	CreatedAt time.Time
}

// StoreCredentialRef records that a credential name/field pair exists.
// Idempotent.
func (s *Store) StoreCredentialRef(ctx context.Context, name, field string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credential_refs (name, field, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name, field) DO NOTHING`,
		name, field, formatTime(now))
	if err != nil {
		return fmt.Errorf("write credential ref %s/%s: %w", name, field, err)
	}
	return nil
}

// DeleteCredentialRef removes all fields recorded under a credential
// name.
func (s *Store) DeleteCredentialRef(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credential_refs WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete credential ref %s: %w", name, err)
	}
	return nil
}

// ListCredentialRefs returns all known credential references, ordered
// by name then field.
func (s *Store) ListCredentialRefs(ctx context.Context) ([]CredentialRefInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, field, created_at FROM credential_refs
		ORDER BY name, field`)
	if err != nil {
		return nil, fmt.Errorf("list credential refs: %w", err)
	}
	defer rows.Close()

	var out []CredentialRefInfo
	for rows.Next() {
		var info CredentialRefInfo
		var created string
		if err := rows.Scan(&info.Name, &info.Field, &created); err != nil {
			return nil, fmt.Errorf("list credential refs: scan: %w", err)
		}
		info.CreatedAt = parseTime(created)
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credential refs: %w", err)
	}
	return out, nil
}
