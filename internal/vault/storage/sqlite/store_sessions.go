package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/sessionbridge/internal/vault/storage"
)

// PutSession upserts the session keyed by (fingerprint, user id) and marks
// it active. The token pair is replaced wholesale; the row id and
// created_at survive the upsert.
func (s *Store) PutSession(ctx context.Context, session storage.StoredSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(session.ID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(session.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(session.DeviceFingerprint) == "" {
		return fmt.Errorf("device fingerprint is required")
	}
	if strings.TrimSpace(session.AccessToken) == "" {
		return fmt.Errorf("access token is required")
	}

	var expiresAt sql.NullInt64
	if !session.ExpiresAt.IsZero() {
		expiresAt = sql.NullInt64{Int64: toMillis(session.ExpiresAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO vault_sessions (
	id, device_fingerprint, user_id, access_token, refresh_token,
	expires_at, is_active, last_used_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
ON CONFLICT(device_fingerprint, user_id) DO UPDATE SET
	access_token = excluded.access_token,
	refresh_token = excluded.refresh_token,
	expires_at = excluded.expires_at,
	is_active = 1,
	last_used_at = excluded.last_used_at,
	updated_at = excluded.updated_at
`,
		session.ID,
		session.DeviceFingerprint,
		session.UserID,
		session.AccessToken,
		session.RefreshToken,
		expiresAt,
		toMillis(session.LastUsedAt),
		toMillis(session.CreatedAt),
		toMillis(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

// GetActiveSession returns the active session for a (fingerprint, user id)
// pair, or ErrNotFound when none is active.
func (s *Store) GetActiveSession(ctx context.Context, fingerprint, userID string) (storage.StoredSession, error) {
	if err := ctx.Err(); err != nil {
		return storage.StoredSession{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.StoredSession{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, device_fingerprint, user_id, access_token, refresh_token,
	expires_at, is_active, last_used_at, created_at, updated_at
FROM vault_sessions
WHERE device_fingerprint = ? AND user_id = ? AND is_active = 1
`, fingerprint, userID)

	session, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StoredSession{}, storage.ErrNotFound
		}
		return storage.StoredSession{}, fmt.Errorf("get active session: %w", err)
	}
	return session, nil
}

// ListActiveSessions returns every active session on the device.
func (s *Store) ListActiveSessions(ctx context.Context, fingerprint string) ([]storage.StoredSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, device_fingerprint, user_id, access_token, refresh_token,
	expires_at, is_active, last_used_at, created_at, updated_at
FROM vault_sessions
WHERE device_fingerprint = ? AND is_active = 1
ORDER BY last_used_at DESC
`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	sessions := []storage.StoredSession{}
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// DeactivateSession marks the session for a (fingerprint, user id) pair
// inactive, stamping updated_at with at. Deactivating a missing session
// is a no-op.
func (s *Store) DeactivateSession(ctx context.Context, fingerprint, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
UPDATE vault_sessions SET is_active = 0, updated_at = ?
WHERE device_fingerprint = ? AND user_id = ?
`, toMillis(at), fingerprint, userID)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	return nil
}

// TouchSession bumps a session's last_used_at.
func (s *Store) TouchSession(ctx context.Context, fingerprint, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE vault_sessions
SET last_used_at = ?, updated_at = ?
WHERE device_fingerprint = ? AND user_id = ?
`, toMillis(at), toMillis(at), fingerprint, userID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeactivateSessionsLastUsedBefore deactivates sessions whose last_used_at
// predates the cutoff and reports how many rows it touched.
func (s *Store) DeactivateSessionsLastUsedBefore(ctx context.Context, fingerprint string, cutoff, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE vault_sessions SET is_active = 0, updated_at = ?
WHERE device_fingerprint = ? AND is_active = 1 AND last_used_at < ?
`, toMillis(at), fingerprint, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deactivate stale sessions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate stale sessions: %w", err)
	}
	return affected, nil
}

func scanSession(scan func(dest ...any) error) (storage.StoredSession, error) {
	var session storage.StoredSession
	var expiresAt sql.NullInt64
	var isActive int64
	var lastUsedAt, createdAt, updatedAt int64
	if err := scan(
		&session.ID,
		&session.DeviceFingerprint,
		&session.UserID,
		&session.AccessToken,
		&session.RefreshToken,
		&expiresAt,
		&isActive,
		&lastUsedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.StoredSession{}, err
	}
	if expiresAt.Valid {
		session.ExpiresAt = fromMillis(expiresAt.Int64)
	}
	session.IsActive = isActive != 0
	session.LastUsedAt = fromMillis(lastUsedAt)
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	return session, nil
}
