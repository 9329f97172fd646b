// Package sqlite implements vault persistence over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/sessionbridge/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/sessionbridge/internal/vault/storage"
	"github.com/louisbranch/sessionbridge/internal/vault/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements vault persistence over SQLite.
//
// A single SQLite file backs the whole device vault so account and session
// rows share the same transaction and visibility boundaries.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a vault SQLite store and applies bundled migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutAccount upserts an account keyed by (user id, fingerprint). The row
// id and created_at survive the upsert; everything else is replaced.
func (s *Store) PutAccount(ctx context.Context, account storage.StoredAccount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(account.ID) == "" {
		return fmt.Errorf("account id is required")
	}
	if strings.TrimSpace(account.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(account.DeviceFingerprint) == "" {
		return fmt.Errorf("device fingerprint is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO vault_accounts (
	id, user_id, email, full_name, avatar_url, last_login,
	device_fingerprint, last_used_at, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, device_fingerprint) DO UPDATE SET
	email = excluded.email,
	full_name = excluded.full_name,
	avatar_url = excluded.avatar_url,
	last_login = excluded.last_login,
	last_used_at = excluded.last_used_at,
	updated_at = excluded.updated_at
`,
		account.ID,
		account.UserID,
		account.Email,
		account.FullName,
		account.AvatarURL,
		toMillis(account.LastLogin),
		account.DeviceFingerprint,
		toMillis(account.LastUsedAt),
		toMillis(account.CreatedAt),
		toMillis(account.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// GetAccount fetches the account for a (user id, fingerprint) pair.
func (s *Store) GetAccount(ctx context.Context, userID, fingerprint string) (storage.StoredAccount, error) {
	if err := ctx.Err(); err != nil {
		return storage.StoredAccount{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.StoredAccount{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, user_id, email, full_name, avatar_url, last_login,
	device_fingerprint, last_used_at, created_at, updated_at
FROM vault_accounts
WHERE user_id = ? AND device_fingerprint = ?
`, userID, fingerprint)

	account, err := scanAccount(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StoredAccount{}, storage.ErrNotFound
		}
		return storage.StoredAccount{}, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// ListAccounts returns the device's accounts, most recently used first.
func (s *Store) ListAccounts(ctx context.Context, fingerprint string) ([]storage.StoredAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, email, full_name, avatar_url, last_login,
	device_fingerprint, last_used_at, created_at, updated_at
FROM vault_accounts
WHERE device_fingerprint = ?
ORDER BY last_used_at DESC
`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []storage.StoredAccount{}
	for rows.Next() {
		account, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// DeleteAccount removes the account for a (user id, fingerprint) pair.
// Deleting a missing account is a no-op.
func (s *Store) DeleteAccount(ctx context.Context, userID, fingerprint string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM vault_accounts WHERE user_id = ? AND device_fingerprint = ?
`, userID, fingerprint)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}

// TouchAccount bumps an account's last_used_at.
func (s *Store) TouchAccount(ctx context.Context, userID, fingerprint string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE vault_accounts
SET last_used_at = ?, updated_at = ?
WHERE user_id = ? AND device_fingerprint = ?
`, toMillis(at), toMillis(at), userID, fingerprint)
	if err != nil {
		return fmt.Errorf("touch account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch account: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanAccount(scan func(dest ...any) error) (storage.StoredAccount, error) {
	var account storage.StoredAccount
	var lastLogin, lastUsedAt, createdAt, updatedAt int64
	if err := scan(
		&account.ID,
		&account.UserID,
		&account.Email,
		&account.FullName,
		&account.AvatarURL,
		&lastLogin,
		&account.DeviceFingerprint,
		&lastUsedAt,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.StoredAccount{}, err
	}
	account.LastLogin = fromMillis(lastLogin)
	account.LastUsedAt = fromMillis(lastUsedAt)
	account.CreatedAt = fromMillis(createdAt)
	account.UpdatedAt = fromMillis(updatedAt)
	return account, nil
}

var _ storage.AccountStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)
