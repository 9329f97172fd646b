// Package storage defines the persistence contract for the credential
// vault: the durable, per-device record of accounts and their session
// token pairs that makes fast account switching possible.
package storage

import (
	"context"
	"time"

	"github.com/louisbranch/sessionbridge/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// StoredAccount is one account registered on a device. At most one row
// exists per (user id, device fingerprint) pair: created on first login
// from the device, updated on every later login, removed on explicit
// removal.
type StoredAccount struct {
	ID                string
	UserID            string
	Email             string
	FullName          string
	AvatarURL         string
	LastLogin         time.Time
	DeviceFingerprint string
	LastUsedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StoredSession is the durable token pair backing a StoredAccount, keyed
// by (device fingerprint, user id). It is created or replaced on login,
// deactivated on logout, removal, or the expiry sweep, and never
// field-merged.
type StoredSession struct {
	ID                string
	DeviceFingerprint string
	UserID            string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time // zero when the issuer provided no expiry
	IsActive          bool
	LastUsedAt        time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AccountStore persists vault account records.
type AccountStore interface {
	// PutAccount upserts an account keyed by (user id, fingerprint).
	PutAccount(ctx context.Context, account StoredAccount) error
	GetAccount(ctx context.Context, userID, fingerprint string) (StoredAccount, error)
	// ListAccounts returns the device's accounts, most recently used first.
	ListAccounts(ctx context.Context, fingerprint string) ([]StoredAccount, error)
	DeleteAccount(ctx context.Context, userID, fingerprint string) error
	// TouchAccount bumps an account's last_used_at.
	TouchAccount(ctx context.Context, userID, fingerprint string, at time.Time) error
}

// SessionStore persists vault session records.
type SessionStore interface {
	// PutSession upserts the session keyed by (fingerprint, user id),
	// marking it active.
	PutSession(ctx context.Context, session StoredSession) error
	// GetActiveSession returns the active session for the pair, or
	// ErrNotFound when none is active.
	GetActiveSession(ctx context.Context, fingerprint, userID string) (StoredSession, error)
	// ListActiveSessions returns every active session on the device.
	ListActiveSessions(ctx context.Context, fingerprint string) ([]StoredSession, error)
	// DeactivateSession marks the session inactive, stamping updated_at
	// with at.
	DeactivateSession(ctx context.Context, fingerprint, userID string, at time.Time) error
	// TouchSession bumps a session's last_used_at.
	TouchSession(ctx context.Context, fingerprint, userID string, at time.Time) error
	// DeactivateSessionsLastUsedBefore deactivates sessions whose
	// last_used_at predates the cutoff and reports how many it touched.
	DeactivateSessionsLastUsedBefore(ctx context.Context, fingerprint string, cutoff, at time.Time) (int64, error)
}
