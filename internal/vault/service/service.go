// Package service implements the credential vault: the per-device record
// of accounts and session token pairs that makes fast account switching
// possible without a full re-authentication round trip.
package service

import (
	"context"
	stderrors "errors"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/louisbranch/sessionbridge/internal/platform/errors"
	"github.com/louisbranch/sessionbridge/internal/platform/id"
	"github.com/louisbranch/sessionbridge/internal/session/domain"
	"github.com/louisbranch/sessionbridge/internal/vault/storage"
)

var tracer = otel.Tracer("github.com/louisbranch/sessionbridge/internal/vault/service")

// DefaultSessionMaxAge is the cutoff used by the expiry sweep when the
// caller does not supply one.
const DefaultSessionMaxAge = 30 * 24 * time.Hour

// ErrVaultUnavailable matches any vault failure caused by missing or
// broken persistence. Callers check it with errors.Is.
var ErrVaultUnavailable = errors.New(errors.CodeVaultUnavailable, "vault is unavailable")

// Installer installs a token pair into the canonical session slot. The
// sync coordinator satisfies it.
type Installer interface {
	InstallToken(ctx context.Context, token domain.Token) error
}

// Stores bundles the persistence dependencies of the vault.
type Stores struct {
	Accounts storage.AccountStore
	Sessions storage.SessionStore
}

// User is the profile payload captured at login time.
type User struct {
	ID        string
	Email     string
	FullName  string
	AvatarURL string
}

// Account is the caller-facing view of a vault entry.
type Account struct {
	UserID     string
	Email      string
	FullName   string
	AvatarURL  string
	LastLogin  time.Time
	LastUsedAt time.Time
}

// Service exposes the vault operations over the configured stores.
type Service struct {
	stores      Stores
	installer   Installer
	clock       func() time.Time
	idGenerator func() (string, error)
	logf        func(format string, args ...any)
}

// New creates a vault service with default dependencies.
func New(stores Stores, installer Installer) *Service {
	return &Service{
		stores:      stores,
		installer:   installer,
		clock:       time.Now,
		idGenerator: id.NewID,
		logf:        log.Printf,
	}
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// ListAccounts returns the device's accounts, most recently used first.
// Store failures are logged and yield an empty list.
func (s *Service) ListAccounts(ctx context.Context, fingerprint string) []Account {
	ctx, span := tracer.Start(ctx, "vault.ListAccounts")
	defer span.End()

	if s.stores.Accounts == nil {
		s.logf("vault: account store is not configured")
		return nil
	}

	stored, err := s.stores.Accounts.ListAccounts(ctx, fingerprint)
	if err != nil {
		s.logf("vault: list accounts: %v", err)
		return nil
	}

	accounts := make([]Account, 0, len(stored))
	for _, account := range stored {
		accounts = append(accounts, accountView(account))
	}
	return accounts
}

// ListSwitchableAccounts filters ListAccounts down to accounts whose
// backing session is still active and unexpired. An account can be listed
// but not switchable when its session expired or was revoked.
func (s *Service) ListSwitchableAccounts(ctx context.Context, fingerprint string) []Account {
	ctx, span := tracer.Start(ctx, "vault.ListSwitchableAccounts")
	defer span.End()

	if s.stores.Sessions == nil {
		s.logf("vault: session store is not configured")
		return nil
	}

	accounts := s.ListAccounts(ctx, fingerprint)
	if len(accounts) == 0 {
		return nil
	}

	sessions, err := s.stores.Sessions.ListActiveSessions(ctx, fingerprint)
	if err != nil {
		s.logf("vault: list active sessions: %v", err)
		return nil
	}

	nowUTC := s.now()
	switchable := make(map[string]bool, len(sessions))
	for _, session := range sessions {
		if !session.ExpiresAt.IsZero() && !nowUTC.Before(session.ExpiresAt) {
			continue
		}
		switchable[session.UserID] = true
	}

	filtered := make([]Account, 0, len(accounts))
	for _, account := range accounts {
		if switchable[account.UserID] {
			filtered = append(filtered, account)
		}
	}
	return filtered
}

// StoreAccount upserts the vault entry for (user id, fingerprint) and
// bumps last_used_at. Called from the login path; failures propagate so
// login can be retried.
func (s *Service) StoreAccount(ctx context.Context, user User, fingerprint string) error {
	ctx, span := tracer.Start(ctx, "vault.StoreAccount")
	defer span.End()

	user.ID = strings.TrimSpace(user.ID)
	user.Email = strings.TrimSpace(user.Email)
	fingerprint = strings.TrimSpace(fingerprint)

	if user.ID == "" {
		return errors.New(errors.CodeAccountEmptyUserID, "user id is required")
	}
	if user.Email == "" {
		return errors.New(errors.CodeAccountEmptyEmail, "email is required")
	}
	if fingerprint == "" {
		return errors.New(errors.CodeAccountEmptyFingerprint, "device fingerprint is required")
	}
	if s.stores.Accounts == nil {
		return errors.New(errors.CodeVaultUnavailable, "account store is not configured")
	}

	rowID, err := s.idGenerator()
	if err != nil {
		return errors.Wrap(errors.CodeVaultUnavailable, "generate account id", err)
	}

	nowUTC := s.now()
	err = s.stores.Accounts.PutAccount(ctx, storage.StoredAccount{
		ID:                rowID,
		UserID:            user.ID,
		Email:             user.Email,
		FullName:          user.FullName,
		AvatarURL:         user.AvatarURL,
		LastLogin:         nowUTC,
		DeviceFingerprint: fingerprint,
		LastUsedAt:        nowUTC,
		CreatedAt:         nowUTC,
		UpdatedAt:         nowUTC,
	})
	if err != nil {
		return errors.Wrap(errors.CodeVaultUnavailable, "store account", err)
	}
	return nil
}

// SaveSession upserts the session for (fingerprint, user id) and marks it
// active. Called immediately after any successful login or token refresh;
// failures propagate to the caller.
func (s *Service) SaveSession(ctx context.Context, userID string, token domain.Token, fingerprint string) error {
	ctx, span := tracer.Start(ctx, "vault.SaveSession")
	defer span.End()

	userID = strings.TrimSpace(userID)
	fingerprint = strings.TrimSpace(fingerprint)

	if userID == "" {
		return errors.New(errors.CodeTokenEmptyUserID, "user id is required")
	}
	if fingerprint == "" {
		return errors.New(errors.CodeAccountEmptyFingerprint, "device fingerprint is required")
	}
	if s.stores.Sessions == nil {
		return errors.New(errors.CodeVaultUnavailable, "session store is not configured")
	}

	normalized, err := domain.Normalize(token)
	if err != nil {
		return err
	}

	rowID, err := s.idGenerator()
	if err != nil {
		return errors.Wrap(errors.CodeVaultUnavailable, "generate session id", err)
	}

	nowUTC := s.now()
	err = s.stores.Sessions.PutSession(ctx, storage.StoredSession{
		ID:                rowID,
		DeviceFingerprint: fingerprint,
		UserID:            userID,
		AccessToken:       normalized.AccessToken,
		RefreshToken:      normalized.RefreshToken,
		ExpiresAt:         normalized.ExpiresAt,
		LastUsedAt:        nowUTC,
		CreatedAt:         nowUTC,
		UpdatedAt:         nowUTC,
	})
	if err != nil {
		return errors.Wrap(errors.CodeVaultUnavailable, "save session", err)
	}
	return nil
}

// SwitchAccount restores the stored session for (fingerprint, user id)
// into the canonical slot. It returns false without mutating anything when
// no active session exists or the session expired; the caller must fall
// back to full re-authentication.
func (s *Service) SwitchAccount(ctx context.Context, userID, fingerprint string) (bool, error) {
	ctx, span := tracer.Start(ctx, "vault.SwitchAccount")
	defer span.End()

	if s.stores.Sessions == nil {
		return false, errors.New(errors.CodeVaultUnavailable, "session store is not configured")
	}
	if s.installer == nil {
		return false, errors.New(errors.CodeSlotUnavailable, "session installer is not configured")
	}

	session, err := s.stores.Sessions.GetActiveSession(ctx, fingerprint, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(errors.CodeVaultUnavailable, "look up session", err)
	}
	if !session.ExpiresAt.IsZero() && !s.now().Before(session.ExpiresAt) {
		return false, nil
	}

	token := domain.Token{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.ExpiresAt,
		UserID:       session.UserID,
	}
	if err := s.installer.InstallToken(ctx, token); err != nil {
		return false, errors.Wrap(errors.CodeSlotUnavailable, "install token", err)
	}

	nowUTC := s.now()
	if err := s.stores.Sessions.TouchSession(ctx, fingerprint, userID, nowUTC); err != nil {
		s.logf("vault: touch session after switch: %v", err)
	}
	if s.stores.Accounts != nil {
		if err := s.stores.Accounts.TouchAccount(ctx, userID, fingerprint, nowUTC); err != nil {
			s.logf("vault: touch account after switch: %v", err)
		}
	}
	return true, nil
}

// RemoveAccount deletes the vault entry and deactivates its session. The
// canonical slot is left alone even when the removed account is the one
// currently active: the context keeps its session until an explicit
// logout, and other contexts are unaffected.
func (s *Service) RemoveAccount(ctx context.Context, userID, fingerprint string) error {
	ctx, span := tracer.Start(ctx, "vault.RemoveAccount")
	defer span.End()

	if s.stores.Accounts == nil || s.stores.Sessions == nil {
		return errors.New(errors.CodeVaultUnavailable, "vault stores are not configured")
	}

	if err := s.stores.Accounts.DeleteAccount(ctx, userID, fingerprint); err != nil {
		return errors.Wrap(errors.CodeVaultUnavailable, "delete account", err)
	}
	if err := s.stores.Sessions.DeactivateSession(ctx, fingerprint, userID, s.now()); err != nil {
		return errors.Wrap(errors.CodeVaultUnavailable, "deactivate session", err)
	}
	return nil
}

// CleanupExpiredSessions deactivates sessions whose last use predates the
// cutoff. Best-effort maintenance: failures are logged, never surfaced.
// A non-positive maxAge falls back to DefaultSessionMaxAge.
func (s *Service) CleanupExpiredSessions(ctx context.Context, fingerprint string, maxAge time.Duration) int64 {
	ctx, span := tracer.Start(ctx, "vault.CleanupExpiredSessions")
	defer span.End()

	if s.stores.Sessions == nil {
		s.logf("vault: session store is not configured")
		return 0
	}
	if maxAge <= 0 {
		maxAge = DefaultSessionMaxAge
	}

	now := s.now()
	cutoff := now.Add(-maxAge)
	count, err := s.stores.Sessions.DeactivateSessionsLastUsedBefore(ctx, fingerprint, cutoff, now)
	if err != nil {
		s.logf("vault: cleanup expired sessions: %v", err)
		return 0
	}
	if count > 0 {
		s.logf("vault: deactivated %d stale session(s)", count)
	}
	return count
}

func accountView(account storage.StoredAccount) Account {
	return Account{
		UserID:     account.UserID,
		Email:      account.Email,
		FullName:   account.FullName,
		AvatarURL:  account.AvatarURL,
		LastLogin:  account.LastLogin,
		LastUsedAt: account.LastUsedAt,
	}
}
