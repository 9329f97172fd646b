package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/sessionbridge/internal/vault/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func testAccount(userID, fingerprint string, at time.Time) storage.StoredAccount {
	return storage.StoredAccount{
		ID:                "acct-" + userID,
		UserID:            userID,
		Email:             userID + "@example.com",
		FullName:          "User " + userID,
		AvatarURL:         "https://cdn.example.com/" + userID + ".png",
		LastLogin:         at,
		DeviceFingerprint: fingerprint,
		LastUsedAt:        at,
		CreatedAt:         at,
		UpdatedAt:         at,
	}
}

func testSession(userID, fingerprint string, at time.Time) storage.StoredSession {
	return storage.StoredSession{
		ID:                "sess-" + userID,
		DeviceFingerprint: fingerprint,
		UserID:            userID,
		AccessToken:       "access-" + userID,
		RefreshToken:      "refresh-" + userID,
		ExpiresAt:         at.Add(time.Hour),
		LastUsedAt:        at,
		CreatedAt:         at,
		UpdatedAt:         at,
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestPutGetAccountRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	input := testAccount("user-1", "fp-abc", at)
	if err := store.PutAccount(ctx, input); err != nil {
		t.Fatalf("put account: %v", err)
	}

	got, err := store.GetAccount(ctx, "user-1", "fp-abc")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.ID != input.ID || got.Email != input.Email || got.FullName != input.FullName {
		t.Fatalf("unexpected account: %+v", got)
	}
	if !got.LastUsedAt.Equal(at) {
		t.Fatalf("expected last used %v, got %v", at, got.LastUsedAt)
	}
}

func TestPutAccountUpsertsWithoutDuplicating(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutAccount(ctx, testAccount("user-1", "fp-abc", at)); err != nil {
		t.Fatalf("first put: %v", err)
	}

	later := testAccount("user-1", "fp-abc", at.Add(time.Hour))
	later.ID = "acct-new-id" // ignored by the upsert
	later.FullName = "Renamed User"
	if err := store.PutAccount(ctx, later); err != nil {
		t.Fatalf("second put: %v", err)
	}

	accounts, err := store.ListAccounts(ctx, "fp-abc")
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected one account row, got %d", len(accounts))
	}
	if accounts[0].ID != "acct-user-1" {
		t.Fatalf("expected original row id to survive upsert, got %q", accounts[0].ID)
	}
	if accounts[0].FullName != "Renamed User" {
		t.Fatalf("expected updated name, got %q", accounts[0].FullName)
	}
	if !accounts[0].LastUsedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("expected bumped last used, got %v", accounts[0].LastUsedAt)
	}
}

func TestListAccountsScopedByFingerprint(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutAccount(ctx, testAccount("user-1", "fp-abc", at)); err != nil {
		t.Fatalf("put user-1: %v", err)
	}
	if err := store.PutAccount(ctx, testAccount("user-2", "fp-abc", at.Add(time.Minute))); err != nil {
		t.Fatalf("put user-2: %v", err)
	}
	if err := store.PutAccount(ctx, testAccount("user-3", "fp-other", at)); err != nil {
		t.Fatalf("put user-3: %v", err)
	}

	accounts, err := store.ListAccounts(ctx, "fp-abc")
	if err != nil {
		t.Fatalf("list accounts: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected two accounts for fp-abc, got %d", len(accounts))
	}
	// Most recently used first.
	if accounts[0].UserID != "user-2" || accounts[1].UserID != "user-1" {
		t.Fatalf("expected MRU ordering, got %q then %q", accounts[0].UserID, accounts[1].UserID)
	}

	empty, err := store.ListAccounts(ctx, "fp-none")
	if err != nil {
		t.Fatalf("list empty fingerprint: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty list, got %d", len(empty))
	}
}

func TestGetAccountNotFound(t *testing.T) {
	store := openTempStore(t)

	_, err := store.GetAccount(context.Background(), "missing", "fp-abc")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutAccount(ctx, testAccount("user-1", "fp-abc", at)); err != nil {
		t.Fatalf("put account: %v", err)
	}
	if err := store.DeleteAccount(ctx, "user-1", "fp-abc"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	if _, err := store.GetAccount(ctx, "user-1", "fp-abc"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}

	// Deleting again is a no-op.
	if err := store.DeleteAccount(ctx, "user-1", "fp-abc"); err != nil {
		t.Fatalf("delete missing account: %v", err)
	}
}

func TestTouchAccount(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutAccount(ctx, testAccount("user-1", "fp-abc", at)); err != nil {
		t.Fatalf("put account: %v", err)
	}
	if err := store.TouchAccount(ctx, "user-1", "fp-abc", at.Add(time.Hour)); err != nil {
		t.Fatalf("touch account: %v", err)
	}

	got, err := store.GetAccount(ctx, "user-1", "fp-abc")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if !got.LastUsedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("expected bumped last used, got %v", got.LastUsedAt)
	}

	if err := store.TouchAccount(ctx, "missing", "fp-abc", at); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found touching missing account, got %v", err)
	}
}

func TestPutGetSessionRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	input := testSession("user-1", "fp-abc", at)
	if err := store.PutSession(ctx, input); err != nil {
		t.Fatalf("put session: %v", err)
	}

	got, err := store.GetActiveSession(ctx, "fp-abc", "user-1")
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}
	if got.AccessToken != input.AccessToken || got.RefreshToken != input.RefreshToken {
		t.Fatalf("unexpected session: %+v", got)
	}
	if !got.IsActive {
		t.Fatal("expected active session")
	}
	if !got.ExpiresAt.Equal(input.ExpiresAt) {
		t.Fatalf("expected expiry %v, got %v", input.ExpiresAt, got.ExpiresAt)
	}
}

func TestPutSessionReplacesTokenPair(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutSession(ctx, testSession("user-1", "fp-abc", at)); err != nil {
		t.Fatalf("first put: %v", err)
	}

	replaced := testSession("user-1", "fp-abc", at.Add(time.Hour))
	replaced.AccessToken = "access-renewed"
	if err := store.PutSession(ctx, replaced); err != nil {
		t.Fatalf("second put: %v", err)
	}

	sessions, err := store.ListActiveSessions(ctx, "fp-abc")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected one session row, got %d", len(sessions))
	}
	if sessions[0].AccessToken != "access-renewed" {
		t.Fatalf("expected replaced access token, got %q", sessions[0].AccessToken)
	}
}

func TestPutSessionReactivates(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutSession(ctx, testSession("user-1", "fp-abc", at)); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := store.DeactivateSession(ctx, "fp-abc", "user-1", at.Add(time.Minute)); err != nil {
		t.Fatalf("deactivate session: %v", err)
	}
	if _, err := store.GetActiveSession(ctx, "fp-abc", "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found after deactivation, got %v", err)
	}

	// A fresh login reactivates the pair.
	if err := store.PutSession(ctx, testSession("user-1", "fp-abc", at.Add(time.Hour))); err != nil {
		t.Fatalf("re-put session: %v", err)
	}
	if _, err := store.GetActiveSession(ctx, "fp-abc", "user-1"); err != nil {
		t.Fatalf("expected reactivated session, got %v", err)
	}
}

func TestSessionWithoutExpiry(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	input := testSession("user-1", "fp-abc", at)
	input.ExpiresAt = time.Time{}
	if err := store.PutSession(ctx, input); err != nil {
		t.Fatalf("put session: %v", err)
	}

	got, err := store.GetActiveSession(ctx, "fp-abc", "user-1")
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}
	if !got.ExpiresAt.IsZero() {
		t.Fatalf("expected zero expiry, got %v", got.ExpiresAt)
	}
}

func TestDeactivateSessionsLastUsedBefore(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	stale := testSession("user-1", "fp-abc", at.Add(-31*24*time.Hour))
	if err := store.PutSession(ctx, stale); err != nil {
		t.Fatalf("put stale session: %v", err)
	}
	fresh := testSession("user-2", "fp-abc", at.Add(-time.Hour))
	if err := store.PutSession(ctx, fresh); err != nil {
		t.Fatalf("put fresh session: %v", err)
	}

	cutoff := at.Add(-30 * 24 * time.Hour)
	count, err := store.DeactivateSessionsLastUsedBefore(ctx, "fp-abc", cutoff, at)
	if err != nil {
		t.Fatalf("deactivate stale sessions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one deactivated session, got %d", count)
	}

	if _, err := store.GetActiveSession(ctx, "fp-abc", "user-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected stale session inactive, got %v", err)
	}
	if _, err := store.GetActiveSession(ctx, "fp-abc", "user-2"); err != nil {
		t.Fatalf("expected fresh session still active, got %v", err)
	}
}

func TestTouchSession(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutSession(ctx, testSession("user-1", "fp-abc", at)); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := store.TouchSession(ctx, "fp-abc", "user-1", at.Add(time.Hour)); err != nil {
		t.Fatalf("touch session: %v", err)
	}

	got, err := store.GetActiveSession(ctx, "fp-abc", "user-1")
	if err != nil {
		t.Fatalf("get active session: %v", err)
	}
	if !got.LastUsedAt.Equal(at.Add(time.Hour)) {
		t.Fatalf("expected bumped last used, got %v", got.LastUsedAt)
	}
}

func TestPutSessionValidation(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	missingToken := testSession("user-1", "fp-abc", at)
	missingToken.AccessToken = " "
	if err := store.PutSession(ctx, missingToken); err == nil {
		t.Fatal("expected error for empty access token")
	}

	missingFingerprint := testSession("user-1", " ", at)
	if err := store.PutSession(ctx, missingFingerprint); err == nil {
		t.Fatal("expected error for empty fingerprint")
	}
}

func TestDeactivateSessionStampsCallerTime(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := store.PutSession(ctx, testSession("user-1", "fp-abc", at)); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := store.PutSession(ctx, testSession("user-2", "fp-abc", at.Add(-48*time.Hour))); err != nil {
		t.Fatalf("put stale session: %v", err)
	}

	deactivatedAt := at.Add(time.Hour)
	if err := store.DeactivateSession(ctx, "fp-abc", "user-1", deactivatedAt); err != nil {
		t.Fatalf("deactivate session: %v", err)
	}
	if got := sessionUpdatedAt(t, store, "fp-abc", "user-1"); !got.Equal(deactivatedAt) {
		t.Fatalf("updated_at = %v, want %v", got, deactivatedAt)
	}

	sweptAt := at.Add(2 * time.Hour)
	count, err := store.DeactivateSessionsLastUsedBefore(ctx, "fp-abc", at.Add(-24*time.Hour), sweptAt)
	if err != nil {
		t.Fatalf("deactivate stale sessions: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one deactivated session, got %d", count)
	}
	if got := sessionUpdatedAt(t, store, "fp-abc", "user-2"); !got.Equal(sweptAt) {
		t.Fatalf("updated_at = %v, want %v", got, sweptAt)
	}
}

func sessionUpdatedAt(t *testing.T, store *Store, fingerprint, userID string) time.Time {
	t.Helper()
	var millis int64
	err := store.sqlDB.QueryRowContext(context.Background(), `
SELECT updated_at FROM vault_sessions
WHERE device_fingerprint = ? AND user_id = ?
`, fingerprint, userID).Scan(&millis)
	if err != nil {
		t.Fatalf("read updated_at: %v", err)
	}
	return fromMillis(millis)
}
