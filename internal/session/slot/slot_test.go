package slot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/sessionbridge/internal/session/domain"
)

func testToken() domain.Token {
	return domain.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		UserID:       "user-1",
		ExpiresAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemorySaveLoadClear(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty slot, got ok=%v err=%v", ok, err)
	}

	if err := store.Save(ctx, testToken()); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected filled slot")
	}
	if !loaded.Equal(testToken()) {
		t.Fatalf("unexpected token: %+v", loaded)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected cleared slot, got ok=%v err=%v", ok, err)
	}
}

func TestFileRequiresPath(t *testing.T) {
	if _, err := NewFile("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFileSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slot.json")
	store, err := NewFile(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected empty slot before save, got ok=%v err=%v", ok, err)
	}

	if err := store.Save(ctx, testToken()); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, ok, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected filled slot")
	}
	if !loaded.Equal(testToken()) {
		t.Fatalf("unexpected token: %+v", loaded)
	}
}

func TestFileSharedAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slot.json")
	writer, err := NewFile(path)
	if err != nil {
		t.Fatalf("new writer store: %v", err)
	}
	reader, err := NewFile(path)
	if err != nil {
		t.Fatalf("new reader store: %v", err)
	}
	ctx := context.Background()

	if err := writer.Save(ctx, testToken()); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok, err := reader.Load(ctx)
	if err != nil {
		t.Fatalf("load from second store: %v", err)
	}
	if !ok || !loaded.Equal(testToken()) {
		t.Fatalf("expected shared slot content, got ok=%v token=%+v", ok, loaded)
	}
}

func TestFileClearRemovesSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slot.json")
	store, err := NewFile(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()

	// Clearing an empty slot is a no-op.
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear empty slot: %v", err)
	}

	if err := store.Save(ctx, testToken()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected cleared slot, got ok=%v err=%v", ok, err)
	}
}

func TestFileCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "slot.json")
	store, err := NewFile(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := store.Save(context.Background(), testToken()); err != nil {
		t.Fatalf("save into nested dir: %v", err)
	}
}
