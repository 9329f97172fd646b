package slot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/sessionbridge/internal/session/domain"
)

// File is a slot store backed by a shared JSON file. Every context under
// the same origin points at the same path, which makes the file the
// cross-process equivalent of origin storage.
//
// Writes go through a temp file and rename so readers never observe a
// partially written slot. Concurrent writers race last-writer-wins, which
// matches the slot's supersede-wholesale semantics.
type File struct {
	path string
}

type slotRecord struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	UserID       string `json:"user_id,omitempty"`
}

// NewFile creates a file-backed slot store at the given path. The parent
// directory is created when missing.
func NewFile(path string) (*File, error) {
	cleaned := strings.TrimSpace(path)
	if cleaned == "" {
		return nil, fmt.Errorf("slot path is required")
	}
	cleaned = filepath.Clean(cleaned)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create slot dir: %w", err)
		}
	}
	return &File{path: cleaned}, nil
}

// Load returns the current token and whether the slot holds one. A missing
// file means an empty slot, not an error.
func (f *File) Load(ctx context.Context) (domain.Token, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, false, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Token{}, false, nil
		}
		return domain.Token{}, false, fmt.Errorf("read slot file: %w", err)
	}

	var record slotRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.Token{}, false, fmt.Errorf("decode slot file: %w", err)
	}
	if record.AccessToken == "" {
		return domain.Token{}, false, nil
	}

	token := domain.Token{
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		UserID:       record.UserID,
	}
	if record.ExpiresAt > 0 {
		token.ExpiresAt = time.UnixMilli(record.ExpiresAt).UTC()
	}
	return token, true, nil
}

// Save replaces the slot content with the given token.
func (f *File) Save(ctx context.Context, token domain.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record := slotRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		UserID:       token.UserID,
	}
	if !token.ExpiresAt.IsZero() {
		record.ExpiresAt = token.ExpiresAt.UTC().UnixMilli()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode slot file: %w", err)
	}
	return f.writeAtomic(data)
}

// Clear empties the slot by removing the backing file.
func (f *File) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove slot file: %w", err)
	}
	return nil
}

func (f *File) writeAtomic(data []byte) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create slot temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write slot temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod slot temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close slot temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace slot file: %w", err)
	}
	return nil
}

var _ Store = (*File)(nil)
