package cookiejar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// File is a jar backed by a shared JSON file, the cross-process stand-in
// for the platform cookie store. Writes replace the whole file through a
// temp file and rename; concurrent writers race last-writer-wins.
type File struct {
	path  string
	clock func() time.Time
}

type fileEntry struct {
	Value     string `json:"value"`
	Domain    string `json:"domain,omitempty"`
	Path      string `json:"path,omitempty"`
	Secure    bool   `json:"secure,omitempty"`
	SameSite  int    `json:"same_site,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"` // unix millis, zero for session cookies
}

// NewFile creates a file-backed jar at the given path. The parent
// directory is created when missing.
func NewFile(path string) (*File, error) {
	cleaned := strings.TrimSpace(path)
	if cleaned == "" {
		return nil, fmt.Errorf("jar path is required")
	}
	cleaned = filepath.Clean(cleaned)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create jar dir: %w", err)
		}
	}
	return &File{path: cleaned, clock: time.Now}, nil
}

// Set writes a cookie, honoring Max-Age expiry and deletion.
func (f *File) Set(ctx context.Context, cookie *http.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cookie == nil || cookie.Name == "" {
		return nil
	}

	entries, err := f.load()
	if err != nil {
		return err
	}

	if cookie.MaxAge < 0 {
		delete(entries, cookie.Name)
	} else {
		entry := fileEntry{
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Secure:   cookie.Secure,
			SameSite: int(cookie.SameSite),
		}
		if cookie.MaxAge > 0 {
			entry.ExpiresAt = f.clock().Add(time.Duration(cookie.MaxAge) * time.Second).UnixMilli()
		}
		entries[cookie.Name] = entry
	}

	return f.store(entries)
}

// Get returns the unexpired cookie with the given name, when present.
func (f *File) Get(ctx context.Context, name string) (*http.Cookie, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	entries, err := f.load()
	if err != nil {
		return nil, false, err
	}
	entry, ok := entries[name]
	if !ok {
		return nil, false, nil
	}
	if entry.ExpiresAt > 0 && !f.clock().Before(time.UnixMilli(entry.ExpiresAt)) {
		return nil, false, nil
	}

	return &http.Cookie{
		Name:     name,
		Value:    entry.Value,
		Domain:   entry.Domain,
		Path:     entry.Path,
		Secure:   entry.Secure,
		SameSite: http.SameSite(entry.SameSite),
	}, true, nil
}

func (f *File) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]fileEntry), nil
		}
		return nil, fmt.Errorf("read jar file: %w", err)
	}
	entries := make(map[string]fileEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode jar file: %w", err)
	}
	return entries, nil
}

func (f *File) store(entries map[string]fileEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode jar file: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create jar temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write jar temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod jar temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close jar temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace jar file: %w", err)
	}
	return nil
}

var _ Jar = (*File)(nil)
