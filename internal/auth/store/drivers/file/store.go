// Package file stores the profile as a single JSON document on disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aussiebroadwan/mcauth/internal/auth/store"
	"github.com/aussiebroadwan/mcauth/pkg/authsdk"
)

type Store struct {
	path   string
	sealer store.Sealer
}

var _ store.ProfileStore = (*Store)(nil)

// NewStore returns a store backed by path. A leading "~/" is expanded to the
// user's home directory. sealer may be nil for plain JSON.
func NewStore(path string, sealer store.Sealer) (*Store, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: filepath.Clean(expanded), sealer: sealer}, nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("file store: resolve home: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func (s *Store) Location() string { return s.path }

func (s *Store) Close() error { return nil }

func (s *Store) Load(ctx context.Context) (authsdk.Profile, error) {
	if err := ctx.Err(); err != nil {
		return authsdk.Profile{}, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return authsdk.Profile{}, store.ErrNotFound
	}
	if err != nil {
		return authsdk.Profile{}, fmt.Errorf("file store: read %s: %w", s.path, err)
	}

	return store.Decode(data, s.sealer)
}

// Save writes to a temp file in the same directory and renames it over the
// old profile so a crash never leaves a half-written file behind.
func (s *Store) Save(ctx context.Context, p authsdk.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := store.Encode(p, s.sealer)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("file store: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".profile-*.tmp")
	if err != nil {
		return fmt.Errorf("file store: create temp: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name()) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("file store: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file store: close: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("file store: replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file store: remove %s: %w", s.path, err)
	}
	return nil
}
