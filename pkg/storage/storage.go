package storage

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Store keeps generated documents under a root directory of an afero filesystem.
type Store struct {
	fs afero.Fs
}

// NewOSStore stores files below dir on the local disk.
func NewOSStore(dir string) (*Store, error) {
	if err := afero.NewOsFs().MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir %s: %w", dir, err)
	}
	return &Store{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}, nil
}

// NewMemStore keeps files in memory.
func NewMemStore() *Store {
	return &Store{fs: afero.NewMemMapFs()}
}

func clean(key string) (string, error) {
	k := path.Clean("/" + key)
	if k == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return k, nil
}

// Put writes data under key, creating parent directories, and returns the normalized key.
func (s *Store) Put(key string, data []byte) (string, error) {
	k, err := clean(key)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(path.Dir(k), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path.Dir(k), err)
	}
	if err := afero.WriteFile(s.fs, k, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", k, err)
	}
	return strings.TrimPrefix(k, "/"), nil
}

// Get reads the file stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	k, err := clean(key)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, k)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", k, err)
	}
	return data, nil
}

// Delete removes the file stored under key. A missing file is not an error.
func (s *Store) Delete(key string) error {
	k, err := clean(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(k); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", k, err)
	}
	return nil
}
