// Package blobstore keeps uploaded and generated files in flat directories
// keyed by file name.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Veraticus/ledger-sieve/internal/common"
	"github.com/spf13/afero"
)

// ErrInvalidKey is returned for keys that do not name a file.
var ErrInvalidKey = errors.New("invalid key")

// FileStore implements service.BlobStore on top of an afero filesystem.
// Each Put replaces the previous blob atomically; there is no versioning, so
// concurrent writers to one key resolve as last-writer-wins.
type FileStore struct {
	fs   afero.Fs
	root string
	mu   sync.Mutex
}

// NewFileStore creates the root directory if needed and returns a store over it.
func NewFileStore(fs afero.Fs, root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: store root cannot be empty", common.ErrInvalidConfig)
	}
	if err := fs.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", root, err)
	}
	return &FileStore{fs: fs, root: root}, nil
}

// NewOSFileStore returns a store backed by the real filesystem.
func NewOSFileStore(root string) (*FileStore, error) {
	return NewFileStore(afero.NewOsFs(), root)
}

// SanitizeKey reduces a client-supplied name to a bare file name.
func SanitizeKey(key string) (string, error) {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(key), `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return name, nil
}

// Root returns the directory the store writes to.
func (s *FileStore) Root() string {
	return s.root
}

// Put writes data under key, replacing any existing blob.
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := SanitizeKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := afero.TempFile(s.fs, s.root, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := s.fs.Rename(tmpName, filepath.Join(s.root, name)); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// Get returns the blob stored under key, or common.ErrNotFound.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name, err := SanitizeKey(key)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

// Exists reports whether a blob is stored under key.
func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	name, err := SanitizeKey(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, filepath.Join(s.root, name))
}
