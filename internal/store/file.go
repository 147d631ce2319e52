package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileBackend persists the snapshot as a single JSON file.
// Saves go through a temp file in the same directory followed by a
// rename, so readers never observe a half-written snapshot.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend writing to the given path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the snapshot file. A missing file is reported as
// ErrNotFound so the store can start empty.
func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return data, nil
}

// Save atomically replaces the snapshot file.
func (b *FileBackend) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(b.path)

	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Ping verifies the snapshot directory is accessible.
func (b *FileBackend) Ping(ctx context.Context) error {
	if _, err := os.Stat(filepath.Dir(b.path)); err != nil {
		return fmt.Errorf("snapshot directory: %w", err)
	}
	return nil
}
