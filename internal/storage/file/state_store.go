// Package file persists tracker state as a JSON document on disk.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"solana-wallet-tracker/internal/storage"
)

// DefaultPath is used when no state path is configured.
const DefaultPath = "./tracker_state.json"

// StateStore implements storage.StateStore with an atomically replaced JSON file.
type StateStore struct {
	path string
}

// NewStateStore creates a store writing to path.
func NewStateStore(path string) *StateStore {
	if path == "" {
		path = DefaultPath
	}
	return &StateStore{path: path}
}

// Path returns the document location.
func (s *StateStore) Path() string {
	return s.path
}

// Load reads the document. A missing file yields an empty snapshot.
func (s *StateStore) Load(_ context.Context) (storage.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.Snapshot{}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}
	return storage.DecodeDocument(data)
}

// Save writes the snapshot to a temp file in the same directory, syncs it and
// renames it over the document.
func (s *StateStore) Save(_ context.Context, snap storage.Snapshot) error {
	data, err := storage.EncodeDocument(snap)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ storage.StateStore = (*StateStore)(nil)
