package memory

import (
	"context"
	"sync"

	"solana-wallet-tracker/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu    sync.RWMutex
	snap  storage.Snapshot
	saves int
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{snap: storage.Snapshot{}}
}

// Load returns a copy of the last saved snapshot.
func (s *StateStore) Load(_ context.Context) (storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone(), nil
}

// Save replaces the stored snapshot with a copy of snap.
func (s *StateStore) Save(_ context.Context, snap storage.Snapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap.Clone()
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *StateStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

var _ storage.StateStore = (*StateStore)(nil)
