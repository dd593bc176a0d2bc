package memory

import (
	"context"
	"sync"

	"blend-portfolio/internal/storage"
)

// SyncStatusStore is an in-memory implementation of storage.SyncStatusStore.
type SyncStatusStore struct {
	mu     sync.RWMutex
	status *storage.SyncStatus
}

// NewSyncStatusStore creates a new in-memory sync status store.
func NewSyncStatusStore() *SyncStatusStore {
	return &SyncStatusStore{}
}

// LastSynced returns the last recorded ingestion cursor.
func (s *SyncStatusStore) LastSynced(_ context.Context) (*storage.SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status == nil {
		return nil, storage.ErrNotFound
	}
	c := *s.status
	return &c, nil
}

// Set records the ingestion cursor. Used by fixtures and tests.
func (s *SyncStatusStore) Set(status storage.SyncStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = &status
}

var _ storage.SyncStatusStore = (*SyncStatusStore)(nil)
