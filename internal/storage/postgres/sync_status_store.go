package postgres

import (
	"context"
	"time"

	"blend-portfolio/internal/storage"
)

// SyncStatusStore reads the ingestion cursor kept in the single-row sync_status table.
type SyncStatusStore struct {
	pool *Pool
}

// NewSyncStatusStore creates a new SyncStatusStore.
func NewSyncStatusStore(pool *Pool) *SyncStatusStore {
	return &SyncStatusStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SyncStatusStore = (*SyncStatusStore)(nil)

// LastSynced returns the last synced ledger. Returns ErrNotFound before the first sync.
func (s *SyncStatusStore) LastSynced(ctx context.Context) (*storage.SyncStatus, error) {
	var (
		ledger   int64
		closedAt time.Time
	)
	err := s.pool.QueryRow(ctx, `SELECT ledger, closed_at FROM sync_status WHERE id = 1`).Scan(&ledger, &closedAt)
	if err != nil {
		if noRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, classify("last synced", err)
	}
	return &storage.SyncStatus{Ledger: uint32(ledger), ClosedAt: closedAt.UTC()}, nil
}

// Set upserts the ingestion cursor. Used by fixtures and tests.
func (s *SyncStatusStore) Set(ctx context.Context, status storage.SyncStatus) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_status (id, ledger, closed_at, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET ledger = EXCLUDED.ledger,
		    closed_at = EXCLUDED.closed_at,
		    updated_at = NOW()
	`, int64(status.Ledger), status.ClosedAt)
	if err != nil {
		return classify("set sync status", err)
	}
	return nil
}

// NewStores builds the read-only store bundle on top of pool.
func NewStores(pool *Pool) storage.Stores {
	return storage.Stores{
		Events: NewEventStore(pool),
		Rates:  NewRateIndexStore(pool),
		Prices: NewPriceStore(pool),
		Sync:   NewSyncStatusStore(pool),
	}
}
