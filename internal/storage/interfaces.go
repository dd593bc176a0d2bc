package storage

import (
	"context"
	"time"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
)

// EventStore provides read access to the synced protocol event log.
type EventStore interface {
	// ListEvents returns up to limit events matching f that sort strictly after
	// the cursor, ordered by (ledger_closed_at, id) ASC. A zero cursor starts
	// from the beginning.
	ListEvents(ctx context.Context, f EventFilter, after EventCursor, limit int) ([]domain.Event, error)

	// FirstEventAt returns the close time of the earliest event matching f,
	// ignoring f.From and f.To. Returns ErrNotFound if there is none.
	FirstEventAt(ctx context.Context, f EventFilter) (time.Time, error)
}

// RateIndexStore provides read access to daily b/d rate indices.
type RateIndexStore interface {
	// ListUpTo returns every rate for (pool, asset) dated on or before maxDate,
	// ordered by rate_date ASC.
	ListUpTo(ctx context.Context, poolID, asset string, maxDate calendar.Date) ([]domain.RateIndex, error)
}

// PriceStore provides read access to daily USD prices.
type PriceStore interface {
	// ListUpTo returns every observation for the given tokens dated on or
	// before maxDate, ordered by (token, price_date, seq) ASC.
	ListUpTo(ctx context.Context, tokens []string, maxDate calendar.Date) ([]domain.PriceObservation, error)
}

// SyncStatus is the ingestion cursor: the last ledger synced into the store.
type SyncStatus struct {
	Ledger   uint32
	ClosedAt time.Time
}

// SyncStatusStore reports how far ingestion has progressed.
type SyncStatusStore interface {
	// LastSynced returns ErrNotFound if nothing has been synced yet.
	LastSynced(ctx context.Context) (*SyncStatus, error)
}

// Stores bundles the read-only stores a report needs.
type Stores struct {
	Events EventStore
	Rates  RateIndexStore
	Prices PriceStore
	Sync   SyncStatusStore
}
