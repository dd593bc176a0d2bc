package memory

import "blend-portfolio/internal/storage"

// Stores groups the in-memory stores so seeders can reach the insert methods.
type Stores struct {
	Events *EventStore
	Rates  *RateIndexStore
	Prices *PriceStore
	Sync   *SyncStatusStore
}

// NewStores creates an empty set of in-memory stores.
func NewStores() *Stores {
	return &Stores{
		Events: NewEventStore(),
		Rates:  NewRateIndexStore(),
		Prices: NewPriceStore(),
		Sync:   NewSyncStatusStore(),
	}
}

// ReadOnly exposes the stores through the storage interfaces.
func (s *Stores) ReadOnly() storage.Stores {
	return storage.Stores{Events: s.Events, Rates: s.Rates, Prices: s.Prices, Sync: s.Sync}
}
