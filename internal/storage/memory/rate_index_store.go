package memory

import (
	"context"
	"sort"
	"sync"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

type rateKey struct {
	PoolID string
	Asset  string
	Date   calendar.Date
}

// RateIndexStore is an in-memory implementation of storage.RateIndexStore.
type RateIndexStore struct {
	mu   sync.RWMutex
	data map[rateKey]domain.RateIndex
}

// NewRateIndexStore creates a new in-memory rate index store.
func NewRateIndexStore() *RateIndexStore {
	return &RateIndexStore{data: make(map[rateKey]domain.RateIndex)}
}

// InsertBulk adds rate rows. Fails entire batch on duplicate (pool, asset, date).
func (s *RateIndexStore) InsertBulk(_ context.Context, rates []domain.RateIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[rateKey]struct{}, len(rates))
	for _, r := range rates {
		if r.PoolID == "" || r.AssetAddress == "" || r.RateDate.IsZero() {
			return storage.ErrInvalidInput
		}
		key := rateKey{r.PoolID, r.AssetAddress, r.RateDate}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rates {
		s.data[rateKey{r.PoolID, r.AssetAddress, r.RateDate}] = r
	}
	return nil
}

// ListUpTo returns rates for (pool, asset) dated on or before maxDate, ordered by date ASC.
func (s *RateIndexStore) ListUpTo(_ context.Context, poolID, asset string, maxDate calendar.Date) ([]domain.RateIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.RateIndex
	for k, r := range s.data {
		if k.PoolID == poolID && k.Asset == asset && !k.Date.After(maxDate) {
			result = append(result, r)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].RateDate.Before(result[j].RateDate)
	})
	return result, nil
}

var _ storage.RateIndexStore = (*RateIndexStore)(nil)
