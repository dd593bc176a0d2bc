package memory

import (
	"context"
	"sort"
	"sync"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
// Several rows may share a (token, date); each row has a unique Seq.
type PriceStore struct {
	mu      sync.RWMutex
	data    []domain.PriceObservation
	seqs    map[int64]bool
	nextSeq int64
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{seqs: make(map[int64]bool), nextSeq: 1}
}

// InsertBulk appends observations. A zero Seq is assigned the next free one.
func (s *PriceStore) InsertBulk(_ context.Context, prices []domain.PriceObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.nextSeq
	batch := make([]domain.PriceObservation, 0, len(prices))
	batchSeqs := make(map[int64]bool, len(prices))
	for _, p := range prices {
		if p.TokenAddress == "" || p.PriceDate.IsZero() {
			return storage.ErrInvalidInput
		}
		if p.Seq == 0 {
			for s.seqs[next] || batchSeqs[next] {
				next++
			}
			p.Seq = next
			next++
		}
		if s.seqs[p.Seq] || batchSeqs[p.Seq] {
			return storage.ErrDuplicateKey
		}
		batchSeqs[p.Seq] = true
		batch = append(batch, p)
	}

	for _, p := range batch {
		s.seqs[p.Seq] = true
		s.data = append(s.data, p)
		if p.Seq >= next {
			next = p.Seq + 1
		}
	}
	s.nextSeq = next
	return nil
}

// ListUpTo returns observations for tokens dated on or before maxDate,
// ordered by (token, date, seq) ASC.
func (s *PriceStore) ListUpTo(_ context.Context, tokens []string, maxDate calendar.Date) ([]domain.PriceObservation, error) {
	want := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		want[t] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PriceObservation
	for _, p := range s.data {
		if want[p.TokenAddress] && !p.PriceDate.After(maxDate) {
			result = append(result, p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.TokenAddress != b.TokenAddress {
			return a.TokenAddress < b.TokenAddress
		}
		if c := a.PriceDate.Compare(b.PriceDate); c != 0 {
			return c < 0
		}
		return a.Seq < b.Seq
	})
	return result, nil
}

var _ storage.PriceStore = (*PriceStore)(nil)
