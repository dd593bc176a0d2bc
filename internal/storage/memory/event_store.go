package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	data   []*domain.Event // kept in store order
	ids    map[int64]bool
	nextID int64
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		ids:    make(map[int64]bool),
		nextID: 1,
	}
}

// Insert appends an event. A zero ID is assigned the next free one.
// Returns ErrDuplicateKey if the ID already exists.
func (s *EventStore) Insert(ctx context.Context, e *domain.Event) error {
	return s.InsertBulk(ctx, []*domain.Event{e})
}

// InsertBulk appends events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.nextID
	batch := make([]*domain.Event, 0, len(events))
	batchIDs := make(map[int64]bool, len(events))
	for _, e := range events {
		if e == nil || e.ActionType == "" || e.Source == "" || e.LedgerClosedAt.IsZero() {
			return storage.ErrInvalidInput
		}
		c := *e
		if c.ID == 0 {
			for s.ids[next] || batchIDs[next] {
				next++
			}
			c.ID = next
			next++
		}
		if s.ids[c.ID] || batchIDs[c.ID] {
			return storage.ErrDuplicateKey
		}
		batchIDs[c.ID] = true
		batch = append(batch, &c)
	}

	for _, e := range batch {
		s.ids[e.ID] = true
		s.data = append(s.data, e)
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	s.nextID = next

	sort.SliceStable(s.data, func(i, j int) bool {
		return storage.Less(s.data[i], s.data[j])
	})
	return nil
}

// ListEvents returns up to limit events matching f after the cursor, in store order.
func (s *EventStore) ListEvents(_ context.Context, f storage.EventFilter, after storage.EventCursor, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Event
	for _, e := range s.data {
		if !after.After(e) || !f.Matches(e) {
			continue
		}
		result = append(result, *e)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// FirstEventAt returns the close time of the earliest event matching f, ignoring its range.
func (s *EventStore) FirstEventAt(_ context.Context, f storage.EventFilter) (time.Time, error) {
	f = f.WithoutRange()

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.data {
		if f.Matches(e) {
			return e.LedgerClosedAt, nil
		}
	}
	return time.Time{}, storage.ErrNotFound
}

// Len returns the number of stored events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.EventStore = (*EventStore)(nil)
