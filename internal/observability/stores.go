package observability

import (
	"context"
	"errors"
	"time"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

// InstrumentStores wraps every store in s with query timing under backend.
func InstrumentStores(s storage.Stores, backend string, m *Metrics) storage.Stores {
	if m == nil {
		return s
	}
	out := s
	if s.Events != nil {
		out.Events = &eventStore{next: s.Events, backend: backend, m: m}
	}
	if s.Rates != nil {
		out.Rates = &rateStore{next: s.Rates, backend: backend, m: m}
	}
	if s.Prices != nil {
		out.Prices = &priceStore{next: s.Prices, backend: backend, m: m}
	}
	return out
}

type eventStore struct {
	next    storage.EventStore
	backend string
	m       *Metrics
}

func (s *eventStore) ListEvents(ctx context.Context, f storage.EventFilter, after storage.EventCursor, limit int) ([]domain.Event, error) {
	start := time.Now()
	events, err := s.next.ListEvents(ctx, f, after, limit)
	s.m.RecordStoreQuery(s.backend, "list_events", time.Since(start).Seconds(), err)
	return events, err
}

func (s *eventStore) FirstEventAt(ctx context.Context, f storage.EventFilter) (time.Time, error) {
	start := time.Now()
	at, err := s.next.FirstEventAt(ctx, f)
	// Not found is an answer, not a failure.
	recordErr := err
	if errors.Is(err, storage.ErrNotFound) {
		recordErr = nil
	}
	s.m.RecordStoreQuery(s.backend, "first_event_at", time.Since(start).Seconds(), recordErr)
	return at, err
}

type rateStore struct {
	next    storage.RateIndexStore
	backend string
	m       *Metrics
}

func (s *rateStore) ListUpTo(ctx context.Context, poolID, asset string, maxDate calendar.Date) ([]domain.RateIndex, error) {
	start := time.Now()
	rows, err := s.next.ListUpTo(ctx, poolID, asset, maxDate)
	s.m.RecordStoreQuery(s.backend, "list_rates", time.Since(start).Seconds(), err)
	return rows, err
}

type priceStore struct {
	next    storage.PriceStore
	backend string
	m       *Metrics
}

func (s *priceStore) ListUpTo(ctx context.Context, tokens []string, maxDate calendar.Date) ([]domain.PriceObservation, error) {
	start := time.Now()
	rows, err := s.next.ListUpTo(ctx, tokens, maxDate)
	s.m.RecordStoreQuery(s.backend, "list_prices", time.Since(start).Seconds(), err)
	return rows, err
}
