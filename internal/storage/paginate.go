package storage

import (
	"context"
	"fmt"

	"blend-portfolio/internal/domain"
)

// Paging defaults.
const (
	DefaultPageSize = 1000
	DefaultMaxPages = 500
)

// Paginator drains an EventStore page by page with a hard page ceiling so a
// stalled upstream cursor cannot block forever.
type Paginator struct {
	Store    EventStore
	PageSize int
	MaxPages int
}

// NewPaginator returns a paginator; non-positive sizes fall back to the defaults.
func NewPaginator(store EventStore, pageSize, maxPages int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Paginator{Store: store, PageSize: pageSize, MaxPages: maxPages}
}

// All returns every event matching f in store order.
// Returns ErrPaginationLimit if more than MaxPages pages would be needed.
// Events that exactly fill MaxPages pages are returned in full.
func (p *Paginator) All(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	var (
		out    []domain.Event
		cursor EventCursor
	)
	for page := 0; page < p.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := p.Store.ListEvents(ctx, f, cursor, p.PageSize)
		if err != nil {
			return nil, fmt.Errorf("list events page %d: %w", page, err)
		}
		out = append(out, batch...)
		if len(batch) < p.PageSize {
			return out, nil
		}

		next := CursorOf(&batch[len(batch)-1])
		if next.ID == cursor.ID && next.At.Equal(cursor.At) {
			return nil, fmt.Errorf("cursor did not advance at page %d: %w", page, ErrPaginationLimit)
		}
		cursor = next
	}

	rest, err := p.Store.ListEvents(ctx, f, cursor, 1)
	if err != nil {
		return nil, fmt.Errorf("list events past page %d: %w", p.MaxPages, err)
	}
	if len(rest) == 0 {
		return out, nil
	}
	return nil, fmt.Errorf("more than %d pages of %d events: %w", p.MaxPages, p.PageSize, ErrPaginationLimit)
}
