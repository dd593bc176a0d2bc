package storage

import (
	"slices"
	"time"

	"blend-portfolio/internal/domain"
)

// EventFilter selects events. Zero-valued fields match everything.
type EventFilter struct {
	UserAddress  string
	Source       domain.EventSource
	PoolID       string
	AssetAddress string
	Actions      []domain.ActionType
	From         time.Time // inclusive
	To           time.Time // exclusive
}

// Matches reports whether e satisfies every predicate in f.
func (f EventFilter) Matches(e *domain.Event) bool {
	if f.UserAddress != "" && e.UserAddress != f.UserAddress {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.PoolID != "" && e.PoolID != f.PoolID {
		return false
	}
	if f.AssetAddress != "" && e.AssetAddress != f.AssetAddress {
		return false
	}
	if len(f.Actions) > 0 && !slices.Contains(f.Actions, e.ActionType) {
		return false
	}
	if !f.From.IsZero() && e.LedgerClosedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.LedgerClosedAt.Before(f.To) {
		return false
	}
	return true
}

// WithoutRange returns a copy of f with the time bounds cleared.
func (f EventFilter) WithoutRange() EventFilter {
	f.From = time.Time{}
	f.To = time.Time{}
	return f
}

// EventCursor is the position of the last event of a page.
type EventCursor struct {
	At time.Time
	ID int64
}

// IsZero reports whether the cursor points before the first event.
func (c EventCursor) IsZero() bool { return c.At.IsZero() && c.ID == 0 }

// CursorOf returns the cursor positioned at e.
func CursorOf(e *domain.Event) EventCursor { return EventCursor{At: e.LedgerClosedAt, ID: e.ID} }

// Less orders events the way every EventStore returns them.
func Less(a, b *domain.Event) bool {
	if !a.LedgerClosedAt.Equal(b.LedgerClosedAt) {
		return a.LedgerClosedAt.Before(b.LedgerClosedAt)
	}
	return a.ID < b.ID
}

// After reports whether e sorts strictly after c.
func (c EventCursor) After(e *domain.Event) bool {
	if c.IsZero() {
		return true
	}
	if !e.LedgerClosedAt.Equal(c.At) {
		return e.LedgerClosedAt.After(c.At)
	}
	return e.ID > c.ID
}
