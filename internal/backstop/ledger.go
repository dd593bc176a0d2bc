// Package backstop aggregates backstop withdrawal-queue (Q4W) positions
// from the event log.
package backstop

import (
	"math"
	"sort"
	"time"

	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

// Defaults for queue accounting.
const (
	DefaultEpsilon    = 0.000001
	DefaultLockWindow = 17 * 24 * time.Hour
)

type entryKey struct {
	user string
	pool string
	exp  int64 // unix nanos
}

// Ledger replays Q4W events into net shares per (user, pool, expiration).
// A key whose net shares fall to epsilon or below is dropped.
type Ledger struct {
	eps        float64
	lockWindow time.Duration
	entries    map[entryKey]*domain.Q4WEntry
}

// NewLedger creates an empty ledger. lockWindow dates queue events that
// carry no expiration.
func NewLedger(eps float64, lockWindow time.Duration) *Ledger {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	if lockWindow <= 0 {
		lockWindow = DefaultLockWindow
	}
	return &Ledger{eps: eps, lockWindow: lockWindow, entries: make(map[entryKey]*domain.Q4WEntry)}
}

// Replay applies events in ledger order and returns the active entries.
func Replay(events []domain.Event, eps float64, lockWindow time.Duration) []domain.Q4WEntry {
	sorted := make([]domain.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return storage.Less(&sorted[i], &sorted[j]) })

	l := NewLedger(eps, lockWindow)
	for i := range sorted {
		l.Apply(&sorted[i])
	}
	return l.Active()
}

// Apply folds one event into the ledger. Non-backstop and non-queue events are ignored.
func (l *Ledger) Apply(e *domain.Event) {
	if e.Source != domain.SourceBackstop {
		return
	}
	shares := math.Abs(e.ShareAmount())

	switch e.ActionType {
	case domain.ActionQueueWithdrawal:
		exp := e.LedgerClosedAt.Add(l.lockWindow)
		if e.Q4WExp != nil {
			exp = *e.Q4WExp
		}
		k := entryKey{e.UserAddress, e.PoolID, exp.UnixNano()}
		entry, ok := l.entries[k]
		if !ok {
			entry = &domain.Q4WEntry{UserAddress: e.UserAddress, PoolID: e.PoolID, Exp: exp.UTC()}
			l.entries[k] = entry
		}
		entry.NetShares += shares

	case domain.ActionDequeueWithdrawal:
		if e.Q4WExp != nil {
			l.reduce(entryKey{e.UserAddress, e.PoolID, e.Q4WExp.UnixNano()}, shares)
			return
		}
		open := l.open(e.UserAddress, e.PoolID, func(*domain.Q4WEntry) bool { return true })
		// Cancel the most recent queue first.
		for i := len(open) - 1; i >= 0 && shares > l.eps; i-- {
			shares = l.reduce(keyOf(open[i]), shares)
		}

	case domain.ActionWithdraw:
		if e.Q4WExp != nil {
			l.reduce(entryKey{e.UserAddress, e.PoolID, e.Q4WExp.UnixNano()}, shares)
			return
		}
		matured := l.open(e.UserAddress, e.PoolID, func(q *domain.Q4WEntry) bool {
			return !q.Exp.After(e.LedgerClosedAt)
		})
		for i := 0; i < len(matured) && shares > l.eps; i++ {
			shares = l.reduce(keyOf(matured[i]), shares)
		}
	}
}

// reduce takes up to amount from k, clamping at zero, and returns what is left over.
func (l *Ledger) reduce(k entryKey, amount float64) float64 {
	entry, ok := l.entries[k]
	if !ok {
		return amount
	}
	take := math.Min(entry.NetShares, amount)
	entry.NetShares -= take
	if entry.NetShares <= l.eps {
		delete(l.entries, k)
	}
	return amount - take
}

// open returns the user's entries in pool matching keep, earliest expiration first.
func (l *Ledger) open(user, pool string, keep func(*domain.Q4WEntry) bool) []*domain.Q4WEntry {
	var out []*domain.Q4WEntry
	for k, entry := range l.entries {
		if k.user == user && k.pool == pool && keep(entry) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exp.Before(out[j].Exp) })
	return out
}

// Active returns entries above epsilon ordered by user, pool, expiration.
func (l *Ledger) Active() []domain.Q4WEntry {
	out := make([]domain.Q4WEntry, 0, len(l.entries))
	for _, entry := range l.entries {
		if entry.NetShares > l.eps {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserAddress != out[j].UserAddress {
			return out[i].UserAddress < out[j].UserAddress
		}
		if out[i].PoolID != out[j].PoolID {
			return out[i].PoolID < out[j].PoolID
		}
		return out[i].Exp.Before(out[j].Exp)
	})
	return out
}

func keyOf(q *domain.Q4WEntry) entryKey {
	return entryKey{q.UserAddress, q.PoolID, q.Exp.UnixNano()}
}
