package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

const eventSelect = `
SELECT id, source, action_type, user_address, pool_id, COALESCE(asset_address, ''),
       amount_tokens, units, shares, lp_tokens, q4w_exp, ledger_closed_at, COALESCE(tx_hash, '')
FROM events`

// applyEventFilter adds one named predicate per non-empty filter field.
func applyEventFilter(q *query, f storage.EventFilter) *query {
	if f.UserAddress != "" {
		q.where("user_address = @user", "user", f.UserAddress)
	}
	if f.Source != "" {
		q.where("source = @source", "source", string(f.Source))
	}
	if f.PoolID != "" {
		q.where("pool_id = @pool", "pool", f.PoolID)
	}
	if f.AssetAddress != "" {
		q.where("asset_address = @asset", "asset", f.AssetAddress)
	}
	if len(f.Actions) > 0 {
		actions := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			actions[i] = string(a)
		}
		q.where("action_type = ANY(@actions)", "actions", actions)
	}
	if !f.From.IsZero() {
		q.where("ledger_closed_at >= @from", "from", f.From)
	}
	if !f.To.IsZero() {
		q.where("ledger_closed_at < @to", "to", f.To)
	}
	return q
}

func applyCursor(q *query, c storage.EventCursor) *query {
	if c.IsZero() {
		return q
	}
	return q.whereArgs("(ledger_closed_at, id) > (@cursor_at, @cursor_id)", pgx.NamedArgs{
		"cursor_at": c.At,
		"cursor_id": c.ID,
	})
}

// ListEvents returns up to limit events matching f after the cursor,
// ordered by (ledger_closed_at, id) ASC.
func (s *EventStore) ListEvents(ctx context.Context, f storage.EventFilter, after storage.EventCursor, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	q := applyCursor(applyEventFilter(newQuery(eventSelect), f), after).
		order("ledger_closed_at ASC, id ASC").
		withLimit(limit)
	sql, args := q.build()

	rows, err := s.pool.Query(ctx, sql, args)
	if err != nil {
		return nil, classify("list events", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// FirstEventAt returns the close time of the earliest event matching f, ignoring its range.
func (s *EventStore) FirstEventAt(ctx context.Context, f storage.EventFilter) (time.Time, error) {
	sql, args := applyEventFilter(newQuery("SELECT MIN(ledger_closed_at) FROM events"), f.WithoutRange()).build()

	var first *time.Time
	if err := s.pool.QueryRow(ctx, sql, args).Scan(&first); err != nil {
		if noRows(err) {
			return time.Time{}, storage.ErrNotFound
		}
		return time.Time{}, classify("first event", err)
	}
	if first == nil {
		return time.Time{}, storage.ErrNotFound
	}
	return first.UTC(), nil
}

// InsertBulk seeds events atomically. Zero IDs are assigned by the sequence.
// The reporting path never writes; this exists for fixtures and tests.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback(ctx)

	const insert = `
		INSERT INTO events (
			id, source, action_type, user_address, pool_id, asset_address,
			amount_tokens, units, shares, lp_tokens, q4w_exp, ledger_closed_at, tx_hash
		) VALUES (
			COALESCE(@id, nextval('events_id_seq')), @source, @action, @user, @pool, NULLIF(@asset, ''),
			@amount, @units, @shares, @lp, @q4w_exp, @closed_at, NULLIF(@tx_hash, '')
		)`

	for _, e := range events {
		if e == nil || e.ActionType == "" || e.Source == "" || e.LedgerClosedAt.IsZero() {
			return storage.ErrInvalidInput
		}
		var id *int64
		if e.ID != 0 {
			id = &e.ID
		}
		_, err := tx.Exec(ctx, insert, pgx.NamedArgs{
			"id":        id,
			"source":    string(e.Source),
			"action":    string(e.ActionType),
			"user":      e.UserAddress,
			"pool":      e.PoolID,
			"asset":     e.AssetAddress,
			"amount":    e.AmountTokens,
			"units":     e.Units,
			"shares":    e.Shares,
			"lp":        e.LPTokens,
			"q4w_exp":   e.Q4WExp,
			"closed_at": e.LedgerClosedAt,
			"tx_hash":   e.TxHash,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrDuplicateKey
			}
			return classify("insert event", err)
		}
	}

	// Keep the sequence ahead of explicit ids.
	if _, err := tx.Exec(ctx, `SELECT setval('events_id_seq', GREATEST((SELECT MAX(id) FROM events), 1))`); err != nil {
		return classify("advance event sequence", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

// scanEvents scans multiple rows into a slice of Event.
func scanEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event

	for rows.Next() {
		var (
			e              domain.Event
			source, action string
		)
		err := rows.Scan(
			&e.ID,
			&source,
			&action,
			&e.UserAddress,
			&e.PoolID,
			&e.AssetAddress,
			&e.AmountTokens,
			&e.Units,
			&e.Shares,
			&e.LPTokens,
			&e.Q4WExp,
			&e.LedgerClosedAt,
			&e.TxHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Source = domain.EventSource(source)
		e.ActionType = domain.ActionType(action)
		e.LedgerClosedAt = e.LedgerClosedAt.UTC()
		if e.Q4WExp != nil {
			exp := e.Q4WExp.UTC()
			e.Q4WExp = &exp
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterate event rows", err)
	}

	return events, nil
}
