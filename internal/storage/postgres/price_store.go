package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// ListUpTo loads every row for tokens dated on or before maxDate in one query,
// ordered by (token, date, seq) ASC.
func (s *PriceStore) ListUpTo(ctx context.Context, tokens []string, maxDate calendar.Date) ([]domain.PriceObservation, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	sql, args := newQuery(`SELECT seq, token_address, price_date, usd_price FROM prices`).
		where("token_address = ANY(@tokens)", "tokens", tokens).
		where("price_date <= @max_date", "max_date", maxDate.UTCMidnight()).
		order("token_address ASC, price_date ASC, seq ASC").
		build()

	rows, err := s.pool.Query(ctx, sql, args)
	if err != nil {
		return nil, classify("list prices", err)
	}
	defer rows.Close()

	var prices []domain.PriceObservation
	for rows.Next() {
		var (
			p    domain.PriceObservation
			date time.Time
		)
		if err := rows.Scan(&p.Seq, &p.TokenAddress, &date, &p.USDPrice); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		p.PriceDate = calendar.FromTime(date)
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate price rows", err)
	}
	return prices, nil
}

// InsertBulk seeds price rows atomically. Duplicate (token, date) rows are
// allowed; seq records their ingestion order.
func (s *PriceStore) InsertBulk(ctx context.Context, prices []domain.PriceObservation) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback(ctx)

	for _, p := range prices {
		if p.TokenAddress == "" || p.PriceDate.IsZero() {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO prices (token_address, price_date, usd_price)
			VALUES (@token, @date, @price)
		`, pgx.NamedArgs{
			"token": p.TokenAddress,
			"date":  p.PriceDate.UTCMidnight(),
			"price": p.USDPrice,
		})
		if err != nil {
			return classify("insert price", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}
