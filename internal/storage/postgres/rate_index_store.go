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

// RateIndexStore implements storage.RateIndexStore using PostgreSQL.
type RateIndexStore struct {
	pool *Pool
}

// NewRateIndexStore creates a new RateIndexStore.
func NewRateIndexStore(pool *Pool) *RateIndexStore {
	return &RateIndexStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RateIndexStore = (*RateIndexStore)(nil)

// ListUpTo returns rates for (pool, asset) dated on or before maxDate, ordered by date ASC.
func (s *RateIndexStore) ListUpTo(ctx context.Context, poolID, asset string, maxDate calendar.Date) ([]domain.RateIndex, error) {
	sql, args := newQuery(`SELECT pool_id, asset_address, rate_date, b_rate, d_rate FROM rate_indices`).
		where("pool_id = @pool", "pool", poolID).
		where("asset_address = @asset", "asset", asset).
		where("rate_date <= @max_date", "max_date", maxDate.UTCMidnight()).
		order("rate_date ASC").
		build()

	rows, err := s.pool.Query(ctx, sql, args)
	if err != nil {
		return nil, classify("list rate indices", err)
	}
	defer rows.Close()

	var rates []domain.RateIndex
	for rows.Next() {
		var (
			r    domain.RateIndex
			date time.Time
		)
		if err := rows.Scan(&r.PoolID, &r.AssetAddress, &date, &r.BRate, &r.DRate); err != nil {
			return nil, fmt.Errorf("scan rate index row: %w", err)
		}
		r.RateDate = calendar.FromTime(date)
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterate rate index rows", err)
	}
	return rates, nil
}

// InsertBulk seeds rate rows atomically. Fails entire batch on duplicate (pool, asset, date).
func (s *RateIndexStore) InsertBulk(ctx context.Context, rates []domain.RateIndex) error {
	if len(rates) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rates {
		_, err := tx.Exec(ctx, `
			INSERT INTO rate_indices (pool_id, asset_address, rate_date, b_rate, d_rate)
			VALUES (@pool, @asset, @date, @b_rate, @d_rate)
		`, pgx.NamedArgs{
			"pool":   r.PoolID,
			"asset":  r.AssetAddress,
			"date":   r.RateDate.UTCMidnight(),
			"b_rate": r.BRate,
			"d_rate": r.DRate,
		})
		if err != nil {
			if isUniqueViolation(err) {
				return storage.ErrDuplicateKey
			}
			return classify("insert rate index", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}
