package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

// RateIndexStore implements storage.RateIndexStore using ClickHouse.
type RateIndexStore struct {
	conn *Conn
}

// NewRateIndexStore creates a new RateIndexStore.
func NewRateIndexStore(conn *Conn) *RateIndexStore {
	return &RateIndexStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RateIndexStore = (*RateIndexStore)(nil)

// ListUpTo returns rates for (pool, asset) dated on or before maxDate, ordered by date ASC.
// FINAL collapses rows that ReplacingMergeTree has not merged yet.
func (s *RateIndexStore) ListUpTo(ctx context.Context, poolID, asset string, maxDate calendar.Date) ([]domain.RateIndex, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT pool_id, asset_address, rate_date, b_rate, d_rate
		FROM rate_indices FINAL
		WHERE pool_id = @pool AND asset_address = @asset AND rate_date <= @max_date
		ORDER BY rate_date ASC
	`,
		clickhouse.Named("pool", poolID),
		clickhouse.Named("asset", asset),
		clickhouse.Named("max_date", maxDate.String()),
	)
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

// InsertBulk seeds rate rows in one batch. Re-inserting a key replaces it.
func (s *RateIndexStore) InsertBulk(ctx context.Context, rates []domain.RateIndex) error {
	if len(rates) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(rates))
	for _, r := range rates {
		if r.PoolID == "" || r.AssetAddress == "" || r.RateDate.IsZero() {
			return storage.ErrInvalidInput
		}
		k := r.PoolID + "|" + r.AssetAddress + "|" + r.RateDate.String()
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO rate_indices (pool_id, asset_address, rate_date, b_rate, d_rate)`)
	if err != nil {
		return classify("prepare batch", err)
	}
	for _, r := range rates {
		if err := batch.Append(r.PoolID, r.AssetAddress, r.RateDate.UTCMidnight(), r.BRate, r.DRate); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return classify("send batch", err)
	}
	return nil
}
