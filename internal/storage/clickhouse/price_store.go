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

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// ListUpTo loads every row for tokens dated on or before maxDate in one query,
// ordered by (token, date, seq) ASC.
func (s *PriceStore) ListUpTo(ctx context.Context, tokens []string, maxDate calendar.Date) ([]domain.PriceObservation, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	rows, err := s.conn.Query(ctx, `
		SELECT seq, token_address, price_date, usd_price
		FROM prices
		WHERE token_address IN (@tokens) AND price_date <= @max_date
		ORDER BY token_address ASC, price_date ASC, seq ASC
	`,
		clickhouse.Named("tokens", tokens),
		clickhouse.Named("max_date", maxDate.String()),
	)
	if err != nil {
		return nil, classify("list prices", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// InsertBulk seeds observations in one batch. A zero Seq is assigned after
// the current maximum.
func (s *PriceStore) InsertBulk(ctx context.Context, prices []domain.PriceObservation) error {
	if len(prices) == 0 {
		return nil
	}

	var maxSeq uint64
	if err := s.conn.QueryRow(ctx, `SELECT max(seq) FROM prices`).Scan(&maxSeq); err != nil {
		return classify("max price seq", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO prices (seq, token_address, price_date, usd_price)`)
	if err != nil {
		return classify("prepare batch", err)
	}

	for _, p := range prices {
		if p.TokenAddress == "" || p.PriceDate.IsZero() {
			return storage.ErrInvalidInput
		}
		seq := uint64(p.Seq)
		if seq == 0 {
			maxSeq++
			seq = maxSeq
		}
		if err := batch.Append(seq, p.TokenAddress, p.PriceDate.UTCMidnight(), p.USDPrice); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return classify("send batch", err)
	}
	return nil
}

func scanPrices(rows chRows) ([]domain.PriceObservation, error) {
	var prices []domain.PriceObservation

	for rows.Next() {
		var (
			p    domain.PriceObservation
			seq  uint64
			date time.Time
		)
		if err := rows.Scan(&seq, &p.TokenAddress, &date, &p.USDPrice); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		p.Seq = int64(seq)
		p.PriceDate = calendar.FromTime(date)
		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("iterate price rows", err)
	}
	return prices, nil
}
