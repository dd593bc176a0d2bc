package pricing

import (
	"context"
	"errors"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/storage"
)

type countingPrices struct {
	inner   storage.PriceStore
	calls   int
	maxDate calendar.Date
}

func (c *countingPrices) ListUpTo(ctx context.Context, tokens []string, maxDate calendar.Date) ([]domain.PriceObservation, error) {
	c.calls++
	c.maxDate = maxDate
	return c.inner.ListUpTo(ctx, tokens, maxDate)
}

type failingPrices struct{}

func (failingPrices) ListUpTo(context.Context, []string, calendar.Date) ([]domain.PriceObservation, error) {
	return nil, domain.Unavailable("list prices", errors.New("i/o timeout"))
}
