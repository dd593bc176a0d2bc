package costbasis

import (
	"context"
	"fmt"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/pricing"
	"blend-portfolio/internal/storage"
)

// Request scopes a cost basis report. PoolID and AssetAddress are optional filters.
type Request struct {
	UserAddress  string
	PoolID       string
	AssetAddress string
	Timezone     string
	AsOf         calendar.Date
	Live         map[string]float64
}

// Loader reads flow events and their prices.
type Loader struct {
	pager  *storage.Paginator
	prices storage.PriceStore
}

// NewLoader creates a loader.
func NewLoader(events storage.EventStore, prices storage.PriceStore, pageSize, maxPages int) *Loader {
	return &Loader{pager: storage.NewPaginator(events, pageSize, maxPages), prices: prices}
}

// Load validates req, then reads every flow up to the end of AsOf and the
// prices for their dates in one batch.
func (l *Loader) Load(ctx context.Context, req Request) (Input, error) {
	if err := domain.ValidateUser(req.UserAddress); err != nil {
		return Input{}, err
	}
	if req.PoolID != "" {
		if err := domain.ValidatePool(req.PoolID); err != nil {
			return Input{}, err
		}
	}
	if req.AssetAddress != "" {
		if err := domain.ValidateAsset(req.AssetAddress); err != nil {
			return Input{}, err
		}
	}
	loc, err := calendar.LoadLocation(req.Timezone)
	if err != nil {
		return Input{}, &domain.ValidationError{Field: "timezone", Value: req.Timezone, Reason: "unknown IANA zone"}
	}
	if req.AsOf.IsZero() {
		return Input{}, &domain.ValidationError{Field: "asOf", Reason: "required"}
	}

	events, err := l.pager.All(ctx, storage.EventFilter{
		UserAddress:  req.UserAddress,
		Source:       domain.SourcePool,
		PoolID:       req.PoolID,
		AssetAddress: req.AssetAddress,
		Actions:      FlowActions,
		To:           calendar.NextDayStart(req.AsOf, loc),
	})
	if err != nil {
		return Input{}, fmt.Errorf("load flow events: %w", err)
	}

	prices, err := pricing.Load(ctx, l.prices, PriceKeys(events, loc))
	if err != nil {
		return Input{}, err
	}

	return Input{
		UserAddress: req.UserAddress,
		Location:    loc,
		AsOf:        req.AsOf,
		Events:      events,
		Prices:      prices,
		Live:        req.Live,
	}, nil
}
