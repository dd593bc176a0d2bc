package yield

import (
	"context"
	"fmt"
	"time"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/costbasis"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/pricing"
	"blend-portfolio/internal/storage"
)

// Actions are every action that moves value in or out of the wallet.
var Actions = []domain.ActionType{
	domain.ActionSupply, domain.ActionSupplyCollateral,
	domain.ActionWithdraw, domain.ActionWithdrawCollateral,
	domain.ActionDeposit, domain.ActionClaim,
}

// Request scopes a yield report.
type Request struct {
	UserAddress      string
	Timezone         string
	AsOf             calendar.Date
	Live             map[string]float64
	PoolBalances     map[string]float64
	BackstopBalances map[string]float64
}

// Loader reads a wallet's cash flows and their prices.
type Loader struct {
	pager  *storage.Paginator
	prices storage.PriceStore
	tokens Tokens
}

// NewLoader creates a loader.
func NewLoader(events storage.EventStore, prices storage.PriceStore, tokens Tokens, pageSize, maxPages int) *Loader {
	return &Loader{pager: storage.NewPaginator(events, pageSize, maxPages), prices: prices, tokens: tokens}
}

// Load validates req and reads every cash flow through the end of AsOf,
// then prices them in one batch.
func (l *Loader) Load(ctx context.Context, req Request) (Input, error) {
	if err := domain.ValidateUser(req.UserAddress); err != nil {
		return Input{}, err
	}
	loc, err := calendar.LoadLocation(req.Timezone)
	if err != nil {
		return Input{}, &domain.ValidationError{Field: "timezone", Value: req.Timezone, Reason: "unknown IANA zone"}
	}
	if req.AsOf.IsZero() {
		return Input{}, &domain.ValidationError{Field: "asOf", Reason: "required"}
	}

	events, err := l.pager.All(ctx, storage.EventFilter{
		UserAddress: req.UserAddress,
		Actions:     Actions,
		To:          calendar.NextDayStart(req.AsOf, loc),
	})
	if err != nil {
		return Input{}, fmt.Errorf("load cash flow events: %w", err)
	}

	prices, err := pricing.Load(ctx, l.prices, l.priceKeys(events, loc, req))
	if err != nil {
		return Input{}, err
	}

	return Input{
		UserAddress:      req.UserAddress,
		Location:         loc,
		AsOf:             req.AsOf,
		Events:           events,
		Prices:           prices,
		Live:             req.Live,
		Tokens:           l.tokens,
		PoolBalances:     req.PoolBalances,
		BackstopBalances: req.BackstopBalances,
	}, nil
}

func (l *Loader) priceKeys(events []domain.Event, loc *time.Location, req Request) []domain.PriceKey {
	keys := costbasis.PriceKeys(events, loc)
	for i := range events {
		e := &events[i]
		day := calendar.DateIn(e.LedgerClosedAt, loc)
		switch {
		case e.ActionType == domain.ActionClaim && l.tokens.Emission != "":
			keys = append(keys, domain.PriceKey{Token: l.tokens.Emission, Date: day})
		case e.Source == domain.SourceBackstop && l.tokens.BackstopLP != "":
			keys = append(keys, domain.PriceKey{Token: l.tokens.BackstopLP, Date: day})
		}
	}
	for key := range req.PoolBalances {
		keys = append(keys, domain.PriceKey{Token: assetOf(key), Date: req.AsOf})
	}
	if len(req.BackstopBalances) > 0 && l.tokens.BackstopLP != "" {
		keys = append(keys, domain.PriceKey{Token: l.tokens.BackstopLP, Date: req.AsOf})
	}
	return keys
}
