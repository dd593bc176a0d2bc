package costbasis

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/pricing"
)

// FlowActions are the pool actions that move principal in or out.
var FlowActions = []domain.ActionType{
	domain.ActionSupply, domain.ActionSupplyCollateral,
	domain.ActionWithdraw, domain.ActionWithdrawCollateral,
}

// Input is everything Build needs.
type Input struct {
	UserAddress string
	Location    *time.Location
	AsOf        calendar.Date // today in Location
	Events      []domain.Event
	Prices      *pricing.Resolver
	Live        map[string]float64 // current price per token
}

// FlowKind classifies a pool event. Borrow-side and backstop events are not flows.
func FlowKind(e *domain.Event) (Kind, bool) {
	if e.Source != domain.SourcePool {
		return 0, false
	}
	switch e.ActionType {
	case domain.ActionSupply, domain.ActionSupplyCollateral:
		return Deposit, true
	case domain.ActionWithdraw, domain.ActionWithdrawCollateral:
		return Withdrawal, true
	}
	return 0, false
}

// PriceKeys lists the distinct (asset, local date) pairs the flows in events need.
func PriceKeys(events []domain.Event, loc *time.Location) []domain.PriceKey {
	seen := make(map[domain.PriceKey]bool)
	var keys []domain.PriceKey
	for i := range events {
		e := &events[i]
		if _, ok := FlowKind(e); !ok || e.AssetAddress == "" {
			continue
		}
		k := domain.PriceKey{Token: e.AssetAddress, Date: calendar.DateIn(e.LedgerClosedAt, loc)}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// PriceFlow prices one flow. A deposit dated today uses the live price when
// one is known; withdrawals always use the historical chain.
func PriceFlow(kind Kind, key domain.PriceKey, asOf calendar.Date, prices *pricing.Resolver, live map[string]float64) domain.ResolvedPrice {
	if kind == Deposit && key.Date.Equal(asOf) {
		if p, ok := live[key.Token]; ok {
			return domain.ResolvedPrice{Price: p, Source: domain.ProvenanceLive}
		}
	}
	return prices.Resolve(key, live)
}

// Build computes one record per (pool, asset). A key whose events carry a
// malformed pool or asset is reported in Failures and left out of totals.
func Build(in Input) domain.CostBasisReport {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	prices := in.Prices
	if prices == nil {
		prices = pricing.NewResolver(nil)
	}

	type ident struct{ pool, asset string }
	positions := make(map[string]*Position)
	idents := make(map[string]ident)
	failures := make(map[string]string)
	resolved := make(map[domain.PriceKey]domain.ResolvedPrice)

	for i := range in.Events {
		e := &in.Events[i]
		kind, ok := FlowKind(e)
		if !ok {
			continue
		}
		key := domain.AssetKey(e.PoolID, e.AssetAddress)
		if _, failed := failures[key]; failed {
			continue
		}
		if err := validateKey(e); err != nil {
			failures[key] = err.Error()
			delete(positions, key)
			continue
		}

		pk := domain.PriceKey{Token: e.AssetAddress, Date: calendar.DateIn(e.LedgerClosedAt, loc)}
		price := PriceFlow(kind, pk, in.AsOf, prices, in.Live)
		if price.Source.IsGap() {
			resolved[pk] = price
		}

		pos, ok := positions[key]
		if !ok {
			pos = &Position{}
			positions[key] = pos
			idents[key] = ident{e.PoolID, e.AssetAddress}
		}
		pos.Add(Flow{Kind: kind, Date: pk.Date, Tokens: e.Tokens(), Price: price})
	}

	report := domain.CostBasisReport{
		UserAddress: in.UserAddress,
		AsOf:        in.AsOf,
		ByAssetKey:  make(map[string]domain.CostBasisRecord, len(positions)),
		Warnings:    pricing.Warnings(resolved),
	}
	if len(failures) > 0 {
		report.Failures = failures
	}

	keys := make([]string, 0, len(positions))
	for k := range positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var cost, deposited, withdrawn, realized decimal.Decimal
	for _, k := range keys {
		pos, id := positions[k], idents[k]
		live := in.Live[id.asset]
		report.ByAssetKey[k] = pos.Record(id.pool, id.asset, live, in.AsOf)
		cost = cost.Add(pos.CostBasis(live))
		deposited = deposited.Add(pos.DepositedUSD())
		withdrawn = withdrawn.Add(pos.WithdrawnUSD())
		realized = realized.Add(pos.RealizedPnl())
	}
	report.Totals = domain.CostBasisTotals{
		CostBasis:    cost.InexactFloat64(),
		DepositedUSD: deposited.InexactFloat64(),
		WithdrawnUSD: withdrawn.InexactFloat64(),
		RealizedPnl:  realized.InexactFloat64(),
	}
	return report
}

func validateKey(e *domain.Event) error {
	if err := domain.ValidatePool(e.PoolID); err != nil {
		return err
	}
	return domain.ValidateAsset(e.AssetAddress)
}
