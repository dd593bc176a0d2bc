// Package rates resolves b/d rate indices for a pool reserve at a local calendar day.
package rates

import (
	"context"
	"fmt"
	"time"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/lookup"
	"blend-portfolio/internal/storage"
)

// Resolver answers rate lookups for one (pool, asset) from a preloaded series.
// It is immutable and safe for concurrent use.
type Resolver struct {
	series *lookup.Series[domain.RateIndex]
}

// NewResolver builds a resolver over rows for a single pool reserve.
func NewResolver(rows []domain.RateIndex) *Resolver {
	points := make([]lookup.Point[domain.RateIndex], len(rows))
	for i, r := range rows {
		points[i] = lookup.Point[domain.RateIndex]{Date: r.RateDate, Value: r}
	}
	return &Resolver{series: lookup.NewSeries(points)}
}

// Load reads every row needed to resolve days up to and including through in loc.
func Load(ctx context.Context, store storage.RateIndexStore, poolID, asset string, through calendar.Date, loc *time.Location) (*Resolver, error) {
	rows, err := store.ListUpTo(ctx, poolID, asset, calendar.EffectiveUTCDate(through, loc))
	if err != nil {
		return nil, fmt.Errorf("load rates for %s: %w", domain.AssetKey(poolID, asset), err)
	}
	return NewResolver(rows), nil
}

// Lookup resolves a single day with one store read.
func Lookup(ctx context.Context, store storage.RateIndexStore, poolID, asset string, day calendar.Date, loc *time.Location) (domain.RatePair, error) {
	r, err := Load(ctx, store, poolID, asset, day, loc)
	if err != nil {
		return domain.RatePair{}, err
	}
	return r.At(day, loc), nil
}

// At returns the rates in force at the end of local day d. The local day is
// first turned into the UTC date of its last instant; the newest row dated on
// or before that UTC date applies. With no prior row the identity pair is
// returned, meaning nothing has accrued yet.
func (r *Resolver) At(d calendar.Date, loc *time.Location) domain.RatePair {
	utcDay := calendar.EffectiveUTCDate(d, loc)

	p, match, err := r.series.At(utcDay)
	if err != nil {
		return domain.IdentityRates
	}

	prov := domain.ProvenanceForwardFill
	if match == lookup.MatchExact {
		prov = domain.ProvenanceExact
	}
	return domain.RatePair{
		BRate:      p.Value.BRate,
		DRate:      p.Value.DRate,
		RateDate:   p.Date,
		Provenance: prov,
	}
}

// DatedRate is one day of a resolved series.
type DatedRate struct {
	Date calendar.Date
	domain.RatePair
}

// Series resolves every day in rng, in order. An inverted range yields nil.
func (r *Resolver) Series(rng calendar.Range, loc *time.Location) []DatedRate {
	days := rng.Days()
	if len(days) == 0 {
		return nil
	}
	out := make([]DatedRate, len(days))
	for i, d := range days {
		out[i] = DatedRate{Date: d, RatePair: r.At(d, loc)}
	}
	return out
}

// CurrentAPY returns the supply and borrow APY implied by the two newest
// observations in force at the end of asOf. Returns zeros with fewer than two.
func (r *Resolver) CurrentAPY(asOf calendar.Date, loc *time.Location) (supply, borrow float64) {
	latest, _, err := r.series.At(calendar.EffectiveUTCDate(asOf, loc))
	if err != nil {
		return 0, 0
	}
	prev, _, err := r.series.At(latest.Date.AddDays(-1))
	if err != nil {
		return 0, 0
	}
	days := prev.Date.DaysUntil(latest.Date)
	return APYOver(latest.Value.BRate, prev.Value.BRate, days, Supply),
		APYOver(latest.Value.DRate, prev.Value.DRate, days, Borrow)
}
