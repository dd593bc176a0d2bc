// Package pricing resolves daily USD prices with a forward-fill and live fallback chain.
package pricing

import (
	"context"
	"fmt"
	"sort"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/lookup"
	"blend-portfolio/internal/storage"
)

// Resolver holds one price series per token. Immutable once built.
type Resolver struct {
	series map[string]*lookup.Series[float64]
}

// NewResolver builds per-token series. When several rows share a
// (token, date) the one with the lowest Seq is used, whatever order the
// rows arrive in.
func NewResolver(rows []domain.PriceObservation) *Resolver {
	sorted := make([]domain.PriceObservation, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	byToken := make(map[string][]lookup.Point[float64])
	for _, p := range sorted {
		byToken[p.TokenAddress] = append(byToken[p.TokenAddress], lookup.Point[float64]{Date: p.PriceDate, Value: p.USDPrice})
	}

	series := make(map[string]*lookup.Series[float64], len(byToken))
	for token, points := range byToken {
		series[token] = lookup.NewSeries(points)
	}
	return &Resolver{series: series}
}

// Load fetches every row for the tokens in keys dated on or before the
// latest requested date, in a single store query.
func Load(ctx context.Context, store storage.PriceStore, keys []domain.PriceKey) (*Resolver, error) {
	if len(keys) == 0 {
		return NewResolver(nil), nil
	}

	seen := make(map[string]bool)
	var (
		tokens []string
		maxDay calendar.Date
	)
	for _, k := range keys {
		if !seen[k.Token] {
			seen[k.Token] = true
			tokens = append(tokens, k.Token)
		}
		if maxDay.IsZero() || k.Date.After(maxDay) {
			maxDay = k.Date
		}
	}
	sort.Strings(tokens)

	rows, err := store.ListUpTo(ctx, tokens, maxDay)
	if err != nil {
		return nil, fmt.Errorf("load prices for %d tokens: %w", len(tokens), err)
	}
	return NewResolver(rows), nil
}

// Resolve prices one (token, date): exact row, else the newest earlier row,
// else the live price if one is supplied, else 0 tagged missing.
func (r *Resolver) Resolve(key domain.PriceKey, live map[string]float64) domain.ResolvedPrice {
	if p, match, err := r.series[key.Token].At(key.Date); err == nil {
		src := domain.ProvenanceForwardFill
		if match == lookup.MatchExact {
			src = domain.ProvenanceExact
		}
		return domain.ResolvedPrice{Price: p.Value, Source: src, ObservedOn: p.Date}
	}
	if price, ok := live[key.Token]; ok {
		return domain.ResolvedPrice{Price: price, Source: domain.ProvenanceLiveFallback}
	}
	return domain.ResolvedPrice{Source: domain.ProvenanceMissing}
}

// ResolveAll prices every key.
func (r *Resolver) ResolveAll(keys []domain.PriceKey, live map[string]float64) map[domain.PriceKey]domain.ResolvedPrice {
	out := make(map[domain.PriceKey]domain.ResolvedPrice, len(keys))
	for _, k := range keys {
		out[k] = r.Resolve(k, live)
	}
	return out
}

// ResolveBatch loads and resolves keys in one call.
func ResolveBatch(ctx context.Context, store storage.PriceStore, keys []domain.PriceKey, live map[string]float64) (map[domain.PriceKey]domain.ResolvedPrice, error) {
	r, err := Load(ctx, store, keys)
	if err != nil {
		return nil, err
	}
	return r.ResolveAll(keys, live), nil
}

// Warnings lists every resolution that was not an exact hit, ordered by
// token then date.
func Warnings(resolved map[domain.PriceKey]domain.ResolvedPrice) []domain.DataGapWarning {
	var out []domain.DataGapWarning
	for k, p := range resolved {
		if !p.Source.IsGap() {
			continue
		}
		w := domain.DataGapWarning{Kind: p.Source, Key: k.Token, Date: k.Date}
		if p.Source == domain.ProvenanceForwardFill {
			w.Detail = "price from " + p.ObservedOn.String()
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
