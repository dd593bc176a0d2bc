package portfolio

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"blend-portfolio/internal/backstop"
	"blend-portfolio/internal/balance"
	"blend-portfolio/internal/cache"
	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/costbasis"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/idhash"
	"blend-portfolio/internal/yield"
)

// BalanceRequest scopes a balance history.
type BalanceRequest struct {
	UserAddress  string
	AssetAddress string
	Timezone     string
	Range        calendar.Range
	Live         map[string]domain.LiveBalance // per pool, applied to today
}

// BalanceHistory reconstructs daily balances.
func (s *Service) BalanceHistory(ctx context.Context, req BalanceRequest) (domain.BalanceHistory, error) {
	tz := s.timezone(req.Timezone)
	today, err := s.today(tz)
	if err != nil {
		return domain.BalanceHistory{}, err
	}
	key := cache.Key(KindBalance, req.UserAddress, req.AssetAddress, tz, req.Range.From, req.Range.To, today, idhash.ComputeDigest(liveFields(req.Live)))

	return run(ctx, s, KindBalance, key, func(ctx context.Context) (domain.BalanceHistory, error) {
		in, err := s.balances.Load(ctx, balance.Request{
			UserAddress:  req.UserAddress,
			AssetAddress: req.AssetAddress,
			Timezone:     tz,
			Range:        req.Range,
			Today:        today,
			Live:         req.Live,
		})
		if err != nil {
			return domain.BalanceHistory{}, err
		}
		h := s.reconstructor.Reconstruct(in)
		s.noteGaps(KindBalance, h.Warnings)
		return h, nil
	})
}

// CostBasisRequest scopes a cost basis report.
type CostBasisRequest struct {
	UserAddress  string
	PoolID       string
	AssetAddress string
	Timezone     string
	Live         map[string]float64
}

// CostBasis computes average-cost records as of today.
func (s *Service) CostBasis(ctx context.Context, req CostBasisRequest) (domain.CostBasisReport, error) {
	tz := s.timezone(req.Timezone)
	today, err := s.today(tz)
	if err != nil {
		return domain.CostBasisReport{}, err
	}
	key := cache.Key(KindCostBasis, req.UserAddress, req.PoolID, req.AssetAddress, tz, today, idhash.ComputeDigest(floatFields(req.Live)))

	return run(ctx, s, KindCostBasis, key, func(ctx context.Context) (domain.CostBasisReport, error) {
		in, err := s.costs.Load(ctx, costbasis.Request{
			UserAddress:  req.UserAddress,
			PoolID:       req.PoolID,
			AssetAddress: req.AssetAddress,
			Timezone:     tz,
			AsOf:         today,
			Live:         req.Live,
		})
		if err != nil {
			return domain.CostBasisReport{}, err
		}
		r := costbasis.Build(in)
		s.noteGaps(KindCostBasis, r.Warnings)
		return r, nil
	})
}

// YieldRequest scopes a yield report.
type YieldRequest struct {
	UserAddress      string
	Timezone         string
	Live             map[string]float64
	PoolBalances     map[string]float64
	BackstopBalances map[string]float64
}

// Yield computes realized and, when balances are given, unrealized yield.
func (s *Service) Yield(ctx context.Context, req YieldRequest) (domain.YieldReport, error) {
	tz := s.timezone(req.Timezone)
	today, err := s.today(tz)
	if err != nil {
		return domain.YieldReport{}, err
	}
	key := cache.Key(KindYield, req.UserAddress, tz, today,
		idhash.ComputeDigest(floatFields(req.Live)),
		idhash.ComputeDigest(floatFields(req.PoolBalances)),
		idhash.ComputeDigest(floatFields(req.BackstopBalances)))

	return run(ctx, s, KindYield, key, func(ctx context.Context) (domain.YieldReport, error) {
		in, err := s.yields.Load(ctx, yield.Request{
			UserAddress:      req.UserAddress,
			Timezone:         tz,
			AsOf:             today,
			Live:             req.Live,
			PoolBalances:     req.PoolBalances,
			BackstopBalances: req.BackstopBalances,
		})
		if err != nil {
			return domain.YieldReport{}, err
		}
		r := yield.Build(in)
		s.noteGaps(KindYield, r.Warnings)
		return r, nil
	})
}

// Q4W lists withdrawal-queue positions. A zero AsOf means now, truncated to
// the minute so repeated listings share a cache entry.
func (s *Service) Q4W(ctx context.Context, q backstop.Query) (domain.Q4WReport, error) {
	if q.AsOf.IsZero() {
		q.AsOf = s.now().UTC().Truncate(time.Minute)
	}
	price := "none"
	if q.LPPriceUSD != nil {
		price = strconv.FormatFloat(*q.LPPriceUSD, 'g', -1, 64)
	}
	key := cache.Key(KindQ4W, q.Pool, q.User, q.Status, q.MinShares, q.SortBy, q.Desc, q.Limit, q.Offset, q.AsOf.Unix(), price)

	return run(ctx, s, KindQ4W, key, func(ctx context.Context) (domain.Q4WReport, error) {
		return s.queues.Report(ctx, q)
	})
}

func floatFields(m map[string]float64) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return out
}

func liveFields(m map[string]domain.LiveBalance) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprintf("%g/%g/%g", v.SupplyTokens, v.CollateralTokens, v.LiabilitiesTokens)
	}
	return out
}
