// Package reporting assembles a wallet-level report from the portfolio
// service and renders it as Markdown, JSON or CSV.
package reporting

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/portfolio"
	"blend-portfolio/internal/storage"
)

// DefaultDays is the balance history window when none is requested.
const DefaultDays = 30

// Source computes the reports a Generator assembles.
type Source interface {
	Summary(ctx context.Context, req portfolio.SummaryRequest) (portfolio.Summary, error)
	BalanceHistory(ctx context.Context, req portfolio.BalanceRequest) (domain.BalanceHistory, error)
	SyncStatus(ctx context.Context) (*storage.SyncStatus, error)
}

// Request scopes a wallet report.
type Request struct {
	UserAddress string
	Timezone    string
	// Assets limits balance histories; empty means every asset with a
	// cost basis record.
	Assets     []string
	Days       int
	LPPriceUSD *float64
	Live       map[string]float64
}

// Generator produces wallet reports.
type Generator struct {
	source Source
	now    func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(source Source) *Generator {
	return &Generator{
		source: source,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces a complete wallet report.
func (g *Generator) Generate(ctx context.Context, req Request) (*Report, error) {
	summary, err := g.source.Summary(ctx, portfolio.SummaryRequest{
		UserAddress: req.UserAddress,
		Timezone:    req.Timezone,
		Live:        req.Live,
		LPPriceUSD:  req.LPPriceUSD,
	})
	if err != nil {
		return nil, err
	}

	days := req.Days
	if days <= 0 {
		days = DefaultDays
	}
	asOf := summary.Yield.AsOf
	rng := calendar.Range{From: asOf.AddDays(-(days - 1)), To: asOf}

	assets := req.Assets
	if len(assets) == 0 {
		assets = assetsOf(summary.CostBasis)
	}
	histories, failed, err := g.histories(ctx, req, assets, rng)
	if err != nil {
		return nil, err
	}

	sync, err := g.source.SyncStatus(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	quality := generateDataQuality(summary, histories, failed)
	return &Report{
		GeneratedAt: g.now(),
		UserAddress: req.UserAddress,
		Timezone:    summary.Yield.Timezone,
		AsOf:        asOf,
		Range:       rng,
		Sync:        sync,
		Overview:    generateOverview(summary),
		DataQuality: quality,
		CostBasis:   generateCostBasisRows(summary.CostBasis),
		Balances:    generateBalanceRows(histories),
		Sources:     generateSourceRows(summary.Yield),
		Q4W:         generateQ4WRows(summary.Q4W),
		Summary:     summary,
		Histories:   histories,
	}, nil
}

// histories loads one balance history per asset concurrently. An asset
// whose history cannot be built is reported in failed and left out; only
// errors that would fail every asset abort the report.
func (g *Generator) histories(ctx context.Context, req Request, assets []string, rng calendar.Range) ([]domain.BalanceHistory, map[string]string, error) {
	results := make([]domain.BalanceHistory, len(assets))
	errs := make([]error, len(assets))
	eg, egctx := errgroup.WithContext(ctx)
	for i, asset := range assets {
		eg.Go(func() error {
			h, err := g.source.BalanceHistory(egctx, portfolio.BalanceRequest{
				UserAddress:  req.UserAddress,
				AssetAddress: asset,
				Timezone:     req.Timezone,
				Range:        rng,
			})
			if err != nil && abortsReport(err) {
				return err
			}
			results[i], errs[i] = h, err
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		out    []domain.BalanceHistory
		failed map[string]string
	)
	for i, err := range errs {
		if err == nil {
			out = append(out, results[i])
			continue
		}
		if failed == nil {
			failed = make(map[string]string)
		}
		failed[assets[i]] = err.Error()
	}
	return out, failed, nil
}

// abortsReport reports whether err concerns the whole request rather than
// one asset: an unreachable store, cancellation, or a bad request field
// other than the asset itself.
func abortsReport(err error) bool {
	if errors.Is(err, domain.ErrUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var verr *domain.ValidationError
	return errors.As(err, &verr) && verr.Field != "asset"
}

// assetsOf returns the distinct assets of a cost basis report, sorted.
func assetsOf(r domain.CostBasisReport) []string {
	seen := make(map[string]struct{})
	for _, rec := range r.ByAssetKey {
		seen[rec.AssetAddress] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func generateOverview(s portfolio.Summary) Overview {
	return Overview{
		TotalDeposited: s.Yield.TotalDeposited,
		TotalWithdrawn: s.Yield.TotalWithdrawn,
		RealizedPnl:    s.Yield.RealizedPnl,
		ROI:            s.Yield.ROI,
		AnnualizedROI:  s.Yield.AnnualizedROI,
		DaysActive:     s.Yield.DaysActive,
		CostBasis:      s.CostBasis.Totals.CostBasis,
		QueuedLocked:   s.Q4W.Summary.TotalLocked,
		QueuedUnlocked: s.Q4W.Summary.TotalUnlocked,
	}
}

// generateDataQuality merges warnings and failures from every report.
// Warnings are deduplicated on (kind, key, date).
func generateDataQuality(s portfolio.Summary, histories []domain.BalanceHistory, failedAssets map[string]string) DataQualitySection {
	type wkey struct {
		kind domain.Provenance
		key  string
		date calendar.Date
	}
	seen := make(map[wkey]bool)
	var warnings []WarningRow
	add := func(report string, ws []domain.DataGapWarning) {
		for _, w := range ws {
			k := wkey{w.Kind, w.Key, w.Date}
			if seen[k] {
				continue
			}
			seen[k] = true
			warnings = append(warnings, WarningRow{Report: report, Kind: w.Kind, Key: w.Key, Date: w.Date, Detail: w.Detail})
		}
	}
	add(portfolio.KindCostBasis, s.CostBasis.Warnings)
	add(portfolio.KindYield, s.Yield.Warnings)
	for _, h := range histories {
		add(portfolio.KindBalance, h.Warnings)
	}

	var failures []FailureRow
	for k, reason := range s.CostBasis.Failures {
		failures = append(failures, FailureRow{Report: portfolio.KindCostBasis, Key: k, Reason: reason})
	}
	for k, reason := range s.Yield.Failures {
		failures = append(failures, FailureRow{Report: portfolio.KindYield, Key: k, Reason: reason})
	}
	for asset, reason := range failedAssets {
		failures = append(failures, FailureRow{Report: portfolio.KindBalance, Key: asset, Reason: reason})
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		if c := warnings[i].Date.Compare(warnings[j].Date); c != 0 {
			return c < 0
		}
		return warnings[i].Key < warnings[j].Key
	})
	sort.Slice(failures, func(i, j int) bool {
		if failures[i].Report != failures[j].Report {
			return failures[i].Report < failures[j].Report
		}
		return failures[i].Key < failures[j].Key
	})

	return DataQualitySection{
		Warnings: warnings,
		Failures: failures,
		Complete: len(failures) == 0,
	}
}

func generateCostBasisRows(r domain.CostBasisReport) []CostBasisRow {
	rows := make([]CostBasisRow, 0, len(r.ByAssetKey))
	for _, rec := range r.ByAssetKey {
		rows = append(rows, CostBasisRow{
			PoolID:        rec.PoolID,
			AssetAddress:  rec.AssetAddress,
			NetTokens:     rec.NetTokens,
			AvgPrice:      rec.WeightedAvgDepositPrice,
			CostBasis:     rec.CostBasis,
			DepositedUSD:  rec.DepositedUSD,
			WithdrawnUSD:  rec.WithdrawnUSD,
			RealizedPnl:   rec.RealizedPnl,
			ROI:           rec.ROI,
			AnnualizedROI: rec.AnnualizedROI,
			FirstDeposit:  rec.FirstDeposit,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return lessPoolAsset(rows[i].PoolID, rows[i].AssetAddress, rows[j].PoolID, rows[j].AssetAddress)
	})
	return rows
}

// generateBalanceRows takes the last snapshot of each pool reserve.
func generateBalanceRows(histories []domain.BalanceHistory) []BalanceRow {
	var rows []BalanceRow
	for _, h := range histories {
		earnings := make(map[string]domain.EarningsStats, len(h.Earnings))
		for _, e := range h.Earnings {
			earnings[e.PoolID] = e
		}
		last := make(map[string]domain.BalanceSnapshot)
		for _, s := range h.Snapshots {
			if prev, ok := last[s.PoolID]; !ok || !s.Date.Before(prev.Date) {
				last[s.PoolID] = s
			}
		}
		for pool, s := range last {
			e := earnings[pool]
			rows = append(rows, BalanceRow{
				PoolID:           pool,
				AssetAddress:     s.AssetAddress,
				Date:             s.Date,
				SupplyTokens:     s.SupplyTokens,
				CollateralTokens: s.CollateralTokens,
				DebtTokens:       s.LiabilitiesTokens,
				NetBalance:       s.NetBalance,
				Interest:         e.TotalInterest,
				SupplyAPY:        e.CurrentSupplyAPY,
				BorrowAPY:        e.CurrentBorrowAPY,
				Live:             s.Live,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return lessPoolAsset(rows[i].PoolID, rows[i].AssetAddress, rows[j].PoolID, rows[j].AssetAddress)
	})
	return rows
}

func generateSourceRows(y domain.YieldReport) []SourceRow {
	return []SourceRow{
		{Source: "pools", SourceYield: y.BySource.Pools},
		{Source: "backstop", SourceYield: y.BySource.Backstop},
		{Source: "emissions", SourceYield: y.BySource.Emissions},
	}
}

func generateQ4WRows(r domain.Q4WReport) []Q4WRow {
	rows := make([]Q4WRow, 0, len(r.Positions))
	for _, p := range r.Positions {
		rows = append(rows, Q4WRow{
			PoolID:         p.PoolID,
			LockedShares:   p.LockedShares,
			UnlockedShares: p.UnlockedShares,
			ShareRate:      p.ShareRate,
			LockedUSD:      p.LockedUSD,
			UnlockedUSD:    p.UnlockedUSD,
			EarliestUnlock: p.EarliestUnlock,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].PoolID < rows[j].PoolID })
	return rows
}

func lessPoolAsset(pa, aa, pb, ab string) bool {
	if c := strings.Compare(pa, pb); c != 0 {
		return c < 0
	}
	return aa < ab
}
