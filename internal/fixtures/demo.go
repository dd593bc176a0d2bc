// Package fixtures seeds the in-memory stores with a deterministic demo
// wallet: two pools, a backstop position that walks the whole queue
// lifecycle, and emission claims.
package fixtures

import (
	"context"
	"fmt"
	"time"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/idhash"
	"blend-portfolio/internal/storage"
	"blend-portfolio/internal/storage/memory"
	"blend-portfolio/internal/strkey"
	"blend-portfolio/internal/yield"
)

// HistoryDays is the length of the demo history, ending on the anchor date.
const HistoryDays = 90

// Wallet holds the addresses used by the demo data.
type Wallet struct {
	User      string
	Other     string // second backstop depositor, gives the pool a share supply
	PoolA     string
	PoolB     string
	Backstop  string
	USDC      string
	XLM       string
	LPToken   string
	Emission  string
	FirstDay  calendar.Date
	AnchorDay calendar.Date
}

// Tokens returns the LP and emission tokens for yield pricing.
func (w Wallet) Tokens() yield.Tokens {
	return yield.Tokens{BackstopLP: w.LPToken, Emission: w.Emission}
}

// DemoWallet returns the demo addresses for a history ending on anchor.
func DemoWallet(anchor calendar.Date) Wallet {
	return Wallet{
		User:      strkey.AccountFromSeed("demo-user"),
		Other:     strkey.AccountFromSeed("demo-other"),
		PoolA:     strkey.ContractFromSeed("demo-pool-a"),
		PoolB:     strkey.ContractFromSeed("demo-pool-b"),
		Backstop:  strkey.ContractFromSeed("demo-backstop"),
		USDC:      strkey.ContractFromSeed("demo-usdc"),
		XLM:       strkey.ContractFromSeed("demo-xlm"),
		LPToken:   strkey.ContractFromSeed("demo-blnd-usdc-lp"),
		Emission:  strkey.ContractFromSeed("demo-blnd"),
		FirstDay:  anchor.AddDays(-(HistoryDays - 1)),
		AnchorDay: anchor,
	}
}

// Load populates stores with the demo wallet ending on anchor.
func Load(ctx context.Context, s *memory.Stores, anchor calendar.Date) (Wallet, error) {
	w := DemoWallet(anchor)

	if err := s.Rates.InsertBulk(ctx, rates(w)); err != nil {
		return w, fmt.Errorf("load rates: %w", err)
	}
	if err := s.Prices.InsertBulk(ctx, prices(w)); err != nil {
		return w, fmt.Errorf("load prices: %w", err)
	}
	if err := s.Events.InsertBulk(ctx, events(w)); err != nil {
		return w, fmt.Errorf("load events: %w", err)
	}
	s.Sync.Set(storage.SyncStatus{
		Ledger:   51_000_000 + uint32(HistoryDays*17_280),
		ClosedAt: anchor.UTCMidnight().Add(12 * time.Hour),
	})
	return w, nil
}

// rates grows every reserve linearly. Pool B skips one day a week so its
// history shows forward-filled rates.
func rates(w Wallet) []domain.RateIndex {
	var out []domain.RateIndex
	for i := 0; i < HistoryDays; i++ {
		d := w.FirstDay.AddDays(i)
		out = append(out,
			domain.RateIndex{PoolID: w.PoolA, AssetAddress: w.USDC, RateDate: d, BRate: 1 + 0.0002*float64(i), DRate: 1 + 0.0004*float64(i)},
			domain.RateIndex{PoolID: w.PoolA, AssetAddress: w.XLM, RateDate: d, BRate: 1 + 0.0001*float64(i), DRate: 1 + 0.0003*float64(i)},
		)
		if i%7 != 3 {
			out = append(out, domain.RateIndex{PoolID: w.PoolB, AssetAddress: w.USDC, RateDate: d, BRate: 1.01 + 0.00015*float64(i), DRate: 1.02 + 0.0003*float64(i)})
		}
	}
	return out
}

// prices are daily for USDC and XLM, weekly for the LP token and every ten
// days for the emission token. The LP series stops a week before the anchor.
func prices(w Wallet) []domain.PriceObservation {
	var out []domain.PriceObservation
	for i := 0; i < HistoryDays; i++ {
		d := w.FirstDay.AddDays(i)
		out = append(out,
			domain.PriceObservation{TokenAddress: w.USDC, PriceDate: d, USDPrice: 1.0},
			domain.PriceObservation{TokenAddress: w.XLM, PriceDate: d, USDPrice: 0.10 + 0.0005*float64(i)},
		)
		if i%7 == 0 && i < HistoryDays-7 {
			out = append(out, domain.PriceObservation{TokenAddress: w.LPToken, PriceDate: d, USDPrice: 2.0 + 0.01*float64(i)})
		}
		if i%10 == 0 {
			out = append(out, domain.PriceObservation{TokenAddress: w.Emission, PriceDate: d, USDPrice: 0.05 + 0.001*float64(i)})
		}
	}
	// A late duplicate; the earlier row stays authoritative.
	out = append(out, domain.PriceObservation{TokenAddress: w.USDC, PriceDate: w.FirstDay, USDPrice: 1.01})
	return out
}

func events(w Wallet) []*domain.Event {
	at := func(day, hour int) time.Time {
		return w.FirstDay.AddDays(day).UTCMidnight().Add(time.Duration(hour) * time.Hour)
	}
	unlock := func(day int) *time.Time {
		t := at(day, 10).Add(17 * 24 * time.Hour)
		return &t
	}
	pool := func(day int, action domain.ActionType, pool, asset string, tokens float64) *domain.Event {
		return &domain.Event{
			Source: domain.SourcePool, ActionType: action, UserAddress: w.User,
			PoolID: pool, AssetAddress: asset, AmountTokens: domain.Float(tokens),
			LedgerClosedAt: at(day, 10), TxHash: idhash.ComputeTxHash("demo", day, string(action), w.User),
		}
	}
	bs := func(day int, user string, action domain.ActionType, shares, lp float64, exp *time.Time) *domain.Event {
		e := &domain.Event{
			Source: domain.SourceBackstop, ActionType: action, UserAddress: user,
			PoolID: w.Backstop, Shares: domain.Float(shares), Q4WExp: exp,
			LedgerClosedAt: at(day, 11), TxHash: idhash.ComputeTxHash("demo", day, string(action), user),
		}
		if lp > 0 {
			e.LPTokens = domain.Float(lp)
		}
		return e
	}
	claim := func(day int, source domain.EventSource, poolID string, amount float64) *domain.Event {
		return &domain.Event{
			Source: source, ActionType: domain.ActionClaim, UserAddress: w.User,
			PoolID: poolID, AmountTokens: domain.Float(amount),
			LedgerClosedAt: at(day, 14), TxHash: idhash.ComputeTxHash("demo", day, "claim_"+string(source), w.User),
		}
	}

	return []*domain.Event{
		pool(0, domain.ActionSupply, w.PoolA, w.USDC, 1000),
		pool(2, domain.ActionSupplyCollateral, w.PoolA, w.XLM, 5000),
		pool(5, domain.ActionBorrow, w.PoolA, w.USDC, 200),
		bs(10, w.User, domain.ActionDeposit, 380, 400, nil),
		bs(12, w.Other, domain.ActionDeposit, 950, 1000, nil),
		pool(20, domain.ActionWithdraw, w.PoolA, w.USDC, 300),
		bs(25, w.User, domain.ActionQueueWithdrawal, 100, 0, unlock(25)),
		bs(28, w.User, domain.ActionDequeueWithdrawal, 40, 0, unlock(25)),
		pool(30, domain.ActionSupply, w.PoolB, w.USDC, 500),
		pool(40, domain.ActionRepay, w.PoolA, w.USDC, 100),
		claim(45, domain.SourcePool, w.PoolA, 120),
		bs(50, w.User, domain.ActionQueueWithdrawal, 60, 0, unlock(50)),
		bs(60, w.User, domain.ActionWithdraw, 60, 63, nil),
		claim(70, domain.SourceBackstop, w.Backstop, 30),
		bs(HistoryDays-10, w.User, domain.ActionQueueWithdrawal, 50, 0, unlock(HistoryDays-10)),
		pool(HistoryDays-2, domain.ActionSupply, w.PoolA, w.USDC, 50),
	}
}

