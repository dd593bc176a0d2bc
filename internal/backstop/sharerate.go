package backstop

import "blend-portfolio/internal/domain"

// DefaultShareRate is used for pools with no net shares.
const DefaultShareRate = 1.0

type poolTotals struct {
	lp     float64
	shares float64
}

// ShareRates converts backstop shares to LP tokens per pool.
type ShareRates struct {
	totals   map[string]poolTotals
	fallback float64
	eps      float64
}

// ComputeShareRates accumulates whole-pool LP and share totals: deposit and
// donate add, withdraw and draw subtract. Events from other sources are ignored.
func ComputeShareRates(events []domain.Event, fallback, eps float64) ShareRates {
	if fallback <= 0 {
		fallback = DefaultShareRate
	}
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	totals := make(map[string]poolTotals)
	for i := range events {
		e := &events[i]
		if e.Source != domain.SourceBackstop || !e.HasAction(domain.ShareSupplyActions...) {
			continue
		}
		t := totals[e.PoolID]
		switch e.ActionType {
		case domain.ActionDeposit, domain.ActionDonate:
			t.lp += abs(e.LPAmount())
			t.shares += abs(e.ShareAmount())
		case domain.ActionWithdraw, domain.ActionDraw:
			t.lp -= abs(e.LPAmount())
			t.shares -= abs(e.ShareAmount())
		}
		totals[e.PoolID] = t
	}
	return ShareRates{totals: totals, fallback: fallback, eps: eps}
}

// Rate returns LP tokens per share for pool, or the fallback when the pool
// has no net shares or a non-positive LP balance.
func (r ShareRates) Rate(pool string) float64 {
	t, ok := r.totals[pool]
	if !ok || t.shares <= r.eps || t.lp <= 0 {
		return r.fallbackRate()
	}
	return t.lp / t.shares
}

func (r ShareRates) fallbackRate() float64 {
	if r.fallback <= 0 {
		return DefaultShareRate
	}
	return r.fallback
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
