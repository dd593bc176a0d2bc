// Package costbasis implements average-cost accounting over deposit and
// withdrawal flows, plus the cash-flow (realized) yield view.
package costbasis

import (
	"math"

	"github.com/shopspring/decimal"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
)

// Kind is the direction of a flow.
type Kind int

const (
	Deposit Kind = iota + 1
	Withdrawal
)

func (k Kind) String() string {
	switch k {
	case Deposit:
		return "deposit"
	case Withdrawal:
		return "withdrawal"
	default:
		return "unknown"
	}
}

// Flow is one priced deposit or withdrawal. Tokens is taken as an absolute amount.
type Flow struct {
	Kind   Kind
	Date   calendar.Date
	Tokens float64
	Price  domain.ResolvedPrice
}

// Position accumulates flows for one (pool, asset). The zero value is empty.
// Accumulation is order-independent: withdrawals are costed at the average
// deposit price over the whole history, never at their own price.
type Position struct {
	depositedTokens decimal.Decimal
	withdrawnTokens decimal.Decimal
	depositedUSD    decimal.Decimal
	withdrawnUSD    decimal.Decimal
	firstDeposit    calendar.Date
	flows           int
}

// Add records f.
func (p *Position) Add(f Flow) {
	tokens := dec(math.Abs(f.Tokens))
	value := tokens.Mul(dec(f.Price.Price))
	switch f.Kind {
	case Deposit:
		p.depositedTokens = p.depositedTokens.Add(tokens)
		p.depositedUSD = p.depositedUSD.Add(value)
		if p.firstDeposit.IsZero() || f.Date.Before(p.firstDeposit) {
			p.firstDeposit = f.Date
		}
	case Withdrawal:
		p.withdrawnTokens = p.withdrawnTokens.Add(tokens)
		p.withdrawnUSD = p.withdrawnUSD.Add(value)
	default:
		return
	}
	p.flows++
}

// Empty reports whether no flow has been recorded.
func (p *Position) Empty() bool { return p.flows == 0 }

// WeightedAvgPrice is total deposited USD over total deposited tokens, or
// livePrice when nothing was deposited.
func (p *Position) WeightedAvgPrice(livePrice float64) decimal.Decimal {
	if !p.depositedTokens.IsPositive() {
		return dec(livePrice)
	}
	return p.depositedUSD.Div(p.depositedTokens)
}

// CostBasis is deposited USD less withdrawn tokens at the weighted average price.
func (p *Position) CostBasis(livePrice float64) decimal.Decimal {
	removed := p.withdrawnTokens.Mul(p.WeightedAvgPrice(livePrice))
	return p.depositedUSD.Sub(removed)
}

// NetTokens is deposited tokens less withdrawn tokens.
func (p *Position) NetTokens() decimal.Decimal { return p.depositedTokens.Sub(p.withdrawnTokens) }

// RealizedPnl is withdrawn USD less deposited USD, both at flow-time prices.
func (p *Position) RealizedPnl() decimal.Decimal { return p.withdrawnUSD.Sub(p.depositedUSD) }

// DepositedUSD is the sum of deposit values.
func (p *Position) DepositedUSD() decimal.Decimal { return p.depositedUSD }

// WithdrawnUSD is the sum of withdrawal values.
func (p *Position) WithdrawnUSD() decimal.Decimal { return p.withdrawnUSD }

// FirstDeposit is the earliest deposit date, zero if none.
func (p *Position) FirstDeposit() calendar.Date { return p.firstDeposit }

// Record renders the position as of asOf.
func (p *Position) Record(poolID, asset string, livePrice float64, asOf calendar.Date) domain.CostBasisRecord {
	realized := p.RealizedPnl()
	roi := ROI(realized, p.depositedUSD)
	return domain.CostBasisRecord{
		PoolID:                  poolID,
		AssetAddress:            asset,
		CostBasis:               p.CostBasis(livePrice).InexactFloat64(),
		WeightedAvgDepositPrice: p.WeightedAvgPrice(livePrice).InexactFloat64(),
		NetTokens:               p.NetTokens().InexactFloat64(),
		DepositedTokens:         p.depositedTokens.InexactFloat64(),
		WithdrawnTokens:         p.withdrawnTokens.InexactFloat64(),
		DepositedUSD:            p.depositedUSD.InexactFloat64(),
		WithdrawnUSD:            p.withdrawnUSD.InexactFloat64(),
		RealizedPnl:             realized.InexactFloat64(),
		ROI:                     roi,
		AnnualizedROI:           Annualize(roi, DaysActive(p.firstDeposit, asOf)),
		FirstDeposit:            p.firstDeposit,
	}
}

// dec converts v, mapping NaN and infinities to zero.
func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
