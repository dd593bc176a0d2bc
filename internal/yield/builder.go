// Package yield composes realized and unrealized P&L across lending pools,
// backstop deposits and emission claims.
package yield

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/costbasis"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/pricing"
)

// Failure keys for sources that cannot be priced at all.
const (
	FailureBackstop  = "backstop"
	FailureEmissions = "emissions"
)

// Tokens names the tokens that price backstop and emission flows.
type Tokens struct {
	BackstopLP string
	Emission   string
}

// Input is everything Build needs.
type Input struct {
	UserAddress string
	Location    *time.Location
	AsOf        calendar.Date
	Events      []domain.Event
	Prices      *pricing.Resolver
	Live        map[string]float64
	Tokens      Tokens

	// Current holdings, optional. PoolBalances is keyed by AssetKey and
	// holds underlying tokens; BackstopBalances is keyed by pool and holds LP tokens.
	PoolBalances     map[string]float64
	BackstopBalances map[string]float64
}

type bucket struct {
	pos     map[string]*costbasis.Position
	claimed decimal.Decimal
}

func newBucket() *bucket { return &bucket{pos: make(map[string]*costbasis.Position)} }

func (b *bucket) position(key string) *costbasis.Position {
	p, ok := b.pos[key]
	if !ok {
		p = &costbasis.Position{}
		b.pos[key] = p
	}
	return p
}

func (b *bucket) deposited() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range b.pos {
		sum = sum.Add(p.DepositedUSD())
	}
	return sum
}

func (b *bucket) withdrawn() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range b.pos {
		sum = sum.Add(p.WithdrawnUSD())
	}
	return sum
}

type builder struct {
	in       Input
	loc      *time.Location
	prices   *pricing.Resolver
	pools    *bucket
	backstop *bucket
	emission *bucket
	txs      []domain.Transaction
	failures map[string]string
	gaps     map[domain.PriceKey]domain.ResolvedPrice
}

// Build produces the yield report. Failures in one source or key leave the
// others intact.
func Build(in Input) domain.YieldReport {
	b := &builder{
		in:       in,
		loc:      in.Location,
		prices:   in.Prices,
		pools:    newBucket(),
		backstop: newBucket(),
		emission: newBucket(),
		failures: make(map[string]string),
		gaps:     make(map[domain.PriceKey]domain.ResolvedPrice),
	}
	if b.loc == nil {
		b.loc = time.UTC
	}
	if b.prices == nil {
		b.prices = pricing.NewResolver(nil)
	}

	events := make([]domain.Event, len(in.Events))
	copy(events, in.Events)
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].LedgerClosedAt.Equal(events[j].LedgerClosedAt) {
			return events[i].LedgerClosedAt.Before(events[j].LedgerClosedAt)
		}
		return events[i].ID < events[j].ID
	})
	for i := range events {
		b.add(&events[i])
	}
	return b.report()
}

func (b *builder) add(e *domain.Event) {
	day := calendar.DateIn(e.LedgerClosedAt, b.loc)

	if e.ActionType == domain.ActionClaim {
		if b.in.Tokens.Emission == "" {
			b.failures[FailureEmissions] = "no emission token configured"
			return
		}
		price := b.price(costbasis.Withdrawal, b.in.Tokens.Emission, day)
		amount := abs(e.Tokens())
		b.emission.claimed = b.emission.claimed.Add(value(amount, price.Price))
		b.record(e, day, b.in.Tokens.Emission, amount, price)
		return
	}

	switch e.Source {
	case domain.SourcePool:
		kind, ok := costbasis.FlowKind(e)
		if !ok {
			return
		}
		key := domain.AssetKey(e.PoolID, e.AssetAddress)
		if _, failed := b.failures[key]; failed {
			return
		}
		if err := firstErr(domain.ValidatePool(e.PoolID), domain.ValidateAsset(e.AssetAddress)); err != nil {
			b.failures[key] = err.Error()
			delete(b.pools.pos, key)
			return
		}
		price := b.price(kind, e.AssetAddress, day)
		b.pools.position(key).Add(costbasis.Flow{Kind: kind, Date: day, Tokens: e.Tokens(), Price: price})
		b.record(e, day, e.AssetAddress, abs(e.Tokens()), price)

	case domain.SourceBackstop:
		var kind costbasis.Kind
		switch e.ActionType {
		case domain.ActionDeposit:
			kind = costbasis.Deposit
		case domain.ActionWithdraw:
			kind = costbasis.Withdrawal
		default:
			return
		}
		if b.in.Tokens.BackstopLP == "" {
			b.failures[FailureBackstop] = "no backstop LP token configured"
			return
		}
		price := b.price(kind, b.in.Tokens.BackstopLP, day)
		b.backstop.position(e.PoolID).Add(costbasis.Flow{Kind: kind, Date: day, Tokens: e.LPAmount(), Price: price})
		b.record(e, day, b.in.Tokens.BackstopLP, abs(e.LPAmount()), price)
	}
}

func (b *builder) price(kind costbasis.Kind, token string, day calendar.Date) domain.ResolvedPrice {
	key := domain.PriceKey{Token: token, Date: day}
	p := costbasis.PriceFlow(kind, key, b.in.AsOf, b.prices, b.in.Live)
	if p.Source.IsGap() {
		b.gaps[key] = p
	}
	return p
}

func (b *builder) record(e *domain.Event, day calendar.Date, token string, amount float64, price domain.ResolvedPrice) {
	b.txs = append(b.txs, domain.Transaction{
		Time:        e.LedgerClosedAt.UTC(),
		Date:        day,
		Source:      e.Source,
		ActionType:  e.ActionType,
		PoolID:      e.PoolID,
		Token:       token,
		Amount:      amount,
		PriceUSD:    price.Price,
		ValueUSD:    value(amount, price.Price).InexactFloat64(),
		PriceSource: price.Source,
		TxHash:      e.TxHash,
	})
}

func (b *builder) report() domain.YieldReport {
	pools := b.sourceYield(b.pools, assetOf, b.in.PoolBalances)
	backstop := b.sourceYield(b.backstop, func(string) string { return b.in.Tokens.BackstopLP }, b.in.BackstopBalances)
	claimed := b.emission.claimed.InexactFloat64()
	emissions := domain.SourceYield{Claimed: claimed, RealizedPnl: claimed}

	deposited := b.pools.deposited().Add(b.backstop.deposited())
	withdrawn := b.pools.withdrawn().Add(b.backstop.withdrawn())
	realized := withdrawn.Sub(deposited).Add(b.emission.claimed)

	first := b.firstDeposit()
	days := costbasis.DaysActive(first, b.in.AsOf)
	roi := costbasis.ROI(realized, deposited)

	r := domain.YieldReport{
		UserAddress:      b.in.UserAddress,
		AsOf:             b.in.AsOf,
		Timezone:         b.loc.String(),
		TotalDeposited:   deposited.InexactFloat64(),
		TotalWithdrawn:   withdrawn.InexactFloat64(),
		RealizedPnl:      realized.InexactFloat64(),
		BySource:         domain.YieldBySource{Pools: pools, Backstop: backstop, Emissions: emissions},
		ROI:              roi,
		AnnualizedROI:    costbasis.Annualize(roi, days),
		DaysActive:       days,
		CumulativeSeries: b.cumulative(),
		Transactions:     b.txs,
		Warnings:         pricing.Warnings(b.gaps),
	}
	if r.Transactions == nil {
		r.Transactions = []domain.Transaction{}
	}
	if len(b.failures) > 0 {
		r.Failures = b.failures
	}
	return r
}

// sourceYield sums a bucket. token maps a bucket key to the token its
// balances are priced in; balances holds current amounts per key.
func (b *builder) sourceYield(bk *bucket, token func(key string) string, balances map[string]float64) domain.SourceYield {
	var dep, wd, cost, cur decimal.Decimal
	known := false
	for key, p := range bk.pos {
		live := b.in.Live[token(key)]
		dep = dep.Add(p.DepositedUSD())
		wd = wd.Add(p.WithdrawnUSD())
		cost = cost.Add(p.CostBasis(live))
		if bal, ok := balances[key]; ok {
			cur = cur.Add(value(bal, b.currentPrice(token(key))))
			known = true
		}
	}
	sy := domain.SourceYield{
		Deposited:   dep.InexactFloat64(),
		Withdrawn:   wd.InexactFloat64(),
		RealizedPnl: wd.Sub(dep).InexactFloat64(),
		CostBasis:   cost.InexactFloat64(),
	}
	if known {
		cv := cur.InexactFloat64()
		un := cur.Sub(cost).InexactFloat64()
		sy.CurrentValue, sy.Unrealized = &cv, &un
	}
	return sy
}

// currentPrice is the live price, else the latest historical price as of AsOf.
func (b *builder) currentPrice(token string) float64 {
	if p, ok := b.in.Live[token]; ok {
		return p
	}
	key := domain.PriceKey{Token: token, Date: b.in.AsOf}
	p := b.prices.Resolve(key, nil)
	if p.Source.IsGap() {
		b.gaps[key] = p
	}
	return p.Price
}

func (b *builder) firstDeposit() calendar.Date {
	var first calendar.Date
	for _, bk := range []*bucket{b.pools, b.backstop} {
		for _, p := range bk.pos {
			if d := p.FirstDeposit(); !d.IsZero() && (first.IsZero() || d.Before(first)) {
				first = d
			}
		}
	}
	return first
}

// cumulative emits one running-total point per day from the first
// transaction through AsOf.
func (b *builder) cumulative() []domain.CumulativePoint {
	if len(b.txs) == 0 {
		return []domain.CumulativePoint{}
	}
	type flows struct{ dep, wd, claim decimal.Decimal }
	byDay := make(map[calendar.Date]*flows)
	start := b.txs[0].Date
	for _, tx := range b.txs {
		f, ok := byDay[tx.Date]
		if !ok {
			f = &flows{}
			byDay[tx.Date] = f
		}
		if tx.Date.Before(start) {
			start = tx.Date
		}
		v := value(tx.Amount, tx.PriceUSD)
		switch {
		case tx.ActionType == domain.ActionClaim:
			f.claim = f.claim.Add(v)
		case tx.ActionType == domain.ActionDeposit || tx.ActionType == domain.ActionSupply || tx.ActionType == domain.ActionSupplyCollateral:
			f.dep = f.dep.Add(v)
		default:
			f.wd = f.wd.Add(v)
		}
	}

	end := b.in.AsOf
	if end.Before(start) {
		end = start
	}
	var dep, wd, claim decimal.Decimal
	var out []domain.CumulativePoint
	for d := start; !d.After(end); d = d.AddDays(1) {
		if f, ok := byDay[d]; ok {
			dep, wd, claim = dep.Add(f.dep), wd.Add(f.wd), claim.Add(f.claim)
		}
		out = append(out, domain.CumulativePoint{
			Date:        d,
			Deposited:   dep.InexactFloat64(),
			Withdrawn:   wd.InexactFloat64(),
			Claimed:     claim.InexactFloat64(),
			RealizedPnl: wd.Sub(dep).Add(claim).InexactFloat64(),
		})
	}
	return out
}

func value(amount, price float64) decimal.Decimal {
	return dec(amount).Mul(dec(price))
}

func dec(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// assetOf extracts the asset from an AssetKey.
func assetOf(key string) string {
	if i := strings.LastIndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
