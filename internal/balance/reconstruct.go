// Package balance replays pool position events into daily per-pool balance snapshots.
package balance

import (
	"math"
	"sort"
	"time"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/rates"
)

// DefaultNoiseThreshold is the token amount below which a day-over-day
// movement is treated as accrual drift rather than a deposit or withdrawal.
const DefaultNoiseThreshold = 0.01

// Input is everything one reconstruction needs. Events must hold the
// complete history of the (user, asset) up to the end of Range.
type Input struct {
	UserAddress  string
	AssetAddress string
	Timezone     string
	Location     *time.Location
	Range        calendar.Range

	Events []domain.Event
	Rates  map[string]*rates.Resolver // by pool

	// FirstEvents holds the store-wide first event per pool. A pool whose
	// earliest event in Events is later than this was handed a partial
	// window and gets no synthetic zero day.
	FirstEvents map[string]time.Time

	// Today and Live override today's slot with ledger-read balances.
	Today calendar.Date
	Live  map[string]domain.LiveBalance
}

// units are the running b/dToken counters of one pool.
type units struct {
	supply, collateral, debt float64
}

type dayState struct {
	date      calendar.Date
	units     units
	rates     domain.RatePair
	live      bool
	synthetic bool
}

// Reconstructor turns events into balance histories. It holds no state
// between calls.
type Reconstructor struct {
	noise float64
}

// New returns a reconstructor. A non-positive threshold uses DefaultNoiseThreshold.
func New(noiseThreshold float64) *Reconstructor {
	if noiseThreshold <= 0 {
		noiseThreshold = DefaultNoiseThreshold
	}
	return &Reconstructor{noise: noiseThreshold}
}

// Reconstruct returns one snapshot per pool per day of in.Range, ordered by
// date then pool. Pools with no events produce nothing.
func (r *Reconstructor) Reconstruct(in Input) domain.BalanceHistory {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	out := domain.BalanceHistory{
		UserAddress:     in.UserAddress,
		AssetAddress:    in.AssetAddress,
		Timezone:        in.Timezone,
		Snapshots:       []domain.BalanceSnapshot{},
		PositionChanges: []domain.PositionChange{},
		Earnings:        []domain.EarningsStats{},
	}

	byPool := groupByPool(in.Events)
	pools := make([]string, 0, len(byPool))
	for pool := range byPool {
		pools = append(pools, pool)
	}
	sort.Strings(pools)

	var first time.Time
	for _, pool := range pools {
		events := byPool[pool]
		if first.IsZero() || events[0].LedgerClosedAt.Before(first) {
			first = events[0].LedgerClosedAt
		}

		resolver := in.Rates[pool]
		if resolver == nil {
			resolver = rates.NewResolver(nil)
		}

		days := r.replay(pool, events, resolver, in, loc)
		if len(days) == 0 {
			continue
		}

		out.Snapshots = append(out.Snapshots, snapshots(pool, in.AssetAddress, days)...)
		out.PositionChanges = append(out.PositionChanges, r.positionChanges(pool, days)...)
		out.Earnings = append(out.Earnings, earnings(pool, days, resolver, in.Range.To, loc))
		if w, ok := identityWarning(pool, in.AssetAddress, days); ok {
			out.Warnings = append(out.Warnings, w)
		}
	}
	if !first.IsZero() {
		out.FirstEventDate = calendar.DateIn(first, loc)
	}

	sort.SliceStable(out.Snapshots, func(i, j int) bool {
		a, b := out.Snapshots[i], out.Snapshots[j]
		if c := a.Date.Compare(b.Date); c != 0 {
			return c < 0
		}
		return a.PoolID < b.PoolID
	})
	sort.SliceStable(out.PositionChanges, func(i, j int) bool {
		return out.PositionChanges[i].Date.Before(out.PositionChanges[j].Date)
	})
	return out
}

func groupByPool(events []domain.Event) map[string][]domain.Event {
	byPool := make(map[string][]domain.Event)
	for _, e := range events {
		if e.Source != domain.SourcePool || !e.HasAction(domain.PositionActions...) {
			continue
		}
		byPool[e.PoolID] = append(byPool[e.PoolID], e)
	}
	for _, events := range byPool {
		sort.SliceStable(events, func(i, j int) bool {
			if !events[i].LedgerClosedAt.Equal(events[j].LedgerClosedAt) {
				return events[i].LedgerClosedAt.Before(events[j].LedgerClosedAt)
			}
			return events[i].ID < events[j].ID
		})
	}
	return byPool
}

// replay walks the pool's events and emits one dayState per output day.
func (r *Reconstructor) replay(pool string, events []domain.Event, resolver *rates.Resolver, in Input, loc *time.Location) []dayState {
	firstDay := calendar.DateIn(events[0].LedgerClosedAt, loc)

	synthetic := false
	if global, ok := in.FirstEvents[pool]; ok && global.Equal(events[0].LedgerClosedAt) {
		synthetic = true
	}

	start := firstDay
	if synthetic {
		start = firstDay.AddDays(-1)
	}
	if start.Before(in.Range.From) {
		start = in.Range.From
	}
	if start.After(in.Range.To) {
		return nil
	}

	var (
		u    units
		next int
		out  = make([]dayState, 0, start.DaysUntil(in.Range.To)+1)
	)
	for d := start; !d.After(in.Range.To); d = d.AddDays(1) {
		for next < len(events) && !calendar.DateIn(events[next].LedgerClosedAt, loc).After(d) {
			u = apply(u, &events[next], resolver, loc)
			next++
		}

		st := dayState{date: d, units: u, rates: resolver.At(d, loc)}
		if synthetic && d.Equal(firstDay.AddDays(-1)) {
			st.synthetic = true
		}
		if live, ok := in.Live[pool]; ok && !in.Today.IsZero() && d.Equal(in.Today) {
			st.units = liveUnits(live, st.rates)
			st.live = true
		}
		out = append(out, st)
	}
	return out
}

// apply adds one event to the counters. Without an explicit unit amount the
// token amount is converted at the rate in force on the event's local day.
func apply(u units, e *domain.Event, resolver *rates.Resolver, loc *time.Location) units {
	amount := func(rate float64) float64 {
		if e.Units != nil {
			return math.Abs(*e.Units)
		}
		if rate <= 0 {
			return 0
		}
		return math.Abs(e.Tokens()) / rate
	}
	pair := resolver.At(calendar.DateIn(e.LedgerClosedAt, loc), loc)

	switch e.ActionType {
	case domain.ActionSupply:
		u.supply += amount(pair.BRate)
	case domain.ActionWithdraw:
		u.supply = nonNegative(u.supply - amount(pair.BRate))
	case domain.ActionSupplyCollateral:
		u.collateral += amount(pair.BRate)
	case domain.ActionWithdrawCollateral:
		u.collateral = nonNegative(u.collateral - amount(pair.BRate))
	case domain.ActionBorrow:
		u.debt += amount(pair.DRate)
	case domain.ActionRepay:
		u.debt = nonNegative(u.debt - amount(pair.DRate))
	}
	return u
}

func liveUnits(live domain.LiveBalance, pair domain.RatePair) units {
	div := func(tokens, rate float64) float64 {
		if rate <= 0 {
			return 0
		}
		return tokens / rate
	}
	return units{
		supply:     div(live.SupplyTokens, pair.BRate),
		collateral: div(live.CollateralTokens, pair.BRate),
		debt:       div(live.LiabilitiesTokens, pair.DRate),
	}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func snapshots(pool, asset string, days []dayState) []domain.BalanceSnapshot {
	out := make([]domain.BalanceSnapshot, len(days))
	for i, d := range days {
		supply := d.units.supply * d.rates.BRate
		collateral := d.units.collateral * d.rates.BRate
		debt := d.units.debt * d.rates.DRate
		out[i] = domain.BalanceSnapshot{
			PoolID:             pool,
			AssetAddress:       asset,
			Date:               d.date,
			SupplyBTokens:      d.units.supply,
			CollateralBTokens:  d.units.collateral,
			LiabilitiesDTokens: d.units.debt,
			BRate:              d.rates.BRate,
			DRate:              d.rates.DRate,
			SupplyTokens:       supply,
			CollateralTokens:   collateral,
			LiabilitiesTokens:  debt,
			NetBalance:         supply + collateral - debt,
			RateProvenance:     d.rates.Provenance,
			Live:               d.live,
			Synthetic:          d.synthetic,
		}
	}
	return out
}

// positionChanges flags days whose unit counters moved by more than the
// noise threshold, valued at that day's rates.
func (r *Reconstructor) positionChanges(pool string, days []dayState) []domain.PositionChange {
	var out []domain.PositionChange
	for i := 1; i < len(days); i++ {
		prev, cur := days[i-1], days[i]
		c := domain.PositionChange{
			PoolID:          pool,
			Date:            cur.date,
			SupplyDelta:     (cur.units.supply - prev.units.supply) * cur.rates.BRate,
			CollateralDelta: (cur.units.collateral - prev.units.collateral) * cur.rates.BRate,
			DebtDelta:       (cur.units.debt - prev.units.debt) * cur.rates.DRate,
		}
		if math.Abs(c.SupplyDelta) > r.noise || math.Abs(c.CollateralDelta) > r.noise || math.Abs(c.DebtDelta) > r.noise {
			out = append(out, c)
		}
	}
	return out
}

// earnings sums accrual on the previous day's counters, which leaves
// deposits and withdrawals out of TotalInterest. RawDeltaSum keeps the plain
// day-over-day sum for comparison.
func earnings(pool string, days []dayState, resolver *rates.Resolver, asOf calendar.Date, loc *time.Location) domain.EarningsStats {
	s := domain.EarningsStats{PoolID: pool}
	for i := 1; i < len(days); i++ {
		prev, cur := days[i-1], days[i]
		s.RawDeltaSum += net(cur) - net(prev)
		s.TotalInterest += (prev.units.supply+prev.units.collateral)*(cur.rates.BRate-prev.rates.BRate) -
			prev.units.debt*(cur.rates.DRate-prev.rates.DRate)
	}
	s.CurrentSupplyAPY, s.CurrentBorrowAPY = resolver.CurrentAPY(asOf, loc)
	return s
}

func net(d dayState) float64 {
	return (d.units.supply+d.units.collateral)*d.rates.BRate - d.units.debt*d.rates.DRate
}

// identityWarning reports the first day a held position had no rate row.
func identityWarning(pool, asset string, days []dayState) (domain.DataGapWarning, bool) {
	for _, d := range days {
		held := d.units.supply+d.units.collateral+d.units.debt > 0
		if held && d.rates.Provenance == domain.ProvenanceIdentity {
			return domain.DataGapWarning{
				Kind:   domain.ProvenanceIdentity,
				Key:    domain.AssetKey(pool, asset),
				Date:   d.date,
				Detail: "no rate index yet, balances shown at 1.0",
			}, true
		}
	}
	return domain.DataGapWarning{}, false
}
