package balance

import (
	"math"
	"testing"
	"time"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/rates"
)

const eps = 1e-9

func day(s string) calendar.Date { return calendar.MustParseDate(s) }

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ev(id int64, pool string, action domain.ActionType, when string, tokens float64) domain.Event {
	return domain.Event{
		ID:             id,
		Source:         domain.SourcePool,
		ActionType:     action,
		UserAddress:    "user",
		PoolID:         pool,
		AssetAddress:   "usdc",
		AmountTokens:   domain.Float(tokens),
		LedgerClosedAt: at(when),
	}
}

func scenarioResolver() *rates.Resolver {
	return rates.NewResolver([]domain.RateIndex{
		{RateDate: day("2024-01-01"), BRate: 1.00, DRate: 1.00},
		{RateDate: day("2024-01-03"), BRate: 1.02, DRate: 1.05},
	})
}

func baseInput(events ...domain.Event) Input {
	in := Input{
		UserAddress:  "user",
		AssetAddress: "usdc",
		Timezone:     "UTC",
		Location:     time.UTC,
		Range:        calendar.Range{From: day("2023-12-30"), To: day("2024-01-04")},
		Events:       events,
		Rates:        map[string]*rates.Resolver{"p1": scenarioResolver(), "p2": scenarioResolver()},
		FirstEvents:  map[string]time.Time{},
	}
	for _, e := range events {
		if f, ok := in.FirstEvents[e.PoolID]; !ok || e.LedgerClosedAt.Before(f) {
			in.FirstEvents[e.PoolID] = e.LedgerClosedAt
		}
	}
	return in
}

func nets(h domain.BalanceHistory) []float64 {
	out := make([]float64, len(h.Snapshots))
	for i, s := range h.Snapshots {
		out[i] = s.NetBalance
	}
	return out
}

func assertNets(t *testing.T, h domain.BalanceHistory, want []float64) {
	t.Helper()
	got := nets(h)
	if len(got) != len(want) {
		t.Fatalf("expected %d snapshots, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("snapshot %d (%s): net = %f, want %f", i, h.Snapshots[i].Date, got[i], want[i])
		}
	}
}

func TestReconstruct_EventFreeIsEmpty(t *testing.T) {
	h := New(0).Reconstruct(baseInput())
	if len(h.Snapshots) != 0 {
		t.Errorf("expected no snapshots, got %d", len(h.Snapshots))
	}
	if !h.FirstEventDate.IsZero() {
		t.Errorf("expected zero first event date, got %s", h.FirstEventDate)
	}
}

func TestReconstruct_SyntheticZeroDayAndForwardFill(t *testing.T) {
	h := New(0).Reconstruct(baseInput(ev(1, "p1", domain.ActionSupply, "2024-01-01T12:00:00Z", 100)))

	// 12-31 synthetic, then 01-01..01-04; 12-30 precedes the synthetic day.
	assertNets(t, h, []float64{0, 100, 100, 102, 102})
	if !h.Snapshots[0].Synthetic || !h.Snapshots[0].Date.Equal(day("2023-12-31")) {
		t.Errorf("expected synthetic zero day on 2023-12-31, got %+v", h.Snapshots[0])
	}
	if h.Snapshots[1].Synthetic {
		t.Error("only one synthetic day expected")
	}
	if !h.FirstEventDate.Equal(day("2024-01-01")) {
		t.Errorf("FirstEventDate = %s", h.FirstEventDate)
	}
	if h.Snapshots[2].RateProvenance != domain.ProvenanceForwardFill {
		t.Errorf("expected forward-filled rate on 01-02, got %s", h.Snapshots[2].RateProvenance)
	}
}

func TestReconstruct_NoSyntheticDayForPartialWindow(t *testing.T) {
	in := baseInput(ev(5, "p1", domain.ActionSupply, "2024-01-01T12:00:00Z", 100))
	in.FirstEvents["p1"] = at("2023-06-01T00:00:00Z") // earlier history exists elsewhere

	h := New(0).Reconstruct(in)
	assertNets(t, h, []float64{100, 100, 102, 102})
	for _, s := range h.Snapshots {
		if s.Synthetic {
			t.Errorf("unexpected synthetic day %s", s.Date)
		}
	}
}

func TestReconstruct_OneSnapshotPerDayNoGaps(t *testing.T) {
	in := baseInput(
		ev(1, "p1", domain.ActionSupply, "2023-11-01T00:00:00Z", 10),
		ev(2, "p1", domain.ActionSupply, "2024-01-02T00:00:00Z", 10),
	)
	in.Range = calendar.Range{From: day("2023-12-25"), To: day("2024-01-04")}

	h := New(0).Reconstruct(in)
	if len(h.Snapshots) != 11 {
		t.Fatalf("expected 11 days, got %d", len(h.Snapshots))
	}
	for i := 1; i < len(h.Snapshots); i++ {
		if !h.Snapshots[i].Date.Equal(h.Snapshots[i-1].Date.AddDays(1)) {
			t.Errorf("gap or disorder between %s and %s", h.Snapshots[i-1].Date, h.Snapshots[i].Date)
		}
	}
	// Counters from before the range are carried in.
	if h.Snapshots[0].SupplyBTokens != 10 {
		t.Errorf("expected carried-in 10 bTokens, got %f", h.Snapshots[0].SupplyBTokens)
	}
}

func TestReconstruct_NetBalanceInvariant(t *testing.T) {
	in := baseInput(
		ev(1, "p1", domain.ActionSupplyCollateral, "2024-01-01T01:00:00Z", 500),
		ev(2, "p1", domain.ActionBorrow, "2024-01-01T02:00:00Z", 200),
		ev(3, "p1", domain.ActionSupply, "2024-01-03T02:00:00Z", 51),
		ev(4, "p1", domain.ActionRepay, "2024-01-04T02:00:00Z", 105),
	)
	h := New(0).Reconstruct(in)

	for _, s := range h.Snapshots {
		want := (s.SupplyBTokens+s.CollateralBTokens)*s.BRate - s.LiabilitiesDTokens*s.DRate
		if math.Abs(s.NetBalance-want) > eps {
			t.Errorf("%s: net %f violates invariant %f", s.Date, s.NetBalance, want)
		}
	}

	last := h.Snapshots[len(h.Snapshots)-1]
	if math.Abs(last.LiabilitiesDTokens-100) > eps {
		t.Errorf("expected 100 dTokens after repaying 105 at 1.05, got %f", last.LiabilitiesDTokens)
	}
	if math.Abs(last.SupplyBTokens-50) > eps {
		t.Errorf("expected 51/1.02 = 50 bTokens, got %f", last.SupplyBTokens)
	}
}

func TestReconstruct_ExplicitUnitsWin(t *testing.T) {
	e := ev(1, "p1", domain.ActionSupply, "2024-01-03T12:00:00Z", 100)
	e.Units = domain.Float(-97.5) // sign is ignored
	h := New(0).Reconstruct(baseInput(e))

	last := h.Snapshots[len(h.Snapshots)-1]
	if last.SupplyBTokens != 97.5 {
		t.Errorf("expected 97.5 bTokens from explicit units, got %f", last.SupplyBTokens)
	}
}

func TestReconstruct_OverWithdrawClampsAtZero(t *testing.T) {
	h := New(0).Reconstruct(baseInput(
		ev(1, "p1", domain.ActionSupply, "2024-01-01T00:00:00Z", 10),
		ev(2, "p1", domain.ActionWithdraw, "2024-01-02T00:00:00Z", 10.5),
	))
	for _, s := range h.Snapshots {
		if s.SupplyBTokens < 0 || s.NetBalance < 0 {
			t.Errorf("%s: negative balance %+v", s.Date, s)
		}
	}
}

func TestReconstruct_TimezoneBucketsEvents(t *testing.T) {
	ny, err := calendar.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	in := baseInput(ev(1, "p1", domain.ActionSupply, "2024-01-02T03:00:00Z", 100))
	in.Location = ny
	in.Timezone = ny.String()
	in.Range = calendar.Range{From: day("2024-01-01"), To: day("2024-01-02")}

	h := New(0).Reconstruct(in)
	// The supply is on local 2024-01-01 evening; the synthetic day is 12-31, outside the range.
	if len(h.Snapshots) != 2 || h.Snapshots[0].NetBalance != 100 {
		t.Fatalf("expected supply bucketed on local 01-01, got %+v", nets(h))
	}
	if !h.FirstEventDate.Equal(day("2024-01-01")) {
		t.Errorf("FirstEventDate = %s, want local 2024-01-01", h.FirstEventDate)
	}
	// In New York the 01-03 UTC row is already in force by the end of 01-02.
	if h.Snapshots[1].BRate != 1.02 {
		t.Errorf("expected 1.02 on local 01-02, got %f", h.Snapshots[1].BRate)
	}
}

func TestReconstruct_LiveOverride(t *testing.T) {
	in := baseInput(ev(1, "p1", domain.ActionSupply, "2024-01-01T00:00:00Z", 100))
	in.Today = day("2024-01-04")
	in.Live = map[string]domain.LiveBalance{"p1": {SupplyTokens: 102.5}}

	h := New(0).Reconstruct(in)
	last := h.Snapshots[len(h.Snapshots)-1]
	if !last.Live || math.Abs(last.NetBalance-102.5) > eps {
		t.Errorf("expected live 102.5 on today, got %+v", last)
	}
	if h.Snapshots[len(h.Snapshots)-2].Live {
		t.Error("only today's slot may be live")
	}

	in.Today = day("2024-02-01") // outside range
	for _, s := range New(0).Reconstruct(in).Snapshots {
		if s.Live {
			t.Errorf("live override applied outside range on %s", s.Date)
		}
	}
}

func TestReconstruct_MultiPoolOrdering(t *testing.T) {
	in := baseInput(
		ev(1, "p2", domain.ActionSupply, "2024-01-02T00:00:00Z", 5),
		ev(2, "p1", domain.ActionSupply, "2024-01-03T00:00:00Z", 7),
	)
	in.Range = calendar.Range{From: day("2024-01-01"), To: day("2024-01-04")}
	h := New(0).Reconstruct(in)

	want := []struct{ date, pool string }{
		{"2024-01-01", "p2"}, // p2 synthetic
		{"2024-01-02", "p1"}, // p1 synthetic
		{"2024-01-02", "p2"},
		{"2024-01-03", "p1"},
		{"2024-01-03", "p2"},
		{"2024-01-04", "p1"},
		{"2024-01-04", "p2"},
	}
	if len(h.Snapshots) != len(want) {
		t.Fatalf("expected %d snapshots, got %d", len(want), len(h.Snapshots))
	}
	for i, w := range want {
		s := h.Snapshots[i]
		if s.Date.String() != w.date || s.PoolID != w.pool {
			t.Errorf("snapshot %d = %s/%s, want %s/%s", i, s.Date, s.PoolID, w.date, w.pool)
		}
	}
	if len(h.Earnings) != 2 {
		t.Errorf("expected earnings per pool, got %d", len(h.Earnings))
	}
}

func TestReconstruct_PositionChangesAndEarnings(t *testing.T) {
	h := New(0).Reconstruct(baseInput(
		ev(1, "p1", domain.ActionSupply, "2024-01-01T00:00:00Z", 100),
		ev(2, "p1", domain.ActionSupply, "2024-01-03T00:00:00Z", 51),
	))

	if len(h.PositionChanges) != 2 {
		t.Fatalf("expected 2 position changes, got %+v", h.PositionChanges)
	}
	if !h.PositionChanges[0].Date.Equal(day("2024-01-01")) || math.Abs(h.PositionChanges[0].SupplyDelta-100) > eps {
		t.Errorf("unexpected first change %+v", h.PositionChanges[0])
	}
	if !h.PositionChanges[1].Date.Equal(day("2024-01-03")) || math.Abs(h.PositionChanges[1].SupplyDelta-51) > eps {
		t.Errorf("unexpected second change %+v", h.PositionChanges[1])
	}

	e := h.Earnings[0]
	// 100 bTokens accrued from 1.00 to 1.02.
	if math.Abs(e.TotalInterest-2) > 1e-6 {
		t.Errorf("TotalInterest = %f, want 2", e.TotalInterest)
	}
	// Raw delta includes both deposits: 0 -> 153.
	if math.Abs(e.RawDeltaSum-153) > 1e-6 {
		t.Errorf("RawDeltaSum = %f, want 153", e.RawDeltaSum)
	}
}

func TestReconstruct_AccrualBelowThresholdIsNotAChange(t *testing.T) {
	in := baseInput(ev(1, "p1", domain.ActionSupply, "2024-01-01T00:00:00Z", 0.005))
	in.FirstEvents = nil
	h := New(0).Reconstruct(in)
	if len(h.PositionChanges) != 0 {
		t.Errorf("expected no changes below threshold, got %+v", h.PositionChanges)
	}
}

func TestReconstruct_IdentityWarning(t *testing.T) {
	in := baseInput(ev(1, "p3", domain.ActionSupply, "2024-01-01T00:00:00Z", 10))
	h := New(0).Reconstruct(in)
	if len(h.Warnings) != 1 || h.Warnings[0].Kind != domain.ProvenanceIdentity {
		t.Fatalf("expected one identity warning, got %+v", h.Warnings)
	}
	if h.Warnings[0].Key != "p3:usdc" || !h.Warnings[0].Date.Equal(day("2024-01-01")) {
		t.Errorf("unexpected warning %+v", h.Warnings[0])
	}
}

func TestReconstruct_IgnoresNonPositionEvents(t *testing.T) {
	claim := ev(1, "p1", domain.ActionClaim, "2024-01-01T00:00:00Z", 3)
	backstop := ev(2, "p1", domain.ActionWithdraw, "2024-01-01T00:00:00Z", 3)
	backstop.Source = domain.SourceBackstop
	h := New(0).Reconstruct(baseInput(claim, backstop))
	if len(h.Snapshots) != 0 {
		t.Errorf("expected no snapshots, got %d", len(h.Snapshots))
	}
}

func TestReconstruct_EarningsIgnoreDebtPrincipal(t *testing.T) {
	h := New(0).Reconstruct(baseInput(
		ev(1, "p1", domain.ActionSupply, "2024-01-01T00:00:00Z", 100),
		ev(2, "p1", domain.ActionBorrow, "2024-01-02T00:00:00Z", 40),
		ev(3, "p1", domain.ActionRepay, "2024-01-03T00:00:00Z", 10),
	))

	e := h.Earnings[0]
	// 100 bTokens gain 2.00 while 40 dTokens cost 2.00 over the 01-03 rate step.
	if math.Abs(e.TotalInterest) > 1e-6 {
		t.Errorf("TotalInterest = %f, want 0", e.TotalInterest)
	}
	// 100*1.02 - (40 - 10/1.05)*1.05 = 70, reached from a zero balance.
	if math.Abs(e.RawDeltaSum-70) > 1e-6 {
		t.Errorf("RawDeltaSum = %f, want 70", e.RawDeltaSum)
	}
}
