package costbasis

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
)

func day(s string) calendar.Date { return calendar.MustParseDate(s) }

func priced(kind Kind, date string, tokens, price float64) Flow {
	return Flow{
		Kind:   kind,
		Date:   day(date),
		Tokens: tokens,
		Price:  domain.ResolvedPrice{Price: price, Source: domain.ProvenanceExact},
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPosition_WithdrawalUsesAverageCost(t *testing.T) {
	var p Position
	p.Add(priced(Deposit, "2024-01-01", 1000, 1.00))
	p.Add(priced(Withdrawal, "2024-02-01", 400, 1.37))

	rec := p.Record("pool", "usdc", 1.0, day("2024-03-01"))
	if !near(rec.CostBasis, 600) {
		t.Errorf("CostBasis = %v, want 600", rec.CostBasis)
	}
	if !near(rec.NetTokens, 600) {
		t.Errorf("NetTokens = %v, want 600", rec.NetTokens)
	}
	if !near(rec.WeightedAvgDepositPrice, 1) {
		t.Errorf("WeightedAvgDepositPrice = %v, want 1", rec.WeightedAvgDepositPrice)
	}
	if !near(rec.RealizedPnl, 548-1000) {
		t.Errorf("RealizedPnl = %v, want -452", rec.RealizedPnl)
	}
}

func TestPosition_RoundTripIsZero(t *testing.T) {
	paths := []struct {
		name  string
		flows []Flow
	}{
		{
			name: "single deposit",
			flows: []Flow{
				priced(Deposit, "2024-01-01", 250, 0.11),
				priced(Withdrawal, "2024-06-01", 250, 0.19),
			},
		},
		{
			name: "uneven prices",
			flows: []Flow{
				priced(Deposit, "2024-01-01", 100, 1.0/3),
				priced(Deposit, "2024-01-05", 77.7, 2.0/7),
				priced(Withdrawal, "2024-01-09", 50, 9.99),
				priced(Deposit, "2024-01-10", 12.3, 0.5),
				priced(Withdrawal, "2024-02-01", 140, 0.01),
			},
		},
		{
			name: "signed amounts",
			flows: []Flow{
				priced(Deposit, "2024-01-01", 42, 3),
				priced(Withdrawal, "2024-01-02", -42, 4),
			},
		},
	}
	for _, tt := range paths {
		t.Run(tt.name, func(t *testing.T) {
			var p Position
			for _, f := range tt.flows {
				p.Add(f)
			}
			rec := p.Record("pool", "asset", 0, day("2024-03-01"))
			if !near(rec.NetTokens, 0) {
				t.Errorf("NetTokens = %v, want 0", rec.NetTokens)
			}
			if !near(rec.CostBasis, 0) {
				t.Errorf("CostBasis = %v, want 0", rec.CostBasis)
			}
		})
	}
}

func TestPosition_NoDepositsUsesLivePrice(t *testing.T) {
	var p Position
	p.Add(priced(Withdrawal, "2024-01-02", 10, 2))

	rec := p.Record("pool", "asset", 1.5, day("2024-01-03"))
	if !near(rec.WeightedAvgDepositPrice, 1.5) {
		t.Errorf("WeightedAvgDepositPrice = %v, want 1.5", rec.WeightedAvgDepositPrice)
	}
	if !near(rec.CostBasis, -15) {
		t.Errorf("CostBasis = %v, want -15", rec.CostBasis)
	}
	if rec.ROI != nil {
		t.Errorf("ROI = %v, want nil", *rec.ROI)
	}
	if !rec.FirstDeposit.IsZero() {
		t.Errorf("FirstDeposit = %v, want zero", rec.FirstDeposit)
	}
}

func TestPosition_EmptyAndNaN(t *testing.T) {
	var p Position
	if !p.Empty() {
		t.Fatal("zero Position should be empty")
	}
	p.Add(Flow{Kind: Deposit, Date: day("2024-01-01"), Tokens: math.NaN(), Price: domain.ResolvedPrice{Price: 1}})
	p.Add(Flow{Kind: Deposit, Date: day("2024-01-01"), Tokens: 5, Price: domain.ResolvedPrice{Price: math.Inf(1)}})
	p.Add(Flow{Kind: 0, Tokens: 10})

	if p.Empty() {
		t.Error("Position with flows should not be empty")
	}
	rec := p.Record("pool", "asset", 0, day("2024-01-01"))
	if rec.DepositedUSD != 0 || rec.DepositedTokens != 5 {
		t.Errorf("got deposited %v tokens / %v USD, want 5 / 0", rec.DepositedTokens, rec.DepositedUSD)
	}
}

func TestROI(t *testing.T) {
	if got := ROI(decimal.NewFromInt(50), decimal.Zero); got != nil {
		t.Errorf("ROI with zero deposits = %v, want nil", *got)
	}
	got := ROI(decimal.NewFromInt(50), decimal.NewFromInt(200))
	if got == nil || !near(*got, 25) {
		t.Errorf("ROI = %v, want 25", got)
	}
}

func TestAnnualize(t *testing.T) {
	ten := 10.0
	minus100 := -100.0

	tests := []struct {
		name string
		roi  *float64
		days int
		want *float64
	}{
		{"nil roi", nil, 30, nil},
		{"zero days", &ten, 0, nil},
		{"total loss", &minus100, 30, nil},
		{"one year", &ten, 365, &ten},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Annualize(tt.roi, tt.days)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("Annualize = %v, want %v", got, tt.want)
			}
			if got != nil && !near(*got, *tt.want) {
				t.Errorf("Annualize = %v, want %v", *got, *tt.want)
			}
		})
	}

	half := Annualize(&ten, 73) // five compounding periods
	want := (math.Pow(1.1, 5) - 1) * 100
	if half == nil || !near(*half, want) {
		t.Errorf("Annualize(10, 73) = %v, want %v", half, want)
	}
}

func TestDaysActive(t *testing.T) {
	if got := DaysActive(calendar.Date{}, day("2024-01-10")); got != 0 {
		t.Errorf("unset first deposit: got %d", got)
	}
	if got := DaysActive(day("2024-01-10"), day("2024-01-01")); got != 0 {
		t.Errorf("asOf before first deposit: got %d", got)
	}
	if got := DaysActive(day("2024-02-27"), day("2024-03-01")); got != 3 {
		t.Errorf("leap year span: got %d, want 3", got)
	}
}
