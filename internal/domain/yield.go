package domain

import (
	"time"

	"blend-portfolio/internal/calendar"
)

// SourceYield is the cash-flow view for one source of yield.
type SourceYield struct {
	Deposited   float64 `json:"deposited"`
	Withdrawn   float64 `json:"withdrawn"`
	Claimed     float64 `json:"claimed"`
	RealizedPnl float64 `json:"realizedPnl"`
	CostBasis   float64 `json:"costBasis"`
	// CurrentValue and Unrealized are set only when current balances are known.
	CurrentValue *float64 `json:"currentValue"`
	Unrealized   *float64 `json:"unrealized"`
}

// YieldBySource splits yield by where it was earned.
type YieldBySource struct {
	Pools     SourceYield `json:"pools"`
	Backstop  SourceYield `json:"backstop"`
	Emissions SourceYield `json:"emissions"`
}

// CumulativePoint is one day of the running cash-flow series.
type CumulativePoint struct {
	Date        calendar.Date `json:"date"`
	Deposited   float64       `json:"deposited"`
	Withdrawn   float64       `json:"withdrawn"`
	Claimed     float64       `json:"claimed"`
	RealizedPnl float64       `json:"realizedPnl"`
}

// Transaction is one priced cash flow.
type Transaction struct {
	Time        time.Time     `json:"time"`
	Date        calendar.Date `json:"date"`
	Source      EventSource   `json:"source"`
	ActionType  ActionType    `json:"actionType"`
	PoolID      string        `json:"poolId"`
	Token       string        `json:"token"`
	Amount      float64       `json:"amount"`
	PriceUSD    float64       `json:"priceUsd"`
	ValueUSD    float64       `json:"valueUsd"`
	PriceSource Provenance    `json:"priceSource"`
	TxHash      string        `json:"txHash,omitempty"`
}

// YieldReport is the produced realized-yield report for a wallet.
type YieldReport struct {
	UserAddress      string            `json:"userAddress"`
	AsOf             calendar.Date     `json:"asOf"`
	Timezone         string            `json:"timezone"`
	TotalDeposited   float64           `json:"totalDeposited"`
	TotalWithdrawn   float64           `json:"totalWithdrawn"`
	RealizedPnl      float64           `json:"realizedPnl"`
	BySource         YieldBySource     `json:"bySource"`
	ROI              *float64          `json:"roi"`
	AnnualizedROI    *float64          `json:"annualizedRoi"`
	DaysActive       int               `json:"daysActive"`
	CumulativeSeries []CumulativePoint `json:"cumulativeSeries"`
	Transactions     []Transaction     `json:"transactions"`
	Failures         map[string]string `json:"failures,omitempty"`
	Warnings         []DataGapWarning  `json:"warnings,omitempty"`
}
