package domain

import "blend-portfolio/internal/calendar"

// BalanceSnapshot is a derived end-of-day position for one pool reserve.
// Invariant: NetBalance = (SupplyBTokens+CollateralBTokens)*BRate - LiabilitiesDTokens*DRate,
// except for live slots where token amounts come straight from the ledger.
type BalanceSnapshot struct {
	PoolID             string        `json:"poolId"`
	AssetAddress       string        `json:"assetAddress"`
	Date               calendar.Date `json:"date"`
	SupplyBTokens      float64       `json:"supplyBTokens"`
	CollateralBTokens  float64       `json:"collateralBTokens"`
	LiabilitiesDTokens float64       `json:"liabilitiesDTokens"`
	BRate              float64       `json:"bRate"`
	DRate              float64       `json:"dRate"`
	SupplyTokens       float64       `json:"supplyTokens"`
	CollateralTokens   float64       `json:"collateralTokens"`
	LiabilitiesTokens  float64       `json:"liabilitiesTokens"`
	NetBalance         float64       `json:"netBalance"`
	RateProvenance     Provenance    `json:"rateProvenance"`
	Live               bool          `json:"live,omitempty"`
	Synthetic          bool          `json:"synthetic,omitempty"` // the $0 day before the first event
}

// LiveBalance is a ledger read of today's token balances for one pool,
// used to mask ingestion lag.
type LiveBalance struct {
	SupplyTokens      float64
	CollateralTokens  float64
	LiabilitiesTokens float64
}

// PositionChange flags a day on which the user moved principal.
// Deltas are in underlying tokens at that day's rates.
type PositionChange struct {
	PoolID          string        `json:"poolId"`
	Date            calendar.Date `json:"date"`
	SupplyDelta     float64       `json:"supplyDelta"`
	CollateralDelta float64       `json:"collateralDelta"`
	DebtDelta       float64       `json:"debtDelta"`
}

// EarningsStats summarizes accrual for one pool reserve over the history.
type EarningsStats struct {
	PoolID string `json:"poolId"`
	// TotalInterest is accrual only: each day, the previous day's b/dToken
	// counters valued at that day's rate change. Deposits, withdrawals,
	// borrows and repays never enter it.
	TotalInterest float64 `json:"totalInterest"`
	// RawDeltaSum is the plain sum of day-over-day net balance changes,
	// principal included.
	RawDeltaSum      float64 `json:"rawDeltaSum"`
	CurrentSupplyAPY float64 `json:"currentSupplyApy"`
	CurrentBorrowAPY float64 `json:"currentBorrowApy"`
}

// BalanceHistory is the produced balance report for (user, asset).
type BalanceHistory struct {
	UserAddress     string            `json:"userAddress"`
	AssetAddress    string            `json:"assetAddress"`
	Timezone        string            `json:"timezone"`
	Snapshots       []BalanceSnapshot `json:"snapshots"`
	FirstEventDate  calendar.Date     `json:"firstEventDate"`
	PositionChanges []PositionChange  `json:"positionChanges"`
	Earnings        []EarningsStats   `json:"earnings"`
	Warnings        []DataGapWarning  `json:"warnings,omitempty"`
}
