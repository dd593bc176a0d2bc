package domain

import "blend-portfolio/internal/calendar"

// CostBasisRecord is the average-cost position for one pool reserve.
type CostBasisRecord struct {
	PoolID                  string        `json:"poolId"`
	AssetAddress            string        `json:"assetAddress"`
	CostBasis               float64       `json:"costBasis"`
	WeightedAvgDepositPrice float64       `json:"weightedAvgPrice"`
	NetTokens               float64       `json:"netTokens"`
	DepositedTokens         float64       `json:"depositedTokens"`
	WithdrawnTokens         float64       `json:"withdrawnTokens"`
	DepositedUSD            float64       `json:"depositedUsd"`
	WithdrawnUSD            float64       `json:"withdrawnUsd"`
	RealizedPnl             float64       `json:"realizedPnl"`
	ROI                     *float64      `json:"roi"`
	AnnualizedROI           *float64      `json:"annualizedRoi"`
	FirstDeposit            calendar.Date `json:"firstDeposit"`
}

// CostBasisTotals sums the records of a report.
type CostBasisTotals struct {
	CostBasis    float64 `json:"costBasis"`
	DepositedUSD float64 `json:"depositedUsd"`
	WithdrawnUSD float64 `json:"withdrawnUsd"`
	RealizedPnl  float64 `json:"realizedPnl"`
}

// CostBasisReport is keyed by AssetKey(pool, asset).
type CostBasisReport struct {
	UserAddress string                     `json:"userAddress"`
	AsOf        calendar.Date              `json:"asOf"`
	ByAssetKey  map[string]CostBasisRecord `json:"byAssetKey"`
	Totals      CostBasisTotals            `json:"totals"`
	Failures    map[string]string          `json:"failures,omitempty"`
	Warnings    []DataGapWarning           `json:"warnings,omitempty"`
}

// AssetKey is the report key for a pool reserve.
func AssetKey(poolID, asset string) string { return poolID + ":" + asset }
