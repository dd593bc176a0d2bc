package domain

import "time"

// Q4WEntry is the net queued shares for one (user, pool, expiration) key.
type Q4WEntry struct {
	UserAddress string    `json:"userAddress"`
	PoolID      string    `json:"poolId"`
	Exp         time.Time `json:"exp"`
	NetShares   float64   `json:"netShares"`
}

// Q4WPosition aggregates a user's active queue entries in one backstop pool.
type Q4WPosition struct {
	UserAddress    string     `json:"userAddress"`
	PoolID         string     `json:"poolId"`
	LockedShares   float64    `json:"lockedShares"`
	UnlockedShares float64    `json:"unlockedShares"`
	EarliestUnlock *time.Time `json:"earliestUnlock"`
	HasUnlocked    bool       `json:"hasUnlocked"`
	ShareRate      float64    `json:"shareRate"`
	LockedLP       float64    `json:"lockedLp"`
	UnlockedLP     float64    `json:"unlockedLp"`
	LockedUSD      float64    `json:"lockedUsd"`
	UnlockedUSD    float64    `json:"unlockedUsd"`
	Entries        []Q4WEntry `json:"entries"`
}

// TotalShares is the position's active queued shares.
func (p *Q4WPosition) TotalShares() float64 { return p.LockedShares + p.UnlockedShares }

// Q4WSummary covers every position matching the query, not just the page.
type Q4WSummary struct {
	TotalUsers       int     `json:"totalUsers"`
	TotalLocked      float64 `json:"totalLocked"`
	TotalUnlocked    float64 `json:"totalUnlocked"`
	TotalLockedLP    float64 `json:"totalLockedLp"`
	TotalUnlockedLP  float64 `json:"totalUnlockedLp"`
	TotalLockedUSD   float64 `json:"totalLockedUsd"`
	TotalUnlockedUSD float64 `json:"totalUnlockedUsd"`
}

// Q4WReport is one page of withdrawal-queue positions.
type Q4WReport struct {
	Positions  []Q4WPosition `json:"positions"`
	Summary    Q4WSummary    `json:"summary"`
	TotalCount int           `json:"totalCount"`
	AsOf       time.Time     `json:"asOf"`
}
