package reporting

import (
	"time"

	"blend-portfolio/internal/calendar"
	"blend-portfolio/internal/domain"
	"blend-portfolio/internal/portfolio"
	"blend-portfolio/internal/storage"
)

// Report is a wallet report: the raw engine outputs plus sorted rows for
// rendering.
type Report struct {
	// Metadata
	GeneratedAt time.Time           `json:"generatedAt"`
	UserAddress string              `json:"userAddress"`
	Timezone    string              `json:"timezone"`
	AsOf        calendar.Date       `json:"asOf"`
	Range       calendar.Range      `json:"range"`
	Sync        *storage.SyncStatus `json:"sync,omitempty"`

	Overview    Overview           `json:"overview"`
	DataQuality DataQualitySection `json:"dataQuality"`

	// Rows sorted by pool, then asset
	CostBasis []CostBasisRow `json:"-"`
	Balances  []BalanceRow   `json:"-"`
	Sources   []SourceRow    `json:"-"`
	Q4W       []Q4WRow       `json:"-"`

	// Raw outputs
	Summary   portfolio.Summary       `json:"summary"`
	Histories []domain.BalanceHistory `json:"histories"`
}

// Overview is the headline numbers.
type Overview struct {
	TotalDeposited float64  `json:"totalDeposited"`
	TotalWithdrawn float64  `json:"totalWithdrawn"`
	RealizedPnl    float64  `json:"realizedPnl"`
	ROI            *float64 `json:"roi"`
	AnnualizedROI  *float64 `json:"annualizedRoi"`
	DaysActive     int      `json:"daysActive"`
	CostBasis      float64  `json:"costBasis"`
	QueuedLocked   float64  `json:"queuedLocked"`
	QueuedUnlocked float64  `json:"queuedUnlocked"`
}

// DataQualitySection lists gaps resolved by fallback and keys that failed.
type DataQualitySection struct {
	Warnings []WarningRow `json:"warnings"`
	Failures []FailureRow `json:"failures"`
	Complete bool         `json:"complete"` // no failures
}

// WarningRow is one data gap, tagged with the report it came from.
type WarningRow struct {
	Report string            `json:"report"`
	Kind   domain.Provenance `json:"kind"`
	Key    string            `json:"key"`
	Date   calendar.Date     `json:"date"`
	Detail string            `json:"detail,omitempty"`
}

// FailureRow is one key excluded from a report.
type FailureRow struct {
	Report string `json:"report"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// CostBasisRow is one pool reserve's average-cost position.
type CostBasisRow struct {
	PoolID        string
	AssetAddress  string
	NetTokens     float64
	AvgPrice      float64
	CostBasis     float64
	DepositedUSD  float64
	WithdrawnUSD  float64
	RealizedPnl   float64
	ROI           *float64
	AnnualizedROI *float64
	FirstDeposit  calendar.Date
}

// BalanceRow is the latest snapshot of one pool reserve with its earnings.
type BalanceRow struct {
	PoolID           string
	AssetAddress     string
	Date             calendar.Date
	SupplyTokens     float64
	CollateralTokens float64
	DebtTokens       float64
	NetBalance       float64
	Interest         float64
	SupplyAPY        float64
	BorrowAPY        float64
	Live             bool
}

// SourceRow is the yield of one source.
type SourceRow struct {
	Source string
	domain.SourceYield
}

// Q4WRow is one backstop withdrawal-queue position.
type Q4WRow struct {
	PoolID         string
	LockedShares   float64
	UnlockedShares float64
	ShareRate      float64
	LockedUSD      float64
	UnlockedUSD    float64
	EarliestUnlock *time.Time
}
