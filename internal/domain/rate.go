package domain

import "blend-portfolio/internal/calendar"

// RateIndex is a per-day accrual multiplier pair for one pool reserve.
// Corresponds to the rate_indices table; RateDate is a UTC calendar day.
type RateIndex struct {
	PoolID       string
	AssetAddress string
	RateDate     calendar.Date
	BRate        float64 // supply index: tokens per bToken
	DRate        float64 // debt index: tokens per dToken
}

// RatePair is the (b_rate, d_rate) in force for a local day.
type RatePair struct {
	BRate      float64       `json:"bRate"`
	DRate      float64       `json:"dRate"`
	RateDate   calendar.Date `json:"rateDate"` // zero when Provenance is identity
	Provenance Provenance    `json:"provenance"`
}

// IdentityRates is returned when no rate has been observed yet.
var IdentityRates = RatePair{BRate: 1, DRate: 1, Provenance: ProvenanceIdentity}
