package domain

import "blend-portfolio/internal/calendar"

// Provenance tags where a resolved number came from.
type Provenance string

const (
	ProvenanceExact        Provenance = "exact"
	ProvenanceForwardFill  Provenance = "forward_fill"
	ProvenanceLiveFallback Provenance = "live_fallback"
	ProvenanceLive         Provenance = "live"
	ProvenanceMissing      Provenance = "missing"
	ProvenanceIdentity     Provenance = "identity"
)

// IsGap reports whether the value was not observed on the requested day.
func (p Provenance) IsGap() bool {
	return p != ProvenanceExact && p != ProvenanceLive
}

// DataGapWarning records a non-fatal gap resolved by fallback.
type DataGapWarning struct {
	Kind   Provenance    `json:"kind"`
	Key    string        `json:"key"` // token address or pool:asset
	Date   calendar.Date `json:"date"`
	Detail string        `json:"detail,omitempty"`
}
