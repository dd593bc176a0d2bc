package domain

import "blend-portfolio/internal/calendar"

// PriceObservation is a daily USD price for a token.
// Corresponds to the prices table. Duplicates per (token, date) may exist;
// the earliest ingested row (lowest Seq) is authoritative.
type PriceObservation struct {
	Seq          int64 // ingestion order, tie-breaker for duplicates
	TokenAddress string
	PriceDate    calendar.Date
	USDPrice     float64
}

// PriceKey identifies one price lookup.
type PriceKey struct {
	Token string
	Date  calendar.Date
}

// ResolvedPrice is the outcome of a price lookup with its provenance.
type ResolvedPrice struct {
	Price      float64       `json:"price"`
	Source     Provenance    `json:"source"`
	ObservedOn calendar.Date `json:"observedOn"` // date of the row used, zero for fallbacks
}
