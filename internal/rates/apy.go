package rates

import "math"

// Side selects which rate index an APY is computed from.
type Side int

const (
	Supply Side = iota
	Borrow
)

// APY annualizes the growth between two consecutive daily rate indices:
// ((today/yesterday)^365 - 1) * 100. Supply APY is clamped to be non-negative.
func APY(today, yesterday float64, side Side) float64 {
	return APYOver(today, yesterday, 1, side)
}

// APYOver is APY for indices observed days apart.
func APYOver(latest, earlier float64, days int, side Side) float64 {
	if earlier <= 0 || latest <= 0 || days <= 0 {
		return 0
	}
	apy := (math.Pow(latest/earlier, 365/float64(days)) - 1) * 100
	if side == Supply && apy < 0 {
		return 0
	}
	return apy
}
