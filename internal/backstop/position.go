package backstop

import (
	"sort"
	"time"

	"blend-portfolio/internal/domain"
)

// Aggregate folds active entries into one position per (user, pool) as of
// now. An entry is locked while its expiration is after now. USD values are
// 0 when lpPrice is nil.
func Aggregate(entries []domain.Q4WEntry, now time.Time, rates ShareRates, lpPrice *float64, eps float64) []domain.Q4WPosition {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	type key struct{ user, pool string }
	byKey := make(map[key]*domain.Q4WPosition)
	var order []key

	for _, entry := range entries {
		if entry.NetShares <= eps {
			continue
		}
		k := key{entry.UserAddress, entry.PoolID}
		pos, ok := byKey[k]
		if !ok {
			pos = &domain.Q4WPosition{UserAddress: entry.UserAddress, PoolID: entry.PoolID}
			byKey[k] = pos
			order = append(order, k)
		}
		if entry.Exp.After(now) {
			pos.LockedShares += entry.NetShares
			if pos.EarliestUnlock == nil || entry.Exp.Before(*pos.EarliestUnlock) {
				exp := entry.Exp
				pos.EarliestUnlock = &exp
			}
		} else {
			pos.UnlockedShares += entry.NetShares
		}
		pos.Entries = append(pos.Entries, entry)
	}

	price := 0.0
	if lpPrice != nil {
		price = *lpPrice
	}
	out := make([]domain.Q4WPosition, 0, len(order))
	for _, k := range order {
		pos := byKey[k]
		sort.Slice(pos.Entries, func(i, j int) bool { return pos.Entries[i].Exp.Before(pos.Entries[j].Exp) })
		pos.HasUnlocked = pos.UnlockedShares > eps
		pos.ShareRate = rates.Rate(pos.PoolID)
		pos.LockedLP = pos.LockedShares * pos.ShareRate
		pos.UnlockedLP = pos.UnlockedShares * pos.ShareRate
		pos.LockedUSD = pos.LockedLP * price
		pos.UnlockedUSD = pos.UnlockedLP * price
		out = append(out, *pos)
	}
	return out
}
