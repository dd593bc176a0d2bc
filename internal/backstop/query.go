package backstop

import (
	"fmt"
	"math"
	"sort"
	"time"

	"blend-portfolio/internal/domain"
)

// Status selects positions by lock state.
type Status string

const (
	StatusAll      Status = "all"
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
)

// SortKey is the secondary listing order after unlocked-first.
type SortKey string

const (
	SortUnlockTime SortKey = "unlock_time"
	SortShares     SortKey = "shares"
)

// MaxLimit caps a page.
const MaxLimit = 500

// Query describes a Q4W listing. Zero values mean: any pool, any user,
// all statuses, sort by unlock time ascending, first 50 rows.
type Query struct {
	Pool       string
	User       string
	Status     Status
	MinShares  float64
	SortBy     SortKey
	Desc       bool
	Limit      int
	Offset     int
	AsOf       time.Time
	LPPriceUSD *float64
}

// Pipeline is a compiled Query. Page and Count share the same Filter.
type Pipeline struct {
	q Query
}

// Compile validates q and fills defaults.
func (q Query) Compile() (*Pipeline, error) {
	if q.Pool != "" {
		if err := domain.ValidatePool(q.Pool); err != nil {
			return nil, err
		}
	}
	if q.User != "" {
		if err := domain.ValidateUser(q.User); err != nil {
			return nil, err
		}
	}
	switch q.Status {
	case "":
		q.Status = StatusAll
	case StatusAll, StatusLocked, StatusUnlocked:
	default:
		return nil, &domain.ValidationError{Field: "status", Value: string(q.Status), Reason: "want all, locked or unlocked"}
	}
	switch q.SortBy {
	case "":
		q.SortBy = SortUnlockTime
	case SortUnlockTime, SortShares:
	default:
		return nil, &domain.ValidationError{Field: "sort", Value: string(q.SortBy), Reason: "want unlock_time or shares"}
	}
	if !(q.MinShares >= 0) || math.IsInf(q.MinShares, 1) {
		return nil, &domain.ValidationError{Field: "minShares", Value: fmt.Sprint(q.MinShares), Reason: "want a finite, non-negative number"}
	}
	if p := q.LPPriceUSD; p != nil && (!(*p >= 0) || math.IsInf(*p, 1)) {
		return nil, &domain.ValidationError{Field: "lpPrice", Value: fmt.Sprint(*p), Reason: "want a finite, non-negative price"}
	}
	if q.Offset < 0 {
		return nil, &domain.ValidationError{Field: "offset", Value: fmt.Sprint(q.Offset), Reason: "negative"}
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.AsOf.IsZero() {
		return nil, &domain.ValidationError{Field: "asOf", Reason: "required"}
	}
	return &Pipeline{q: q}, nil
}

// Query returns the compiled query with defaults applied.
func (p *Pipeline) Query() Query { return p.q }

// Filter keeps the positions matching the query's predicates.
func (p *Pipeline) Filter(positions []domain.Q4WPosition) []domain.Q4WPosition {
	out := make([]domain.Q4WPosition, 0, len(positions))
	for _, pos := range positions {
		if p.q.Pool != "" && pos.PoolID != p.q.Pool {
			continue
		}
		if p.q.User != "" && pos.UserAddress != p.q.User {
			continue
		}
		switch p.q.Status {
		case StatusLocked:
			if pos.LockedShares <= 0 {
				continue
			}
		case StatusUnlocked:
			if !pos.HasUnlocked {
				continue
			}
		}
		if pos.TotalShares() < p.q.MinShares {
			continue
		}
		out = append(out, pos)
	}
	return out
}

// Count is the number of positions Page would draw from.
func (p *Pipeline) Count(positions []domain.Q4WPosition) int {
	return len(p.Filter(positions))
}

// Page filters, sorts, then applies offset and limit.
func (p *Pipeline) Page(positions []domain.Q4WPosition) []domain.Q4WPosition {
	rows := p.Filter(positions)
	p.sort(rows)
	if p.q.Offset >= len(rows) {
		return []domain.Q4WPosition{}
	}
	end := min(p.q.Offset+p.q.Limit, len(rows))
	return rows[p.q.Offset:end]
}

// Run builds the report: one page plus count and summary over every match.
func (p *Pipeline) Run(positions []domain.Q4WPosition) domain.Q4WReport {
	matched := p.Filter(positions)
	return domain.Q4WReport{
		Positions:  p.Page(positions),
		Summary:    summarize(matched),
		TotalCount: len(matched),
		AsOf:       p.q.AsOf,
	}
}

// sort orders unlocked positions first, then by the chosen key, then by
// user and pool for a stable listing.
func (p *Pipeline) sort(rows []domain.Q4WPosition) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if a.HasUnlocked != b.HasUnlocked {
			return a.HasUnlocked
		}
		// Positions with nothing locked have no unlock time and go last
		// in either direction.
		if p.q.SortBy == SortUnlockTime && (a.EarliestUnlock == nil) != (b.EarliestUnlock == nil) {
			return b.EarliestUnlock == nil
		}
		if c := p.compare(a, b); c != 0 {
			if p.q.Desc {
				return c > 0
			}
			return c < 0
		}
		if a.UserAddress != b.UserAddress {
			return a.UserAddress < b.UserAddress
		}
		return a.PoolID < b.PoolID
	})
}

func (p *Pipeline) compare(a, b *domain.Q4WPosition) int {
	switch p.q.SortBy {
	case SortShares:
		return cmpFloat(a.TotalShares(), b.TotalShares())
	default:
		if a.EarliestUnlock == nil || b.EarliestUnlock == nil {
			return 0
		}
		return a.EarliestUnlock.Compare(*b.EarliestUnlock)
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func summarize(positions []domain.Q4WPosition) domain.Q4WSummary {
	users := make(map[string]bool)
	var s domain.Q4WSummary
	for _, pos := range positions {
		users[pos.UserAddress] = true
		s.TotalLocked += pos.LockedShares
		s.TotalUnlocked += pos.UnlockedShares
		s.TotalLockedLP += pos.LockedLP
		s.TotalUnlockedLP += pos.UnlockedLP
		s.TotalLockedUSD += pos.LockedUSD
		s.TotalUnlockedUSD += pos.UnlockedUSD
	}
	s.TotalUsers = len(users)
	return s
}
