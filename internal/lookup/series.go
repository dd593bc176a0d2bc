package lookup

import (
	"errors"
	"sort"

	"blend-portfolio/internal/calendar"
)

// ErrNoData is returned when a series holds no observation at or before the target.
var ErrNoData = errors.New("no data at or before target date")

// Match describes how a value was found.
type Match int

const (
	MatchNone Match = iota
	MatchExact
	MatchForwardFill
)

func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchForwardFill:
		return "forward_fill"
	default:
		return "none"
	}
}

// Point is one dated observation.
type Point[T any] struct {
	Date  calendar.Date
	Value T
}

// Series is a date-ascending run of observations with at most one point per date.
type Series[T any] struct {
	points []Point[T]
}

// NewSeries sorts points by date. When several points share a date the one
// that appears first in the input wins, so callers control tie-breaking by
// ordering the input.
func NewSeries[T any](points []Point[T]) *Series[T] {
	sorted := make([]Point[T], len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	deduped := sorted[:0]
	for _, p := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			continue
		}
		deduped = append(deduped, p)
	}
	return &Series[T]{points: deduped}
}

// Len returns the number of distinct dates in the series.
func (s *Series[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

// At returns the latest observation dated on or before target.
// Returns ErrNoData if there is none.
func (s *Series[T]) At(target calendar.Date) (Point[T], Match, error) {
	var zero Point[T]
	if s.Len() == 0 {
		return zero, MatchNone, ErrNoData
	}

	// First index strictly after target; the one before it is the answer.
	i := sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Date.After(target)
	})
	if i == 0 {
		return zero, MatchNone, ErrNoData
	}

	p := s.points[i-1]
	if p.Date.Equal(target) {
		return p, MatchExact, nil
	}
	return p, MatchForwardFill, nil
}

// Latest returns the newest observation in the series.
func (s *Series[T]) Latest() (Point[T], bool) {
	if s.Len() == 0 {
		var zero Point[T]
		return zero, false
	}
	return s.points[len(s.points)-1], true
}
