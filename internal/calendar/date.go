// Package calendar provides day-granularity dates and the conversion between
// a caller's local calendar day and the UTC instants that bound it.
//
// Every date-bucketing decision in the engine goes through this package.
package calendar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateFormat is the ISO-8601 layout used for dates.
const DateFormat = "2006-01-02"

// Date is a calendar day with no time-of-day and no location.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date (2024-01-32 becomes 2024-02-01).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{y: t.Year(), m: t.Month(), d: t.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want %s: %w", s, DateFormat, err)
	}
	return NewDate(t.Date()), nil
}

// MustParseDate is like ParseDate but panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// FromTime returns the UTC calendar date of t's year/month/day fields,
// ignoring t's location. Use DateIn to bucket an instant into a timezone.
func FromTime(t time.Time) Date { return NewDate(t.Date()) }

func (d Date) Year() int         { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int          { return d.d }
func (d Date) IsZero() bool      { return d.y == 0 && d.m == 0 && d.d == 0 }
func (d Date) String() string    { return d.UTCMidnight().Format(DateFormat) }

// UTCMidnight returns 00:00 UTC of the date. Stored rate and price rows are
// keyed by this instant.
func (d Date) UTCMidnight() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) AddDays(n int) Date        { return NewDate(d.y, d.m, d.d+n) }
func (d Date) Before(o Date) bool        { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool         { return d.Compare(o) > 0 }
func (d Date) Equal(o Date) bool         { return d.Compare(o) == 0 }
func (d Date) BeforeOrEqual(o Date) bool { return d.Compare(o) <= 0 }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.y != o.y:
		return cmpInt(d.y, o.y)
	case d.m != o.m:
		return cmpInt(int(d.m), int(o.m))
	default:
		return cmpInt(d.d, o.d)
	}
}

// DaysUntil returns the number of days from d to o (negative if o is earlier).
func (d Date) DaysUntil(o Date) int {
	return int(o.UTCMidnight().Sub(d.UTCMidnight()).Hours() / 24)
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "YYYY-MM-DD" or null.
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Range is an inclusive range of dates.
type Range struct {
	From Date
	To   Date
}

// Contains reports whether d lies within the range.
func (r Range) Contains(d Date) bool { return !d.Before(r.From) && !d.After(r.To) }

// Days returns every date in the range in increasing order.
// An inverted range yields nil.
func (r Range) Days() []Date {
	if r.To.Before(r.From) {
		return nil
	}
	out := make([]Date, 0, r.From.DaysUntil(r.To)+1)
	for d := r.From; !d.After(r.To); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
