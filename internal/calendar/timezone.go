package calendar

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // IANA zones must resolve on hosts without zoneinfo
)

// LoadLocation resolves an IANA timezone name. An empty name means UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "UTC") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// DateIn returns the calendar date of instant t as observed in loc.
func DateIn(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return NewDate(t.In(loc).Date())
}

// Today returns the current calendar date in loc according to now.
func Today(now time.Time, loc *time.Location) Date { return DateIn(now, loc) }

// StartOfDay returns the UTC instant at which local day d begins in loc.
// Days that begin inside a DST gap start at the first valid instant.
func StartOfDay(d Date, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := time.Date(d.y, d.m, d.d, 0, 0, 0, 0, loc)
	if DateIn(t, loc).Before(d) {
		// Local midnight was skipped; the day starts at the transition.
		_, end := t.ZoneBounds()
		t = end
	}
	return t.UTC()
}

// NextDayStart returns the UTC instant at which the local day after d begins.
// This is the exclusive end of local day d.
func NextDayStart(d Date, loc *time.Location) time.Time {
	return StartOfDay(d.AddDays(1), loc)
}

// DayBounds returns the half-open UTC interval [start, end) covering local day d.
func DayBounds(d Date, loc *time.Location) (start, end time.Time) {
	return StartOfDay(d, loc), NextDayStart(d, loc)
}

// RangeBounds returns the half-open UTC interval covering every local day in r.
func RangeBounds(r Range, loc *time.Location) (start, end time.Time) {
	return StartOfDay(r.From, loc), NextDayStart(r.To, loc)
}

// EffectiveUTCDate returns the latest UTC-keyed row date whose value is in
// force by the end of local day d.
//
// A row dated D is observed at D 00:00 UTC. It applies to local day d when
// that instant falls strictly before the start of the next local day, so the
// cutoff is the UTC date of (NextDayStart - 1ns).
func EffectiveUTCDate(d Date, loc *time.Location) Date {
	end := NextDayStart(d, loc).Add(-time.Nanosecond)
	return FromTime(end.UTC())
}
