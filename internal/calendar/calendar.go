// Package calendar converts instants into local calendar dates and counts
// whole days between them.
//
// Day arithmetic never uses the difference between two instants directly:
// both dates are re-anchored at midnight UTC first, so a daylight-saving
// transition between them cannot add or remove an hour and skew the count.
package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of a LocalDate.
const DateLayout = "2006-01-02"

// LocalDate is a calendar date in the observer's location, formatted as
// YYYY-MM-DD. The zero value means "no date".
type LocalDate string

// IsZero reports whether d is absent.
func (d LocalDate) IsZero() bool {
	return d == ""
}

// String returns the YYYY-MM-DD form.
func (d LocalDate) String() string {
	return string(d)
}

// ParseLocalDate validates s and returns it as a LocalDate.
func ParseLocalDate(s string) (LocalDate, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse local date %q: %w", s, err)
	}
	return LocalDate(t.Format(DateLayout)), nil
}

// Clock supplies the current instant.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Calendar maps instants to local dates in a fixed location.
type Calendar struct {
	loc *time.Location
}

// New returns a Calendar for loc. A nil loc means time.Local.
func New(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// Load returns a Calendar for the named IANA zone ("Local" and "" mean the
// process-local zone).
func Load(name string) (Calendar, error) {
	if name == "" || name == "Local" {
		return New(time.Local), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc), nil
}

// Location returns the calendar's location.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// LocalDate returns the local calendar date containing t.
func (c Calendar) LocalDate(t time.Time) LocalDate {
	return LocalDate(t.In(c.Location()).Format(DateLayout))
}

// DaysBetween returns the absolute number of whole days between a and b.
// DaysBetween(a, b) == DaysBetween(b, a).
func DaysBetween(a, b LocalDate) (int, error) {
	ta, err := time.Parse(DateLayout, string(a))
	if err != nil {
		return 0, fmt.Errorf("days between: %w", err)
	}
	tb, err := time.Parse(DateLayout, string(b))
	if err != nil {
		return 0, fmt.Errorf("days between: %w", err)
	}
	return wholeDays(ta, tb), nil
}

// wholeDays expects both arguments anchored at midnight UTC.
func wholeDays(a, b time.Time) int {
	diff := b.Sub(a)
	if diff < 0 {
		diff = -diff
	}
	return int((diff + 12*time.Hour) / (24 * time.Hour))
}
