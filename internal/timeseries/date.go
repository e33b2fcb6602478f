// Package timeseries provides the date-indexed series type the valuation
// pipeline is built on: timezone-naive trading dates, chronologically sorted
// price series, calendar alignment with last-observation-carried-forward
// semantics, and per-date arithmetic.
package timeseries

import (
	"fmt"
	"time"
)

// Date is a timezone-naive trading date. Exchange timestamps carry a market
// timezone; they are collapsed to a Date at ingestion so nothing downstream
// does timezone arithmetic. The canonical representation is midnight UTC,
// which keeps Date comparable with == when built through the constructors.
type Date struct {
	t time.Time
}

// NewDate builds a Date from civil year/month/day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf collapses a timestamp to the civil date in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a "2006-01-02" date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Today returns the current civil date in local time.
func Today() Date {
	return DateOf(time.Now())
}

func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }
func (d Date) IsZero() bool       { return d.t.IsZero() }

// Compare returns -1, 0, or +1 ordering d against o.
func (d Date) Compare(o Date) int {
	return d.t.Compare(o.t)
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return Date{d.t.AddDate(0, 0, n)}
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// Time returns the canonical midnight-UTC timestamp, for callers that need
// to talk to epoch-based APIs.
func (d Date) Time() time.Time { return d.t }

// String formats the date as "2006-01-02".
func (d Date) String() string { return d.t.Format("2006-01-02") }
