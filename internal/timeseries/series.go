package timeseries

import (
	"slices"
)

// Point is one observation in a series.
type Point struct {
	Day   Date
	Value float64
}

// Series is an ordered sequence of (date, value) observations with strictly
// increasing unique dates. A Series is never mutated after construction;
// every transformation returns a new one. A date absent from the series is
// "undefined" — there are no NaN placeholders.
type Series struct {
	points []Point
}

// Calendar is the ordered trading-date axis every derived series is aligned
// on. It is taken from a designated reference instrument's series.
type Calendar []Date

// New builds a series from points in any order. Duplicate dates collapse to
// the last value given, matching how repeated observations for one trading
// day are resolved at ingestion.
func New(points ...Point) Series {
	if len(points) == 0 {
		return Series{}
	}
	sorted := make([]Point, len(points))
	copy(sorted, points)
	slices.SortStableFunc(sorted, func(a, b Point) int {
		return a.Day.Compare(b.Day)
	})
	out := sorted[:1]
	for _, p := range sorted[1:] {
		if p.Day.Equal(out[len(out)-1].Day) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return Series{points: out}
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.points) }

// Empty reports whether the series has no observations.
func (s Series) Empty() bool { return len(s.points) == 0 }

// Points returns a copy of the observations in chronological order.
func (s Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// First returns the earliest observation.
func (s Series) First() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[0], true
}

// Last returns the latest observation.
func (s Series) Last() (Point, bool) {
	if len(s.points) == 0 {
		return Point{}, false
	}
	return s.points[len(s.points)-1], true
}

// search locates day in the sorted points.
func (s Series) search(day Date) (int, bool) {
	return slices.BinarySearchFunc(s.points, day, func(p Point, d Date) int {
		return p.Day.Compare(d)
	})
}

// Get returns the value observed exactly on day.
func (s Series) Get(day Date) (float64, bool) {
	if i, ok := s.search(day); ok {
		return s.points[i].Value, true
	}
	return 0, false
}

// AsOf returns the value on day, or the most recent value before it. This is
// the carry-forward lookup alignment is built on. It reports false when no
// observation exists at or before day.
func (s Series) AsOf(day Date) (float64, bool) {
	i, ok := s.search(day)
	if ok {
		return s.points[i].Value, true
	}
	if i == 0 {
		return 0, false
	}
	return s.points[i-1].Value, true
}

// Calendar returns the series' own dates as a calendar axis.
func (s Series) Calendar() Calendar {
	cal := make(Calendar, len(s.points))
	for i, p := range s.points {
		cal[i] = p.Day
	}
	return cal
}

// Align reindexes the series onto cal with last-observation-carried-forward
// semantics: each calendar date takes the latest observation at or before it.
// Calendar dates earlier than the first observation are left undefined —
// never back-filled. Aligning an empty series yields an empty series.
func (s Series) Align(cal Calendar) Series {
	if s.Empty() || len(cal) == 0 {
		return Series{}
	}
	out := make([]Point, 0, len(cal))
	for _, day := range cal {
		if v, ok := s.AsOf(day); ok {
			out = append(out, Point{Day: day, Value: v})
		}
	}
	return Series{points: out}
}

// Slice returns the observations with start <= date <= end.
func (s Series) Slice(start, end Date) Series {
	out := make([]Point, 0, len(s.points))
	for _, p := range s.points {
		if p.Day.Before(start) || p.Day.After(end) {
			continue
		}
		out = append(out, p)
	}
	return Series{points: out}
}

// RollingMean returns the trailing mean of the last window observations at
// each date. The first window-1 dates are left undefined while the mean
// warms up; a window larger than the series yields an empty series.
func (s Series) RollingMean(window int) Series {
	if window <= 0 || s.Len() < window {
		return Series{}
	}
	out := make([]Point, 0, len(s.points)-window+1)
	var sum float64
	for i, p := range s.points {
		sum += p.Value
		if i >= window {
			sum -= s.points[i-window].Value
		}
		if i >= window-1 {
			out = append(out, Point{Day: p.Day, Value: sum / float64(window)})
		}
	}
	return Series{points: out}
}

// CrossesZero reports whether the series holds both a negative and a
// positive value, i.e. a plotted line would cross the zero axis.
func (s Series) CrossesZero() bool {
	var hasNeg, hasPos bool
	for _, p := range s.points {
		if p.Value < 0 {
			hasNeg = true
		}
		if p.Value > 0 {
			hasPos = true
		}
	}
	return hasNeg && hasPos
}

// Divide returns num/den per date. A date is present in the result only
// where both operands are defined and the denominator is non-zero; division
// never produces Inf or NaN, the date is simply undefined.
func Divide(num, den Series) Series {
	out := make([]Point, 0, num.Len())
	for _, p := range num.points {
		d, ok := den.Get(p.Day)
		if !ok || d == 0 {
			continue
		}
		out = append(out, Point{Day: p.Day, Value: p.Value / d})
	}
	return Series{points: out}
}
