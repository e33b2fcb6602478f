package ccl

import (
	"fmt"

	"github.com/cclview/cclview/internal/timeseries"
)

// ReturnToPresent expresses each observation as the percentage gain still
// required to reach the latest value: (ref/v - 1) * 100 with ref the last
// defined observation. The reference date itself maps to exactly 0. Interior
// zero observations are skipped rather than turned into infinities. A
// missing or zero reference yields ErrInvalidReference.
func ReturnToPresent(s timeseries.Series) (timeseries.Series, error) {
	ref, ok := s.Last()
	if !ok {
		return timeseries.Series{}, fmt.Errorf("return to present: %w", ErrInvalidReference)
	}
	if ref.Value == 0 {
		return timeseries.Series{}, fmt.Errorf("return to present: reference value on %s is zero: %w", ref.Day, ErrInvalidReference)
	}
	out := make([]timeseries.Point, 0, s.Len())
	for _, p := range s.Points() {
		if p.Day.Equal(ref.Day) {
			out = append(out, timeseries.Point{Day: p.Day, Value: 0})
			continue
		}
		if p.Value == 0 {
			continue
		}
		out = append(out, timeseries.Point{Day: p.Day, Value: (ref.Value/p.Value - 1) * 100})
	}
	return timeseries.New(out...), nil
}

// ReturnFromStart expresses each observation inside [start, end] as the
// cumulative percentage change since the window's first defined value:
// (v/ref - 1) * 100. The reference date itself maps to exactly 0. An empty
// window or a zero reference yields ErrInvalidReference.
func ReturnFromStart(s timeseries.Series, start, end timeseries.Date) (timeseries.Series, error) {
	win := s.Slice(start, end)
	ref, ok := win.First()
	if !ok {
		return timeseries.Series{}, fmt.Errorf("return from %s: no observation in window: %w", start, ErrInvalidReference)
	}
	if ref.Value == 0 {
		return timeseries.Series{}, fmt.Errorf("return from %s: reference value on %s is zero: %w", start, ref.Day, ErrInvalidReference)
	}
	out := make([]timeseries.Point, 0, win.Len())
	for _, p := range win.Points() {
		if p.Day.Equal(ref.Day) {
			out = append(out, timeseries.Point{Day: p.Day, Value: 0})
			continue
		}
		out = append(out, timeseries.Point{Day: p.Day, Value: (p.Value/ref.Value - 1) * 100})
	}
	return timeseries.New(out...), nil
}
