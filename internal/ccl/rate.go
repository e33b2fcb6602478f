// Package ccl implements the implied exchange-rate ("contado con liqui")
// engine: deriving a daily implied rate from a dual-listed reference pair,
// re-expressing local-currency price series in implied foreign-currency
// terms, and computing percentage-return metrics.
package ccl

import (
	"errors"

	"github.com/cclview/cclview/internal/timeseries"
)

// --- Sentinel errors ---

// ErrMissingReferenceData is returned when no rate strategy could derive the
// implied rate. It is fatal to the whole request: without the rate no
// tracked instrument can be normalized.
var ErrMissingReferenceData = errors.New("no reference pair available to derive the implied rate")

// ErrInvalidReference is returned when a return calculation has no usable
// reference value (missing or zero). The affected instrument is skipped; the
// rest of the basket continues.
var ErrInvalidReference = errors.New("no usable reference value for return calculation")

// RateStrategy derives an implied-rate series from whichever reference
// series were successfully fetched. Strategies are pure: they report
// ok=false when their inputs are unavailable and leave branching to
// DeriveRate, so adding a derivation path never touches the normalizer or
// the return calculator.
type RateStrategy interface {
	Name() string
	Derive(available map[string]timeseries.Series, cal timeseries.Calendar) (timeseries.Series, bool)
}

// DirectPair derives the rate from a 1:1 dual listing:
// rate = localLeg / foreignLeg, date by date.
type DirectPair struct {
	Local   string // local-currency ticker, e.g. "YPFD.BA"
	Foreign string // foreign-currency ticker, e.g. "YPF"
}

func (p DirectPair) Name() string { return "direct pair" }

func (p DirectPair) Derive(available map[string]timeseries.Series, cal timeseries.Calendar) (timeseries.Series, bool) {
	local, foreign, ok := legs(available, p.Local, p.Foreign)
	if !ok {
		return timeseries.Series{}, false
	}
	return impliedRatio(local.Align(cal), foreign.Align(cal), 1), true
}

// ADRPair triangulates the rate through a secondary pair whose foreign leg
// is an ADR bundling Ratio local shares:
// rate = (localLeg * Ratio) / adrLeg.
type ADRPair struct {
	Local   string  // local ordinary share, e.g. "GGAL.BA"
	Foreign string  // ADR ticker, e.g. "GGAL"
	Ratio   float64 // ordinary shares per ADR, e.g. 10
}

func (p ADRPair) Name() string { return "adr triangulation" }

func (p ADRPair) Derive(available map[string]timeseries.Series, cal timeseries.Calendar) (timeseries.Series, bool) {
	if p.Ratio <= 0 {
		return timeseries.Series{}, false
	}
	local, adr, ok := legs(available, p.Local, p.Foreign)
	if !ok {
		return timeseries.Series{}, false
	}
	return impliedRatio(local.Align(cal), adr.Align(cal), p.Ratio), true
}

// DeriveRate tries each strategy in order and returns the first non-empty
// implied-rate series along with the winning strategy's name. When every
// strategy fails it returns ErrMissingReferenceData.
func DeriveRate(strategies []RateStrategy, available map[string]timeseries.Series, cal timeseries.Calendar) (timeseries.Series, string, error) {
	for _, st := range strategies {
		rate, ok := st.Derive(available, cal)
		if ok && !rate.Empty() {
			return rate, st.Name(), nil
		}
	}
	return timeseries.Series{}, "", ErrMissingReferenceData
}

// legs pulls two non-empty series out of the available set.
func legs(available map[string]timeseries.Series, a, b string) (timeseries.Series, timeseries.Series, bool) {
	sa, okA := available[a]
	sb, okB := available[b]
	if !okA || !okB || sa.Empty() || sb.Empty() {
		return timeseries.Series{}, timeseries.Series{}, false
	}
	return sa, sb, true
}

// impliedRatio computes num*mult/den per date. A date where either operand
// is undefined or non-positive is left undefined: the implied rate is
// strictly positive wherever it exists, and a bad quote never becomes
// Inf or NaN downstream.
func impliedRatio(num, den timeseries.Series, mult float64) timeseries.Series {
	out := make([]timeseries.Point, 0, num.Len())
	for _, p := range num.Points() {
		d, ok := den.Get(p.Day)
		if !ok || d <= 0 || p.Value <= 0 {
			continue
		}
		out = append(out, timeseries.Point{Day: p.Day, Value: p.Value * mult / d})
	}
	return timeseries.New(out...)
}
