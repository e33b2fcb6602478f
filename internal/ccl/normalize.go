package ccl

import "github.com/cclview/cclview/internal/timeseries"

// Normalize re-expresses a native-currency price series in implied
// foreign-currency terms: the series is aligned to the trading calendar and
// divided by the implied rate at each date. A date is undefined in the
// output when either operand is undefined there; no interpolation happens
// beyond the alignment's carry-forward.
func Normalize(tracked timeseries.Series, cal timeseries.Calendar, rate timeseries.Series) timeseries.Series {
	return timeseries.Divide(tracked.Align(cal), rate)
}
