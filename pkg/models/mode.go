// Package models holds the data types shared between the valuation engine,
// the HTTP API, and the CLI.
package models

import "fmt"

// DisplayMode selects which series the pipeline produces for each tracked
// ticker after alignment.
type DisplayMode string

const (
	// ModeRawPrice charts the aligned native-currency prices, skipping
	// implied-rate normalization entirely.
	ModeRawPrice DisplayMode = "raw"

	// ModeReturnToPresent charts the percentage return of each date relative
	// to the most recent observation.
	ModeReturnToPresent DisplayMode = "present"

	// ModeReturnFromStart charts the percentage return of each date relative
	// to the first observation in the requested window.
	ModeReturnFromStart DisplayMode = "start"
)

// ParseDisplayMode maps a user-supplied mode string to a DisplayMode.
// It accepts a few common aliases so the CLI stays forgiving.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch s {
	case "raw", "price", "prices":
		return ModeRawPrice, nil
	case "present", "to-present", "topresent":
		return ModeReturnToPresent, nil
	case "start", "from-start", "fromstart":
		return ModeReturnFromStart, nil
	default:
		return "", fmt.Errorf("unknown display mode %q (want raw, present, or start)", s)
	}
}

// Valid reports whether the mode is one of the three defined modes.
func (m DisplayMode) Valid() bool {
	switch m {
	case ModeRawPrice, ModeReturnToPresent, ModeReturnFromStart:
		return true
	}
	return false
}
