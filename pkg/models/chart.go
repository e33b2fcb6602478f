package models

// ChartPoint is a single plottable observation. Date is a timezone-naive
// trading date in "2006-01-02" form; Label is the pre-formatted hover text
// shown by the presentation layer.
type ChartPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// ChartSeries is one named line on the chart, one per surviving tracked
// ticker. Points are in chronological order and contain only dates where the
// series is defined.
type ChartSeries struct {
	Ticker string       `json:"ticker"`
	Points []ChartPoint `json:"points"`
}

// Warning records a tracked ticker that was dropped from the result and why.
// Warnings are user-visible; the chart renders with whatever survived.
type Warning struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

// Valuation is the complete result of one valuation request: one series per
// surviving tracked ticker, the warnings accumulated along the way, and a
// flag telling the presentation layer whether to draw a zero reference line.
type Valuation struct {
	Mode        DisplayMode   `json:"mode"`
	Series      []ChartSeries `json:"series"`
	Warnings    []Warning     `json:"warnings,omitempty"`
	CrossesZero bool          `json:"crosses_zero"`

	// RateSource names the strategy that derived the implied rate
	// ("direct pair" or "adr triangulation"); empty in raw-price mode.
	RateSource string `json:"rate_source,omitempty"`
}
