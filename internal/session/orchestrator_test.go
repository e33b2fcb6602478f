package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/cclview/cclview/internal/ccl"
	"github.com/cclview/cclview/internal/timeseries"
	"github.com/cclview/cclview/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

// fakeFetcher serves canned series per ticker and records errors for others.
type fakeFetcher struct {
	histories map[string]timeseries.Series
	failures  map[string]error
}

func (f *fakeFetcher) FetchHistory(_ context.Context, ticker string, _, _ timeseries.Date) (timeseries.Series, error) {
	if err, ok := f.failures[ticker]; ok {
		return timeseries.Series{}, err
	}
	if s, ok := f.histories[ticker]; ok {
		return s, nil
	}
	return timeseries.Series{}, fmt.Errorf("no history for %s", ticker)
}

func day(d int) timeseries.Date { return timeseries.NewDate(2024, time.January, d) }

func series(vals ...float64) timeseries.Series {
	pts := make([]timeseries.Point, 0, len(vals))
	for i, v := range vals {
		pts = append(pts, timeseries.Point{Day: day(i + 1), Value: v})
	}
	return timeseries.New(pts...)
}

func testConfig() Config {
	return Config{
		ReferenceLocal:   "YPFD.BA",
		ReferenceForeign: "YPF",
		FallbackLocal:    "GGAL.BA",
		FallbackForeign:  "GGAL",
		FallbackRatio:    10,
	}
}

// referenceHistories gives a constant implied rate of 1000 ARS/USD over
// three trading days.
func referenceHistories() map[string]timeseries.Series {
	return map[string]timeseries.Series{
		"YPFD.BA": series(10000, 10000, 10000),
		"YPF":     series(10, 10, 10),
	}
}

func request(mode models.DisplayMode, tickers ...string) Request {
	return Request{
		Tickers: tickers,
		Start:   day(1),
		End:     day(3),
		Mode:    mode,
	}
}

func seriesByTicker(v *models.Valuation, ticker string) (models.ChartSeries, bool) {
	for _, s := range v.Series {
		if s.Ticker == ticker {
			return s, true
		}
	}
	return models.ChartSeries{}, false
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// ════════════════════════════════════════════════════════════════════
// Pipeline
// ════════════════════════════════════════════════════════════════════

func TestRunReturnFromStart(t *testing.T) {
	histories := referenceHistories()
	// ALUA.BA in ARS: normalized to USD it goes 1.00, 1.10, 1.20.
	histories["ALUA.BA"] = series(1000, 1100, 1200)

	o := New(&fakeFetcher{histories: histories}, testConfig())
	v, err := o.Run(context.Background(), request(models.ModeReturnFromStart, "ALUA.BA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.RateSource != "direct pair" {
		t.Errorf("RateSource = %q, want direct pair", v.RateSource)
	}
	s, ok := seriesByTicker(v, "ALUA.BA")
	if !ok {
		t.Fatal("missing series for ALUA.BA")
	}
	want := []float64{0, 10, 20}
	for i, p := range s.Points {
		if !almostEqual(p.Value, want[i]) {
			t.Errorf("point %d = %v, want %v", i, p.Value, want[i])
		}
	}
	if len(v.Warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", v.Warnings)
	}
}

func TestRunReturnToPresentReferenceDateIsZero(t *testing.T) {
	histories := referenceHistories()
	histories["ALUA.BA"] = series(1000, 1100, 1200)

	o := New(&fakeFetcher{histories: histories}, testConfig())
	v, err := o.Run(context.Background(), request(models.ModeReturnToPresent, "ALUA.BA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s, _ := seriesByTicker(v, "ALUA.BA")
	last := s.Points[len(s.Points)-1]
	if last.Value != 0 {
		t.Errorf("last point = %v, want exactly 0", last.Value)
	}
	if !almostEqual(s.Points[0].Value, 20) {
		t.Errorf("first point = %v, want 20", s.Points[0].Value)
	}
}

func TestRunRawModePassesPricesThrough(t *testing.T) {
	histories := referenceHistories()
	histories["ALUA.BA"] = series(1000, 1100, 1200)

	o := New(&fakeFetcher{histories: histories}, testConfig())
	v, err := o.Run(context.Background(), request(models.ModeRawPrice, "ALUA.BA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.RateSource != "" {
		t.Errorf("RateSource = %q, want empty in raw mode", v.RateSource)
	}
	s, _ := seriesByTicker(v, "ALUA.BA")
	if !almostEqual(s.Points[0].Value, 1000) {
		t.Errorf("raw price = %v, want 1000 untouched", s.Points[0].Value)
	}
}

func TestRunCarriesForwardMissingDates(t *testing.T) {
	histories := referenceHistories()
	// Tracked misses day 2; alignment must carry day 1 forward.
	histories["ALUA.BA"] = timeseries.New(
		timeseries.Point{Day: day(1), Value: 1000},
		timeseries.Point{Day: day(3), Value: 1200},
	)

	o := New(&fakeFetcher{histories: histories}, testConfig())
	v, err := o.Run(context.Background(), request(models.ModeRawPrice, "ALUA.BA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s, _ := seriesByTicker(v, "ALUA.BA")
	if len(s.Points) != 3 {
		t.Fatalf("points = %d, want 3", len(s.Points))
	}
	if !almostEqual(s.Points[1].Value, 1000) {
		t.Errorf("day 2 = %v, want carried-forward 1000", s.Points[1].Value)
	}
}

func TestRunSMAOverlay(t *testing.T) {
	histories := referenceHistories()
	histories["ALUA.BA"] = series(1000, 1100, 1200)

	o := New(&fakeFetcher{histories: histories}, testConfig())
	req := request(models.ModeRawPrice, "ALUA.BA")
	req.SMAWindow = 2
	v, err := o.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sma, ok := seriesByTicker(v, "ALUA.BA SMA2")
	if !ok {
		t.Fatal("missing overlay series ALUA.BA SMA2")
	}
	// Warmup: day 1 has no mean yet.
	if len(sma.Points) != 2 {
		t.Fatalf("overlay points = %d, want 2", len(sma.Points))
	}
	want := []float64{1050, 1150}
	for i, p := range sma.Points {
		if !almostEqual(p.Value, want[i]) {
			t.Errorf("overlay point %d = %v, want %v", i, p.Value, want[i])
		}
	}

	// The main line is untouched by the overlay.
	if main, ok := seriesByTicker(v, "ALUA.BA"); !ok || len(main.Points) != 3 {
		t.Errorf("main series = %+v, want 3 points", main)
	}
}

func TestRunWithoutSMAWindowHasNoOverlay(t *testing.T) {
	histories := referenceHistories()
	histories["ALUA.BA"] = series(1000, 1100, 1200)

	o := New(&fakeFetcher{histories: histories}, testConfig())
	v, err := o.Run(context.Background(), request(models.ModeRawPrice, "ALUA.BA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(v.Series) != 1 {
		t.Errorf("series = %d, want 1 without an overlay", len(v.Series))
	}
}

// ════════════════════════════════════════════════════════════════════
// Failure isolation
// ════════════════════════════════════════════════════════════════════

func TestRunIsolatesFetchFailures(t *testing.T) {
	histories := referenceHistories()
	histories["ALUA.BA"] = series(1000, 1100, 1200)

	o := New(&fakeFetcher{
		histories: histories,
		failures:  map[string]error{"BROKEN.BA": errors.New("connection reset")},
	}, testConfig())

	v, err := o.Run(context.Background(), request(models.ModeReturnFromStart, "ALUA.BA", "BROKEN.BA"))
	if err != nil {
		t.Fatalf("Run must not fail on a per-ticker fetch error: %v", err)
	}
	if _, ok := seriesByTicker(v, "ALUA.BA"); !ok {
		t.Error("healthy ticker must still be present")
	}
	if _, ok := seriesByTicker(v, "BROKEN.BA"); ok {
		t.Error("failed ticker must not be present")
	}
	found := false
	for _, w := range v.Warnings {
		if w.Ticker == "BROKEN.BA" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a warning for BROKEN.BA, got %+v", v.Warnings)
	}
}

func TestRunMissingReferenceIsFatal(t *testing.T) {
	o := New(&fakeFetcher{
		histories: map[string]timeseries.Series{
			"ALUA.BA": series(1000, 1100, 1200),
		},
	}, testConfig())

	_, err := o.Run(context.Background(), request(models.ModeReturnFromStart, "ALUA.BA"))
	if !errors.Is(err, ccl.ErrMissingReferenceData) {
		t.Fatalf("err = %v, want ErrMissingReferenceData", err)
	}
}

func TestRunFallbackPairWarns(t *testing.T) {
	histories := map[string]timeseries.Series{
		// Primary foreign leg missing entirely.
		"YPFD.BA": series(10000, 10000, 10000),
		"GGAL.BA": series(100, 100, 100),
		"GGAL":    series(1, 1, 1),
		"ALUA.BA": series(1000, 1100, 1200),
	}

	o := New(&fakeFetcher{histories: histories}, testConfig())
	v, err := o.Run(context.Background(), request(models.ModeReturnFromStart, "ALUA.BA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.RateSource != "adr triangulation" {
		t.Errorf("RateSource = %q, want adr triangulation", v.RateSource)
	}
	found := false
	for _, w := range v.Warnings {
		if w.Ticker == "YPFD.BA" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an informational warning about the fallback, got %+v", v.Warnings)
	}
}

func TestRunZeroCrossFlag(t *testing.T) {
	histories := referenceHistories()
	// Dips below the window start, then recovers above it.
	histories["ALUA.BA"] = series(1000, 900, 1100)

	o := New(&fakeFetcher{histories: histories}, testConfig())
	v, err := o.Run(context.Background(), request(models.ModeReturnFromStart, "ALUA.BA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !v.CrossesZero {
		t.Error("CrossesZero must be set when a return series spans the axis")
	}
}

// ════════════════════════════════════════════════════════════════════
// Validation
// ════════════════════════════════════════════════════════════════════

func TestRunValidation(t *testing.T) {
	o := New(&fakeFetcher{histories: referenceHistories()}, testConfig())
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{"no tickers", Request{Start: day(1), End: day(3), Mode: models.ModeRawPrice}},
		{"zero dates", Request{Tickers: []string{"A"}, Mode: models.ModeRawPrice}},
		{"inverted range", Request{Tickers: []string{"A"}, Start: day(3), End: day(1), Mode: models.ModeRawPrice}},
		{"bad mode", Request{Tickers: []string{"A"}, Start: day(1), End: day(3), Mode: "sideways"}},
		{"negative sma window", Request{Tickers: []string{"A"}, Start: day(1), End: day(3), Mode: models.ModeRawPrice, SMAWindow: -1}},
	}
	for _, tt := range tests {
		if _, err := o.Run(ctx, tt.req); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestRunHoverLabels(t *testing.T) {
	histories := referenceHistories()
	histories["ALUA.BA"] = series(1000, 1100, 1200)

	o := New(&fakeFetcher{histories: histories}, testConfig())
	v, err := o.Run(context.Background(), request(models.ModeReturnFromStart, "ALUA.BA"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s, _ := seriesByTicker(v, "ALUA.BA")
	if want := "ALUA.BA 2024-01-02: 10.00%"; s.Points[1].Label != want {
		t.Errorf("label = %q, want %q", s.Points[1].Label, want)
	}
}
