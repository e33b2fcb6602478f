// Package session orchestrates one valuation request end to end: concurrent
// history fetches for the tracked basket and the reference legs, implied-rate
// derivation, normalization, and the per-mode return transform, collected
// into a single immutable result payload.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cclview/cclview/internal/ccl"
	"github.com/cclview/cclview/internal/timeseries"
	"github.com/cclview/cclview/pkg/models"
)

// Fetcher is the part of the market-data source the orchestrator needs.
type Fetcher interface {
	FetchHistory(ctx context.Context, ticker string, start, end timeseries.Date) (timeseries.Series, error)
}

// Config holds the reference-pair configuration for rate derivation.
type Config struct {
	ReferenceLocal   string  // e.g. "YPFD.BA"
	ReferenceForeign string  // e.g. "YPF"
	FallbackLocal    string  // e.g. "GGAL.BA"
	FallbackForeign  string  // e.g. "GGAL"
	FallbackRatio    float64 // ordinary shares per ADR, e.g. 10

	// MaxConcurrent caps simultaneous history fetches. Zero means 5.
	MaxConcurrent int
}

// Request is one valuation run over a basket of tickers.
type Request struct {
	Tickers []string
	Start   timeseries.Date
	End     timeseries.Date
	Mode    models.DisplayMode

	// SMAWindow, when positive, adds a rolling-mean overlay series per
	// ticker alongside the main line.
	SMAWindow int
}

// Orchestrator runs valuation requests against a history source.
type Orchestrator struct {
	fetcher Fetcher
	cfg     Config
}

// New creates an orchestrator.
func New(fetcher Fetcher, cfg Config) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	return &Orchestrator{fetcher: fetcher, cfg: cfg}
}

// Run executes one valuation request. Per-ticker problems (fetch failure,
// empty alignment, unusable reference value) degrade to warnings on the
// result; only an invalid request or a missing reference pair fails the run.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.Valuation, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	available, warnings := o.fetchBasket(ctx, req)

	cal, err := o.calendar(available, req)
	if err != nil {
		return nil, err
	}

	var rate timeseries.Series
	var rateSource string
	if req.Mode != models.ModeRawPrice {
		strategies := o.strategies()
		rate, rateSource, err = ccl.DeriveRate(strategies, available, cal)
		if err != nil {
			return nil, err
		}
		if rateSource != strategies[0].Name() {
			warnings = append(warnings, models.Warning{
				Ticker: o.cfg.ReferenceLocal,
				Reason: fmt.Sprintf("primary reference pair unavailable; rate derived via %s", rateSource),
			})
		}
	}

	result := &models.Valuation{
		Mode:       req.Mode,
		RateSource: rateSource,
	}

	for _, ticker := range req.Tickers {
		raw, ok := available[ticker]
		if !ok {
			continue // fetch failed, already warned
		}

		s, warn := o.transform(raw, cal, rate, req)
		if warn != nil {
			warnings = append(warnings, models.Warning{Ticker: ticker, Reason: warn.Error()})
			continue
		}
		if s.Empty() {
			warnings = append(warnings, models.Warning{
				Ticker: ticker,
				Reason: "no observations after calendar alignment",
			})
			continue
		}

		result.Series = append(result.Series, toChartSeries(ticker, s, req.Mode))
		if s.CrossesZero() {
			result.CrossesZero = true
		}

		if req.SMAWindow > 0 {
			if sma := s.RollingMean(req.SMAWindow); !sma.Empty() {
				name := fmt.Sprintf("%s SMA%d", ticker, req.SMAWindow)
				result.Series = append(result.Series, toChartSeries(name, sma, req.Mode))
			}
		}
	}

	result.Warnings = warnings
	return result, nil
}

// fetchBasket pulls history for the tracked tickers plus every reference leg,
// concurrently. Tracked-ticker failures become warnings; reference-leg
// failures are silent here because rate derivation decides their severity.
func (o *Orchestrator) fetchBasket(ctx context.Context, req Request) (map[string]timeseries.Series, []models.Warning) {
	tracked := make(map[string]bool, len(req.Tickers))
	for _, t := range req.Tickers {
		tracked[t] = true
	}

	basket := make([]string, 0, len(req.Tickers)+4)
	seen := make(map[string]bool)
	for _, t := range append(append([]string{}, req.Tickers...),
		o.cfg.ReferenceLocal, o.cfg.ReferenceForeign, o.cfg.FallbackLocal, o.cfg.FallbackForeign) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		basket = append(basket, t)
	}

	var mu sync.Mutex
	available := make(map[string]timeseries.Series, len(basket))
	var warnings []models.Warning

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrent)
	for _, ticker := range basket {
		ticker := ticker
		g.Go(func() error {
			s, err := o.fetcher.FetchHistory(gctx, ticker, req.Start, req.End)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("session: fetch %s failed: %v", ticker, err)
				if tracked[ticker] {
					warnings = append(warnings, models.Warning{Ticker: ticker, Reason: err.Error()})
				}
				return nil // isolate failures, never cancel the group
			}
			available[ticker] = s
			return nil
		})
	}
	g.Wait()

	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Ticker < warnings[j].Ticker })
	return available, warnings
}

// calendar builds the trading-date axis from the primary local reference
// leg, falling back to the secondary local leg when the primary is absent.
func (o *Orchestrator) calendar(available map[string]timeseries.Series, req Request) (timeseries.Calendar, error) {
	for _, ref := range []string{o.cfg.ReferenceLocal, o.cfg.FallbackLocal} {
		if s, ok := available[ref]; ok && !s.Empty() {
			return s.Slice(req.Start, req.End).Calendar(), nil
		}
	}
	return nil, fmt.Errorf("no reference series to build the trading calendar: %w", ccl.ErrMissingReferenceData)
}

func (o *Orchestrator) strategies() []ccl.RateStrategy {
	return []ccl.RateStrategy{
		ccl.DirectPair{Local: o.cfg.ReferenceLocal, Foreign: o.cfg.ReferenceForeign},
		ccl.ADRPair{Local: o.cfg.FallbackLocal, Foreign: o.cfg.FallbackForeign, Ratio: o.cfg.FallbackRatio},
	}
}

// transform applies the requested display mode to one tracked series. An
// ErrInvalidReference is returned to the caller to become a warning; any
// other shape of problem surfaces as an empty series.
func (o *Orchestrator) transform(raw timeseries.Series, cal timeseries.Calendar, rate timeseries.Series, req Request) (timeseries.Series, error) {
	if req.Mode == models.ModeRawPrice {
		return raw.Align(cal), nil
	}

	normalized := ccl.Normalize(raw, cal, rate)
	if normalized.Empty() {
		return timeseries.Series{}, nil
	}

	switch req.Mode {
	case models.ModeReturnToPresent:
		return ccl.ReturnToPresent(normalized)
	case models.ModeReturnFromStart:
		return ccl.ReturnFromStart(normalized, req.Start, req.End)
	default:
		return timeseries.Series{}, fmt.Errorf("unknown display mode %q", req.Mode)
	}
}

// toChartSeries renders a series into the wire shape, including hover labels.
func toChartSeries(ticker string, s timeseries.Series, mode models.DisplayMode) models.ChartSeries {
	cs := models.ChartSeries{Ticker: ticker}
	for _, p := range s.Points() {
		label := fmt.Sprintf("%s %s: %.2f", ticker, p.Day, p.Value)
		if mode != models.ModeRawPrice {
			label += "%"
		}
		cs.Points = append(cs.Points, models.ChartPoint{
			Date:  p.Day.String(),
			Value: p.Value,
			Label: label,
		})
	}
	return cs
}

func validate(req Request) error {
	if len(req.Tickers) == 0 {
		return errors.New("no tickers requested")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return errors.New("start and end dates are required")
	}
	if req.End.Before(req.Start) {
		return fmt.Errorf("end %s is before start %s", req.End, req.Start)
	}
	if !req.Mode.Valid() {
		return fmt.Errorf("invalid display mode %q", req.Mode)
	}
	if req.SMAWindow < 0 {
		return fmt.Errorf("sma window must be non-negative, got %d", req.SMAWindow)
	}
	return nil
}
