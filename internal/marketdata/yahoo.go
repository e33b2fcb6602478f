package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cclview/cclview/internal/timeseries"
)

// DefaultYahooBaseURL is the production Yahoo Finance API host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo implements Source against the Yahoo Finance v8 chart API. Both the
// Buenos Aires listings (".BA" suffix) and the US ADRs resolve through the
// same endpoint, so one source covers every leg of the valuation.
type Yahoo struct {
	baseURL string
	client  *http.Client
	cache   *SeriesCache
	limiter *RateLimiter
}

// YahooOption configures a Yahoo source.
type YahooOption func(*Yahoo)

// WithBaseURL points the source at a different host. Used by tests.
func WithBaseURL(base string) YahooOption {
	return func(y *Yahoo) { y.baseURL = base }
}

// WithCacheTTL overrides the default 15-minute history cache.
func WithCacheTTL(ttl time.Duration) YahooOption {
	return func(y *Yahoo) { y.cache = NewSeriesCache(ttl) }
}

// WithTimeout overrides the default 30-second per-request timeout.
func WithTimeout(d time.Duration) YahooOption {
	return func(y *Yahoo) { y.client = &http.Client{Timeout: d} }
}

// NewYahoo creates a Yahoo Finance source.
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		baseURL: DefaultYahooBaseURL,
		client:  HTTPClient,
		cache:   NewSeriesCache(15 * time.Minute),
		limiter: NewRateLimiter(5, time.Second), // 5 req/s
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the source name.
func (y *Yahoo) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol               string `json:"symbol"`
	Currency             string `json:"currency"`
	ExchangeTimezoneName string `json:"exchangeTimezoneName"`
}

type yfIndicators struct {
	Quote []yfQuote `json:"quote"`
}

type yfQuote struct {
	Close []*float64 `json:"close"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchHistory returns daily closes between start and end inclusive. Each
// epoch timestamp is collapsed to a civil date in the exchange's timezone;
// days where the exchange reported no close are simply absent from the
// result.
func (y *Yahoo) FetchHistory(ctx context.Context, ticker string, start, end timeseries.Date) (timeseries.Series, error) {
	cacheKey := fmt.Sprintf("hist:%s:%s:%s", ticker, start, end)
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached, nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return timeseries.Series{}, err
	}

	// period2 is exclusive on Yahoo's side, so push it one day past end.
	u := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		y.baseURL, url.PathEscape(ticker),
		start.Time().Unix(), end.AddDays(1).Time().Unix(),
	)

	body, _, err := doGet(ctx, y.client, u, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return timeseries.Series{}, fmt.Errorf("read response: %w", err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return timeseries.Series{}, fmt.Errorf("parse yahoo chart: %w", err)
	}

	if resp.Chart.Error != nil {
		return timeseries.Series{}, fmt.Errorf("yahoo chart error for %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return timeseries.Series{}, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	series := parseCloses(resp.Chart.Result[0])

	y.cache.Set(cacheKey, series)
	return series, nil
}

// parseCloses turns a chart result into a close-price series, skipping nil
// closes (halted or unreported days).
func parseCloses(result yfChartResult) timeseries.Series {
	if len(result.Indicators.Quote) == 0 {
		return timeseries.Series{}
	}

	loc := time.UTC
	if result.Meta.ExchangeTimezoneName != "" {
		if l, err := time.LoadLocation(result.Meta.ExchangeTimezoneName); err == nil {
			loc = l
		}
	}

	closes := result.Indicators.Quote[0].Close
	points := make([]timeseries.Point, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		points = append(points, timeseries.Point{
			Day:   timeseries.DateOf(time.Unix(ts, 0).In(loc)),
			Value: *closes[i],
		})
	}
	return timeseries.New(points...)
}
