// Package provider fetches historical and current prices from the Yahoo
// Finance chart API.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/quantfold/smasentinel/internal/models"
)

// Client provides access to the price feed. Historical responses are cached
// for a short TTL, so consecutive cycles may legitimately observe the same
// series.
type Client struct {
	baseURL    string
	symbol     string
	httpClient *http.Client
	maxRetries int

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[int]cachedSeries

	now func() time.Time
}

type cachedSeries struct {
	series    models.PriceSeries
	fetchedAt time.Time
}

// chartResponse mirrors the Yahoo Finance v8 chart API payload.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		Symbol             string  `json:"symbol"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// NewClient creates a new price feed client.
func NewClient(baseURL, symbol string, timeout, cacheTTL time.Duration, maxRetries int) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		baseURL:    baseURL,
		symbol:     symbol,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		cacheTTL:   cacheTTL,
		cache:      make(map[int]cachedSeries),
		now:        time.Now,
	}
}

// FetchHistorical retrieves at least minDays daily price points, oldest
// first. Results are cached for the configured TTL.
func (c *Client) FetchHistorical(ctx context.Context, minDays int) (models.PriceSeries, error) {
	if minDays < models.MinSeriesLength {
		minDays = models.MinSeriesLength
	}

	c.mu.Lock()
	if cached, ok := c.cache[minDays]; ok && c.now().Sub(cached.fetchedAt) < c.cacheTTL {
		series := cached.series
		c.mu.Unlock()
		return series, nil
	}
	c.mu.Unlock()

	// Calendar days overshoot trading days; fetch twice the span so weekends
	// and holidays still leave minDays trading points.
	rangeDays := minDays * 2
	series, err := c.fetchChart(ctx, fmt.Sprintf("%dd", rangeDays))
	if err != nil {
		return nil, err
	}
	if len(series) > minDays {
		series = series[len(series)-minDays:]
	}

	c.mu.Lock()
	c.cache[minDays] = cachedSeries{series: series, fetchedAt: c.now()}
	c.mu.Unlock()

	return series, nil
}

// FetchCurrent retrieves the latest available price point.
func (c *Client) FetchCurrent(ctx context.Context) (models.PricePoint, error) {
	series, err := c.fetchChart(ctx, "5d")
	if err != nil {
		return models.PricePoint{}, err
	}
	if len(series) == 0 {
		return models.PricePoint{}, fmt.Errorf("provider returned no recent prices for %s", c.symbol)
	}
	return series.Last(), nil
}

// ClearCache drops cached historical data.
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[int]cachedSeries)
	c.mu.Unlock()
}

func (c *Client) fetchChart(ctx context.Context, rangeParam string) (models.PriceSeries, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(c.symbol)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("range", rangeParam)
	q.Set("interval", "1d")
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chart for %s: %w", c.symbol, err)
	}
	defer resp.Body.Close()

	var payload chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode chart response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("chart response contains no result for %s", c.symbol)
	}

	return convertResult(payload.Chart.Result[0])
}

// convertResult turns the chart DTO into a domain series, dropping null
// closes (non-trading timestamps the API sometimes pads in).
func convertResult(result chartResult) (models.PriceSeries, error) {
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart result contains no quote data")
	}
	closes := result.Indicators.Quote[0].Close
	if len(result.Timestamp) != len(closes) {
		return nil, fmt.Errorf("chart result has %d timestamps but %d closes", len(result.Timestamp), len(closes))
	}

	series := make(models.PriceSeries, 0, len(closes))
	for i, ts := range result.Timestamp {
		if closes[i] == nil {
			continue
		}
		series = append(series, models.PricePoint{
			Timestamp: time.Unix(ts, 0).UTC(),
			Close:     *closes[i],
		})
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("chart result contains no usable closes")
	}
	return series, nil
}

// doRequest performs an HTTP GET with bounded quick retries on transport
// errors and 5xx responses. Cycle-level exponential backoff is the
// monitoring loop's job, not the client's.
func (c *Client) doRequest(ctx context.Context, urlStr string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "smasentinel/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
		} else if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		} else {
			return resp, nil
		}

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * time.Second):
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
