// Package exchange is the REST adapter for the upstream exchange's kline
// endpoint (GET /api/v3/klines?symbol=&interval=&startTime=&limit=),
// including the client-side rate limiter that keeps history backfills
// inside the exchange's request budget.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"candledash/internal/model"
	"candledash/internal/timeframe"
)

// Client is the contract the History Service depends on. The production
// implementation is RESTClient; tests substitute a fake.
type Client interface {
	// FetchKlines returns up to limit bars for pair at tf starting at
	// startTime (ms since epoch), ascending by OpenTime. limit is clamped
	// to 1000 by the adapter.
	FetchKlines(ctx context.Context, pair model.Pair, tf timeframe.Timeframe, startTime int64, limit int) ([]model.Bar, error)
}

// Config configures a RESTClient.
type Config struct {
	BaseURL string // e.g. "https://api.binance.com"
	// RequestsPerMinute is the rolling-window budget the adapter's limiter
	// enforces. Defaults to 1200.
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// RESTClient is the production exchange.Client: plain net/http plus a
// golang.org/x/time/rate token bucket enforcing the N-requests-per-rolling-
// minute budget.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	// OnWait, when set, is called each time a request blocks on the limiter.
	OnWait func()
	// OnRequest, when set, is called with each completed HTTP request's
	// duration, successful or not.
	OnRequest func(d time.Duration)
}

// NewRESTClient builds a RESTClient. A requests-per-minute budget of N is
// expressed as a token bucket refilling at N/60s with a burst of N so a
// cold start can use the whole first-minute budget immediately, exactly
// like the exchange's own rolling window.
func NewRESTClient(cfg Config) *RESTClient {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 1200
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RESTClient{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}
}

// klineRow is one element of the REST response's array-of-arrays payload:
// index 0 is open-time ms, 1-5 are OHLCV decimal strings, the remaining
// six fields are ignored.
type klineRow []json.RawMessage

func (r klineRow) decode() (model.Bar, error) {
	if len(r) < 6 {
		return model.Bar{}, fmt.Errorf("exchange: kline row has %d fields, want >= 6", len(r))
	}
	var openTime int64
	if err := json.Unmarshal(r[0], &openTime); err != nil {
		return model.Bar{}, fmt.Errorf("exchange: decode open_time: %w", err)
	}
	open, err := decodeDecimalString(r[1])
	if err != nil {
		return model.Bar{}, fmt.Errorf("exchange: decode open: %w", err)
	}
	high, err := decodeDecimalString(r[2])
	if err != nil {
		return model.Bar{}, fmt.Errorf("exchange: decode high: %w", err)
	}
	low, err := decodeDecimalString(r[3])
	if err != nil {
		return model.Bar{}, fmt.Errorf("exchange: decode low: %w", err)
	}
	closePrice, err := decodeDecimalString(r[4])
	if err != nil {
		return model.Bar{}, fmt.Errorf("exchange: decode close: %w", err)
	}
	volume, err := decodeDecimalString(r[5])
	if err != nil {
		return model.Bar{}, fmt.Errorf("exchange: decode volume: %w", err)
	}
	return model.Bar{
		OpenTime: openTime,
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		Closed:   true, // REST history only ever returns closed bars
	}, nil
}

func decodeDecimalString(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

// FetchKlines implements Client. One call is one paginated page; the
// history service drives pagination.
func (c *RESTClient) FetchKlines(ctx context.Context, pair model.Pair, tf timeframe.Timeframe, startTime int64, limit int) ([]model.Bar, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	if !c.limiter.Allow() {
		if c.OnWait != nil {
			c.OnWait()
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("exchange: rate limiter: %w", err)
		}
	}

	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&limit=%d",
		c.baseURL, pair.String(), tf.Tag(), startTime, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("exchange: build request: %w", err)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.OnRequest != nil {
		c.OnRequest(time.Since(started))
	}
	if err != nil {
		return nil, &TransportError{Op: "klines", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "klines", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var rows []klineRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &TransportError{Op: "klines", Err: fmt.Errorf("decode response: %w", err)}
	}

	bars := make([]model.Bar, 0, len(rows))
	for _, row := range rows {
		bar, err := row.decode()
		if err != nil {
			continue // malformed row: skip, don't fail the page
		}
		bars = append(bars, bar)
	}
	return bars, nil
}
