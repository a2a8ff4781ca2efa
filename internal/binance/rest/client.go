package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"chart-feed/internal/market"

	"go.uber.org/zap"
)

// MaxKlines caps a single historical window to bound memory and request
// cost; the upstream API enforces the same limit.
const MaxKlines = 1000

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// Klines fetches up to limit historical candles for a symbol and interval
// and normalizes them to the canonical shape. The result is ascending by
// time with one candle per bucket. Errors never escape as panics; callers
// surface them as a failed-load status.
func (c *Client) Klines(ctx context.Context, symbol string, interval market.Interval, limit int) ([]market.Candle, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if limit <= 0 || limit > MaxKlines {
		limit = MaxKlines
	}
	u, err := url.Parse(c.baseURL + "/api/v3/klines")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("interval", string(interval))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	candles := market.NormalizeCandles(payload, interval)
	if c.log != nil {
		c.log.Debug("historical klines loaded",
			zap.String("symbol", symbol),
			zap.String("interval", string(interval)),
			zap.Int("count", len(candles)),
		)
	}
	return candles, nil
}
