package tushare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"alphaspike/internal/domain/models"
	"alphaspike/internal/service/ratelimit"
	xhttp "alphaspike/pkg/http"
	applogger "alphaspike/pkg/logger"
)

// ErrNoData marks a window for which the vendor has no rows. Callers
// treat it as "already up to date", not as a failure.
var ErrNoData = errors.New("tushare: no data for window")

const barFields = "ts_code,trade_date,open,high,low,close,pre_close,change,pct_chg,vol,amount"

// Client calls the tushare pro HTTP API with a global request-interval
// rate limit, a per-minute quota guard and bounded retry with
// exponential backoff.
type Client struct {
	token        string
	baseURL      string
	rateInterval time.Duration
	maxRetries   int
	retryBackoff time.Duration
	timeout      time.Duration
	httpClient   *xhttp.Client
	quota        *ratelimit.QuotaGuard
	l            *applogger.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

type Option func(*Client)

// WithRate sets the minimum interval between requests. The vendor
// allows ~45 requests/minute; the default keeps a safety margin.
func WithRate(interval time.Duration) Option {
	return func(c *Client) { c.rateInterval = interval }
}

// WithRetry sets the retry budget for transient failures.
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryBackoff = backoff
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

// WithQuota caps requests per minute on top of the interval spacing.
func WithQuota(perMinute int) Option {
	return func(c *Client) {
		if perMinute > 0 {
			c.quota = ratelimit.New(perMinute)
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

// New creates a tushare client.
func New(token, baseURL string, opts ...Option) *Client {
	c := &Client{
		token:        token,
		baseURL:      baseURL,
		rateInterval: 1400 * time.Millisecond,
		maxRetries:   3,
		retryBackoff: 500 * time.Millisecond,
		timeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = xhttp.NewClient(xhttp.WithTimeout(c.timeout))
	return c
}

type apiRequest struct {
	APIName string            `json:"api_name"`
	Token   string            `json:"token"`
	Params  map[string]string `json:"params"`
	Fields  string            `json:"fields"`
}

type apiResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string          `json:"fields"`
		Items  [][]json.RawMessage `json:"items"`
	} `json:"data"`
}

// FetchDaily returns the daily bars for [start, end], sorted ascending
// by date. Transient transport errors are retried with backoff before
// surfacing; ErrNoData is returned for an empty window.
func (c *Client) FetchDaily(ctx context.Context, symbol, start, end string) (models.BarSeries, error) {
	req := apiRequest{
		APIName: "daily",
		Token:   c.token,
		Params: map[string]string{
			"ts_code":    symbol,
			"start_date": start,
			"end_date":   end,
		},
		Fields: barFields,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryBackoff << (attempt - 1)
			if c.l != nil {
				c.l.Warn("vendor fetch retry",
					applogger.String("symbol", symbol),
					applogger.Int("attempt", attempt),
					applogger.Duration("backoff", backoff),
					applogger.Error(lastErr),
				)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		bars, err := c.fetchOnce(ctx, req, symbol)
		if err == nil || errors.Is(err, ErrNoData) || errors.Is(err, context.Canceled) {
			return bars, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch %s after %d retries: %w", symbol, c.maxRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, req apiRequest, symbol string) (models.BarSeries, error) {
	if c.quota != nil {
		if err := c.quota.Reserve(ctx); err != nil {
			return nil, err
		}
	}
	c.throttle()

	var ar apiResponse
	err := c.httpClient.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    c.baseURL,
		Body:   req,
	}, &ar)
	if err != nil {
		return nil, err
	}
	if ar.Code != 0 {
		return nil, fmt.Errorf("api error %d: %s", ar.Code, ar.Msg)
	}
	if len(ar.Data.Items) == 0 {
		return nil, ErrNoData
	}

	idx := fieldIndex(ar.Data.Fields)
	bars := make(models.BarSeries, 0, len(ar.Data.Items))
	for _, item := range ar.Data.Items {
		b, err := parseBar(item, idx)
		if err != nil {
			// Sparse rows show up on partial trading days; drop them.
			continue
		}
		bars = append(bars, b)
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	// The API returns newest-first; the store requires ascending dates.
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	return bars, nil
}

// throttle enforces the request interval across goroutines.
func (c *Client) throttle() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.rateInterval {
		// Hold the lock while sleeping so concurrent fetchers queue up
		// behind the shared interval instead of bursting.
		time.Sleep(c.rateInterval - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func fieldIndex(fields []string) map[string]int {
	idx := make(map[string]int, len(fields))
	for i, f := range fields {
		idx[f] = i
	}
	return idx
}

func parseBar(item []json.RawMessage, idx map[string]int) (models.Bar, error) {
	var b models.Bar

	str := func(name string) (string, error) {
		i, ok := idx[name]
		if !ok || i >= len(item) {
			return "", fmt.Errorf("missing field %s", name)
		}
		var s string
		if err := json.Unmarshal(item[i], &s); err != nil {
			return "", fmt.Errorf("field %s: %w", name, err)
		}
		return s, nil
	}
	num := func(name string) (float64, error) {
		i, ok := idx[name]
		if !ok || i >= len(item) {
			return 0, fmt.Errorf("missing field %s", name)
		}
		var v float64
		if err := json.Unmarshal(item[i], &v); err != nil {
			return 0, fmt.Errorf("field %s: %w", name, err)
		}
		return v, nil
	}

	var err error
	if b.Symbol, err = str("ts_code"); err != nil {
		return b, err
	}
	if b.Date, err = str("trade_date"); err != nil {
		return b, err
	}
	if b.Open, err = num("open"); err != nil {
		return b, err
	}
	if b.High, err = num("high"); err != nil {
		return b, err
	}
	if b.Low, err = num("low"); err != nil {
		return b, err
	}
	if b.Close, err = num("close"); err != nil {
		return b, err
	}
	if b.PreClose, err = num("pre_close"); err != nil {
		return b, err
	}
	if b.Change, err = num("change"); err != nil {
		return b, err
	}
	if b.PctChg, err = num("pct_chg"); err != nil {
		return b, err
	}
	if b.Volume, err = num("vol"); err != nil {
		return b, err
	}
	if b.Amount, err = num("amount"); err != nil {
		return b, err
	}
	return b, nil
}
