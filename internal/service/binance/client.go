package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/ratelimit"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/util"
)

// maxKlinesPerRequest is the exchange cap on one klines call.
const maxKlinesPerRequest = 1000

// Client fetches klines over the public REST API. Calls are throttled to
// the configured request weight budget.
type Client struct {
	api     *binance.Client
	limiter ratelimit.Limiter
	logger  *xlogger.Logger
}

type Option func(*Client)

// WithBaseURL points the client at another endpoint (testnet, mirror, test server).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.api.BaseURL = u
		}
	}
}

func WithLimiter(l ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithLogger(l *xlogger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.api.HTTPClient = &http.Client{Timeout: d}
		}
	}
}

func NewClient(apiKey, secretKey string, requestsPerMinute int, opts ...Option) *Client {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 600
	}
	c := &Client{
		api:     binance.NewClient(apiKey, secretKey),
		limiter: ratelimit.New(requestsPerMinute, ratelimit.Per(time.Minute)),
		logger:  xlogger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRecentCandles pages backwards from now until limit candles are
// collected or the exchange has no older data. The newest candle may still
// be forming.
func (c *Client) FetchRecentCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) (models.Series, error) {
	if _, err := tf.Hours(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return models.Series{}, nil
	}
	pair := util.ExchangeSymbol(symbol)

	var (
		pages   []models.Series
		total   int
		endTime int64
	)
	for total < limit {
		n := min(limit-total, maxKlinesPerRequest)
		svc := c.api.NewKlinesService().Symbol(pair).Interval(string(tf)).Limit(n)
		if endTime > 0 {
			svc = svc.EndTime(endTime)
		}

		c.limiter.Take()
		klines, err := svc.Do(ctx)
		if err != nil {
			c.logger.Error("binance klines request failed",
				xlogger.String("symbol", pair), xlogger.String("tf", string(tf)), xlogger.Error(err))
			return nil, fmt.Errorf("%w: binance klines %s %s: %w", models.ErrUpstreamData, pair, tf, err)
		}
		page, err := toSeries(klines)
		if err != nil {
			return nil, fmt.Errorf("%w: binance klines %s %s: %w", models.ErrUpstreamData, pair, tf, err)
		}
		if len(page) == 0 {
			break
		}
		pages = append(pages, page)
		total += len(page)
		if len(page) < n {
			break
		}
		endTime = page[0].Time.UnixMilli() - 1
	}

	out := make(models.Series, 0, total)
	for i := len(pages) - 1; i >= 0; i-- {
		out = append(out, pages[i]...)
	}
	return out.Tail(limit), nil
}

func toSeries(klines []*binance.Kline) (models.Series, error) {
	out := make(models.Series, 0, len(klines))
	for _, k := range klines {
		c, err := candleFromStrings(k.OpenTime, k.Open, k.High, k.Low, k.Close, k.Volume)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func candleFromStrings(openTime int64, o, h, l, cl, v string) (models.Candle, error) {
	c := models.Candle{Time: time.UnixMilli(openTime).UTC()}
	for _, f := range []struct {
		raw string
		dst *float64
	}{{o, &c.Open}, {h, &c.High}, {l, &c.Low}, {cl, &c.Close}, {v, &c.Volume}} {
		x, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return c, fmt.Errorf("kline at %d: %w", openTime, err)
		}
		*f.dst = x
	}
	return c, nil
}

var _ domrepo.CandleSource = (*Client)(nil)
