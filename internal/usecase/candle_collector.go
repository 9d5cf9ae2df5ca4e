package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	drepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
)

// CandleBook keeps the newest candles of one market, updated in place by
// kline events. The forming candle is replaced until its successor opens.
type CandleBook struct {
	mu       sync.RWMutex
	symbol   string
	tf       drepo.Timeframe
	capacity int
	candles  models.Series
	updated  time.Time
}

func NewCandleBook(symbol string, tf drepo.Timeframe, capacity int) *CandleBook {
	return &CandleBook{symbol: symbol, tf: tf, capacity: capacity}
}

// Serves reports whether the book tracks symbol at tf.
func (b *CandleBook) Serves(symbol string, tf drepo.Timeframe) bool {
	return strings.EqualFold(b.symbol, symbol) && b.tf == tf
}

// Seed replaces the content with a fetched series.
func (b *CandleBook) Seed(s models.Series, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.candles = s.Tail(b.capacity).Clone(0)
	b.updated = at
}

// Upsert applies one kline update. Updates older than the newest candle are ignored.
func (b *CandleBook) Upsert(c models.Candle, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.candles)
	switch {
	case n > 0 && c.Time.Equal(b.candles[n-1].Time):
		b.candles[n-1] = c
	case n == 0 || c.Time.After(b.candles[n-1].Time):
		b.candles = append(b.candles, c)
		if len(b.candles) > b.capacity {
			b.candles = b.candles[len(b.candles)-b.capacity:].Clone(0)
		}
	default:
		return
	}
	b.updated = at
}

// Snapshot returns a copy of the newest limit candles and the last update time.
func (b *CandleBook) Snapshot(limit int) (models.Series, time.Time) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.candles.Tail(limit).Clone(0), b.updated
}

// CandleSink receives every kline update after the book has applied it.
type CandleSink interface {
	Process(ctx context.Context, c models.Candle) error
}

// CandleCollector feeds a CandleBook from a live kline stream.
type CandleCollector struct {
	stream  drepo.CandleStream
	book    *CandleBook
	sink    CandleSink
	metrics drepo.Metrics
	logger  *xlogger.Logger
	now     func() time.Time
}

type CollectorOption func(*CandleCollector)

// WithCandleSink forwards kline updates to s, e.g. a persistence pipeline.
func WithCandleSink(s CandleSink) CollectorOption {
	return func(c *CandleCollector) { c.sink = s }
}

func NewCandleCollector(stream drepo.CandleStream, book *CandleBook, metrics drepo.Metrics, logger *xlogger.Logger, opts ...CollectorOption) *CandleCollector {
	c := &CandleCollector{stream: stream, book: book, metrics: metrics, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConnected returns true if the stream is connected.
func (c *CandleCollector) IsConnected() bool { return c.stream.IsConnected() }

func (c *CandleCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	candles, errs := c.stream.Read(ctx)
	go c.consume(ctx, candles, errs)
	return nil
}

func (c *CandleCollector) consume(ctx context.Context, candles <-chan models.Candle, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			c.metrics.RecordError("stream")
			c.logger.Warn("kline stream error, reconnecting", xlogger.Error(err))
			if candles, errs, ok = c.reconnect(ctx); !ok {
				return
			}
		case k, ok := <-candles:
			if !ok {
				if candles, errs, ok = c.reconnect(ctx); !ok {
					return
				}
				continue
			}
			c.book.Upsert(k, c.now())
			c.metrics.RecordLastPrice(c.book.symbol, k.Close)
			if c.sink != nil {
				if err := c.sink.Process(ctx, k); err != nil {
					c.logger.Debug("candle sink rejected update", xlogger.Error(err))
				}
			}
		}
	}
}

func (c *CandleCollector) reconnect(ctx context.Context) (<-chan models.Candle, <-chan error, bool) {
	if ctx.Err() != nil {
		return nil, nil, false
	}
	if err := c.stream.Reconnect(ctx); err != nil {
		c.logger.Error("kline stream reconnect failed", xlogger.Error(err))
		return nil, nil, false
	}
	candles, errs := c.stream.Read(ctx)
	return candles, errs, true
}

// Shutdown closes the stream.
func (c *CandleCollector) Shutdown(context.Context) error { return c.stream.Close() }

// LiveCandleSource answers from the book while it is fresh and deep enough,
// and falls back to the wrapped source otherwise (reseeding the book).
type LiveCandleSource struct {
	book       *CandleBook
	fallback   drepo.CandleSource
	staleAfter time.Duration
	now        func() time.Time
}

func NewLiveCandleSource(book *CandleBook, fallback drepo.CandleSource, staleAfter time.Duration) *LiveCandleSource {
	return &LiveCandleSource{book: book, fallback: fallback, staleAfter: staleAfter, now: time.Now}
}

func (s *LiveCandleSource) FetchRecentCandles(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) (models.Series, error) {
	if !s.book.Serves(symbol, tf) {
		return s.fallback.FetchRecentCandles(ctx, symbol, tf, limit)
	}
	snap, updated := s.book.Snapshot(limit)
	if len(snap) >= limit && s.now().Sub(updated) <= s.staleAfter {
		return snap, nil
	}
	series, err := s.fallback.FetchRecentCandles(ctx, symbol, tf, limit)
	if err != nil {
		return nil, err
	}
	s.book.Seed(series, s.now())
	return series, nil
}

var _ drepo.CandleSource = (*LiveCandleSource)(nil)
