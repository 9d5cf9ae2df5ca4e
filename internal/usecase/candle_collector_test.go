package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/metrics"
)

func TestCandleBookUpsert(t *testing.T) {
	b := NewCandleBook("ETH/USDT", domrepo.TF1h, 3)
	s := makeSeries(3, time.Hour)
	b.Seed(s, base)

	forming := s.Last()
	forming.Close = 999
	b.Upsert(forming, base.Add(time.Second))
	snap, _ := b.Snapshot(10)
	require.Len(t, snap, 3)
	assert.Equal(t, 999.0, snap.Last().Close)

	next := models.Candle{Time: forming.Time.Add(time.Hour), Close: 1000}
	b.Upsert(next, base.Add(2*time.Second))
	snap, updated := b.Snapshot(10)
	require.Len(t, snap, 3, "capacity holds")
	assert.Equal(t, next.Time, snap.Last().Time)
	assert.Equal(t, base.Add(2*time.Second), updated)

	b.Upsert(s[0], base.Add(3*time.Second))
	_, updated = b.Snapshot(10)
	assert.Equal(t, base.Add(2*time.Second), updated, "old updates ignored")
}

func TestLiveCandleSourceFreshAndStale(t *testing.T) {
	src := &stubSource{series: makeSeries(40, time.Hour)}
	book := NewCandleBook("ETH/USDT", domrepo.TF1h, 40)
	live := NewLiveCandleSource(book, src, time.Minute)
	now := base
	live.now = func() time.Time { return now }

	got, err := live.FetchRecentCandles(context.Background(), "ETH/USDT", domrepo.TF1h, 30)
	require.NoError(t, err)
	assert.Len(t, got, 30)
	assert.EqualValues(t, 1, src.calls.Load(), "empty book falls back")

	now = now.Add(30 * time.Second)
	_, err = live.FetchRecentCandles(context.Background(), "ETH/USDT", domrepo.TF1h, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 1, src.calls.Load(), "fresh book served")

	now = now.Add(5 * time.Minute)
	_, err = live.FetchRecentCandles(context.Background(), "ETH/USDT", domrepo.TF1h, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.calls.Load(), "stale book refetched")

	_, err = live.FetchRecentCandles(context.Background(), "BTC/USDT", domrepo.TF1h, 30)
	require.NoError(t, err)
	assert.EqualValues(t, 3, src.calls.Load(), "other markets pass through")
}

type chanStream struct {
	candles chan models.Candle
	errs    chan error
	closed  bool
}

func (s *chanStream) Connect(context.Context) error   { return nil }
func (s *chanStream) Subscribe(context.Context) error { return nil }
func (s *chanStream) Read(context.Context) (<-chan models.Candle, <-chan error) {
	return s.candles, s.errs
}
func (s *chanStream) Reconnect(context.Context) error { return nil }
func (s *chanStream) Close() error                    { s.closed = true; return nil }
func (s *chanStream) IsConnected() bool               { return !s.closed }

func TestCandleCollectorFeedsBook(t *testing.T) {
	stream := &chanStream{candles: make(chan models.Candle), errs: make(chan error)}
	book := NewCandleBook("ETH/USDT", domrepo.TF1h, 10)
	col := NewCandleCollector(stream, book, metrics.Nop{}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, col.Start(ctx))

	for _, c := range makeSeries(3, time.Hour) {
		stream.candles <- c
	}
	assert.Eventually(t, func() bool {
		snap, _ := book.Snapshot(10)
		return len(snap) == 3
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, col.Shutdown(ctx))
	assert.False(t, col.IsConnected())
}

type countingSink struct {
	n atomic.Int64
}

func (s *countingSink) Process(context.Context, models.Candle) error {
	s.n.Add(1)
	return nil
}

func TestCandleCollectorForwardsToSink(t *testing.T) {
	stream := &chanStream{candles: make(chan models.Candle), errs: make(chan error)}
	book := NewCandleBook("ETH/USDT", domrepo.TF1h, 10)
	sink := &countingSink{}
	col := NewCandleCollector(stream, book, metrics.Nop{}, logger.NewNop(), WithCandleSink(sink))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, col.Start(ctx))

	for _, c := range makeSeries(4, time.Hour) {
		stream.candles <- c
	}
	assert.Eventually(t, func() bool { return sink.n.Load() == 4 }, time.Second, 10*time.Millisecond)
}
