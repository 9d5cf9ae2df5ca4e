package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/service/cache"
	pkgcache "github.com/Yoitsuro/mySkripsiWebsite/pkg/cache"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/metrics"
)

type stubSource struct {
	series models.Series
	err    error
	calls  atomic.Int64
	limit  int
}

func (s *stubSource) FetchRecentCandles(_ context.Context, _ string, _ domrepo.Timeframe, limit int) (models.Series, error) {
	s.calls.Add(1)
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.series.Tail(limit).Clone(0), nil
}

type captureArchive struct {
	events []*models.ForecastEvent
	closed int
}

func (a *captureArchive) Store(_ context.Context, e *models.ForecastEvent) error {
	a.events = append(a.events, e)
	return nil
}
func (a *captureArchive) StoreBatch(_ context.Context, es []*models.ForecastEvent) error {
	a.events = append(a.events, es...)
	return nil
}
func (a *captureArchive) Health(context.Context) error { return nil }
func (a *captureArchive) Close() error                 { a.closed++; return nil }

var fixedNow = time.Date(2025, 3, 20, 12, 30, 0, 0, time.UTC)

func newForecastUC(t *testing.T, src domrepo.CandleSource, c cache.BytesCache, rec *ForecastRecorder) (*ForecastUseCase, *lastClosePlus) {
	t.Helper()
	ms, tab, _ := plusOneModels()
	engine, err := NewForecaster(ms, 24, domrepo.TF1h)
	require.NoError(t, err)
	uc := NewForecastUseCase(src, engine, c, rec, metrics.Nop{}, logger.NewNop(), ForecastSettings{
		DefaultSymbol:   "ETH/USDT",
		FetchLimit:      100,
		HistoryMargin:   5,
		MaxHorizonHours: 200,
		CacheTTL:        time.Minute,
	})
	uc.now = func() time.Time { return fixedNow }
	return uc, tab
}

func TestParseHorizons(t *testing.T) {
	got, err := ParseHorizons(" 24, 1 ,10,1", 100)
	require.NoError(t, err)
	assert.Equal(t, []int{24, 1, 10}, got)

	got, err = ParseHorizons("1,,2,", 100)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)

	for _, raw := range []string{"", "  ", ",,", "1,x", "0", "-3", "1.5", "101"} {
		_, err := ParseHorizons(raw, 100)
		assert.ErrorIs(t, err, models.ErrMalformedInput, raw)
	}
}

func TestForecastUseCaseHappyPath(t *testing.T) {
	src := &stubSource{series: makeSeries(150, time.Hour)}
	archive := &captureArchive{}
	rec := NewForecastRecorder(nil, archive, metrics.Nop{}, "clickhouse")
	uc, _ := newForecastUC(t, src, nil, rec)

	report, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "1,10"})
	require.NoError(t, err)

	assert.Equal(t, 100, src.limit)
	assert.Equal(t, "ETH/USDT", report.Symbol)
	assert.Equal(t, "1h", report.Timeframe)
	assert.Equal(t, fixedNow, report.GeneratedAt)
	require.Len(t, report.Horizons, 2)
	last := src.series.Last()
	assert.Equal(t, last.Time, report.LastCandle)
	assert.Equal(t, 10, report.Horizons[1].StepsUsed)
	assert.InDelta(t, last.Close+10, report.Horizons[1].Prediction, 1e-9)
	assert.Equal(t, fixedNow.Add(10*time.Hour), report.Horizons[1].TargetTime)
	require.Len(t, archive.events, 2)
	assert.Equal(t, 10, archive.events[1].Hours)
	assert.Equal(t, last.Close, archive.events[1].LastClose)
}

func TestForecastUseCaseMalformedHorizonsSkipFetch(t *testing.T) {
	src := &stubSource{series: makeSeries(150, time.Hour)}
	uc, _ := newForecastUC(t, src, nil, nil)
	_, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "abc"})
	assert.ErrorIs(t, err, models.ErrMalformedInput)
	assert.Zero(t, src.calls.Load())
}

func TestForecastUseCaseUpstreamErrors(t *testing.T) {
	uc, tab := newForecastUC(t, &stubSource{err: errors.New("timeout")}, nil, nil)
	_, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "1"})
	assert.ErrorIs(t, err, models.ErrUpstreamData)

	uc, _ = newForecastUC(t, &stubSource{series: models.Series{}}, nil, nil)
	_, err = uc.Forecast(context.Background(), ForecastParams{Horizons: "1"})
	assert.ErrorIs(t, err, models.ErrUpstreamData)

	bad := makeSeries(50, time.Hour)
	bad[10].Time = bad[9].Time
	uc, _ = newForecastUC(t, &stubSource{series: bad}, nil, nil)
	_, err = uc.Forecast(context.Background(), ForecastParams{Horizons: "1"})
	assert.ErrorIs(t, err, models.ErrUpstreamData)
	assert.Zero(t, tab.calls.Load())
}

func TestForecastUseCaseInsufficientHistory(t *testing.T) {
	uc, tab := newForecastUC(t, &stubSource{series: makeSeries(28, time.Hour)}, nil, nil)
	_, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "1"})
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
	assert.Zero(t, tab.calls.Load(), "no model runs before the history check")
}

func TestForecastUseCaseCachesIdenticalSeries(t *testing.T) {
	src := &stubSource{series: makeSeries(150, time.Hour)}
	uc, tab := newForecastUC(t, src, pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0)), nil)

	first, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "1,3"})
	require.NoError(t, err)
	calls := tab.calls.Load()

	uc.now = func() time.Time { return fixedNow.Add(time.Minute) }
	second, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "1,3"})
	require.NoError(t, err)
	assert.Equal(t, calls, tab.calls.Load(), "served from cache")
	assert.Equal(t, first.Horizons[1].Prediction, second.Horizons[1].Prediction)
	assert.Equal(t, fixedNow.Add(time.Minute+3*time.Hour), second.Horizons[1].TargetTime)

	src.series = append(src.series, models.Candle{Time: src.series.Last().Time.Add(time.Hour), Open: 1, High: 1, Low: 1, Close: 1, Volume: 1})
	_, err = uc.Forecast(context.Background(), ForecastParams{Horizons: "1,3"})
	require.NoError(t, err)
	assert.Greater(t, tab.calls.Load(), calls, "new candle invalidates")
}

func TestForecastUseCaseRecomputesWhenFormingCandleMoves(t *testing.T) {
	src := &stubSource{series: makeSeries(150, time.Hour)}
	c := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer c.Close()
	uc, _ := newForecastUC(t, src, c, nil)

	first, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "1"})
	require.NoError(t, err)

	// same open time, new close
	src.series[len(src.series)-1].Close += 50
	second, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "1"})
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.Equal(t, first.LastCandle, second.LastCandle)
	assert.InDelta(t, first.Horizons[0].Prediction+50, second.Horizons[0].Prediction, 1e-9)

	third, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "1"})
	require.NoError(t, err)
	assert.True(t, third.Cached)
	assert.Equal(t, second.Horizons[0].Prediction, third.Horizons[0].Prediction)
}

type frozenSource struct {
	series models.Series
}

func (s *frozenSource) FetchRecentCandles(_ context.Context, _ string, _ domrepo.Timeframe, limit int) (models.Series, error) {
	return s.series.Tail(limit).Clone(0), nil
}

func TestForecastUseCaseComputesOnceForConcurrentRequests(t *testing.T) {
	src := &frozenSource{series: makeSeries(150, time.Hour)}
	ref, refTab := newForecastUC(t, src, nil, nil)
	_, err := ref.Forecast(context.Background(), ForecastParams{Horizons: "1,5"})
	require.NoError(t, err)
	oneRun := refTab.calls.Load()

	c := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer c.Close()
	uc, tab := newForecastUC(t, src, c, nil)

	const n = 8
	var (
		wg     sync.WaitGroup
		cached atomic.Int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "1,5"})
			if assert.NoError(t, err) && report.Cached {
				cached.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, oneRun, tab.calls.Load(), "one recursion for identical requests")
	assert.Equal(t, int64(n-1), cached.Load())
}

type lockFailCache struct {
	*pkgcache.MemoryCache
}

func (lockFailCache) TryLock(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestForecastUseCaseComputesWhenLockFails(t *testing.T) {
	mc := pkgcache.NewMemoryCache(pkgcache.WithMemoryCleanup(0))
	defer mc.Close()
	uc, tab := newForecastUC(t, &stubSource{series: makeSeries(150, time.Hour)}, lockFailCache{mc}, nil)

	report, err := uc.Forecast(context.Background(), ForecastParams{Horizons: "3"})
	require.NoError(t, err)
	assert.False(t, report.Cached)
	assert.Positive(t, tab.calls.Load())
}
