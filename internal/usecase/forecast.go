package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/service/cache"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
)

const (
	lockTTL  = 30 * time.Second
	lockWait = 5 * time.Second
	lockPoll = 20 * time.Millisecond
)

// ForecastSettings are the request-independent knobs of ForecastUseCase.
type ForecastSettings struct {
	DefaultSymbol   string
	FetchLimit      int
	HistoryMargin   int
	MaxHorizonHours int
	ReuseTrajectory bool
	CacheTTL        time.Duration
}

// ForecastUseCase fetches recent candles and runs the horizon scheduler.
type ForecastUseCase struct {
	source   domrepo.CandleSource
	engine   *Forecaster
	cache    cache.BytesCache
	recorder *ForecastRecorder
	metrics  domrepo.Metrics
	logger   *xlogger.Logger
	cfg      ForecastSettings
	now      func() time.Time
}

func NewForecastUseCase(
	source domrepo.CandleSource,
	engine *Forecaster,
	c cache.BytesCache,
	recorder *ForecastRecorder,
	metrics domrepo.Metrics,
	logger *xlogger.Logger,
	cfg ForecastSettings,
) *ForecastUseCase {
	return &ForecastUseCase{
		source:   source,
		engine:   engine,
		cache:    c,
		recorder: recorder,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

type ForecastParams struct {
	Symbol   string
	Horizons string
}

// ParseHorizons reads a comma separated list of positive hour counts.
// Empty segments are skipped and duplicates keep their first position.
func ParseHorizons(raw string, maxHours int) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: horizons list is empty", models.ErrMalformedInput)
	}
	seen := make(map[int]bool)
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: horizon %q is not an integer", models.ErrMalformedInput, part)
		}
		if h <= 0 {
			return nil, fmt.Errorf("%w: horizon %d must be positive", models.ErrMalformedInput, h)
		}
		if maxHours > 0 && h > maxHours {
			return nil, fmt.Errorf("%w: horizon %d exceeds %d hours", models.ErrMalformedInput, h, maxHours)
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: horizons list is empty", models.ErrMalformedInput)
	}
	return out, nil
}

// Forecast answers one forecast request. Input and data problems are
// reported before any model runs.
func (uc *ForecastUseCase) Forecast(ctx context.Context, p ForecastParams) (*models.ForecastReport, error) {
	start := uc.now()
	symbol := p.Symbol
	if symbol == "" {
		symbol = uc.cfg.DefaultSymbol
	}
	hours, err := ParseHorizons(p.Horizons, uc.cfg.MaxHorizonHours)
	if err != nil {
		uc.metrics.RecordError("malformed_input")
		return nil, err
	}

	tf := uc.engine.Timeframe()
	series, err := uc.fetch(ctx, symbol, tf)
	if err != nil {
		uc.metrics.RecordError("upstream")
		uc.logger.Error("fetch candles failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return nil, err
	}
	need := uc.engine.SeqLen() + uc.cfg.HistoryMargin
	if len(series) < need {
		uc.metrics.RecordError("insufficient_history")
		return nil, fmt.Errorf("%w: got %d candles for %s, need %d", models.ErrInsufficientHistory, len(series), symbol, need)
	}
	last := series.Last()
	uc.metrics.RecordLastPrice(symbol, last.Close)

	key := cache.ForecastKey(symbol, string(tf), series, hours)
	results, hit, err := uc.compute(ctx, key, series, hours)
	if err != nil {
		uc.metrics.RecordError("computation")
		uc.logger.Error("forecast computation failed",
			xlogger.String("symbol", symbol), xlogger.Ints("horizons", hours), xlogger.Error(err))
		return nil, err
	}

	for i := range results {
		results[i].TargetTime = start.Add(time.Duration(results[i].RequestedHours) * time.Hour)
	}
	report := &models.ForecastReport{
		Symbol:      symbol,
		Timeframe:   string(tf),
		GeneratedAt: start,
		LastCandle:  last.Time,
		Horizons:    results,
		Cached:      hit,
	}

	uc.metrics.RecordForecast(symbol, len(results))
	uc.metrics.RecordLatency("forecast", uc.now().Sub(start).Seconds())
	if uc.recorder != nil && !hit {
		if err := uc.recorder.Record(ctx, report, last.Close); err != nil {
			uc.logger.Warn("archive forecast failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		}
	}
	uc.logger.Info("forecast served",
		xlogger.String("symbol", symbol),
		xlogger.Ints("horizons", hours),
		xlogger.Bool("cached", hit),
		xlogger.Duration("took", uc.now().Sub(start)))
	return report, nil
}

func (uc *ForecastUseCase) fetch(ctx context.Context, symbol string, tf domrepo.Timeframe) (models.Series, error) {
	series, err := uc.source.FetchRecentCandles(ctx, symbol, tf, uc.cfg.FetchLimit)
	if err != nil {
		if errors.Is(err, models.ErrUpstreamData) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: fetch %s %s: %w", models.ErrUpstreamData, symbol, tf, err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s %s", models.ErrUpstreamData, symbol, tf)
	}
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUpstreamData, err)
	}
	return series, nil
}

// compute returns the cached results for key or runs the scheduler. While
// one caller computes a key, identical requests wait for its result.
func (uc *ForecastUseCase) compute(ctx context.Context, key string, series models.Series, hours []int) ([]models.HorizonResult, bool, error) {
	if results, hit := uc.cached(ctx, key); hit {
		return results, true, nil
	}
	if uc.cache != nil && uc.cfg.CacheTTL > 0 {
		release, results, hit := uc.acquire(ctx, key)
		if hit {
			return results, true, nil
		}
		defer release()
	}

	results, err := uc.engine.ForecastHorizons(ctx, series, hours, uc.cfg.ReuseTrajectory)
	if err != nil {
		return nil, false, err
	}
	uc.store(ctx, key, results)
	for _, r := range results {
		uc.metrics.RecordSteps(r.StepsUsed)
	}
	return results, false, nil
}

// acquire takes the compute lock of key. When another caller holds it the
// cache is polled until that result lands or lockWait passes; on timeout or
// lock errors the caller computes without the lock.
func (uc *ForecastUseCase) acquire(ctx context.Context, key string) (func(), []models.HorizonResult, bool) {
	lockKey := key + ":lock"
	noop := func() {}
	deadline := time.Now().Add(lockWait)
	for {
		ok, err := uc.cache.TryLock(ctx, lockKey, lockTTL)
		if err != nil {
			uc.logger.Warn("forecast cache lock failed", xlogger.String("key", key), xlogger.Error(err))
			return noop, nil, false
		}
		if ok {
			release := func() {
				if err := uc.cache.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
					uc.logger.Warn("forecast cache unlock failed", xlogger.String("key", key), xlogger.Error(err))
				}
			}
			// the holder we waited on may have finished between our read and the lock
			if results, hit := uc.cached(ctx, key); hit {
				release()
				return noop, results, true
			}
			return release, nil, false
		}
		if time.Now().After(deadline) {
			return noop, nil, false
		}
		select {
		case <-ctx.Done():
			return noop, nil, false
		case <-time.After(lockPoll):
		}
		if results, hit := uc.cached(ctx, key); hit {
			return noop, results, true
		}
	}
}

func (uc *ForecastUseCase) cached(ctx context.Context, key string) ([]models.HorizonResult, bool) {
	if uc.cache == nil {
		return nil, false
	}
	b, ok, err := uc.cache.GetBytes(ctx, key)
	if err != nil {
		uc.logger.Warn("forecast cache read failed", xlogger.String("key", key), xlogger.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var results []models.HorizonResult
	if err := json.Unmarshal(b, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (uc *ForecastUseCase) store(ctx context.Context, key string, results []models.HorizonResult) {
	if uc.cache == nil || uc.cfg.CacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(results)
	if err != nil {
		return
	}
	if err := uc.cache.SetBytes(ctx, key, b, uc.cfg.CacheTTL); err != nil {
		uc.logger.Warn("forecast cache write failed", xlogger.String("key", key), xlogger.Error(err))
	}
}
