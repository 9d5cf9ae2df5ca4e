package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/service/ratelimit"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/usecase"
	xhttp "github.com/Yoitsuro/mySkripsiWebsite/pkg/http"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/metrics"
)

type fakeSource struct {
	series models.Series
	err    error
}

func (f *fakeSource) FetchRecentCandles(_ context.Context, _ string, _ domrepo.Timeframe, limit int) (models.Series, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.series.Tail(limit), nil
}

type fakeReference struct {
	table  models.MetricsTable
	points []models.EvalPoint
	err    error
}

func (f *fakeReference) Metrics(context.Context) (models.MetricsTable, error) {
	return f.table, f.err
}

func (f *fakeReference) EvalSeries(_ context.Context, limit int) ([]models.EvalPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.points) {
		return f.points[len(f.points)-limit:], nil
	}
	return f.points, nil
}

type constTab float64

func (c constTab) Predict(_ context.Context, batch [][]float64) ([]float64, error) {
	out := make([]float64, len(batch))
	for i := range out {
		out[i] = float64(c)
	}
	return out, nil
}

type constSeq float64

func (c constSeq) PredictSequences(_ context.Context, batch [][][]float64) ([]float64, error) {
	out := make([]float64, len(batch))
	for i := range out {
		out[i] = float64(c)
	}
	return out, nil
}

// firstInput returns the tree model prediction unchanged.
type firstInput struct{}

func (firstInput) Predict(_ context.Context, batch [][]float64) ([]float64, error) {
	out := make([]float64, len(batch))
	for i, x := range batch {
		out[i] = x[0]
	}
	return out, nil
}

func series(n int) models.Series {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := make(models.Series, n)
	for i := range s {
		c := 2000 + 30*math.Sin(float64(i)/5)
		s[i] = models.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c - 1,
			High:   c + 4,
			Low:    c - 5,
			Close:  c,
			Volume: 500 + float64(i%11),
		}
	}
	return s
}

type testEnv struct {
	e      *echo.Echo
	h      *ForecastEchoHandler
	source *fakeSource
	ref    *fakeReference
}

func newTestEnv(t *testing.T, capacity float64) *testEnv {
	t.Helper()
	src := &fakeSource{series: series(120)}
	ref := &fakeReference{}

	ms, err := domsvc.NewModelSet(constTab(2050), constSeq(1990), firstInput{})
	require.NoError(t, err)
	engine, err := usecase.NewForecaster(ms, 24, domrepo.TF1h)
	require.NoError(t, err)

	forecast := usecase.NewForecastUseCase(src, engine, nil, nil, metrics.Nop{}, logger.NewNop(), usecase.ForecastSettings{
		DefaultSymbol:   "ETH/USDT",
		FetchLimit:      100,
		HistoryMargin:   5,
		MaxHorizonHours: 168,
	})
	history := usecase.NewHistoryUseCase(src, domrepo.TF1h, "ETH/USDT")
	reference := usecase.NewReferenceUseCase(ref)

	h := NewForecastEchoHandler(logger.NewNop(), forecast, history, reference, ratelimit.New(), HandlerSettings{
		DefaultHorizons: "1,24",
		RateCapacity:    capacity,
		RateRefill:      0,
	})
	e := echo.New()
	e.JSONSerializer = &xhttp.SonicSerializer{}
	e.IPExtractor = xhttp.ClientIPExtractor(nil)
	h.RegisterRoutes(e)
	return &testEnv{e: e, h: h, source: src, ref: ref}
}

func (env *testEnv) get(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Status int `json:"status"`
	Data   []struct {
		Code string `json:"code"`
	} `json:"data"`
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotEmpty(t, env.Data)
	assert.Equal(t, rec.Code, env.Status)
	return env.Data[0].Code
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 100)
	rec := env.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReady(t *testing.T) {
	env := newTestEnv(t, 100)
	rec := env.get("/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{}}`, rec.Body.String())

	env.h.AddReadinessCheck("archive", func(context.Context) error { return nil })
	env.h.AddReadinessCheck("cache", func(context.Context) error { return errors.New("connection refused") })
	rec = env.get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Data []struct {
			Code  string `json:"code"`
			Field string `json:"field"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_NOT_READY", body.Data[0].Code)
	assert.Equal(t, "cache", body.Data[0].Field)
}

func TestHistoryDefaultsToOneDay(t *testing.T) {
	env := newTestEnv(t, 100)
	rec := env.get("/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ETH/USDT", body.Symbol)
	assert.Equal(t, "1h", body.Timeframe)
	assert.Equal(t, 1, body.Days)
	require.Len(t, body.Data, 24)
	assert.Equal(t, "2025-03-05T23:00:00Z", body.Data[23].Timestamp)
}

func TestHistoryRejectsUnsupportedDays(t *testing.T) {
	env := newTestEnv(t, 100)
	rec := env.get("/history?days=2")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForecastDefaultHorizonsKeepOrder(t *testing.T) {
	env := newTestEnv(t, 100)
	rec := env.get("/forecast?horizons=24,1")
	require.Equal(t, http.StatusOK, rec.Code)

	raw := rec.Body.String()
	assert.Less(t, strings.Index(raw, `"24h"`), strings.Index(raw, `"1h"`))

	var body struct {
		Symbol        string `json:"symbol"`
		Timeframe     string `json:"timeframe"`
		LastCandleUTC string `json:"last_candle_utc"`
		Results       map[string]models.HorizonEntry
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ETH/USDT", body.Symbol)
	assert.Equal(t, "2025-03-05T23:00:00Z", body.LastCandleUTC)
	require.Len(t, body.Results, 2)
	assert.Equal(t, 24, body.Results["24h"].StepsUsed)
	assert.Equal(t, 1, body.Results["1h"].StepsUsed)
	assert.InDelta(t, 2050, body.Results["24h"].PredStack, 1e-9)
	assert.NotEmpty(t, body.Results["1h"].TargetTimeUTC)
	assert.NotEmpty(t, body.Results["1h"].TargetTimeLocal)
}

func TestForecastUsesConfiguredHorizonsWhenAbsent(t *testing.T) {
	env := newTestEnv(t, 100)
	rec := env.get("/forecast")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results map[string]models.HorizonEntry `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Results, "1h")
	assert.Contains(t, body.Results, "24h")
}

func TestForecastErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		setup  func(env *testEnv)
		status int
		code   string
	}{
		{name: "empty horizons", target: "/forecast?horizons=", status: http.StatusBadRequest, code: "ERR_BAD_REQUEST"},
		{name: "non numeric horizon", target: "/forecast?horizons=1,abc", status: http.StatusBadRequest, code: "ERR_BAD_REQUEST"},
		{name: "horizon over limit", target: "/forecast?horizons=500", status: http.StatusBadRequest, code: "ERR_BAD_REQUEST"},
		{
			name:   "upstream failure",
			target: "/forecast?horizons=1",
			setup:  func(env *testEnv) { env.source.err = errors.New("connection refused") },
			status: http.StatusBadGateway,
			code:   "ERR_UPSTREAM",
		},
		{
			name:   "short history",
			target: "/forecast?horizons=1",
			setup:  func(env *testEnv) { env.source.series = series(20) },
			status: http.StatusInternalServerError,
			code:   "ERR_INSUFFICIENT_HISTORY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 100)
			if tt.setup != nil {
				tt.setup(env)
			}
			rec := env.get(tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestForecastRateLimited(t *testing.T) {
	env := newTestEnv(t, 1)
	rec := env.get("/forecast?horizons=1")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.get("/forecast?horizons=1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "ERR_RATE_LIMITED", errorCode(t, rec))
}

func TestForecastRateLimitIgnoresForwardedFor(t *testing.T) {
	env := newTestEnv(t, 1)
	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/forecast?horizons=1", nil)
		req.RemoteAddr = "203.0.113.7:40000"
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		env.e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	for _, code := range codes[1:] {
		assert.Equal(t, http.StatusTooManyRequests, code)
	}
}

func TestMetricsMissingReference(t *testing.T) {
	env := newTestEnv(t, 100)
	env.ref.err = models.ErrReferenceMissing
	rec := env.get("/metrics")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ERR_REFERENCE_UNAVAILABLE", errorCode(t, rec))
}

func TestMetricsTable(t *testing.T) {
	env := newTestEnv(t, 100)
	env.ref.table = models.MetricsTable{"stack": {"MAE": 12.5, "note": "best"}}
	rec := env.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stack":{"MAE":12.5,"note":"best"}}`, rec.Body.String())
}

func TestEvalSeriesLimit(t *testing.T) {
	env := newTestEnv(t, 100)
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		env.ref.points = append(env.ref.points, models.EvalPoint{Time: ts.Add(time.Duration(i) * time.Hour), YTrue: float64(i)})
	}

	rec := env.get("/eval-series?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var body models.EvalSeriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "2025-01-01T04:00:00Z", body.Data[1].Timestamp)
	assert.Equal(t, 4.0, body.Data[1].YTrue)

	rec = env.get("/eval-series?limit=0")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 5)
}

func TestEvalSeriesRejectsNegativeLimit(t *testing.T) {
	env := newTestEnv(t, 100)
	rec := env.get("/eval-series?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
