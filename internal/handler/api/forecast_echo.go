package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/service/metrics"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/service/ratelimit"
	"github.com/Yoitsuro/mySkripsiWebsite/internal/usecase"
	xhttp "github.com/Yoitsuro/mySkripsiWebsite/pkg/http"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/util"
)

// HandlerSettings are request defaults and limits of the HTTP surface.
type HandlerSettings struct {
	DefaultHorizons string
	RateCapacity    float64
	RateRefill      float64
}

const readyTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// ForecastEchoHandler serves the forecasting API.
type ForecastEchoHandler struct {
	logger    *xlogger.Logger
	forecast  *usecase.ForecastUseCase
	history   *usecase.HistoryUseCase
	reference *usecase.ReferenceUseCase
	limiter   *ratelimit.Limiter
	settings  HandlerSettings
	checks    []namedCheck
}

func NewForecastEchoHandler(
	logger *xlogger.Logger,
	forecast *usecase.ForecastUseCase,
	history *usecase.HistoryUseCase,
	reference *usecase.ReferenceUseCase,
	limiter *ratelimit.Limiter,
	settings HandlerSettings,
) *ForecastEchoHandler {
	metrics.Register()
	return &ForecastEchoHandler{
		logger:    logger,
		forecast:  forecast,
		history:   history,
		reference: reference,
		limiter:   limiter,
		settings:  settings,
	}
}

// AddReadinessCheck registers a dependency checked by GET /ready.
func (h *ForecastEchoHandler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
	e.GET("/history", h.History)
	e.GET("/metrics", h.Metrics)
	e.GET("/eval-series", h.EvalSeries)
	e.GET("/forecast", h.Forecast)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	return xhttp.RawResponse(c, map[string]string{"status": "ok"})
}

// Ready runs every readiness check; any failure answers 503.
func (h *ForecastEchoHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
	defer cancel()

	status := make(map[string]string, len(h.checks))
	var failed []*xhttp.AppError
	for _, nc := range h.checks {
		if err := nc.check(ctx); err != nil {
			status[nc.name] = "down"
			failed = append(failed, xhttp.NewAppError("ERR_NOT_READY", nc.name, err.Error(), http.StatusServiceUnavailable))
			continue
		}
		status[nc.name] = "ok"
	}
	if len(failed) > 0 {
		metrics.EndpointErrors.WithLabelValues("ready", "ERR_NOT_READY").Inc()
		h.logger.Warn("readiness check failed", xlogger.Any("checks", status))
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, failed)
	}
	return xhttp.RawResponse(c, map[string]any{"status": "ready", "checks": status})
}

func (h *ForecastEchoHandler) History(c echo.Context) error {
	defer observe("history", time.Now())
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.EndpointErrors.WithLabelValues("history", "ERR_BAD_REQUEST").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.history.GetHistory(c.Request().Context(), req.Symbol, req.Days)
	if err != nil {
		return h.fail(c, "history", err)
	}
	data := make([]models.CandleDTO, len(res.Candles))
	for i, k := range res.Candles {
		data[i] = models.CandleDTO{
			Timestamp: util.FormatUTC(k.Time),
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Volume,
		}
	}
	return xhttp.RawResponse(c, models.HistoryResponse{
		Symbol:    res.Symbol,
		Timeframe: res.Timeframe,
		Days:      res.Days,
		Data:      data,
	})
}

func (h *ForecastEchoHandler) Metrics(c echo.Context) error {
	defer observe("metrics", time.Now())
	table, err := h.reference.Metrics(c.Request().Context())
	if err != nil {
		return h.fail(c, "metrics", err)
	}
	return xhttp.RawResponse(c, table)
}

func (h *ForecastEchoHandler) EvalSeries(c echo.Context) error {
	defer observe("eval_series", time.Now())
	req := &models.EvalSeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.EndpointErrors.WithLabelValues("eval_series", "ERR_BAD_REQUEST").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}

	points, err := h.reference.EvalSeries(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, "eval_series", err)
	}
	data := make([]models.EvalPointDTO, len(points))
	for i, p := range points {
		data[i] = models.EvalPointDTO{
			Timestamp: util.FormatUTC(p.Time),
			YTrue:     p.YTrue,
			YLGBM:     p.YLGBM,
			YTCN:      p.YTCN,
			YMean:     p.YMean,
			YWMean:    p.YWMean,
			YStack:    p.YStack,
		}
	}
	return xhttp.RawResponse(c, models.EvalSeriesResponse{Data: data})
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	defer observe("forecast", time.Now())
	if h.limiter != nil && !h.limiter.Allow(c.RealIP(), h.settings.RateCapacity, h.settings.RateRefill) {
		metrics.EndpointErrors.WithLabelValues("forecast", "ERR_RATE_LIMITED").Inc()
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many forecast requests"))
	}

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.EndpointErrors.WithLabelValues("forecast", "ERR_BAD_REQUEST").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	// an absent list means the default set; an explicit empty one is an error
	if !c.QueryParams().Has("horizons") {
		req.Horizons = h.settings.DefaultHorizons
	}

	report, err := h.forecast.Forecast(c.Request().Context(), usecase.ForecastParams{
		Symbol:   req.Symbol,
		Horizons: req.Horizons,
	})
	if err != nil {
		return h.fail(c, "forecast", err)
	}
	if report.Cached {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return xhttp.RawResponse(c, toForecastResponse(report))
}

func toForecastResponse(r *models.ForecastReport) models.ForecastResponse {
	var results models.OrderedHorizons
	for _, hr := range r.Horizons {
		results.Set(models.HorizonKey(hr.RequestedHours), models.HorizonEntry{
			StepsUsed:       hr.StepsUsed,
			PredStack:       hr.Prediction,
			TargetTimeUTC:   util.FormatUTC(hr.TargetTime),
			TargetTimeLocal: util.FormatLocal(hr.TargetTime),
		})
	}
	return models.ForecastResponse{
		Symbol:           r.Symbol,
		Timeframe:        r.Timeframe,
		GeneratedAtUTC:   util.FormatUTC(r.GeneratedAt),
		GeneratedAtLocal: util.FormatLocal(r.GeneratedAt),
		LastCandleUTC:    util.FormatUTC(r.LastCandle),
		Results:          results,
	}
}

func (h *ForecastEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	metrics.EndpointErrors.WithLabelValues(endpoint, appErr.Code).Inc()
	if appErr.Status >= http.StatusInternalServerError || appErr.Status == http.StatusBadGateway {
		h.logger.Error(endpoint+" request failed",
			xlogger.String("code", appErr.Code),
			xlogger.String("query", c.QueryString()),
			xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain errors to transport errors.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrMalformedInput):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrUpstreamData):
		return xhttp.BadGatewayError("ERR_UPSTREAM", "failed to fetch market data").WithError(err)
	case errors.Is(err, models.ErrUnknownTimeframe):
		return xhttp.InternalErrorCode("ERR_TIMEFRAME", err.Error()).WithError(err)
	case errors.Is(err, models.ErrInsufficientHistory):
		return xhttp.InternalErrorCode("ERR_INSUFFICIENT_HISTORY", err.Error()).WithError(err)
	case errors.Is(err, models.ErrReferenceMissing):
		return xhttp.InternalErrorCode("ERR_REFERENCE_UNAVAILABLE", err.Error()).WithError(err)
	case errors.Is(err, models.ErrComputation):
		return xhttp.InternalErrorCode("ERR_COMPUTATION", "forecast computation failed").WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
