package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
)

// RequestLogging logs one structured line per request. 5xx answers log as
// errors and requests slower than slow as warnings.
func RequestLogging(l *xlogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			took := time.Since(start)
			fields := []xlogger.Field{
				xlogger.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				xlogger.String("method", req.Method),
				xlogger.String("route", routeOf(c)),
				xlogger.String("uri", req.RequestURI),
				xlogger.String("remote", c.RealIP()),
				xlogger.Int("status", res.Status),
				xlogger.Int64("bytes", res.Size),
				xlogger.Duration("duration_ms", took),
			}
			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slow > 0 && took >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Info("http request", fields...)
			}
			return nil
		}
	}
}

func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}
