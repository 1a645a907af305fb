package gateway

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/prognoshealth/destproxy/metrics"
)

// RequestLogger returns an Echo middleware that logs each request.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			logger.Info("request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", res.Status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", res.Header().Get(echo.HeaderXRequestID)),
				zap.String("remote_ip", c.RealIP()),
				zap.Int64("bytes_out", res.Size),
			)

			return err
		}
	}
}

// MetricsMiddleware returns an Echo middleware that records Prometheus metrics
// for each inbound request.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()

			err := next(c)

			// An *echo.HTTPError is written later by the central error
			// handler, so the response status is not final yet.
			statusCode := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					statusCode = he.Code
				}
			}

			status := strconv.Itoa(statusCode)
			method := metrics.NormalizeMethod(c.Request().Method)

			m.RequestsTotal.WithLabelValues(method, status).Inc()
			m.RequestDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
