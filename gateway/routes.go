package gateway

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prognoshealth/destproxy/config"
	"github.com/prognoshealth/destproxy/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler, m *metrics.Metrics, cfg *config.Config) {
	e.GET("/healthz", h.Healthz)

	if cfg.Local.Metrics.Enabled {
		e.GET(cfg.Local.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Any("/", h.Handle)
	e.Any("/*", h.Handle)
}
