package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prognoshealth/destproxy/app"
	"github.com/prognoshealth/destproxy/config"
	"github.com/prognoshealth/destproxy/gateway"
	"github.com/prognoshealth/destproxy/logging"
	"github.com/prognoshealth/destproxy/metrics"
)

// Set by goreleaser ldflags.
var version = "dev"

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("destproxy-local"),
		kong.Description("Serves destproxy behind a local api gateway emulator."),
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			config.Load,
			newLogger,
			metrics.New,
			app.New,
			func(a *app.App) gateway.Invoker { return a },
			gateway.NewHandler,
			newEcho,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Invoke(gateway.RegisterRoutes, startServer),
	).Run()
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log)
}

func newEcho(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 30 * time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(gateway.RequestLogger(logger))
	e.Use(gateway.MetricsMiddleware(m))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Local.BodyMaxBytes)))

	if cfg.Local.RateLimit.Enabled {
		store := echomw.NewRateLimiterMemoryStore(rate.Limit(cfg.Local.RateLimit.RequestsPerSecond))
		e.Use(echomw.RateLimiter(store))
		logger.Info("rate limiter enabled", zap.Float64("rps", cfg.Local.RateLimit.RequestsPerSecond))
	}

	return e
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Local.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server",
				zap.String("addr", addr),
				zap.String("version", version),
				zap.String("config", cfg.FilePath()),
			)
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			_ = logger.Sync()
			return e.Shutdown(ctx)
		},
	})
}
