// Package app wires the route table, the forwarding pipeline and the
// keep-warm heartbeat behind a single lambda entry point.
package app

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/prognoshealth/destproxy/config"
	"github.com/prognoshealth/destproxy/forward"
	"github.com/prognoshealth/destproxy/lambdautils"
	"github.com/prognoshealth/destproxy/metrics"
	"github.com/prognoshealth/destproxy/proxy"
)

type heartbeat interface {
	Resolve(ctx context.Context) (lambdautils.HeartbeatResult, error)
}

type eventLock interface {
	Available(ctx context.Context, event events.CloudWatchEvent) (bool, error)
}

// App handles every invocation of the function.
type App struct {
	router    *proxy.Router
	handler   *forward.Handler
	heartbeat heartbeat
	lock      eventLock
	logger    *zap.Logger
}

// New builds the App for cfg. Every configured route and every unmatched
// request runs the forwarding pipeline. A nil m disables upstream metrics.
func New(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*App, error) {
	forwarder := forward.NewForwarder(nil, logger, m)
	handler := forward.NewHandler(forwarder, logger, forward.WithErrorPrefix(cfg.Forward.ErrorPrefix))

	router := &proxy.Router{}
	for _, r := range cfg.Routes {
		method, err := proxy.ParseHttpMethod(r.Method)
		if err != nil {
			router.AddBuildError(errors.Wrapf(err, "invalid route '%s'", r.Prefix))
			continue
		}
		router.Handle(method, r.Prefix, handler.Forward)
	}
	router.AddCatchAllHandler(handler.CatchAll)
	router.AddErrorHandler(handler.CatchError)

	if !router.Valid() {
		return nil, errors.Wrap(router.BuildErrors(), "failed building routes")
	}

	a := &App{
		router:  router,
		handler: handler,
		heartbeat: lambdautils.NewHeartbeat(
			cfg.Heartbeat.Region,
			cfg.Heartbeat.SecurityGroupID,
			cfg.Heartbeat.SubnetID,
			cfg.Heartbeat.CheckIPURL,
			nil,
		),
		logger: logger,
	}

	if cfg.Heartbeat.LockTable != "" {
		a.lock = lambdautils.NewEventLock(cfg.Heartbeat.Region, cfg.Heartbeat.LockTable, cfg.Heartbeat.LockTTLSeconds, 0)
	}

	return a, nil
}

// Invoke is the lambda handler. Scheduled events run the heartbeat, any other
// payload is treated as an api gateway proxy request. Proxy requests always
// produce a response and never an error.
func (a *App) Invoke(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	if event, ok := lambdautils.IsScheduledEvent(payload); ok {
		return a.Heartbeat(ctx, event)
	}

	var request events.APIGatewayProxyRequest
	if err := json.Unmarshal(payload, &request); err != nil {
		return a.handler.CatchError(ctx, request, errors.Wrap(err, "failed decoding api gateway request"))
	}

	return a.Route(ctx, request)
}

// Route runs request through the route table.
func (a *App) Route(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return a.router.Route(ctx, request)
}

// Heartbeat resolves the function's public addresses for a scheduled event.
// A nil result means another invocation already handled the event.
func (a *App) Heartbeat(ctx context.Context, event events.CloudWatchEvent) (*lambdautils.HeartbeatResult, error) {
	logger := a.logger.With(lambdautils.GetLambdaMetaData(ctx).Fields()...).With(zap.String("event_id", event.ID))

	if a.lock != nil {
		available, err := a.lock.Available(ctx, event)
		if err != nil {
			return nil, errors.Wrap(err, "failed locking scheduled event")
		}

		if !available {
			logger.Info("skipping scheduled event already handled")
			return nil, nil
		}
	}

	result, err := a.heartbeat.Resolve(ctx)
	if err != nil {
		logger.Error("heartbeat failed", zap.Error(err))
		return nil, err
	}

	logger.Info("heartbeat",
		zap.String("source", result.Source),
		zap.Strings("addresses", result.Addresses),
	)

	return &result, nil
}
