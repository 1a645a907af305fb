package forward

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/prognoshealth/destproxy/lambdautils"
	"github.com/prognoshealth/destproxy/proxy"
)

const internalErrorMessage = "Internal Server Error"

// Option configures a Handler.
type Option func(*Handler)

// WithErrorPrefix prepends prefix to every error message the handler
// generates itself, letting callers tell proxy errors from upstream ones.
func WithErrorPrefix(prefix string) Option {
	return func(h *Handler) {
		h.errorPrefix = prefix
	}
}

// Handler runs the forwarding pipeline for api gateway requests.
type Handler struct {
	forwarder   *Forwarder
	logger      *zap.Logger
	errorPrefix string
}

// NewHandler returns a Handler forwarding through f.
func NewHandler(f *Forwarder, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		forwarder: f,
		logger:    logger.With(zap.String("component", "forward_handler")),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Forward is a proxy.RouteHandler running the full pipeline for the matched
// request.
func (h *Handler) Forward(rctx *proxy.RouteContext) (events.APIGatewayProxyResponse, error) {
	headers := rctx.Headers()

	destination, err := Validate(headers)
	if err != nil {
		h.requestLogger(rctx.Context, rctx.Request).Info("rejected request", zap.String("reason", err.Error()))
		return h.errorResponse(http.StatusBadRequest, err.Error()), nil
	}

	body, err := rctx.Body()
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	outbound := Outbound{
		Method:        rctx.Request.HTTPMethod,
		URL:           Compose(destination),
		Authorization: headers.Get(HeaderAuthorization),
		ContentType:   headers.Get(HeaderContentType),
	}

	if body != "" {
		outbound.Body = []byte(body)
	}

	resp, err := h.forwarder.Do(rctx.Context, outbound)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	result, err := Normalize(resp)
	if err != nil {
		return events.APIGatewayProxyResponse{}, errors.Wrapf(err, "failed normalizing response from %s", destination.Host)
	}

	return result, nil
}

// CatchAll is a proxy.CatchAllHandler running the pipeline for requests that
// match no route.
func (h *Handler) CatchAll(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.Forward(&proxy.RouteContext{Context: ctx, Request: request})
}

// CatchError is a proxy.ErrorHandler. It logs err and answers with a generic
// 500; nothing about err reaches the caller.
func (h *Handler) CatchError(ctx context.Context, request events.APIGatewayProxyRequest, err error) (events.APIGatewayProxyResponse, error) {
	h.requestLogger(ctx, request).Error("error processing request", zap.Error(err))

	return h.errorResponse(http.StatusInternalServerError, internalErrorMessage), nil
}

func (h *Handler) errorResponse(status int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": h.errorPrefix + message})

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{HeaderContentType: DefaultContentType},
		Body:       string(body),
	}
}

func (h *Handler) requestLogger(ctx context.Context, request events.APIGatewayProxyRequest) *zap.Logger {
	return h.logger.With(
		zap.String("request_id", lambdautils.RequestID(ctx)),
		zap.String("method", request.HTTPMethod),
		zap.String("path", request.Path),
	)
}
