package gateway

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Invoker runs a proxy request through the function.
type Invoker interface {
	Route(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)
}

// Handler serves emulated api gateway requests.
type Handler struct {
	invoker Invoker
	logger  *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(invoker Invoker, logger *zap.Logger) *Handler {
	return &Handler{
		invoker: invoker,
		logger:  logger.With(zap.String("component", "gateway_handler")),
	}
}

// Handle converts the request into a proxy event, invokes the function and
// writes its response.
func (h *Handler) Handle(c echo.Context) error {
	event, err := NewEvent(c.Request())
	if err != nil {
		return err
	}

	requestID := c.Response().Header().Get(echo.HeaderXRequestID)
	event.RequestContext.RequestID = requestID
	event.RequestContext.Identity.SourceIP = c.RealIP()

	ctx := lambdacontext.NewContext(c.Request().Context(), &lambdacontext.LambdaContext{AwsRequestID: requestID})

	resp, err := h.invoker.Route(ctx, event)
	if err != nil {
		h.logger.Error("invocation failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return c.JSON(http.StatusBadGateway, map[string]string{"message": "Internal server error"})
	}

	return WriteResponse(c.Response(), resp)
}

// Healthz returns a simple OK response for liveness probes.
func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
