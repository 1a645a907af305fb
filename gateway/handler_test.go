package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/prognoshealth/destproxy/app"
	"github.com/prognoshealth/destproxy/config"
	"github.com/prognoshealth/destproxy/lambdautils"
	"github.com/prognoshealth/destproxy/metrics"
)

type stubInvoker struct {
	request   events.APIGatewayProxyRequest
	requestID string
	response  events.APIGatewayProxyResponse
	err       error
}

func (s *stubInvoker) Route(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	s.request = request
	s.requestID = lambdautils.RequestID(ctx)
	return s.response, s.err
}

func testEcho(t *testing.T, invoker Invoker, cfg *config.Config) (*echo.Echo, *metrics.Metrics) {
	m := metrics.New()

	e := echo.New()
	e.Use(echomw.RequestID())
	RegisterRoutes(e, NewHandler(invoker, zaptest.NewLogger(t)), m, cfg)

	return e, m
}

func TestHandler_Handle(t *testing.T) {
	invoker := &stubInvoker{response: events.APIGatewayProxyResponse{
		StatusCode: 200,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       "forwarded",
	}}
	e, _ := testEcho(t, invoker, &config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/coupang?x=1", strings.NewReader("payload"))
	req.Header.Set(echo.HeaderXRequestID, "req-local-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "forwarded", rec.Body.String())

	assert.Equal(t, "POST", invoker.request.HTTPMethod)
	assert.Equal(t, "/coupang", invoker.request.Path)
	assert.Equal(t, "payload", invoker.request.Body)
	assert.Equal(t, "1", invoker.request.QueryStringParameters["x"])
	assert.Equal(t, "req-local-1", invoker.request.RequestContext.RequestID)
	assert.Equal(t, "req-local-1", invoker.requestID)
}

func TestHandler_Handle_root(t *testing.T) {
	invoker := &stubInvoker{response: events.APIGatewayProxyResponse{StatusCode: 204}}
	e, _ := testEcho(t, invoker, &config.Config{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", http.NoBody))

	assert.Equal(t, 204, rec.Code)
	assert.Equal(t, "DELETE", invoker.request.HTTPMethod)
}

func TestHandler_Handle_invokeError(t *testing.T) {
	invoker := &stubInvoker{err: errors.New("'GET /x' not found")}
	e, _ := testEcho(t, invoker, &config.Config{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
}

func TestHandler_Healthz(t *testing.T) {
	invoker := &stubInvoker{}
	e, _ := testEcho(t, invoker, &config.Config{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "", invoker.request.HTTPMethod)
}

func TestRegisterRoutes_metrics(t *testing.T) {
	cfg := &config.Config{Local: config.LocalConfig{Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"}}}
	e, m := testEcho(t, &stubInvoker{}, cfg)
	m.UpstreamFailures.WithLabelValues("GET").Inc()

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "destproxy_upstream_failures_total")
}

func TestRegisterRoutes_metricsDisabled(t *testing.T) {
	invoker := &stubInvoker{response: events.APIGatewayProxyResponse{StatusCode: 400}}
	e, _ := testEcho(t, invoker, &config.Config{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, "/metrics", invoker.request.Path)
}

func TestGateway_endToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ping", r.URL.Path)
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"pong": 1}`)
	}))
	defer upstream.Close()

	cfg := &config.Config{Routes: []config.RouteConfig{{Prefix: "/coupang", Method: "ANY"}}}
	a, err := app.New(cfg, zaptest.NewLogger(t), metrics.New())
	require.NoError(t, err)

	e, _ := testEcho(t, a, cfg)

	req := httptest.NewRequest(http.MethodGet, "/coupang", http.NoBody)
	req.Header.Set("Authorization", "Bearer t")
	req.Header.Set("X-Destination-Host", upstream.URL)
	req.Header.Set("X-Destination-Path", "/v1/ping")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, `{"pong":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coupang", http.NoBody))

	assert.Equal(t, 400, rec.Code)
	assert.JSONEq(t, `{"error":"Authorization Header is Required"}`, rec.Body.String())
}
