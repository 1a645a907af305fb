package forward

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/prognoshealth/destproxy/proxy"
)

func testRouter(h *Handler) *proxy.Router {
	r := &proxy.Router{}
	r.ANY("/coupang", h.Forward)
	r.AddCatchAllHandler(h.CatchAll)
	r.AddErrorHandler(h.CatchError)

	return r
}

func destinationRequest(method, host, path string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       "/coupang",
		Headers: map[string]string{
			"Authorization":      "Bearer t",
			"X-Destination-Host": host,
			"X-Destination-Path": path,
		},
	}
}

func TestHandler_missingAuthorization(t *testing.T) {
	h := NewHandler(NewForwarder(nil, zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	request := events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		Path:       "/coupang",
		Headers: map[string]string{
			"X-Destination-Host": "example.com",
			"X-Destination-Path": "/a",
		},
	}

	response, err := testRouter(h).Route(context.Background(), request)

	assert.NoError(t, err)
	assert.Equal(t, 400, response.StatusCode)
	assert.Equal(t, "application/json", response.Headers["Content-Type"])
	assert.JSONEq(t, `{"error":"Authorization Header is Required"}`, response.Body)
}

func TestHandler_missingDestination(t *testing.T) {
	h := NewHandler(NewForwarder(nil, zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	request := destinationRequest("GET", "example.com", "")

	response, err := testRouter(h).Route(context.Background(), request)

	assert.NoError(t, err)
	assert.Equal(t, 400, response.StatusCode)
	assert.JSONEq(t, `{"error":"X-Destination-Host and X-Destination-Path are Required"}`, response.Body)
}

func TestHandler_errorPrefix(t *testing.T) {
	h := NewHandler(NewForwarder(nil, zaptest.NewLogger(t), nil), zaptest.NewLogger(t), WithErrorPrefix("Lambda//"))

	response, err := testRouter(h).Route(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/"})

	assert.NoError(t, err)
	assert.Equal(t, 400, response.StatusCode)
	assert.JSONEq(t, `{"error":"Lambda//Authorization Header is Required"}`, response.Body)
}

func TestHandler_forwardJSON(t *testing.T) {
	srv, received := recordingServer(t, http.StatusOK, "application/json", "{ \"b\": 2, \"a\": 1 }")
	h := NewHandler(NewForwarder(srv.Client(), zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	request := destinationRequest("POST", srv.URL, "v2/orders")
	request.Headers["X-Destination-Query"] = "status=ACCEPT&from=2024-01-01"
	request.Headers["X-Forwarded-For"] = "203.0.113.10"
	request.Headers["Cookie"] = "session=1"
	request.Body = `{"items":[1,2,3]}`

	response, err := testRouter(h).Route(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, 200, response.StatusCode)
	assert.Equal(t, map[string]string{"Content-Type": "application/json"}, response.Headers)
	assert.Equal(t, `{"a":1,"b":2}`, response.Body)

	assert.Equal(t, "POST", received.method)
	assert.Equal(t, "/v2/orders", received.path)
	assert.Equal(t, "status=ACCEPT&from=2024-01-01", received.rawQuery)
	assert.Equal(t, "Bearer t", received.header.Get("Authorization"))
	assert.Equal(t, "application/json", received.header.Get("Content-Type"))
	assert.Empty(t, received.header.Get("X-Forwarded-For"))
	assert.Empty(t, received.header.Get("Cookie"))
	assert.Empty(t, received.header.Get("X-Destination-Host"))
	assert.Equal(t, `{"items":[1,2,3]}`, received.body)
}

func TestHandler_forwardText(t *testing.T) {
	srv, received := recordingServer(t, http.StatusAccepted, "text/plain", "hello")
	h := NewHandler(NewForwarder(srv.Client(), zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	request := destinationRequest("PUT", srv.URL, "/a")
	request.Headers["content-type"] = "text/csv"
	request.Body = base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n"))
	request.IsBase64Encoded = true

	response, err := testRouter(h).Route(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, 202, response.StatusCode)
	assert.Equal(t, "text/plain", response.Headers["Content-Type"])
	assert.Equal(t, "hello", response.Body)
	assert.Equal(t, "text/csv", received.header.Get("Content-Type"))
	assert.Equal(t, "a,b\n1,2\n", received.body)
}

func TestHandler_noBody(t *testing.T) {
	srv, received := recordingServer(t, http.StatusNoContent, "text/plain", "")
	h := NewHandler(NewForwarder(srv.Client(), zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	response, err := testRouter(h).Route(context.Background(), destinationRequest("DELETE", srv.URL, "/a/1"))
	require.NoError(t, err)

	assert.Equal(t, 204, response.StatusCode)
	assert.Equal(t, "DELETE", received.method)
	assert.Equal(t, int64(0), received.contentLength)
	assert.Equal(t, "", received.body)
}

func TestHandler_catchAll(t *testing.T) {
	srv, received := recordingServer(t, http.StatusOK, "text/plain", "ok")
	h := NewHandler(NewForwarder(srv.Client(), zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	request := destinationRequest("GET", srv.URL, "/elsewhere")
	request.Path = "/not/a/route"

	response, err := testRouter(h).Route(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, 200, response.StatusCode)
	assert.Equal(t, "/elsewhere", received.path)
}

func TestHandler_upstreamStatusPassthrough(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusUnauthorized, "application/json", `{"code":"UNAUTHORIZED"}`)
	h := NewHandler(NewForwarder(srv.Client(), zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	response, err := testRouter(h).Route(context.Background(), destinationRequest("GET", srv.URL, "/a"))
	require.NoError(t, err)

	assert.Equal(t, 401, response.StatusCode)
	assert.JSONEq(t, `{"code":"UNAUTHORIZED"}`, response.Body)
}

func TestHandler_networkFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := NewHandler(NewForwarder(nil, zap.New(core), nil), zap.New(core))

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})

	response, err := testRouter(h).Route(ctx, destinationRequest("GET", "http://127.0.0.1:1", "/a"))

	assert.NoError(t, err)
	assert.Equal(t, 500, response.StatusCode)
	assert.Equal(t, map[string]string{"Content-Type": "application/json"}, response.Headers)
	assert.Equal(t, `{"error":"Internal Server Error"}`, response.Body)

	entries := logs.FilterMessage("error processing request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Contains(t, entries[0].ContextMap()["error"], "127.0.0.1:1")
}

func TestHandler_malformedUpstreamJSON(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK, "application/json", `{"a":`)
	h := NewHandler(NewForwarder(srv.Client(), zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	response, err := testRouter(h).Route(context.Background(), destinationRequest("GET", srv.URL, "/a"))

	assert.NoError(t, err)
	assert.Equal(t, 500, response.StatusCode)
	assert.Equal(t, `{"error":"Internal Server Error"}`, response.Body)
}

func TestHandler_malformedDestination(t *testing.T) {
	h := NewHandler(NewForwarder(nil, zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	response, err := testRouter(h).Route(context.Background(), destinationRequest("GET", "exa mple.com", "/a"))

	assert.NoError(t, err)
	assert.Equal(t, 500, response.StatusCode)
	assert.Equal(t, `{"error":"Internal Server Error"}`, response.Body)
}

func TestHandler_badBase64Body(t *testing.T) {
	h := NewHandler(NewForwarder(nil, zaptest.NewLogger(t), nil), zaptest.NewLogger(t))

	request := destinationRequest("POST", "example.com", "/a")
	request.Body = "%%%"
	request.IsBase64Encoded = true

	response, err := testRouter(h).Route(context.Background(), request)

	assert.NoError(t, err)
	assert.Equal(t, 500, response.StatusCode)
}

func TestHandler_CatchError_hidesDetails(t *testing.T) {
	h := NewHandler(NewForwarder(nil, zaptest.NewLogger(t), nil), zaptest.NewLogger(t), WithErrorPrefix("Lambda//"))

	response, err := h.CatchError(context.Background(), events.APIGatewayProxyRequest{}, errors.New("secret detail"))

	assert.NoError(t, err)
	assert.Equal(t, 500, response.StatusCode)
	assert.Equal(t, `{"error":"Lambda//Internal Server Error"}`, response.Body)
	assert.NotContains(t, response.Body, "secret")
}
