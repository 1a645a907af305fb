package proxy

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// RouteHandler defines the function interface the route uses to execute a
// request when the route is matched.
type RouteHandler func(*RouteContext) (events.APIGatewayProxyResponse, error)

// Route defines a HttpMethod and literal path prefix that are used in
// combination for matching against an incoming request. When a match occurs
// the configured handler is called.
type Route struct {
	Method  HttpMethod
	Prefix  string
	Handler RouteHandler
}

// NewRoute returns a Route for the specified method, prefix and handler.
//
// The prefix must start with a slash and must not contain whitespace. A single
// trailing slash is dropped so "/yolo/" and "/yolo" are the same route.
func NewRoute(method HttpMethod, prefix string, handler RouteHandler) (*Route, error) {
	if !strings.HasPrefix(prefix, "/") {
		return nil, fmt.Errorf("route prefix '%s' must start with '/'", prefix)
	}

	if strings.ContainsAny(prefix, " \t\r\n") {
		return nil, fmt.Errorf("route prefix '%s' must not contain whitespace", prefix)
	}

	if handler == nil {
		return nil, fmt.Errorf("route prefix '%s' has no handler", prefix)
	}

	if len(prefix) > 1 {
		prefix = strings.TrimSuffix(prefix, "/")
	}

	route := &Route{
		Method:  method,
		Prefix:  prefix,
		Handler: handler,
	}

	return route, nil
}

// String returns a string representation of this route.
func (route *Route) String() string {
	return fmt.Sprintf("%s %s", route.Method, route.Prefix)
}

// IsMatch returns true if the request method and path match the route.
//
// The path matches when it is the prefix itself or continues with a slash
// after the prefix.
func (route *Route) IsMatch(request events.APIGatewayProxyRequest) bool {
	if route.Method != ANY && route.Method.String() != strings.ToUpper(request.HTTPMethod) {
		return false
	}

	if route.Prefix == "/" {
		return true
	}

	path := request.Path
	if path == route.Prefix {
		return true
	}

	return strings.HasPrefix(path, route.Prefix+"/")
}

// Context constructs a RouteContext for the route for passing to the handler.
func (route *Route) Context(ctx context.Context, request events.APIGatewayProxyRequest) *RouteContext {
	return &RouteContext{
		Context: ctx,
		Request: request,
	}
}

// Follow builds the route context for the given request and executes the
// route's handler function.
func (route *Route) Follow(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return route.Handler(route.Context(ctx, request))
}
