package proxy

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
)

// RouteContext contains all the request information for a route when matched.
type RouteContext struct {
	Context context.Context
	Request events.APIGatewayProxyRequest
}

// Body returns a string representation of the request body
func (ctx *RouteContext) Body() (string, error) {
	if ctx.Request.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(ctx.Request.Body)
		if err != nil {
			return "", errors.Wrapf(err, "unable to decode request body for %s %s", ctx.Request.HTTPMethod, ctx.Request.Path)
		}

		return string(b), nil
	}

	return ctx.Request.Body, nil
}

// Headers returns the request headers. Single value headers take precedence,
// the first entry of a multi value header is used otherwise.
func (ctx *RouteContext) Headers() Headers {
	headers := make(Headers, len(ctx.Request.Headers)+len(ctx.Request.MultiValueHeaders))

	for k, v := range ctx.Request.MultiValueHeaders {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	for k, v := range ctx.Request.Headers {
		headers[k] = v
	}

	return headers
}
