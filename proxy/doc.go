// Package proxy provides utilities for writing aws lambda functions that act as
// aws api gateway rest api proxy integrations. Specifically they assist in
// adding a static route table in front of the lambda and processing the entire
// request/response via events.APIGatewayProxyRequest and
// events.APIGatewayProxyResponse.
//
// The router is designed to be as simplistic as possible and is not feature
// rich. Routes are literal path prefixes; there are no parameters or wildcards.
package proxy
