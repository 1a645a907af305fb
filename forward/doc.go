// Package forward implements the destination header forwarding pipeline.
//
// An inbound api gateway request names its real destination with the
// X-Destination-Host, X-Destination-Path and optional X-Destination-Query
// headers. The pipeline validates those headers, composes the destination url,
// re-issues the request with only the Authorization and Content-Type headers and
// converts the upstream response back into an events.APIGatewayProxyResponse.
//
//	Validate -> Compose -> Forwarder.Do -> Normalize
//
// Validation failures are answered inline with a 400. Every other failure is
// returned as an error and turned into a 500 by Handler.CatchError, which is
// meant to be installed as the proxy.Router error handler.
package forward
