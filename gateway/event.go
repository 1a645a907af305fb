// Package gateway emulates the api gateway rest proxy integration locally,
// converting plain http requests into proxy events and proxy responses back.
package gateway

import (
	"encoding/base64"
	"io"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
)

// Stage is reported in the request context of every emulated event.
const Stage = "local"

// NewEvent converts r into an api gateway proxy request. Bodies that are not
// valid UTF-8 are base64 encoded.
func NewEvent(r *http.Request) (events.APIGatewayProxyRequest, error) {
	event := events.APIGatewayProxyRequest{
		Resource:   "/{proxy+}",
		Path:       r.URL.Path,
		HTTPMethod: r.Method,
		RequestContext: events.APIGatewayProxyRequestContext{
			Stage:            Stage,
			ResourcePath:     "/{proxy+}",
			HTTPMethod:       r.Method,
			Path:             r.URL.Path,
			Protocol:         r.Proto,
			RequestTimeEpoch: time.Now().UnixMilli(),
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  remoteIP(r),
				UserAgent: r.UserAgent(),
			},
		},
	}

	if len(r.Header) > 0 || r.Host != "" {
		event.Headers = map[string]string{}
		event.MultiValueHeaders = map[string][]string{}
	}
	for name, values := range r.Header {
		if len(values) == 0 {
			continue
		}
		event.Headers[name] = values[len(values)-1]
		event.MultiValueHeaders[name] = append([]string(nil), values...)
	}
	if r.Host != "" {
		event.Headers["Host"] = r.Host
		event.MultiValueHeaders["Host"] = []string{r.Host}
	}

	if query := r.URL.Query(); len(query) > 0 {
		event.QueryStringParameters = map[string]string{}
		event.MultiValueQueryStringParameters = map[string][]string{}
		for name, values := range query {
			event.QueryStringParameters[name] = values[len(values)-1]
			event.MultiValueQueryStringParameters[name] = values
		}
	}

	if r.Body == nil {
		return event, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return events.APIGatewayProxyRequest{}, errors.Wrap(err, "failed reading request body")
	}

	if utf8.Valid(body) {
		event.Body = string(body)
	} else {
		event.Body = base64.StdEncoding.EncodeToString(body)
		event.IsBase64Encoded = true
	}

	return event, nil
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

// WriteResponse writes resp to w the way api gateway would. A zero status
// code is answered with 502 like a malformed integration response.
func WriteResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) error {
	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			return errors.Wrap(err, "failed decoding response body")
		}
		body = decoded
	}

	header := w.Header()
	for name, values := range resp.MultiValueHeaders {
		for _, v := range values {
			header.Add(name, v)
		}
	}
	for name, v := range resp.Headers {
		header.Set(name, v)
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusBadGateway
	}

	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}
