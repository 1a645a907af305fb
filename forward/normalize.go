package forward

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
)

const jsonMediaType = "application/json"

// Normalize converts an upstream response into the proxy response and closes
// its body.
//
// A content type containing application/json must carry a single well formed
// JSON value, which is re-encoded in compact form with sorted object keys. Any
// other body is passed through untouched.
func Normalize(resp *http.Response) (events.APIGatewayProxyResponse, error) {
	defer resp.Body.Close()

	contentType := resp.Header.Get(HeaderContentType)
	if contentType == "" {
		contentType = DefaultContentType
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return events.APIGatewayProxyResponse{}, errors.Wrap(err, "failed reading upstream body")
	}

	body := string(raw)
	if strings.Contains(contentType, jsonMediaType) {
		body, err = canonicalJSON(raw)
		if err != nil {
			return events.APIGatewayProxyResponse{}, err
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    map[string]string{HeaderContentType: contentType},
		Body:       body,
	}, nil
}

// canonicalJSON decodes raw and encodes it again. Numbers keep their textual
// form so large integers survive the round trip.
func canonicalJSON(raw []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", errors.Wrap(err, "invalid upstream json")
	}

	if _, err := dec.Token(); err != io.EOF {
		return "", errors.New("invalid upstream json: trailing data after value")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return "", errors.Wrap(err, "failed encoding upstream json")
	}

	return strings.TrimSuffix(buf.String(), "\n"), nil
}
