package forward

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/prognoshealth/destproxy/metrics"
)

// DefaultContentType is sent upstream when the inbound request has none and
// assumed for upstream responses without one.
const DefaultContentType = "application/json"

// Outbound describes the request sent to the destination.
type Outbound struct {
	Method        string
	URL           string
	Authorization string
	ContentType   string

	// Body is sent as is. A nil body sends no body at all.
	Body []byte
}

// Forwarder issues outbound requests to the composed destination.
type Forwarder struct {
	client  *http.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewForwarder returns a Forwarder using client. A nil client uses a plain
// http.Client, which has no timeout. The metrics parameter is optional; pass nil
// to disable upstream metrics recording.
func NewForwarder(client *http.Client, logger *zap.Logger, m *metrics.Metrics) *Forwarder {
	if client == nil {
		client = &http.Client{}
	}

	return &Forwarder{
		client:  client,
		logger:  logger.With(zap.String("component", "forwarder")),
		metrics: m,
	}
}

// NewRequest builds the outbound http request. Only the Authorization and
// Content-Type headers are set. The query is sent as given apart from the
// bytes a request line cannot carry, which are percent-encoded.
func (f *Forwarder) NewRequest(ctx context.Context, o Outbound) (*http.Request, error) {
	var body io.Reader
	if o.Body != nil {
		body = bytes.NewReader(o.Body)
	}

	req, err := http.NewRequestWithContext(ctx, o.Method, o.URL, body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed building %s request", o.Method)
	}

	req.URL.RawQuery = escapeQuery(req.URL.RawQuery)

	contentType := o.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}

	req.Header.Set(HeaderAuthorization, o.Authorization)
	req.Header.Set(HeaderContentType, contentType)

	return req, nil
}

// Do sends o to its destination and returns the raw response. Any status code
// is a successful call; only transport failures are errors. The caller must
// close the response body.
func (f *Forwarder) Do(ctx context.Context, o Outbound) (*http.Response, error) {
	req, err := f.NewRequest(ctx, o)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("upstream request",
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
		zap.Bool("body", req.Body != nil),
	)

	method := metrics.NormalizeMethod(req.Method)
	start := time.Now()
	resp, err := f.client.Do(req)
	duration := time.Since(start)

	if f.metrics != nil {
		f.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration.Seconds())
	}

	if err != nil {
		if f.metrics != nil {
			f.metrics.UpstreamFailures.WithLabelValues(method).Inc()
		}
		return nil, errors.Wrapf(err, "failed forwarding %s to %s", req.Method, req.URL.Host)
	}

	if f.metrics != nil {
		f.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	}

	f.logger.Debug("upstream response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	return resp, nil
}

// escapeQuery percent-encodes spaces, controls, non-ASCII bytes and
// '"', '<', '>', '`'. Everything else, including '&', '=' and existing %XX
// sequences, is kept.
func escapeQuery(q string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	for i := 0; i < len(q); i++ {
		c := q[i]
		if c > ' ' && c < 0x7f && c != '"' && c != '<' && c != '>' && c != '`' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}

	return b.String()
}
