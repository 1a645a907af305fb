package forward

import (
	"github.com/pkg/errors"

	"github.com/prognoshealth/destproxy/proxy"
)

// Header names understood by the pipeline.
const (
	HeaderAuthorization    = "Authorization"
	HeaderContentType      = "Content-Type"
	HeaderDestinationHost  = "X-Destination-Host"
	HeaderDestinationPath  = "X-Destination-Path"
	HeaderDestinationQuery = "X-Destination-Query"
)

// Validation failures. The messages are returned to the caller verbatim.
var (
	ErrMissingAuthorization = errors.New("Authorization Header is Required")
	ErrMissingDestination   = errors.New("X-Destination-Host and X-Destination-Path are Required")
)

// Directive is the destination extracted from the inbound headers.
type Directive struct {
	Host  string
	Path  string
	Query string
}

// Validate checks the inbound headers and extracts the destination directive.
//
// Authorization is checked first, then the destination headers. The first
// failing check is returned.
func Validate(headers proxy.Headers) (Directive, error) {
	if headers.Get(HeaderAuthorization) == "" {
		return Directive{}, ErrMissingAuthorization
	}

	host := headers.Get(HeaderDestinationHost)
	path := headers.Get(HeaderDestinationPath)
	if host == "" || path == "" {
		return Directive{}, ErrMissingDestination
	}

	return Directive{
		Host:  host,
		Path:  path,
		Query: headers.Get(HeaderDestinationQuery),
	}, nil
}
