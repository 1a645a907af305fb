package proxy

import (
	"fmt"
	"strings"
)

// HttpMethod is an enum of the standard Http Methods.
type HttpMethod int

const (
	GET HttpMethod = iota
	HEAD
	POST
	PUT
	DELETE
	CONNECT
	OPTIONS
	TRACE
	PATCH

	// ANY matches every method.
	ANY
)

var methodNames = []string{"GET", "HEAD", "POST", "PUT", "DELETE", "CONNECT", "OPTIONS", "TRACE", "PATCH", "ANY"}

func (m HttpMethod) String() string {
	if m < GET || m > ANY {
		return fmt.Sprintf("HttpMethod(%d)", int(m))
	}

	return methodNames[m]
}

// ParseHttpMethod returns the HttpMethod for the given name. The name is
// matched case-insensitively.
func ParseHttpMethod(s string) (HttpMethod, error) {
	for i, name := range methodNames {
		if strings.EqualFold(name, s) {
			return HttpMethod(i), nil
		}
	}

	return 0, fmt.Errorf("unknown http method '%s'", s)
}
