package forward

import "strings"

// Compose builds the absolute destination url for d.
//
// https:// is added when the host has no http or https scheme, a leading slash
// is added to the path when missing and a non-empty query is appended verbatim.
func Compose(d Directive) string {
	host := d.Host
	if !hasPrefixFold(host, "http://") && !hasPrefixFold(host, "https://") {
		host = "https://" + host
	}

	path := d.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if d.Query == "" {
		return host + path
	}

	return host + path + "?" + d.Query
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
