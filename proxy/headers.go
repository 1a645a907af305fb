package proxy

import (
	"sort"
	"strings"
)

// Headers is a header mapping whose lookups ignore key case. API Gateway
// passes header names through as the client sent them.
type Headers map[string]string

// Get returns the value stored under name. An exact key match wins over a
// case-insensitive one. Among several case-insensitive matches the
// lexicographically smallest key wins.
func (h Headers) Get(name string) string {
	if v, ok := h[name]; ok {
		return v
	}

	var matches []string
	for k := range h {
		if strings.EqualFold(k, name) {
			matches = append(matches, k)
		}
	}

	if len(matches) == 0 {
		return ""
	}

	sort.Strings(matches)
	return h[matches[0]]
}
