package domain

import (
	"net/url"
	"sort"
	"strings"
)

// RequestKey fingerprints an upstream request: endpoint plus sorted parameters.
// The API key is never part of it.
type RequestKey struct {
	endpoint string
	params   map[string]string
}

// NewRequestKey creates a request key. params is copied.
func NewRequestKey(endpoint string, params map[string]string) RequestKey {
	p := make(map[string]string, len(params))
	for k, v := range params {
		p[k] = v
	}
	return RequestKey{endpoint: endpoint, params: p}
}

// Endpoint returns the endpoint path.
func (k RequestKey) Endpoint() string { return k.endpoint }

// Params returns a copy of the request parameters.
func (k RequestKey) Params() map[string]string {
	p := make(map[string]string, len(k.params))
	for key, v := range k.params {
		p[key] = v
	}
	return p
}

// Query encodes the parameters as URL query values.
func (k RequestKey) Query() url.Values {
	q := make(url.Values, len(k.params))
	for key, v := range k.params {
		q.Set(key, v)
	}
	return q
}

// String returns the deterministic fingerprint "endpoint?k1=v1&k2=v2".
func (k RequestKey) String() string {
	if len(k.params) == 0 {
		return k.endpoint
	}
	names := make([]string, 0, len(k.params))
	for name := range k.params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.endpoint)
	b.WriteByte('?')
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(k.params[name]))
	}
	return b.String()
}
