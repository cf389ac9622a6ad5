package httpclient

import "net/http"

// HeaderTransport is a RoundTripper that stamps a fixed set of headers onto
// every outgoing request. Used to attach per-call correlation and auth headers
// uniformly across discovery and dispatch requests without threading them
// through every call site.
type HeaderTransport struct {
	Base   http.RoundTripper
	Header http.Header
}

// RoundTrip implements http.RoundTripper. The request is cloned before
// modification per the RoundTripper contract.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, values := range t.Header {
		for _, v := range values {
			clone.Header.Set(key, v)
		}
	}

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}
