package transport

import "net/http"

// HTTPTransport exposes the underlying http.Transport of a built backend.
func HTTPTransport(t Transport) *http.Transport {
	switch v := t.(type) {
	case *Simple:
		return v.transport
	case *Pooled:
		return v.transport
	case *HTTP2:
		return v.transport
	}
	return nil
}

// HTTPClient exposes the finalized http.Client of a built backend.
func HTTPClient(t Transport) *http.Client {
	switch v := t.(type) {
	case *Simple:
		return v.client
	case *Pooled:
		return v.client
	case *HTTP2:
		return v.client
	}
	return nil
}

// OpenConnections reports the connections holding a pool permit.
func OpenConnections(p *Pooled) int64 {
	return p.limiter.Open()
}
