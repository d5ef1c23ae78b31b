package policy

import (
	"context"
	"net/http"
)

// HeadersPolicy adds configured headers to requests that do not set them.
type HeadersPolicy struct {
	headers http.Header
}

func NewHeadersPolicy(headers map[string]string) *HeadersPolicy {
	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	return &HeadersPolicy{headers: h}
}

func (h *HeadersPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	for k, vs := range h.headers {
		if _, ok := req.Header[k]; ok {
			continue
		}
		req.Header[k] = append([]string(nil), vs...)
	}
	return next(ctx, req)
}
