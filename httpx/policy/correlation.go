package policy

import (
	"context"
	"net/http"
)

// CorrelationHeader is the default header carrying the correlation id.
const CorrelationHeader = "X-Correlation-ID"

// CorrelationPolicy makes sure every call carries a correlation id. An id
// already on the request wins, then one stored in the context, and only
// then a generated one. The chosen id is stored in the context for the
// inner policies, so every retry attempt sends the same value.
type CorrelationPolicy struct {
	header   string
	generate func() string
}

func NewCorrelationPolicy(header string, generate func() string) *CorrelationPolicy {
	if header == "" {
		header = CorrelationHeader
	}
	return &CorrelationPolicy{
		header:   http.CanonicalHeaderKey(header),
		generate: generate,
	}
}

func (c *CorrelationPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	id := req.Header.Get(c.header)
	if id == "" {
		if fromCtx, ok := CorrelationIDFrom(ctx); ok {
			id = fromCtx
		} else {
			id = c.generate()
		}
		req.Header.Set(c.header, id)
	}
	if c := callFrom(ctx); c != nil {
		c.correlationID = id
	}
	return next(WithCorrelationID(ctx, id), req)
}
