package httpx

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/seb7887/gofw/httpx/policy"
)

// Headers is a convenience type for HTTP headers.
type Headers map[string]string

// Request represents an HTTP request with additional configuration options.
type Request struct {
	// Method is the HTTP method (GET, POST, PUT, PATCH, DELETE, etc.)
	Method string

	// Path is the URL path (will be joined with Client's BaseURL if set)
	Path string

	// Query is encoded into the URL query string
	Query url.Values

	// Headers are the HTTP headers to send with the request
	Headers Headers

	// Body is the request body (for POST, PUT, PATCH requests)
	Body io.Reader

	// Options adjust how this request runs through the client
	Options []RequestOption
}

// RequestOption adjusts the context a single request is executed with.
type RequestOption func(ctx context.Context) context.Context

// WithoutRetry runs the request as a single attempt.
func WithoutRetry() RequestOption {
	return policy.WithoutRetry
}

// WithCorrelationID sends id instead of a generated correlation id.
func WithCorrelationID(id string) RequestOption {
	return func(ctx context.Context) context.Context {
		return policy.WithCorrelationID(ctx, id)
	}
}

func (r *Request) context(ctx context.Context) context.Context {
	for _, opt := range r.Options {
		ctx = opt(ctx)
	}
	return ctx
}

// toHTTPRequest converts a Request to a standard http.Request.
func (r *Request) toHTTPRequest(ctx context.Context, baseURL string) (*http.Request, error) {
	target := joinURL(baseURL, r.Path)
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

func joinURL(base, path string) string {
	switch {
	case base == "":
		return path
	case path == "":
		return base
	case strings.HasSuffix(base, "/") && strings.HasPrefix(path, "/"):
		return base + path[1:]
	case !strings.HasSuffix(base, "/") && !strings.HasPrefix(path, "/"):
		return base + "/" + path
	default:
		return base + path
	}
}
