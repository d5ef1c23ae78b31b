package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/seb7887/gofw/httpx/policy"
	"github.com/seb7887/gofw/httpx/settings"
	"github.com/seb7887/gofw/httpx/transport"
	"go.uber.org/zap"
)

// Client is the main HTTP client that orchestrates transport and policies.
// It is thread-safe and immutable after creation.
type Client struct {
	// name is the logical client name
	name string

	// transport is the underlying HTTP executor
	transport transport.Transport

	// baseURL is prepended to all request paths
	baseURL string

	// policies is the chain of resilience policies
	policies []policy.Policy

	// executor is the final chained executor (policies + transport)
	executor policy.Executor

	logger *zap.Logger
}

// NewClient creates a new HTTP client with the provided options.
// The client is configured using functional options pattern.
//
// Example:
//
//	client := httpx.NewClient(
//	    httpx.WithBaseURL("https://pokeapi.co"),
//	    httpx.WithPolicies(policy.NewRetryPolicy(policy.RetryConfig{})),
//	)
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		name:     "default",
		policies: []policy.Policy{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = transport.NewDefault()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	c.executor = policy.Chain(c.policies, c.transport.Do)

	return c
}

// Name returns the logical client name.
func (c *Client) Name() string {
	return c.name
}

// BaseURL returns the URL request paths are joined with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Backend returns the variant of the underlying transport.
func (c *Client) Backend() settings.Backend {
	return c.transport.Backend()
}

// Do executes an HTTP request with all configured policies applied.
// This is the most flexible method, allowing full control over the request.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	ctx = req.context(ctx)

	httpReq, err := req.toHTTPRequest(ctx, c.baseURL)
	if err != nil {
		return nil, &RequestError{
			Method: req.Method,
			URL:    joinURL(c.baseURL, req.Path),
			Err:    err,
		}
	}

	return c.executor(ctx, httpReq)
}

// Get executes a GET request to the specified path.
// Headers are optional and can be nil.
func (c *Client) Get(ctx context.Context, path string, headers ...Headers) (*http.Response, error) {
	h := Headers{}
	if len(headers) > 0 {
		h = headers[0]
	}

	return c.Do(ctx, &Request{
		Method:  http.MethodGet,
		Path:    path,
		Headers: h,
	})
}

// Post executes a POST request to the specified path with the given body.
// Headers are optional and can be nil.
func (c *Client) Post(ctx context.Context, path string, headers Headers, body io.Reader) (*http.Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodPost,
		Path:    path,
		Headers: headers,
		Body:    body,
	})
}

// Put executes a PUT request to the specified path with the given body.
// Headers are optional and can be nil.
func (c *Client) Put(ctx context.Context, path string, headers Headers, body io.Reader) (*http.Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodPut,
		Path:    path,
		Headers: headers,
		Body:    body,
	})
}

// Patch executes a PATCH request to the specified path with the given body.
// Headers are optional and can be nil.
func (c *Client) Patch(ctx context.Context, path string, headers Headers, body io.Reader) (*http.Response, error) {
	return c.Do(ctx, &Request{
		Method:  http.MethodPatch,
		Path:    path,
		Headers: headers,
		Body:    body,
	})
}

// Delete executes a DELETE request to the specified path.
// Headers are optional and can be nil.
func (c *Client) Delete(ctx context.Context, path string, headers ...Headers) (*http.Response, error) {
	h := Headers{}
	if len(headers) > 0 {
		h = headers[0]
	}

	return c.Do(ctx, &Request{
		Method:  http.MethodDelete,
		Path:    path,
		Headers: h,
	})
}

// RoundTripper exposes the policy chain as an http.RoundTripper so any
// http.Client can run its requests through this client. Requests are
// cloned before the policies touch them.
func (c *Client) RoundTripper() http.RoundTripper {
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		ctx := req.Context()
		return c.executor(ctx, req.Clone(ctx))
	})
}

// Close runs the shutdown hook of the underlying transport.
func (c *Client) Close(ctx context.Context) error {
	return c.transport.Close(ctx)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
