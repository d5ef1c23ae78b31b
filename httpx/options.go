package httpx

import (
	"github.com/seb7887/gofw/httpx/policy"
	"github.com/seb7887/gofw/httpx/transport"
	"go.uber.org/zap"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithName sets the logical client name used in logs, metrics and errors.
func WithName(name string) ClientOption {
	return func(c *Client) {
		c.name = name
	}
}

// WithBaseURL sets the URL every request path is joined with.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTransport sets the backend that executes attempts.
func WithTransport(t transport.Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithPolicies appends policies to the chain, outermost first.
func WithPolicies(policies ...policy.Policy) ClientOption {
	return func(c *Client) {
		c.policies = append(c.policies, policies...)
	}
}

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}
