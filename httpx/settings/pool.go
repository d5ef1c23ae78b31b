package settings

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// HTTPVersion selects the protocol the HTTP/2 backend negotiates.
type HTTPVersion string

const (
	HTTP2  HTTPVersion = "HTTP_2"
	HTTP11 HTTPVersion = "HTTP_1_1"
)

func ParseHTTPVersion(s string) (HTTPVersion, error) {
	switch v := HTTPVersion(strings.ToUpper(strings.TrimSpace(s))); v {
	case HTTP2, HTTP11:
		return v, nil
	default:
		return "", errors.Newf("unknown http version %q (want HTTP_2 or HTTP_1_1)", s)
	}
}

// PoolConfig holds the process-wide transport tuning shared by all clients.
type PoolConfig struct {
	// DisableTLSValidation trusts every certificate and skips host name
	// checks on all backends, even for clients with TLS disabled.
	DisableTLSValidation bool

	MaxConnections         int
	MaxConnectionsPerRoute int

	// TimeToLive expires pooled connections that stay idle this long
	TimeToLive time.Duration

	ConnectionTimeout time.Duration

	// ConnectionRequestTimeout bounds the wait for a free pooled connection
	ConnectionRequestTimeout time.Duration

	// SocketTimeout bounds the wait for response headers on pooled connections
	SocketTimeout time.Duration

	FollowRedirects bool
	HTTP2Version    HTTPVersion

	// ShutdownTimeout bounds the graceful drain of pooled transports
	ShutdownTimeout time.Duration
}

// DefaultPool returns the pool configuration used when nothing is configured.
func DefaultPool() PoolConfig {
	return PoolConfig{
		MaxConnections:           200,
		MaxConnectionsPerRoute:   50,
		TimeToLive:               900 * time.Second,
		ConnectionTimeout:        2 * time.Second,
		ConnectionRequestTimeout: 3 * time.Minute,
		SocketTimeout:            5 * time.Second,
		FollowRedirects:          true,
		HTTP2Version:             HTTP2,
		ShutdownTimeout:          30 * time.Second,
	}
}
