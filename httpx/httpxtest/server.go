package httpxtest

import (
	"bytes"
	"crypto/tls"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// TestServerConfig configures the behavior of a test HTTP server.
type TestServerConfig struct {
	// Latency is the fixed delay before responding
	Latency time.Duration

	// FailureRate is the probability (0.0-1.0) of returning an error response
	FailureRate float64

	// StatusCodes is a list of status codes to rotate through
	// If empty, defaults to [200]
	StatusCodes []int

	// Body is written with every rotated status code
	Body string

	// Handler is a custom handler function
	// If set, overrides latency, failure rate, status codes and body
	Handler http.HandlerFunc

	// Certificate switches the server to TLS
	Certificate *tls.Certificate

	// HTTP2 enables h2 negotiation; only effective with a Certificate
	HTTP2 bool
}

// RecordedRequest is a copy of what the server received.
type RecordedRequest struct {
	Method   string
	Path     string
	RawQuery string
	Proto    string
	Header   http.Header
	Body     []byte
}

// TestServer is a configurable HTTP test server.
type TestServer struct {
	*httptest.Server

	mu            sync.Mutex
	config        TestServerConfig
	requests      []RecordedRequest
	statusCodeIdx int
}

// NewTestServer creates and starts a test server with the given configuration.
func NewTestServer(config TestServerConfig) *TestServer {
	if len(config.StatusCodes) == 0 {
		config.StatusCodes = []int{http.StatusOK}
	}

	ts := &TestServer{config: config}
	ts.Server = httptest.NewUnstartedServer(http.HandlerFunc(ts.handleRequest))

	if config.Certificate != nil {
		ts.Server.TLS = &tls.Config{Certificates: []tls.Certificate{*config.Certificate}}
		ts.Server.EnableHTTP2 = config.HTTP2
		ts.Server.StartTLS()
	} else {
		ts.Server.Start()
	}

	return ts
}

// handleRequest records the request and then responds according to the configuration.
// Requests are recorded under the lock; handlers run concurrently.
func (ts *TestServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	ts.mu.Lock()
	ts.requests = append(ts.requests, RecordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Proto:    r.Proto,
		Header:   r.Header.Clone(),
		Body:     body,
	})
	statusCode := ts.config.StatusCodes[ts.statusCodeIdx%len(ts.config.StatusCodes)]
	ts.statusCodeIdx++
	ts.mu.Unlock()

	if ts.config.Handler != nil {
		ts.config.Handler(w, r)
		return
	}

	if ts.config.Latency > 0 {
		time.Sleep(ts.config.Latency)
	}

	if rand.Float64() < ts.config.FailureRate {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(statusCode)
	if ts.config.Body != "" {
		_, _ = io.WriteString(w, ts.config.Body)
	}
}

// RequestCount returns the total number of requests handled by this server.
func (ts *TestServer) RequestCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.requests)
}

// Requests returns a copy of the recorded requests in arrival order.
func (ts *TestServer) Requests() []RecordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]RecordedRequest(nil), ts.requests...)
}

// LastRequest returns the most recent request, or false if none arrived.
func (ts *TestServer) LastRequest() (RecordedRequest, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.requests) == 0 {
		return RecordedRequest{}, false
	}
	return ts.requests[len(ts.requests)-1], true
}

// Reset clears the recorded requests.
func (ts *TestServer) Reset() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.requests = nil
	ts.statusCodeIdx = 0
}

// TestServerOption is a functional option for configuring a test server.
type TestServerOption func(*TestServerConfig)

// WithLatency sets a fixed latency for all responses.
func WithLatency(d time.Duration) TestServerOption {
	return func(c *TestServerConfig) {
		c.Latency = d
	}
}

// WithFailureRate sets the probability of returning error responses.
// rate should be between 0.0 and 1.0.
func WithFailureRate(rate float64) TestServerOption {
	return func(c *TestServerConfig) {
		c.FailureRate = rate
	}
}

// WithStatusCodes sets the status codes to rotate through.
func WithStatusCodes(codes ...int) TestServerOption {
	return func(c *TestServerConfig) {
		c.StatusCodes = codes
	}
}

// WithBody sets the body written after the status code.
func WithBody(body string) TestServerOption {
	return func(c *TestServerConfig) {
		c.Body = body
	}
}

// WithHandler sets a custom handler function.
func WithHandler(handler http.HandlerFunc) TestServerOption {
	return func(c *TestServerConfig) {
		c.Handler = handler
	}
}

// WithTLS serves TLS with cert, negotiating h2 when http2 is set.
func WithTLS(cert tls.Certificate, http2 bool) TestServerOption {
	return func(c *TestServerConfig) {
		c.Certificate = &cert
		c.HTTP2 = http2
	}
}

// NewTestServerWithOptions creates a test server with functional options.
func NewTestServerWithOptions(opts ...TestServerOption) *TestServer {
	config := TestServerConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	return NewTestServer(config)
}

// Port returns the TCP port a started httptest server listens on.
func Port(srv *httptest.Server) int {
	u, err := url.Parse(srv.URL)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(u.Port())
	return port
}
