package httpxtest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/seb7887/gofw/httpx/settings"
	"github.com/seb7887/gofw/httpx/transport"
)

var _ transport.Transport = (*MockTransport)(nil)

// MockTransport is a mock implementation of transport.Transport for testing.
// It allows configuring response behavior and capturing request history.
type MockTransport struct {
	mu sync.Mutex

	// Response to return (if Err is nil)
	Response *http.Response

	// Err to return (takes precedence over Response)
	Err error

	// Func is a custom function to handle requests
	// If set, takes precedence over Response and Err
	Func func(ctx context.Context, req *http.Request) (*http.Response, error)

	// Tag is reported by Backend, defaulting to pooled
	Tag settings.Backend

	// Requests captures all requests made to this transport
	Requests []*http.Request

	// Bodies captures the request body of every call
	Bodies [][]byte

	// CallCount tracks the number of times Do() was called
	CallCount int

	// CloseCount tracks the number of times Close() was called
	CloseCount int
}

// Do implements the Transport interface. The request body is captured and
// replaced so Func can still read it.
func (m *MockTransport) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.CallCount++
	m.Requests = append(m.Requests, req)
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	m.Bodies = append(m.Bodies, body)
	fn, resp, err := m.Func, m.Response, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}

	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (m *MockTransport) Backend() settings.Backend {
	if m.Tag == "" {
		return settings.BackendPooled
	}
	return m.Tag
}

func (m *MockTransport) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCount++
	return nil
}

// Calls returns the number of Do calls so far.
func (m *MockTransport) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// Reset clears the request history and call count.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = nil
	m.Bodies = nil
	m.CallCount = 0
}

// LastRequest returns the most recent request, or nil if no requests have been made.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Requests) == 0 {
		return nil
	}

	return m.Requests[len(m.Requests)-1]
}

// NewResponse builds a response with a string body, for use as a canned result.
func NewResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}
