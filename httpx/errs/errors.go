// Package errs holds the error taxonomy shared by every httpx layer.
//
// Callers only ever observe the types declared here: configuration
// failures at construction time, terminal transport failures after the
// retry loop gave up, and classified or protocol errors for non-2xx
// responses.
package errs

import (
	"fmt"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// Sentinel errors that can be checked using errors.Is
var (
	// ErrRetriesExhausted matches a TerminalError produced after the last attempt failed.
	ErrRetriesExhausted = errors.New("max retry attempts exceeded")

	// ErrInterrupted matches a TerminalError produced when the context ended during backoff.
	ErrInterrupted = errors.New("call interrupted")

	// ErrTransportClosed is returned by a transport after its shutdown hook ran.
	ErrTransportClosed = errors.New("transport is closed")

	// ErrUnknownClient is returned when a client name has no configuration.
	ErrUnknownClient = errors.New("unknown client")
)

// ConfigurationError reports malformed or unreadable client configuration.
// It is fatal at construction and never retried.
type ConfigurationError struct {
	// Client is the logical client name, empty for global settings
	Client string

	// Key is the configuration key that failed, relative to the client namespace
	Key string

	Err error
}

func (e *ConfigurationError) Error() string {
	scope := "global settings"
	if e.Client != "" {
		scope = fmt.Sprintf("client %q", e.Client)
	}
	if e.Key != "" {
		return fmt.Sprintf("httpx: %s: invalid configuration %q: %v", scope, e.Key, e.Err)
	}
	return fmt.Sprintf("httpx: %s: invalid configuration: %v", scope, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Configf builds a ConfigurationError with a formatted cause.
func Configf(client, key, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Client: client, Key: key, Err: errors.Newf(format, args...)}
}

// RetryableTransportError wraps a transport-level failure of a single attempt
// that the retry loop is allowed to recover from.
type RetryableTransportError struct {
	Attempt int
	Err     error
}

func (e *RetryableTransportError) Error() string {
	return fmt.Sprintf("httpx: attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *RetryableTransportError) Unwrap() error {
	return e.Err
}

// TerminalError ends a logical call at the transport level: every attempt
// failed, the failure was not retryable, or the context ended.
type TerminalError struct {
	// Attempts is the number of attempts that were executed
	Attempts int

	// Exhausted is set when the last allowed attempt failed with a retryable error
	Exhausted bool

	// Interrupted is set when the context ended during an attempt or backoff
	Interrupted bool

	// Err is the last attempt error, or the context error when interrupted
	Err error
}

func (e *TerminalError) Error() string {
	if e.Interrupted {
		return fmt.Sprintf("httpx: call interrupted after %d attempt(s): %v", e.Attempts, e.Err)
	}
	if e.Exhausted {
		return fmt.Sprintf("httpx: %v: %d attempt(s): %v", ErrRetriesExhausted, e.Attempts, e.Err)
	}
	return fmt.Sprintf("httpx: call failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Is reports the terminal reason so callers can use errors.Is with
// ErrRetriesExhausted or ErrInterrupted.
func (e *TerminalError) Is(target error) bool {
	switch target {
	case ErrInterrupted:
		return e.Interrupted
	case ErrRetriesExhausted:
		return e.Exhausted
	}
	return false
}

// ClassifiedError is a 4xx outcome carrying the exact response body.
type ClassifiedError struct {
	StatusCode int

	// OperationKey names the logical operation that produced the call
	OperationKey string

	// Body is the response body as delivered by the transport, possibly empty
	Body string
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("httpx: %s: status %d: %s", e.OperationKey, e.StatusCode, abbreviate(e.Body))
}

// JSON looks up a field of a structured error payload using gjson path syntax.
func (e *ClassifiedError) JSON(path string) gjson.Result {
	return gjson.Get(e.Body, path)
}

// ProtocolError is any other non-2xx outcome, or a 2xx whose payload could
// not be decoded.
type ProtocolError struct {
	StatusCode   int
	OperationKey string
	Body         string

	// Err is set when the payload of a successful response failed to decode
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("httpx: %s: status %d: decoding response: %v", e.OperationKey, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("httpx: %s: unexpected status %d: %s", e.OperationKey, e.StatusCode, abbreviate(e.Body))
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// RequestError reports a request that could not be built before any
// attempt was made.
type RequestError struct {
	Method string
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("httpx: invalid request %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the upstream status from a classified or protocol error.
func StatusCode(err error) (int, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.StatusCode, true
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.StatusCode, true
	}
	return 0, false
}

const maxMessageBody = 256

func abbreviate(body string) string {
	if len(body) <= maxMessageBody {
		return body
	}
	cut := maxMessageBody
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}
