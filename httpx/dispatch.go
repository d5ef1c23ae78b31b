package httpx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/carlmjohnson/requests"
	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/httpx/errs"
)

// Call describes one logical operation against a client's base URL.
type Call struct {
	// Operation names the call in classified errors, e.g. "PokeAPI#GetByName"
	Operation string

	Method string

	// Path is a format string; PathArgs are path-escaped and substituted
	Path     string
	PathArgs []any

	Query   url.Values
	Headers http.Header

	// Body is sent as JSON when non-nil
	Body any
}

// Dispatch executes call and decodes a 2xx JSON payload into T. Callers
// observe either the decoded value or one error of the taxonomy:
// ClassifiedError, ProtocolError, TerminalError or RequestError.
func Dispatch[T any](ctx context.Context, c *Client, call Call) (T, error) {
	var out T
	err := c.builder(call).
		Handle(func(resp *http.Response) error {
			if err := requests.ToJSON(&out)(resp); err != nil {
				return &errs.ProtocolError{StatusCode: resp.StatusCode, OperationKey: call.Operation, Err: err}
			}
			return nil
		}).
		Fetch(ctx)
	if err != nil {
		var zero T
		return zero, c.dispatchError(call, err)
	}
	return out, nil
}

// Send executes call and discards a 2xx payload.
func Send(ctx context.Context, c *Client, call Call) error {
	if err := c.builder(call).Fetch(ctx); err != nil {
		return c.dispatchError(call, err)
	}
	return nil
}

func (c *Client) builder(call Call) *requests.Builder {
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	rb := requests.New().
		Client(&http.Client{
			Transport: c.RoundTripper(),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}).
		BaseURL(joinURL(c.baseURL, call.path())).
		Method(method).
		AddValidator(Classifier(call.Operation))

	for k, vs := range call.Query {
		rb.Param(k, vs...)
	}
	for k, vs := range call.Headers {
		rb.Header(k, vs...)
	}
	if call.Body != nil {
		rb.BodyJSON(call.Body)
	}
	return rb
}

// dispatchError unwraps the requests and url.Error layers down to the
// taxonomy type the pipeline produced.
func (c *Client) dispatchError(call Call, err error) error {
	var classified *errs.ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}
	var protocol *errs.ProtocolError
	if errors.As(err, &protocol) {
		return protocol
	}
	var terminal *errs.TerminalError
	if errors.As(err, &terminal) {
		return terminal
	}
	var request *errs.RequestError
	if errors.As(err, &request) {
		return request
	}
	return &errs.RequestError{Method: call.Method, URL: joinURL(c.baseURL, call.path()), Err: err}
}

// path formats Path with the escaped PathArgs. It is joined with the base
// URL the same way Client.Do joins request paths.
func (call Call) path() string {
	if len(call.PathArgs) == 0 {
		return call.Path
	}
	return fmt.Sprintf(call.Path, escapeArgs(call.PathArgs)...)
}

func escapeArgs(args []any) []any {
	escaped := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			escaped[i] = url.PathEscape(s)
			continue
		}
		escaped[i] = a
	}
	return escaped
}
