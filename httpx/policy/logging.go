package policy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/seb7887/gofw/httpx/settings"
	"go.uber.org/zap"
)

var redactedHeaders = map[string]bool{
	"Authorization":       true,
	"Proxy-Authorization": true,
	"Cookie":              true,
	"Set-Cookie":          true,
}

// LoggingPolicy logs every attempt at the configured verbosity. It runs
// closest to the transport so each retry attempt is logged on its own.
//
//   - basic: method, URL, status and elapsed time
//   - headers: basic plus request and response headers
//   - full: headers plus request and response bodies
type LoggingPolicy struct {
	logger *zap.Logger
	level  settings.LoggerLevel
}

func NewLoggingPolicy(logger *zap.Logger, level settings.LoggerLevel) *LoggingPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingPolicy{
		logger: logger,
		level:  level,
	}
}

func (l *LoggingPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	if !l.level.Verbose() {
		return next(ctx, req)
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("attempt", AttemptFrom(ctx)),
	}
	if id, ok := CorrelationIDFrom(ctx); ok {
		fields = append(fields, zap.String("correlation_id", id))
	}

	// full slice so the request and response entries never share a tail
	fields = fields[:len(fields):len(fields)]

	reqFields := fields
	if l.level == settings.LoggerHeaders || l.level == settings.LoggerFull {
		reqFields = append(reqFields, zap.Any("headers", redact(req.Header)))
	}
	if l.level == settings.LoggerFull {
		reqFields = append(reqFields, zap.String("body", requestBody(req)))
	}
	l.logger.Info("--> request", reqFields...)

	start := time.Now()
	resp, err := next(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		l.logger.Info("<-- failed", append(fields, zap.Duration("elapsed", elapsed), zap.Error(err))...)
		return nil, err
	}

	respFields := append(fields, zap.Int("status", resp.StatusCode), zap.Duration("elapsed", elapsed))
	if l.level == settings.LoggerHeaders || l.level == settings.LoggerFull {
		respFields = append(respFields, zap.Any("headers", redact(resp.Header)))
	}
	if l.level == settings.LoggerFull {
		body, readErr := bufferBody(resp)
		if readErr != nil {
			respFields = append(respFields, zap.NamedError("body_error", readErr))
		}
		respFields = append(respFields, zap.String("body", body))
	}
	l.logger.Info("<-- response", respFields...)

	return resp, nil
}

func redact(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if redactedHeaders[k] {
			out[k] = "<redacted>"
			continue
		}
		out[k] = strings.Join(vs, ", ")
	}
	return out
}

// requestBody reads a copy of the request body without consuming it.
func requestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	rc, err := req.GetBody()
	if err != nil {
		return ""
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	return string(b)
}

// bufferBody reads the response body and puts an equivalent one back.
func bufferBody(resp *http.Response) (string, error) {
	if resp.Body == nil || resp.Body == http.NoBody {
		return "", nil
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body = &restoredBody{Reader: bytes.NewReader(data), orig: resp.Body, err: err}
	return string(data), err
}

// restoredBody replays buffered bytes, then the read error if any, and
// closes the original body.
type restoredBody struct {
	*bytes.Reader
	orig io.Closer
	err  error
}

func (b *restoredBody) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	if err == io.EOF && b.err != nil {
		return n, b.err
	}
	return n, err
}

func (b *restoredBody) Close() error {
	return b.orig.Close()
}
