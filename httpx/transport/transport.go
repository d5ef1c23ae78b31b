// Package transport builds the backend that executes a single HTTP attempt.
//
// Three variants exist: Simple (no pooling), Pooled (bounded connection
// pool with graceful shutdown) and HTTP2 (version negotiated client). The
// variant is chosen once per client from its settings and recorded as a
// static tag.
package transport

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/httpx/settings"
	"github.com/seb7887/gofw/httpx/tlsconf"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Transport executes one HTTP request and returns the response or a
// transport-level error. Implementations are safe for concurrent use.
type Transport interface {
	// Do executes an HTTP request and returns the response.
	// The context can be used for cancellation and timeout control.
	Do(ctx context.Context, req *http.Request) (*http.Response, error)

	// Backend returns the variant recorded at construction.
	Backend() settings.Backend

	// Close releases the backend resources. Only the first call has an effect.
	Close(ctx context.Context) error
}

// Builder constructs transports from client settings and pool configuration.
type Builder struct {
	tls    *tlsconf.Factory
	logger *zap.Logger
	tracer trace.TracerProvider
}

type BuilderOption func(*Builder)

// WithLogger sets the logger used to report built transports.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithTracerProvider wraps every backend with otelhttp so each attempt
// produces a client span.
func WithTracerProvider(tp trace.TracerProvider) BuilderOption {
	return func(b *Builder) {
		b.tracer = tp
	}
}

func NewBuilder(factory *tlsconf.Factory, opts ...BuilderOption) *Builder {
	if factory == nil {
		factory = tlsconf.NewFactory(nil)
	}
	b := &Builder{tls: factory, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Named("httpx.transport")
	return b
}

// Build constructs the backend selected by s.Backend.
func (b *Builder) Build(s settings.ClientSettings, pool settings.PoolConfig) (Transport, error) {
	switch s.Backend {
	case settings.BackendSimple:
		return b.BuildSimple(s, pool)
	case settings.BackendPooled:
		return b.BuildPooled(s, pool)
	case settings.BackendHTTP2:
		return b.BuildHTTP2(s, pool)
	default:
		return nil, errs.Configf(s.Name, "backend", "unknown backend %q", s.Backend)
	}
}

// tlsConfig resolves the TLS configuration of a client. Disabling
// validation wins over everything, including clients with TLS disabled.
// A nil result keeps the Go defaults.
func (b *Builder) tlsConfig(s settings.ClientSettings, pool settings.PoolConfig) (*tls.Config, error) {
	if pool.DisableTLSValidation {
		return tlsconf.BuildInsecure(), nil
	}
	if !s.TLS.Enabled {
		return nil, nil
	}
	return b.tls.BuildTrusted(s.Name, s.TLS)
}

// proxyFunc returns the explicit proxy of a client. A nil func means no
// proxy at all; environment proxy variables are never consulted.
func proxyFunc(s settings.ClientSettings) func(*http.Request) (*url.URL, error) {
	if !s.ProxyActive() {
		return nil
	}
	return http.ProxyURL(&url.URL{Scheme: "http", Host: s.Proxy.Address()})
}

const maxRedirects = 10

func redirectPolicy(follow bool) func(*http.Request, []*http.Request) error {
	if !follow {
		return func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.Newf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
}

func (b *Builder) instrument(rt http.RoundTripper) http.RoundTripper {
	if b.tracer == nil {
		return rt
	}
	return otelhttp.NewTransport(rt, otelhttp.WithTracerProvider(b.tracer))
}

func (b *Builder) logBuilt(s settings.ClientSettings, pool settings.PoolConfig, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("client", s.Name),
		zap.String("backend", string(s.Backend)),
		zap.Bool("proxy", s.ProxyActive()),
		zap.Bool("tls", s.TLS.Enabled),
		zap.Bool("tls_validation_disabled", pool.DisableTLSValidation),
	}, fields...)
	b.logger.Info("transport built", fields...)
}

// shared holds what every backend has: the finalized client and the
// underlying http.Transport.
type shared struct {
	backend   settings.Backend
	client    *http.Client
	transport *http.Transport
	closeOnce sync.Once
}

func (t *shared) Backend() settings.Backend {
	return t.backend
}

func (t *shared) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return t.client.Do(req.WithContext(ctx))
}

func (t *shared) Close(context.Context) error {
	t.closeOnce.Do(t.transport.CloseIdleConnections)
	return nil
}

// NewDefault builds a pooled backend from the default client and pool
// settings. It cannot fail because the defaults carry no TLS material.
func NewDefault() *Pooled {
	p, err := NewBuilder(nil).BuildPooled(settings.Defaults("default"), settings.DefaultPool())
	if err != nil {
		panic(err)
	}
	return p
}
