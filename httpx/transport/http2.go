package transport

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/httpx/settings"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Customizer mutates the base transport of the HTTP/2 backend before the
// protocol is configured and the client is finalized.
type Customizer func(*http.Transport) error

// HTTP2 negotiates HTTP/2 over TLS through ALPN and falls back to
// HTTP/1.1 for plain connections or servers without h2 support.
type HTTP2 struct {
	shared

	h2 *http2.Transport
}

var _ Transport = (*HTTP2)(nil)

// Protocol reports the configured version.
func (t *HTTP2) Protocol() settings.HTTPVersion {
	if t.h2 == nil {
		return settings.HTTP11
	}
	return settings.HTTP2
}

// BuildHTTP2 builds the version negotiated backend. Proxy and TLS are
// applied by customizers, followed by any extra customizers, before the
// HTTP/2 layer is attached.
func (b *Builder) BuildHTTP2(s settings.ClientSettings, pool settings.PoolConfig, extra ...Customizer) (*HTTP2, error) {
	t := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   pool.ConnectionTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   pool.ConnectionTimeout,
		IdleConnTimeout:       pool.TimeToLive,
		ResponseHeaderTimeout: s.ReadTimeout,
		ExpectContinueTimeout: time.Second,
	}

	customizers := append([]Customizer{proxyCustomizer(s), b.tlsCustomizer(s, pool)}, extra...)
	for _, customize := range customizers {
		if err := customize(t); err != nil {
			return nil, err
		}
	}

	var h2 *http2.Transport
	switch pool.HTTP2Version {
	case settings.HTTP11:
		// A non-nil empty map disables h2 negotiation.
		t.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
	default:
		var err error
		h2, err = http2.ConfigureTransports(t)
		if err != nil {
			return nil, &errs.ConfigurationError{Client: s.Name, Key: "pool.http2.version", Err: err}
		}
		h2.ReadIdleTimeout = 30 * time.Second
		h2.PingTimeout = 15 * time.Second
	}

	follow := pool.FollowRedirects && s.FollowRedirects
	b.logBuilt(s, pool, zap.String("version", string(pool.HTTP2Version)), zap.Bool("follow_redirects", follow))

	return &HTTP2{
		shared: shared{
			backend:   settings.BackendHTTP2,
			transport: t,
			client: &http.Client{
				Transport:     b.instrument(t),
				CheckRedirect: redirectPolicy(follow),
			},
		},
		h2: h2,
	}, nil
}

func proxyCustomizer(s settings.ClientSettings) Customizer {
	return func(t *http.Transport) error {
		t.Proxy = proxyFunc(s)
		return nil
	}
}

func (b *Builder) tlsCustomizer(s settings.ClientSettings, pool settings.PoolConfig) Customizer {
	return func(t *http.Transport) error {
		cfg, err := b.tlsConfig(s, pool)
		if err != nil {
			return err
		}
		t.TLSClientConfig = cfg
		return nil
	}
}
