package transport

import (
	"net"
	"net/http"
	"time"

	"github.com/seb7887/gofw/httpx/settings"
	"go.uber.org/zap"
)

// Simple opens one TCP connection per call and keeps nothing between calls.
type Simple struct {
	shared
}

var _ Transport = (*Simple)(nil)

// BuildSimple builds a non-pooling transport with an explicit proxy (or
// none) and an optional TLS configuration.
func (b *Builder) BuildSimple(s settings.ClientSettings, pool settings.PoolConfig) (*Simple, error) {
	tlsCfg, err := b.tlsConfig(s, pool)
	if err != nil {
		return nil, err
	}

	t := &http.Transport{
		Proxy: proxyFunc(s),
		DialContext: (&net.Dialer{
			Timeout: s.ConnectTimeout,
		}).DialContext,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   s.ConnectTimeout,
		ResponseHeaderTimeout: s.ReadTimeout,
		DisableKeepAlives:     true,
		ExpectContinueTimeout: time.Second,
	}

	b.logBuilt(s, pool, zap.Duration("connect_timeout", s.ConnectTimeout), zap.Duration("read_timeout", s.ReadTimeout))

	return &Simple{shared: shared{
		backend:   settings.BackendSimple,
		transport: t,
		client: &http.Client{
			Transport:     b.instrument(t),
			CheckRedirect: redirectPolicy(s.FollowRedirects),
		},
	}}, nil
}
