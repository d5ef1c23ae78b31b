package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/httpx/settings"
	"go.uber.org/zap"
)

// Pooled shares a bounded connection pool between all calls of a client.
// A call is in flight from Do until its response body is closed; Close
// waits for in-flight calls before tearing the pool down.
type Pooled struct {
	shared

	limiter *connLimiter
	logger  *zap.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
	closeErr error
}

var _ Transport = (*Pooled)(nil)

// BuildPooled builds the pooling backend. TLS is configured once on the
// pool rather than per request, and a proxy is only installed when active.
func (b *Builder) BuildPooled(s settings.ClientSettings, pool settings.PoolConfig) (*Pooled, error) {
	tlsCfg, err := b.tlsConfig(s, pool)
	if err != nil {
		return nil, err
	}

	limiter := newConnLimiter(pool.MaxConnections, &net.Dialer{
		Timeout:   pool.ConnectionTimeout,
		KeepAlive: 30 * time.Second,
	}, pool.ConnectionRequestTimeout)

	t := &http.Transport{
		Proxy:                 proxyFunc(s),
		DialContext:           limiter.DialContext,
		TLSClientConfig:       tlsCfg,
		TLSHandshakeTimeout:   pool.ConnectionTimeout,
		MaxConnsPerHost:       pool.MaxConnectionsPerRoute,
		MaxIdleConns:          pool.MaxConnections,
		MaxIdleConnsPerHost:   pool.MaxConnectionsPerRoute,
		IdleConnTimeout:       pool.TimeToLive,
		ResponseHeaderTimeout: socketTimeout(pool.SocketTimeout, s.ReadTimeout),
		ExpectContinueTimeout: time.Second,
	}
	limiter.onStarved = t.CloseIdleConnections

	b.logBuilt(s, pool,
		zap.Int("max_connections", pool.MaxConnections),
		zap.Int("max_connections_per_route", pool.MaxConnectionsPerRoute),
		zap.Duration("time_to_live", pool.TimeToLive),
	)

	return &Pooled{
		shared: shared{
			backend:   settings.BackendPooled,
			transport: t,
			client: &http.Client{
				Transport:     b.instrument(t),
				CheckRedirect: redirectPolicy(pool.FollowRedirects && s.FollowRedirects),
			},
		},
		limiter: limiter,
		logger:  b.logger.With(zap.String("client", s.Name)),
	}, nil
}

// socketTimeout picks the tighter of the pool socket timeout and the
// client read timeout, ignoring unset values.
func socketTimeout(pool, read time.Duration) time.Duration {
	switch {
	case pool <= 0:
		return read
	case read <= 0:
		return pool
	default:
		return min(pool, read)
	}
}

func (p *Pooled) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errs.ErrTransportClosed
	}
	p.inflight.Add(1)
	p.mu.Unlock()

	resp, err := p.client.Do(req.WithContext(ctx))
	if err != nil {
		p.inflight.Done()
		return resp, err
	}

	resp.Body = &trackedBody{ReadCloser: resp.Body, done: p.inflight.Done}
	return resp, nil
}

// Close refuses new calls, waits for in-flight calls until ctx ends, and
// then closes the pooled connections. Connections still in use when ctx
// ends are closed as soon as they are released. Every call after the first
// returns the first result.
func (p *Pooled) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		drained := make(chan struct{})
		go func() {
			p.inflight.Wait()
			close(drained)
		}()

		start := time.Now()
		select {
		case <-drained:
		case <-ctx.Done():
			p.closeErr = errors.Wrap(ctx.Err(), "draining in-flight calls")
		}

		p.transport.CloseIdleConnections()
		p.logger.Info("pooled transport closed",
			zap.Duration("drain", time.Since(start)),
			zap.Int64("open_connections", p.limiter.Open()),
			zap.Error(p.closeErr),
		)
	})
	return p.closeErr
}

// Closed reports whether the shutdown hook ran.
func (p *Pooled) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type trackedBody struct {
	io.ReadCloser
	once sync.Once
	done func()
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err == io.EOF {
		b.once.Do(b.done)
	}
	return n, err
}

func (b *trackedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.done)
	return err
}
