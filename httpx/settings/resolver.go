package settings

import (
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/cfgmng"
	"github.com/seb7887/gofw/httpx/backoff"
	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/idgen"
	"github.com/spf13/viper"
)

// DefaultRoot is the configuration root used by NewResolver when root is empty.
const DefaultRoot = "httpx"

// Resolver reads ClientSettings and PoolConfig from viper. It holds no
// state besides the viper handle, so resolving twice yields equal values.
type Resolver struct {
	root cfgmng.Namespace
}

func NewResolver(v *viper.Viper, root string) *Resolver {
	if root == "" {
		root = DefaultRoot
	}
	return &Resolver{root: cfgmng.NewNamespace(v, root)}
}

// Prefix returns the namespace prefix client names are keyed under.
func (r *Resolver) Prefix() string {
	return r.root.Sub("clients").Prefix()
}

// Names returns the configured client names in sorted order.
func (r *Resolver) Names() []string {
	return r.root.Sub("clients").Children()
}

// Resolve reads the settings of one client.
func (r *Resolver) Resolve(name string) (ClientSettings, error) {
	s := Defaults(name)
	rd := &reader{ns: r.root.Sub("clients").Sub(name), client: name}

	s.URL = rd.ns.String("url", s.URL)
	if raw := rd.ns.String("backend", ""); raw != "" {
		b, err := ParseBackend(raw)
		rd.fail("backend", err)
		s.Backend = b
	}

	s.Proxy.Enabled = rd.boolean("proxy.enabled", s.Proxy.Enabled)
	s.Proxy.Host = rd.ns.String("proxy.host", s.Proxy.Host)
	s.Proxy.Port = rd.integer("proxy.port", s.Proxy.Port)
	if s.Proxy.Port < 1 || s.Proxy.Port > 65535 {
		rd.fail("proxy.port", errors.Newf("port %d out of range", s.Proxy.Port))
	}

	s.TLS.Enabled = rd.boolean("tls.enabled", s.TLS.Enabled)
	s.TLS.TrustStore = rd.ns.String("tls.trust-store", s.TLS.TrustStore)
	s.TLS.TrustStorePassword = rd.ns.String("tls.trust-store-password", s.TLS.TrustStorePassword)
	s.TLS.KeyStore = rd.ns.String("tls.key-store", s.TLS.KeyStore)
	s.TLS.KeyStorePassword = rd.ns.String("tls.key-store-password", s.TLS.KeyStorePassword)
	s.TLS.VerifyHostname = rd.boolean("tls.verify-hostname", s.TLS.VerifyHostname)

	s.ConnectTimeout = rd.duration("connect-timeout", s.ConnectTimeout)
	s.ReadTimeout = rd.duration("read-timeout", s.ReadTimeout)
	s.FollowRedirects = rd.boolean("follow-redirects", s.FollowRedirects)

	if raw := rd.ns.String("logger-level", ""); raw != "" {
		l, err := ParseLoggerLevel(raw)
		rd.fail("logger-level", err)
		s.LoggerLevel = l
	}
	s.DefaultHeaders = rd.headers("default-request-headers")

	s.Retry.MaxAttempts = rd.integer("retry.max-attempts", s.Retry.MaxAttempts)
	if s.Retry.MaxAttempts < 1 {
		rd.fail("retry.max-attempts", errors.Newf("must be at least 1, got %d", s.Retry.MaxAttempts))
	}
	s.Retry.Period = rd.duration("retry.period", s.Retry.Period)
	s.Retry.MaxPeriod = rd.duration("retry.max-period", s.Retry.MaxPeriod)
	if raw := rd.ns.String("retry.strategy", ""); raw != "" {
		strategy, err := backoff.ParseStrategy(raw)
		rd.fail("retry.strategy", err)
		s.Retry.Strategy = strategy
	}

	s.RateLimit.RPS = rd.float("rate-limit.rps", s.RateLimit.RPS)
	s.RateLimit.Burst = rd.integer("rate-limit.burst", s.RateLimit.Burst)
	if s.RateLimit.RPS < 0 || s.RateLimit.Burst < 1 {
		rd.fail("rate-limit", errors.Newf("rps must be >= 0 and burst >= 1, got %v/%d", s.RateLimit.RPS, s.RateLimit.Burst))
	}

	s.Correlation.Header = http.CanonicalHeaderKey(rd.ns.String("correlation.header", s.Correlation.Header))
	s.Correlation.Generator = rd.ns.String("correlation.generator", s.Correlation.Generator)
	if _, err := idgen.ForKind(s.Correlation.Generator); err != nil {
		rd.fail("correlation.generator", err)
	}

	if rd.err != nil {
		return ClientSettings{}, rd.err
	}
	return s, nil
}

// ResolvePool reads the process-wide pool configuration.
func (r *Resolver) ResolvePool() (PoolConfig, error) {
	p := DefaultPool()
	rd := &reader{ns: r.root}

	p.DisableTLSValidation = rd.boolean("disable-tls-validation", p.DisableTLSValidation)
	p.MaxConnections = rd.integer("pool.max-connections", p.MaxConnections)
	p.MaxConnectionsPerRoute = rd.integer("pool.max-connections-per-route", p.MaxConnectionsPerRoute)
	if p.MaxConnections < 1 || p.MaxConnectionsPerRoute < 1 {
		rd.fail("pool.max-connections", errors.Newf("connection limits must be positive, got %d/%d", p.MaxConnections, p.MaxConnectionsPerRoute))
	}
	p.TimeToLive = rd.duration("pool.time-to-live", p.TimeToLive)
	p.ConnectionTimeout = rd.duration("pool.connection-timeout", p.ConnectionTimeout)
	p.ConnectionRequestTimeout = rd.duration("pool.connection-request-timeout", p.ConnectionRequestTimeout)
	p.SocketTimeout = rd.duration("pool.socket-timeout", p.SocketTimeout)
	p.FollowRedirects = rd.boolean("pool.follow-redirects", p.FollowRedirects)
	if raw := rd.ns.String("pool.http2.version", ""); raw != "" {
		v, err := ParseHTTPVersion(raw)
		rd.fail("pool.http2.version", err)
		p.HTTP2Version = v
	}
	p.ShutdownTimeout = rd.duration("pool.shutdown-timeout", p.ShutdownTimeout)

	if rd.err != nil {
		return PoolConfig{}, rd.err
	}
	return p, nil
}

// reader keeps the first conversion failure so Resolve reads top to bottom.
type reader struct {
	ns     cfgmng.Namespace
	client string
	err    error
}

func (r *reader) fail(key string, err error) {
	if err == nil || r.err != nil {
		return
	}
	r.err = &errs.ConfigurationError{Client: r.client, Key: key, Err: err}
}

func (r *reader) boolean(key string, def bool) bool {
	v, err := r.ns.Bool(key, def)
	r.fail(key, err)
	return v
}

func (r *reader) integer(key string, def int) int {
	v, err := r.ns.Int(key, def)
	r.fail(key, err)
	return v
}

func (r *reader) float(key string, def float64) float64 {
	v, err := r.ns.Float(key, def)
	r.fail(key, err)
	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, err := r.ns.Duration(key, def)
	r.fail(key, err)
	return v
}

func (r *reader) headers(key string) map[string]string {
	m, err := r.ns.StringMap(key)
	r.fail(key, err)
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}
