// Package settings resolves per-client and pool configuration from a
// hierarchical namespace.
//
// Client keys live under <root>.clients.<name>.<key>, pool keys under
// <root>.pool.<key>. Absent keys always resolve to the defaults below;
// present but malformed values fail with *errs.ConfigurationError.
package settings

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/httpx/backoff"
)

// Backend tags the transport variant a client is built with.
type Backend string

const (
	BackendSimple Backend = "simple"
	BackendPooled Backend = "pooled"
	BackendHTTP2  Backend = "http2"
)

// ParseBackend accepts the backend names case-insensitively.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendSimple, BackendPooled, BackendHTTP2:
		return b, nil
	default:
		return "", errors.Newf("unknown backend %q (want simple, pooled or http2)", s)
	}
}

// LoggerLevel controls how much of every attempt is logged.
type LoggerLevel string

const (
	LoggerNone    LoggerLevel = "none"
	LoggerBasic   LoggerLevel = "basic"
	LoggerHeaders LoggerLevel = "headers"
	LoggerFull    LoggerLevel = "full"
)

func ParseLoggerLevel(s string) (LoggerLevel, error) {
	switch l := LoggerLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case LoggerNone, LoggerBasic, LoggerHeaders, LoggerFull:
		return l, nil
	default:
		return "", errors.Newf("unknown logger level %q", s)
	}
}

// Verbose reports whether attempts are logged at all.
func (l LoggerLevel) Verbose() bool {
	return l != "" && l != LoggerNone
}

type ProxySettings struct {
	Enabled bool
	Host    string
	Port    int
}

// Address returns host:port of the proxy.
func (p ProxySettings) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

type TLSSettings struct {
	Enabled            bool
	TrustStore         string
	TrustStorePassword string
	KeyStore           string
	KeyStorePassword   string
	VerifyHostname     bool
}

// HasMaterial reports whether any trust or key material is configured.
func (t TLSSettings) HasMaterial() bool {
	return t.TrustStore != "" || t.KeyStore != ""
}

type RetrySettings struct {
	// MaxAttempts includes the first attempt
	MaxAttempts int
	Period      time.Duration
	MaxPeriod   time.Duration
	Strategy    backoff.Strategy
}

type RateLimitSettings struct {
	// RPS of zero disables rate limiting
	RPS   float64
	Burst int
}

type CorrelationSettings struct {
	Header    string
	Generator string
}

// ClientSettings is the resolved, read-only configuration of one logical client.
type ClientSettings struct {
	Name    string
	URL     string
	Backend Backend

	Proxy ProxySettings
	TLS   TLSSettings

	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	FollowRedirects bool

	LoggerLevel    LoggerLevel
	DefaultHeaders map[string]string

	Retry       RetrySettings
	RateLimit   RateLimitSettings
	Correlation CorrelationSettings
}

// ProxyActive reports whether calls must be routed through the proxy.
// A proxy without a host is ignored.
func (s ClientSettings) ProxyActive() bool {
	return s.Proxy.Enabled && strings.TrimSpace(s.Proxy.Host) != ""
}

// AttemptTimeout bounds a single attempt: connect plus read.
func (s ClientSettings) AttemptTimeout() time.Duration {
	return s.ConnectTimeout + s.ReadTimeout
}

const (
	DefaultProxyPort         = 8080
	DefaultConnectTimeout    = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	DefaultMaxAttempts       = 3
	DefaultRetryPeriod       = 100 * time.Millisecond
	DefaultRetryMaxPeriod    = time.Second
	DefaultCorrelationHeader = "X-Correlation-ID"
)

// Defaults returns the settings of a client that has no configuration at all.
func Defaults(name string) ClientSettings {
	return ClientSettings{
		Name:    name,
		Backend: BackendPooled,
		Proxy: ProxySettings{
			Port: DefaultProxyPort,
		},
		TLS: TLSSettings{
			VerifyHostname: true,
		},
		ConnectTimeout:  DefaultConnectTimeout,
		ReadTimeout:     DefaultReadTimeout,
		FollowRedirects: true,
		LoggerLevel:     LoggerNone,
		DefaultHeaders:  map[string]string{},
		Retry: RetrySettings{
			MaxAttempts: DefaultMaxAttempts,
			Period:      DefaultRetryPeriod,
			MaxPeriod:   DefaultRetryMaxPeriod,
			Strategy:    backoff.Exponential,
		},
		RateLimit: RateLimitSettings{
			Burst: 1,
		},
		Correlation: CorrelationSettings{
			Header:    DefaultCorrelationHeader,
			Generator: "uuid",
		},
	}
}
