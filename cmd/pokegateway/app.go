package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/seb7887/gofw/cfgmng"
	"github.com/seb7887/gofw/eventbus"
	"github.com/seb7887/gofw/ginsrv"
	"github.com/seb7887/gofw/httpx"
	"github.com/seb7887/gofw/httpx/observability"
	"github.com/seb7887/gofw/httpx/policy"
	"github.com/seb7887/gofw/httpx/settings"
	"github.com/seb7887/gofw/httpx/tlsconf"
	"github.com/seb7887/gofw/httpx/transport"
	"github.com/seb7887/gofw/pokeapi"
	"github.com/seb7887/gofw/wp"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const readHeaderTimeout = 10 * time.Second

// Module wires the gateway. Env and *viper.Viper are supplied by the caller.
var Module = fx.Options(
	fx.Provide(
		NewLogger,
		NewMetricsRegistry,
		NewTracing,
		NewBus,
		NewRegistry,
		NewPool,
		NewRouter,
		NewServer,
	),
	fx.Invoke(logCallEvents, startServer),
)

func NewLogger(e Env) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(e.LogLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func LoadConfig(e Env) (*viper.Viper, error) {
	return cfgmng.Load(e.ConfigPath, e.ConfigName)
}

func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Tracing is nil when tracing is disabled.
type Tracing struct {
	Provider trace.TracerProvider
}

func NewTracing(lc fx.Lifecycle, e Env) (Tracing, error) {
	if !e.TraceStdout {
		return Tracing{}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return Tracing{}, errors.Wrap(err, "creating stdout exporter")
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return Tracing{Provider: tp}, nil
}

// NewBus publishes call events to NATS when NATS_URL is set, in memory
// otherwise.
func NewBus(lc fx.Lifecycle, e Env, logger *zap.Logger) (eventbus.Bus, error) {
	var bus eventbus.Bus = eventbus.NewInMemBus()
	if e.NatsURL != "" {
		nb, err := eventbus.NewNatsBus[policy.CallEvent](e.NatsURL, logger)
		if err != nil {
			return nil, err
		}
		bus = nb
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return bus.Close()
		},
	})
	return bus, nil
}

type registryParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Env       Env
	Config    *viper.Viper
	Logger    *zap.Logger
	Metrics   *prometheus.Registry
	Tracing   Tracing
	Bus       eventbus.Bus
}

// NewRegistry builds every configured client at startup and closes them
// when the app stops.
func NewRegistry(p registryParams) (*httpx.Registry, error) {
	deps := httpx.Deps{
		Logger:     p.Logger,
		Metrics:    observability.NewMetricsCollector(p.Metrics),
		Tracer:     p.Tracing.Provider,
		Bus:        p.Bus,
		EventTopic: p.Env.EventTopic,
	}
	opts := []transport.BuilderOption{transport.WithLogger(p.Logger)}
	if p.Tracing.Provider != nil {
		opts = append(opts, transport.WithTracerProvider(p.Tracing.Provider))
	}
	deps.Builder = transport.NewBuilder(tlsconf.NewFactory(nil), opts...)

	reg, err := httpx.NewRegistry(settings.NewResolver(p.Config, ""), deps)
	if err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: reg.Close,
	})
	return reg, nil
}

func NewPool(lc fx.Lifecycle, e Env) *wp.Pool {
	pool := wp.NewPool(e.Workers, 64)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Stop()
			return nil
		},
	})
	return pool
}

func NewRouter(reg *httpx.Registry, pool *wp.Pool, metrics *prometheus.Registry, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	handlers := pokeapi.FromRegistry(reg, pool)
	logger.Info("pokemon routes mounted", zap.Strings("backends", handlers.Backends()))

	routes := append(handlers.Routes(),
		ginsrv.HealthRoute(),
		ginsrv.HandlerRoute(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})),
	)
	return ginsrv.SetupRouter(routes,
		ginsrv.LoggerMiddleware(logger),
		ginsrv.CorrelationIDMiddleware(""),
		ginsrv.ErrorFormatterMiddleware(),
	)
}

func NewServer(e Env, router *gin.Engine) *http.Server {
	return &http.Server{
		Addr:              e.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func startServer(lc fx.Lifecycle, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return errors.Wrapf(err, "listening on %s", server.Addr)
			}
			logger.Info("starting server", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}

// logCallEvents mirrors failed and 5xx outbound calls into the process log.
func logCallEvents(e Env, bus eventbus.Bus, logger *zap.Logger) error {
	logger = logger.Named("events")
	return bus.Subscribe(e.EventTopic, eventbus.ReceiverFunc(func(_ context.Context, msg any) {
		ev, ok := msg.(policy.CallEvent)
		if !ok || (ev.ErrorKind == "" && ev.StatusCode < http.StatusInternalServerError) {
			return
		}
		logger.Warn("outbound call failed",
			zap.String("client", ev.Client),
			zap.String("url", ev.URL),
			zap.Int("status_code", ev.StatusCode),
			zap.String("error_kind", ev.ErrorKind),
			zap.String("correlation_id", ev.CorrelationID),
		)
	}))
}
