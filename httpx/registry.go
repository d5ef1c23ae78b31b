package httpx

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/httpx/settings"
	"github.com/seb7887/gofw/httpx/tlsconf"
	"github.com/seb7887/gofw/httpx/transport"
	"go.uber.org/zap"
)

// Registry owns one Client per configured name. Clients are built eagerly
// so configuration errors surface at startup, and are closed together.
type Registry struct {
	clients map[string]*Client
	pool    settings.PoolConfig
	logger  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewRegistry resolves and builds every client under the resolver prefix.
// On the first failure the clients built so far are closed and the error
// is returned.
func NewRegistry(resolver *settings.Resolver, deps Deps) (*Registry, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Builder == nil {
		deps.Builder = transport.NewBuilder(tlsconf.NewFactory(nil), transport.WithLogger(deps.Logger))
	}

	pool, err := resolver.ResolvePool()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		clients: make(map[string]*Client),
		pool:    pool,
		logger:  deps.Logger.Named("httpx.registry"),
	}

	for _, name := range resolver.Names() {
		c, err := r.build(resolver, name, deps)
		if err != nil {
			_ = r.Close(context.Background())
			return nil, err
		}
		r.clients[name] = c
	}

	r.logger.Info("http clients ready", zap.Strings("clients", r.Names()))
	return r, nil
}

func (r *Registry) build(resolver *settings.Resolver, name string, deps Deps) (*Client, error) {
	s, err := resolver.Resolve(name)
	if err != nil {
		return nil, err
	}

	tr, err := deps.Builder.Build(s, r.pool)
	if err != nil {
		return nil, err
	}

	c, err := NewFromSettings(s, tr, deps)
	if err != nil {
		_ = tr.Close(context.Background())
		return nil, err
	}
	return c, nil
}

// Client returns the client configured under name.
func (r *Registry) Client(name string) (*Client, error) {
	c, ok := r.clients[name]
	if !ok {
		return nil, &errs.ConfigurationError{Client: name, Err: errs.ErrUnknownClient}
	}
	return c, nil
}

// Names returns the configured client names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close runs the shutdown hook of every client, bounded by the pool
// shutdown timeout. Only the first call has an effect; later calls return
// its result.
func (r *Registry) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		if r.pool.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.pool.ShutdownTimeout)
			defer cancel()
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		for name, c := range r.clients {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := c.Close(ctx); err != nil {
					mu.Lock()
					r.closeErr = errors.CombineErrors(r.closeErr, errors.Wrapf(err, "closing client %q", name))
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		r.logger.Info("http clients closed", zap.Int("clients", len(r.clients)), zap.Error(r.closeErr))
	})
	return r.closeErr
}
