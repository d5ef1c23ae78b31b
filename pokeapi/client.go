// Package pokeapi is a small domain client over httpx used by the gateway.
package pokeapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/seb7887/gofw/httpx"
	"github.com/seb7887/gofw/wp"
)

const (
	OpGetByName = "PokeAPI#GetByName"
	OpList      = "PokeAPI#List"
	OpLogin     = "PokeAPI#Login"
)

const DefaultPageSize = 20

type Client struct {
	http *httpx.Client
	pool *wp.Pool
}

// New wraps an httpx client. pool runs GetMany lookups; when nil GetMany
// runs them one after another.
func New(c *httpx.Client, pool *wp.Pool) *Client {
	return &Client{http: c, pool: pool}
}

// HTTP returns the underlying httpx client.
func (c *Client) HTTP() *httpx.Client {
	return c.http
}

func (c *Client) GetByName(ctx context.Context, name string) (Pokemon, error) {
	return httpx.Dispatch[Pokemon](ctx, c.http, httpx.Call{
		Operation: OpGetByName,
		Path:      "/api/v2/pokemon/%s",
		PathArgs:  []any{name},
	})
}

// List returns one page of the pokemon index. A non-positive limit uses
// DefaultPageSize.
func (c *Client) List(ctx context.Context, limit, offset int) (Page, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return httpx.Dispatch[Page](ctx, c.http, httpx.Call{
		Operation: OpList,
		Path:      "/api/v2/pokemon",
		Query: url.Values{
			"limit":  {strconv.Itoa(limit)},
			"offset": {strconv.Itoa(offset)},
		},
	})
}

func (c *Client) Login(ctx context.Context, creds Credentials) (Session, error) {
	return httpx.Dispatch[Session](ctx, c.http, httpx.Call{
		Operation: OpLogin,
		Method:    http.MethodPost,
		Path:      "/login",
		Body:      creds,
	})
}

// GetMany looks up every distinct name, one logical call each. Found
// pokemon are returned even when some lookups fail; the failures are
// combined into the error.
func (c *Client) GetMany(ctx context.Context, names []string) (map[string]Pokemon, error) {
	names = lo.Uniq(lo.Compact(names))

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		found  = make(map[string]Pokemon, len(names))
		failed error
	)
	record := func(name string, p Pokemon, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			failed = errors.CombineErrors(failed, errors.Wrapf(err, "looking up %q", name))
			return
		}
		found[name] = p
	}

	for _, name := range names {
		lookup := func() {
			defer wg.Done()
			p, err := c.GetByName(ctx, name)
			record(name, p, err)
		}

		wg.Add(1)
		if c.pool == nil {
			lookup()
			continue
		}
		if err := c.pool.Submit(ctx, name, lookup); err != nil {
			wg.Done()
			record(name, Pokemon{}, err)
		}
	}
	wg.Wait()

	return found, failed
}
