package pokeapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seb7887/gofw/httpx"
	"github.com/seb7887/gofw/httpx/httpxtest"
	"github.com/seb7887/gofw/httpx/settings"
	"github.com/seb7887/gofw/httpx/transport"
	"github.com/seb7887/gofw/pokeapi"
	"github.com/seb7887/gofw/wp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var dex = map[string]pokeapi.Pokemon{
	"bulbasaur":  {ID: 1, Name: "bulbasaur", Height: 7, Weight: 69},
	"charmander": {ID: 4, Name: "charmander", Height: 6, Weight: 85},
	"ditto":      {ID: 132, Name: "ditto", Height: 3, Weight: 40},
}

// fakePokeAPI serves the subset of routes the client uses.
func fakePokeAPI(t *testing.T, lookups *atomic.Int32) *httpxtest.TestServer {
	t.Helper()

	server := httpxtest.NewTestServerWithOptions(httpxtest.WithHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/login":
			var creds pokeapi.Credentials
			_ = json.NewDecoder(r.Body).Decode(&creds)
			if creds.Password != "pikachu" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"invalid credentials"}`)
				return
			}
			_, _ = io.WriteString(w, `{"token":"t0k3n"}`)
		case r.URL.Path == "/api/v2/pokemon":
			next := "https://pokeapi.co/api/v2/pokemon?offset=2&limit=2"
			_ = json.NewEncoder(w).Encode(pokeapi.Page{
				Count: 1302,
				Next:  &next,
				Results: []pokeapi.NamedResource{
					{Name: "bulbasaur", URL: "https://pokeapi.co/api/v2/pokemon/1/"},
					{Name: "ivysaur", URL: "https://pokeapi.co/api/v2/pokemon/2/"},
				},
			})
		case strings.HasPrefix(r.URL.Path, "/api/v2/pokemon/"):
			if lookups != nil {
				lookups.Add(1)
			}
			p, ok := dex[strings.TrimPrefix(r.URL.Path, "/api/v2/pokemon/")]
			if !ok {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, "Not Found")
				return
			}
			_ = json.NewEncoder(w).Encode(p)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newHTTPClient(t *testing.T, backend settings.Backend, url string) *httpx.Client {
	t.Helper()

	s := settings.Defaults("pokeapi-" + string(backend))
	s.URL = url
	s.Backend = backend
	s.DefaultHeaders = map[string]string{"Accept": "application/json"}
	s.Retry.Period = time.Millisecond

	tr, err := transport.NewBuilder(nil).Build(s, settings.DefaultPool())
	require.NoError(t, err)

	c, err := httpx.NewFromSettings(s, tr, httpx.Deps{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestClient_GetByName(t *testing.T) {
	server := fakePokeAPI(t, nil)
	client := pokeapi.New(newHTTPClient(t, settings.BackendPooled, server.URL), nil)

	p, err := client.GetByName(context.Background(), "ditto")
	require.NoError(t, err)
	assert.Equal(t, dex["ditto"], p)

	_, err = client.GetByName(context.Background(), "missingno")
	var ce *httpx.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusNotFound, ce.StatusCode)
	assert.Equal(t, "Not Found", ce.Body)
	assert.Equal(t, pokeapi.OpGetByName, ce.OperationKey)
}

func TestClient_List(t *testing.T) {
	server := fakePokeAPI(t, nil)
	client := pokeapi.New(newHTTPClient(t, settings.BackendSimple, server.URL), nil)

	page, err := client.List(context.Background(), 2, 0)
	require.NoError(t, err)

	assert.Equal(t, 1302, page.Count)
	require.NotNil(t, page.Next)
	assert.Nil(t, page.Previous)
	assert.Len(t, page.Results, 2)
	assert.Equal(t, "ivysaur", page.Results[1].Name)

	last, _ := server.LastRequest()
	assert.Equal(t, "limit=2&offset=0", last.RawQuery)

	_, err = client.List(context.Background(), 0, -5)
	require.NoError(t, err)
	last, _ = server.LastRequest()
	assert.Equal(t, "limit=20&offset=0", last.RawQuery)
}

func TestClient_LoginKeepsBodyOnEveryBackend(t *testing.T) {
	server := fakePokeAPI(t, nil)

	for _, backend := range []settings.Backend{settings.BackendSimple, settings.BackendPooled, settings.BackendHTTP2} {
		t.Run(string(backend), func(t *testing.T) {
			client := pokeapi.New(newHTTPClient(t, backend, server.URL), nil)

			session, err := client.Login(context.Background(), pokeapi.Credentials{Username: "ash", Password: "pikachu"})
			require.NoError(t, err)
			assert.Equal(t, "t0k3n", session.Token)

			_, err = client.Login(context.Background(), pokeapi.Credentials{Username: "ash", Password: "wrong"})
			var ce *httpx.ClassifiedError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, http.StatusUnauthorized, ce.StatusCode)
			assert.Equal(t, `{"error":"invalid credentials"}`, ce.Body)
			assert.Equal(t, pokeapi.OpLogin, ce.OperationKey)
		})
	}
}

func TestClient_GetMany(t *testing.T) {
	var lookups atomic.Int32
	server := fakePokeAPI(t, &lookups)

	pool := wp.NewPool(4, 8)
	defer pool.Stop()

	client := pokeapi.New(newHTTPClient(t, settings.BackendPooled, server.URL), pool)

	found, err := client.GetMany(context.Background(), []string{"ditto", "bulbasaur", "", "ditto", "charmander"})
	require.NoError(t, err)

	assert.Equal(t, map[string]pokeapi.Pokemon{
		"ditto":      dex["ditto"],
		"bulbasaur":  dex["bulbasaur"],
		"charmander": dex["charmander"],
	}, found)
	assert.Equal(t, int32(3), lookups.Load(), "duplicates and blanks are not looked up")
}

func TestClient_GetManyPartialFailure(t *testing.T) {
	server := fakePokeAPI(t, nil)
	client := pokeapi.New(newHTTPClient(t, settings.BackendHTTP2, server.URL), nil)

	found, err := client.GetMany(context.Background(), []string{"ditto", "missingno"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `looking up "missingno"`)
	var ce *httpx.ClassifiedError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, map[string]pokeapi.Pokemon{"ditto": dex["ditto"]}, found)
}

func TestClient_GetManyStoppedPool(t *testing.T) {
	server := fakePokeAPI(t, nil)

	pool := wp.NewPool(1, 1)
	pool.Stop()

	client := pokeapi.New(newHTTPClient(t, settings.BackendPooled, server.URL), pool)

	found, err := client.GetMany(context.Background(), []string{"ditto"})
	assert.ErrorIs(t, err, wp.ErrStopped)
	assert.Empty(t, found)
	assert.Zero(t, server.RequestCount())
}
