package cfgmng_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/seb7887/gofw/cfgmng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
httpx:
  clients:
    pokeapi:
      url: https://pokeapi.co
      proxy:
        enabled: true
        port: 3128
      read-timeout: 250ms
      connect-timeout: 1500
      default-request-headers:
        Accept: application/json
    broken:
      proxy:
        enabled: maybe
        port: eighty
`

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(sampleYAML), 0o600))
	return dir
}

func TestNamespace_TypedGetters(t *testing.T) {
	v, err := cfgmng.Load(writeConfig(t), "app")
	require.NoError(t, err)

	ns := cfgmng.NewNamespace(v, "httpx.clients").Sub("pokeapi")
	assert.Equal(t, "httpx.clients.pokeapi", ns.Prefix())

	assert.Equal(t, "https://pokeapi.co", ns.String("url", ""))

	enabled, err := ns.Bool("proxy.enabled", false)
	require.NoError(t, err)
	assert.True(t, enabled)

	port, err := ns.Int("proxy.port", 8080)
	require.NoError(t, err)
	assert.Equal(t, 3128, port)

	read, err := ns.Duration("read-timeout", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, read)

	connect, err := ns.Duration("connect-timeout", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, connect, "plain integers are milliseconds")

	headers, err := ns.StringMap("default-request-headers")
	require.NoError(t, err)
	assert.Equal(t, "application/json", headers["accept"])
}

func TestNamespace_DefaultsForAbsentKeys(t *testing.T) {
	v := cfgmng.New()
	v.Set("httpx.clients.empty.proxy.host", "   ")

	ns := cfgmng.NewNamespace(v, "httpx.clients.empty")

	port, err := ns.Int("proxy.port", 8080)
	require.NoError(t, err)
	assert.Equal(t, 8080, port)

	verify, err := ns.Bool("tls.verify-hostname", true)
	require.NoError(t, err)
	assert.True(t, verify)

	assert.False(t, ns.IsSet("proxy.host"), "blank strings count as absent")
	assert.Equal(t, "fallback", ns.String("proxy.host", "fallback"))

	headers, err := ns.StringMap("default-request-headers")
	require.NoError(t, err)
	assert.Empty(t, headers)
}

func TestNamespace_MalformedValuesFailFast(t *testing.T) {
	v, err := cfgmng.Load(writeConfig(t), "app")
	require.NoError(t, err)

	ns := cfgmng.NewNamespace(v, "httpx.clients.broken")

	_, err = ns.Bool("proxy.enabled", false)
	var keyErr *cfgmng.KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "proxy.enabled", keyErr.Key)

	_, err = ns.Int("proxy.port", 8080)
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "proxy.port", keyErr.Key)

	v.Set("httpx.clients.broken.read-timeout", "soon")
	_, err = ns.Duration("read-timeout", time.Second)
	require.ErrorAs(t, err, &keyErr)
}

func TestNamespace_DurationRejectsNegativeInEveryForm(t *testing.T) {
	for _, raw := range []any{"-5s", "-500", -500, int64(-1)} {
		v := cfgmng.New()
		v.Set("httpx.clients.pokeapi.connect-timeout", raw)
		ns := cfgmng.NewNamespace(v, "httpx.clients.pokeapi")

		d, err := ns.Duration("connect-timeout", time.Second)

		var keyErr *cfgmng.KeyError
		require.ErrorAs(t, err, &keyErr, "value %v", raw)
		assert.Equal(t, "connect-timeout", keyErr.Key)
		assert.Equal(t, time.Second, d)
	}
}

func TestNamespace_DurationForms(t *testing.T) {
	v := cfgmng.New()
	v.Set("a", "250ms")
	v.Set("b", 1500)
	v.Set("c", "1500")
	v.Set("d", 0)
	ns := cfgmng.NewNamespace(v, "")

	for key, want := range map[string]time.Duration{
		"a": 250 * time.Millisecond,
		"b": 1500 * time.Millisecond,
		"c": 1500 * time.Millisecond,
		"d": 0,
	} {
		got, err := ns.Duration(key, time.Minute)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}
}

func TestNamespace_Children(t *testing.T) {
	v, err := cfgmng.Load(writeConfig(t), "app")
	require.NoError(t, err)

	assert.Equal(t, []string{"broken", "pokeapi"}, cfgmng.NewNamespace(v, "httpx.clients").Children())
	assert.Empty(t, cfgmng.NewNamespace(v, "httpx.missing").Children())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := cfgmng.Load(t.TempDir(), "absent")
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	type clientConfig struct {
		URL string `mapstructure:"url"`
	}
	type config struct {
		HTTPX struct {
			Clients map[string]clientConfig `mapstructure:"clients"`
		} `mapstructure:"httpx"`
	}

	cfg, err := cfgmng.LoadConfig[config](writeConfig(t), "app")
	require.NoError(t, err)
	assert.Equal(t, "https://pokeapi.co", cfg.HTTPX.Clients["pokeapi"].URL)
}
