package cfgmng

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// Load reads a YAML file named filename from path into a fresh viper instance.
// Environment variables override file values, with "." and "-" in keys
// mapped to "_" (httpx.clients.pokeapi.read-timeout -> HTTPX_CLIENTS_POKEAPI_READ_TIMEOUT).
func Load(path string, filename string) (*viper.Viper, error) {
	v := New()
	v.AddConfigPath(path)
	v.SetConfigName(filename)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading config %s/%s", path, filename)
	}

	return v, nil
}

// New returns an empty viper instance with the env override rules used by Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads a YAML file and unmarshals it into T.
func LoadConfig[T any](path string, filename string) (*T, error) {
	v, err := Load(path, filename)
	if err != nil {
		return nil, err
	}

	var cfg T
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	return &cfg, nil
}
