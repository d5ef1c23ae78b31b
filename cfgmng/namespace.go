package cfgmng

import (
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// KeyError reports a value that is present but cannot be converted.
type KeyError struct {
	// Key is relative to the namespace that read it
	Key   string
	Value any
	Err   error
}

func (e *KeyError) Error() string {
	return "malformed value for " + e.Key + ": " + e.Err.Error()
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// Namespace is a read-only view of the keys under a dotted prefix.
// Getters return the supplied default when a key is absent or blank, and a
// *KeyError when a present value is malformed.
type Namespace struct {
	v      *viper.Viper
	prefix string
}

// NewNamespace scopes v to prefix. An empty prefix reads from the root.
func NewNamespace(v *viper.Viper, prefix string) Namespace {
	return Namespace{v: v, prefix: strings.Trim(prefix, ".")}
}

// Prefix returns the dotted prefix of the namespace.
func (n Namespace) Prefix() string {
	return n.prefix
}

// Sub returns the namespace nested under key.
func (n Namespace) Sub(key string) Namespace {
	return Namespace{v: n.v, prefix: n.key(key)}
}

func (n Namespace) key(key string) string {
	if n.prefix == "" {
		return key
	}
	return n.prefix + "." + key
}

// raw returns the value for key, treating blank strings as absent.
func (n Namespace) raw(key string) (any, bool) {
	full := n.key(key)
	if !n.v.IsSet(full) {
		return nil, false
	}
	val := n.v.Get(full)
	if val == nil {
		return nil, false
	}
	if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return val, true
}

// IsSet reports whether key has a non-blank value.
func (n Namespace) IsSet(key string) bool {
	_, ok := n.raw(key)
	return ok
}

func (n Namespace) String(key, def string) string {
	val, ok := n.raw(key)
	if !ok {
		return def
	}
	return strings.TrimSpace(cast.ToString(val))
}

func (n Namespace) Bool(key string, def bool) (bool, error) {
	val, ok := n.raw(key)
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(trimmed(val))
	if err != nil {
		return def, &KeyError{Key: key, Value: val, Err: err}
	}
	return b, nil
}

func (n Namespace) Int(key string, def int) (int, error) {
	val, ok := n.raw(key)
	if !ok {
		return def, nil
	}
	i, err := cast.ToIntE(trimmed(val))
	if err != nil {
		return def, &KeyError{Key: key, Value: val, Err: err}
	}
	return i, nil
}

func (n Namespace) Float(key string, def float64) (float64, error) {
	val, ok := n.raw(key)
	if !ok {
		return def, nil
	}
	f, err := cast.ToFloat64E(trimmed(val))
	if err != nil {
		return def, &KeyError{Key: key, Value: val, Err: err}
	}
	return f, nil
}

// Duration accepts Go duration strings ("250ms", "2s") and plain integers,
// which are read as milliseconds.
func (n Namespace) Duration(key string, def time.Duration) (time.Duration, error) {
	val, ok := n.raw(key)
	if !ok {
		return def, nil
	}
	d, err := toDuration(trimmed(val))
	if err != nil {
		return def, &KeyError{Key: key, Value: val, Err: err}
	}
	if d < 0 {
		return def, &KeyError{Key: key, Value: val, Err: errors.New("negative duration")}
	}
	return d, nil
}

func toDuration(val any) (time.Duration, error) {
	switch v := val.(type) {
	case int, int32, int64, uint, uint32, uint64:
		ms, err := cast.ToInt64E(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(ms) * time.Millisecond, nil
	case string:
		if ms, err := cast.ToInt64E(v); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
	}
	return cast.ToDurationE(val)
}

// StringMap reads a nested map of strings. Keys keep the case used by the
// source where viper preserves it.
func (n Namespace) StringMap(key string) (map[string]string, error) {
	val, ok := n.raw(key)
	if !ok {
		return map[string]string{}, nil
	}
	m, err := cast.ToStringMapStringE(val)
	if err != nil {
		return map[string]string{}, &KeyError{Key: key, Value: val, Err: err}
	}
	return m, nil
}

// Children returns the sorted names of the direct sub-keys of the namespace.
func (n Namespace) Children() []string {
	var tree map[string]any
	if n.prefix == "" {
		tree = n.v.AllSettings()
	} else {
		tree = n.v.GetStringMap(n.prefix)
	}
	keys := lo.Keys(tree)
	slices.Sort(keys)
	return keys
}

func trimmed(val any) any {
	if s, ok := val.(string); ok {
		return strings.TrimSpace(s)
	}
	return val
}
