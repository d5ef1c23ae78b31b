package idgen

import (
	"github.com/oklog/ulid/v2"
)

// ulid.Make draws from a process-wide monotonic entropy source that is safe
// for concurrent use.
var _ulidGenerator = func() string {
	return ulid.Make().String()
}

// NewULID returns a lexicographically sortable 26 character identifier.
func NewULID() string {
	return _ulidGenerator()
}

// UseULID swaps the ULID source.
func UseULID(fn func() string) {
	_ulidGenerator = fn
}
