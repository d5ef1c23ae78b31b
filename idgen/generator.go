package idgen

import (
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	KindUUID = "uuid"
	KindULID = "ulid"
)

// ForKind returns the generator registered under kind. The returned func
// resolves the current source on every call, so UseUUID and UseULID apply
// to generators obtained earlier.
func ForKind(kind string) (func() string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindUUID:
		return NewUUID, nil
	case KindULID:
		return NewULID, nil
	default:
		return nil, errors.Newf("unknown id generator %q", kind)
	}
}
