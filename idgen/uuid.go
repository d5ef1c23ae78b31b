package idgen

import "github.com/google/uuid"

var _uuidGenerator = func() string {
	return uuid.NewString()
}

// NewUUID returns a random (version 4) UUID in its canonical 36 character form.
func NewUUID() string {
	return _uuidGenerator()
}

// UseUUID swaps the UUID source, typically to make tests deterministic.
func UseUUID(fn func() string) {
	_uuidGenerator = fn
}

// IsUUID reports whether s is a canonical hyphenated UUID.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
