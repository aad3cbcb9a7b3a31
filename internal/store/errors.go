package store

import "errors"

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
