package storage

import "errors"

// ErrNotFound is returned by Get when a key has never been set.
var ErrNotFound = errors.New("storage: key not found")

// Store is the durable key-value boundary. The engine treats it as
// best-effort: a failing store degrades persistence, never matching.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Close() error
}
