package storage

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// PebbleStore persists engine state in a local pebble database.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(key string) ([]byte, error) {
	val, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pebble get %s: %w", key, err)
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (s *PebbleStore) Set(key string, value []byte) error {
	if err := s.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", key, err)
	}
	return nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

var _ Store = (*PebbleStore)(nil)
