// internal/localstate/pebble.go

package localstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

type pebbleStore struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) the on-disk state store at dir. This is
// the default backend when no Redis URL is configured.
func OpenPebble(dir string) (Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open local state at %s: %w", dir, err)
	}
	return &pebbleStore{db: db}, nil
}

func (s *pebbleStore) Load(_ context.Context, room string) (State, error) {
	v, closer, err := s.db.Get(stateKey(room))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return State{}, nil
		}
		return State{}, err
	}
	if closer != nil {
		defer closer.Close()
	}
	return decodeState(v)
}

func (s *pebbleStore) Save(_ context.Context, room string, st State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	return s.db.Set(stateKey(room), data, pebble.Sync)
}

func (s *pebbleStore) Close() error {
	return s.db.Close()
}
