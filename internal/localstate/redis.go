// internal/localstate/redis.go

package localstate

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

type redisStore struct {
	client *redis.Client
}

// OpenRedis connects to Redis and uses it as the state backend. Used when
// sessions move between machines and the read cursor should follow.
func OpenRedis(redisURL string) (Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisStore{client: client}, nil
}

func (s *redisStore) Load(ctx context.Context, room string) (State, error) {
	data, err := s.client.Get(ctx, string(stateKey(room))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, nil
		}
		return State{}, err
	}
	return decodeState(data)
}

func (s *redisStore) Save(ctx context.Context, room string, st State) error {
	data, err := encodeState(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, string(stateKey(room)), data, 0).Err()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
