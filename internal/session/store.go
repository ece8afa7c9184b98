package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces session keys in Redis.
const KeyPrefix = "session:"

// Store holds opaque session tokens mapped to usernames.
type Store interface {
	// Get returns the stored value. found is false when the key is absent.
	Get(ctx context.Context, token string) (value []byte, found bool, err error)
	Set(ctx context.Context, token string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
}

// RedisStore implements Store on go-redis.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an already connected client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, token string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, KeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get session: %w", err)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, token string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, KeyPrefix+token, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, KeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
