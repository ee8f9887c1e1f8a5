package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gs"

// RedisStore keeps records under "<prefix>:tok:<key>". A positive ttl makes stored
// tokens expire server-side; zero keeps them until removed.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	source string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore wraps an existing client. The client is owned by the caller.
func NewRedisStore(client redis.UniversalClient, prefix, source string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":tok:" + key
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	r, err := DecodeRecord(data)
	if err != nil {
		return "", err
	}
	return r.Value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := EncodeRecord(newRecord(value, s.source, s.now))
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// TTL reports the remaining lifetime of a stored key. A negative duration means the key
// has no expiry; ErrNotFound means it does not exist.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}

	ttl, err := s.redis.TTL(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl == -2 {
		return 0, ErrNotFound
	}
	return ttl, nil
}
