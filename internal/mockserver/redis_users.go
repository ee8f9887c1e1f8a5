package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisUsers is a UserStore backed by Redis. Accounts are JSON values under
// <prefix>:user:<id>; <prefix>:email:<email> and <prefix>:username:<name> index them.
type RedisUsers struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisUsers returns a store using client. An empty prefix defaults to "mock".
func NewRedisUsers(client redis.UniversalClient, prefix string) *RedisUsers {
	if prefix == "" {
		prefix = "mock"
	}
	return &RedisUsers{redis: client, prefix: prefix}
}

func (s *RedisUsers) userKey(id int64) string {
	return s.prefix + ":user:" + strconv.FormatInt(id, 10)
}

func (s *RedisUsers) emailKey(email string) string {
	return s.prefix + ":email:" + normalize(email)
}

func (s *RedisUsers) usernameKey(username string) string {
	return s.prefix + ":username:" + normalize(username)
}

func (s *RedisUsers) Create(ctx context.Context, account *Account) error {
	id, err := s.redis.Incr(ctx, s.prefix+":user:seq").Result()
	if err != nil {
		return fmt.Errorf("allocate user id: %w", err)
	}
	account.User.ID = id

	emailKey, usernameKey := s.emailKey(account.User.Email), s.usernameKey(account.User.Username)

	ok, err := s.redis.SetNX(ctx, emailKey, id, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrEmailTaken
	}
	ok, err = s.redis.SetNX(ctx, usernameKey, id, 0).Result()
	if err != nil || !ok {
		s.redis.Del(ctx, emailKey)
		if err != nil {
			return err
		}
		return ErrUsernameTaken
	}

	data, err := json.Marshal(account)
	if err != nil {
		s.redis.Del(ctx, emailKey, usernameKey)
		return err
	}
	if err := s.redis.Set(ctx, s.userKey(id), data, 0).Err(); err != nil {
		s.redis.Del(ctx, emailKey, usernameKey)
		return err
	}
	return nil
}

func (s *RedisUsers) ByEmail(ctx context.Context, email string) (Account, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Int64()
	if errors.Is(err, redis.Nil) {
		return Account{}, ErrUserNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return s.ByID(ctx, id)
}

func (s *RedisUsers) ByID(ctx context.Context, id int64) (Account, error) {
	data, err := s.redis.Get(ctx, s.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Account{}, ErrUserNotFound
	}
	if err != nil {
		return Account{}, err
	}

	var a Account
	if err := json.Unmarshal(data, &a); err != nil {
		return Account{}, fmt.Errorf("decode account %d: %w", id, err)
	}
	return a, nil
}

func (s *RedisUsers) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	a, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, s.userKey(id), data, redis.KeepTTL).Err()
}

func (s *RedisUsers) Delete(ctx context.Context, id int64) error {
	a, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	return s.redis.Del(ctx, s.userKey(id), s.emailKey(a.User.Email), s.usernameKey(a.User.Username)).Err()
}
