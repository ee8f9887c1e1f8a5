package tokenstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by [Open].
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Options selects and parameterizes a backend.
type Options struct {
	Backend     string
	Source      string
	FileDir     string
	RedisAddr   string
	RedisPrefix string
	RedisTTL    time.Duration
	SQLitePath  string
}

// Open builds the configured backend. The returned close function releases any
// connection the store owns and is never nil.
func Open(ctx context.Context, opts Options) (Store, func() error, error) {
	noop := func() error { return nil }

	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), noop, nil

	case BackendFile, "":
		dir := opts.FileDir
		if dir == "" {
			var err error
			dir, err = DefaultDir()
			if err != nil {
				return nil, noop, err
			}
		}
		s, err := NewFileStore(dir, opts.Source)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case BackendRedis:
		if opts.RedisAddr == "" {
			return nil, noop, fmt.Errorf("redis backend requires an address")
		}
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return NewRedisStore(client, opts.RedisPrefix, opts.Source, opts.RedisTTL), client.Close, nil

	case BackendSQLite:
		path := opts.SQLitePath
		if path == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, noop, err
			}
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, noop, fmt.Errorf("create token directory: %w", err)
			}
			path = filepath.Join(dir, "session.db")
		}
		s, err := OpenSQLite(path, opts.Source)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	}

	return nil, noop, fmt.Errorf("unknown token store backend %q", opts.Backend)
}

// DefaultDir returns the per-user directory used when no location is configured.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "algolearn"), nil
}
