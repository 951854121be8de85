package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisTimeout  = 5 * time.Second
	defaultRedisPoolSize = 10
)

// RedisConfig describes how to reach the Redis server backing RedisStore.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// RedisStore persists values as plain Redis strings and lists keys with SCAN.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, errors.New("store: redis address is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = defaultRedisPoolSize
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("store: redis del %s: %w", key, err)
	}
	return nil
}

// List runs one SCAN step. Redis may return a key on more than one page while the keyspace changes.
func (s *RedisStore) List(ctx context.Context, options ListOptions) (ListPage, error) {
	var cursor uint64
	if options.Cursor != "" {
		parsed, err := strconv.ParseUint(options.Cursor, 10, 64)
		if err != nil {
			return ListPage{}, fmt.Errorf("%w: %q", ErrInvalidCursor, options.Cursor)
		}
		cursor = parsed
	}
	keys, next, err := s.client.Scan(ctx, cursor, escapeGlob(options.Prefix)+"*", int64(options.limit())).Result()
	if err != nil {
		return ListPage{}, fmt.Errorf("store: redis scan %q: %w", options.Prefix, err)
	}
	if next == 0 {
		return ListPage{Keys: keys, Complete: true}, nil
	}
	return ListPage{Keys: keys, Cursor: strconv.FormatUint(next, 10)}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func escapeGlob(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(value)
}
