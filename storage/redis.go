package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTimeout = 5 * time.Second

// RedisConfig configures a Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key so several deployments can share a server.
	Prefix  string
	Timeout time.Duration
}

// RedisDB stores values as plain Redis strings.
type RedisDB struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisDB connects to the configured server and verifies it is reachable.
func NewRedisDB(cfg RedisConfig) (*RedisDB, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("storage: redis address required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisDB{client: client, prefix: cfg.Prefix, timeout: timeout}, nil
}

func (r *RedisDB) key(key []byte) string {
	return r.prefix + string(key)
}

// Put stores value under key without expiry.
func (r *RedisDB) Put(key []byte, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

// Get retrieves the value stored under key.
func (r *RedisDB) Get(key []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Close closes the client connection pool.
func (r *RedisDB) Close() {
	if r == nil || r.client == nil {
		return
	}
	_ = r.client.Close()
}
