package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// OpTimeout bounds every Get/Set/Delete round trip.
	OpTimeout time.Duration
}

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Redis is a JSON-encoded port.Cache backed by Redis. Redis errors are
// logged and reported as misses so callers fall through to the source.
type Redis[T any] struct {
	client    redis.Cmdable
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewRedis creates a Redis cache whose keys live under cfg.Prefix + name.
func NewRedis[T any](client redis.Cmdable, cfg RedisConfig, name string, ttl time.Duration, logger *zap.Logger) *Redis[T] {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "bfa:"
	}
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 200 * time.Millisecond
	}
	return &Redis[T]{
		client:    client,
		prefix:    prefix + name + ":",
		ttl:       ttl,
		opTimeout: opTimeout,
		logger:    logger,
	}
}

// Get retrieves a value from Redis.
func (c *Redis[T]) Get(key string) (T, bool) {
	var zero T

	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false
	}
	if err != nil {
		c.logger.Warn("redis get failed", zap.String("key", c.prefix+key), zap.Error(err))
		return zero, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("redis value decode failed", zap.String("key", c.prefix+key), zap.Error(err))
		return zero, false
	}
	return v, true
}

// Set stores a value with the cache TTL.
func (c *Redis[T]) Set(key string, value T) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("redis value encode failed", zap.String("key", c.prefix+key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("redis set failed", zap.String("key", c.prefix+key), zap.Error(err))
	}
}

// Delete removes a value.
func (c *Redis[T]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()

	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warn("redis delete failed", zap.String("key", c.prefix+key), zap.Error(err))
	}
}
