// Package cache memoizes calculation results in Redis. The calculator is a
// pure function, so a cached value is always interchangeable with a fresh one
// and the cache may be flushed at any time.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Config holds Redis settings. Variables: CALCULATOR_REDIS_*.
type Config struct {
	Enabled   bool          `envconfig:"ENABLED" default:"false"`
	Addr      string        `envconfig:"ADDR" default:"localhost:6379"`
	Password  string        `envconfig:"PASSWORD" default:""`
	DB        int           `envconfig:"DB" default:"0"`
	TTL       time.Duration `envconfig:"TTL" default:"1h"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" default:"calc:"`
}

// Client wraps redis.Client. It satisfies redis.Cmdable, so it can back a
// ResultCache directly.
type Client struct {
	*redis.Client
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: cli}, nil
}

// ResultCache stores float64 results as strings under prefixed keys.
type ResultCache struct {
	cli    redis.Cmdable
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

// NewResultCache returns a cache over cli. A zero ttl keeps entries forever.
func NewResultCache(cli redis.Cmdable, cfg Config, log *zap.Logger) *ResultCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ResultCache{cli: cli, ttl: cfg.TTL, prefix: cfg.KeyPrefix, log: log}
}

// Get returns the cached result for key. found is false on a miss.
func (c *ResultCache) Get(ctx context.Context, key string) (value float64, found bool, err error) {
	s, err := c.cli.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		c.log.Debug("cache get failed", zap.String("key", key), zap.Error(err))
		return 0, false, fmt.Errorf("cache get: %w", err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		c.log.Debug("cache parse failed", zap.String("key", key), zap.Error(err))
		return 0, false, fmt.Errorf("cache parse value: %w", err)
	}
	return v, true, nil
}

// Set stores value under key, overwriting any previous entry.
func (c *ResultCache) Set(ctx context.Context, key string, value float64) error {
	s := strconv.FormatFloat(value, 'g', -1, 64)
	if err := c.cli.Set(ctx, c.prefix+key, s, c.ttl).Err(); err != nil {
		c.log.Debug("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
