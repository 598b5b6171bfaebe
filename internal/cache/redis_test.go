package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) (*ResultCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })

	return NewResultCache(cli, Config{TTL: ttl, KeyPrefix: "calc:"}, nil), mr
}

func TestResultCacheMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Hour)

	v, found, err := c.Get(context.Background(), "1 + 1")

	require.NoError(t, err)
	assert.False(t, found)
	assert.Zero(t, v)
}

func TestResultCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "-5 / 3", -1.6666666666666667))

	v, found, err := c.Get(ctx, "-5 / 3")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, -1.6666666666666667, v)

	// Keys are prefixed and carry the configured TTL.
	assert.True(t, mr.Exists("calc:-5 / 3"))
	assert.Equal(t, time.Hour, mr.TTL("calc:-5 / 3"))
}

func TestResultCacheExpiry(t *testing.T) {
	c, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "6 * 7", 42))
	mr.FastForward(2 * time.Minute)

	_, found, err := c.Get(ctx, "6 * 7")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestResultCacheCorruptValue(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	require.NoError(t, mr.Set("calc:2 + 2", "four"))

	_, found, err := c.Get(context.Background(), "2 + 2")

	assert.False(t, found)
	assert.ErrorContains(t, err, "cache parse value")
}

func TestResultCacheUnavailable(t *testing.T) {
	c, mr := newTestCache(t, time.Hour)
	mr.Close()

	_, _, err := c.Get(context.Background(), "1 - 1")
	assert.Error(t, err)
	assert.Error(t, c.Set(context.Background(), "1 - 1", 0))
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	cli, err := Connect(context.Background(), Config{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	assert.NoError(t, cli.Ping(context.Background()).Err())

	c := NewResultCache(cli, Config{KeyPrefix: "calc:"}, nil)
	require.NoError(t, c.Set(context.Background(), "1 + 1", 2))
	v, found, err := c.Get(context.Background(), "1 + 1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2.0, v)

	mr.Close()
	_, err = Connect(context.Background(), Config{Addr: addr})
	assert.ErrorContains(t, err, "redis ping")
}
