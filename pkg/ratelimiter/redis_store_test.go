package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/schoolpay/pkg/ratelimiter"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestBucket_RedisStore(t *testing.T) {
	t.Parallel()
	_, client := newRedis(t)

	c := newClock()
	b, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client, "rl:"), perMinute, ratelimiter.WithClock(c.Now))
	require.NoError(t, err)
	exerciseBucket(t, b, c)
}

func TestRedisStore_SharedBetweenInstances(t *testing.T) {
	t.Parallel()
	mr, client := newRedis(t)
	ctx := context.Background()

	c := newClock()
	first, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client, "rl:"), perMinute, ratelimiter.WithClock(c.Now))
	require.NoError(t, err)
	second, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client, "rl:"), perMinute, ratelimiter.WithClock(c.Now))
	require.NoError(t, err)

	_, err = first.AllowN(ctx, "initiate:t1", 2)
	require.NoError(t, err)
	res, err := second.AllowN(ctx, "initiate:t1", 2)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)

	assert.True(t, mr.Exists("rl:initiate:t1"))
	assert.Equal(t, 4*time.Minute, mr.TTL("rl:initiate:t1"))

	mr.FastForward(5 * time.Minute)
	assert.False(t, mr.Exists("rl:initiate:t1"), "idle buckets expire")
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()
	mr, client := newRedis(t)
	b, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client, "rl:"), perMinute)
	require.NoError(t, err)

	mr.Close()
	_, err = b.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
	assert.ErrorIs(t, b.Reset(context.Background(), "k"), ratelimiter.ErrStoreUnavailable)
}
