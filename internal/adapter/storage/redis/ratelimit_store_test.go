package redis_test

import (
	"context"
	"testing"
	"time"

	"mpesa-callback-relay/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRateLimitStore_Allow(t *testing.T) {
	mr, client := newTestClient(t)

	store := redis.NewRateLimitStore(client)
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			result, err := store.Allow(ctx, "10.0.0.1:callbacks", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i)
			assert.Equal(t, int64(3), result.Limit)
			assert.Equal(t, 3-i, result.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		result, err := store.Allow(ctx, "10.0.0.1:callbacks", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "10.0.0.2:callbacks", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(4), result.Remaining)
	})

	t.Run("counter keys expire", func(t *testing.T) {
		_, err := store.Allow(ctx, "10.0.0.3:auth_login", 1, time.Minute)
		require.NoError(t, err)

		keys := mr.Keys()
		require.NotEmpty(t, keys)
		for _, k := range keys {
			assert.Greater(t, mr.TTL(k), time.Duration(0), "key %s has no ttl", k)
		}
	})

	t.Run("sets ResetAt in the future", func(t *testing.T) {
		result, err := store.Allow(ctx, "10.0.0.4:transactions", 10, time.Minute)
		require.NoError(t, err)
		assert.Greater(t, result.ResetAt, time.Now().Unix()-1)
	})
}

func TestRateLimitStore_RedisDown(t *testing.T) {
	mr, client := newTestClient(t)
	mr.Close()

	store := redis.NewRateLimitStore(client)
	_, err := store.Allow(context.Background(), "k", 1, time.Minute)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	mr, client := newTestClient(t)

	hc := redis.NewHealthCheck(client)
	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))

	mr.Close()
	assert.Error(t, hc.Ping(context.Background()))
}
