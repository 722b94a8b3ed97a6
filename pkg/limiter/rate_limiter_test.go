package limiter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return client
}

func TestSlidingWindowLimiter(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("WithinLimit", func(t *testing.T) {
		l := NewSlidingWindowLimiter(client, 5, time.Minute)

		for i := 0; i < 5; i++ {
			allowed, err := l.Allow(ctx, fmt.Sprintf("user:%d", i))
			assert.NoError(t, err)
			assert.True(t, allowed, "attempt %d should pass", i+1)
		}
	})

	t.Run("OverLimit", func(t *testing.T) {
		l := NewSlidingWindowLimiter(client, 1, time.Minute)

		allowed, err := l.Allow(ctx, "campaign:99")
		assert.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = l.Allow(ctx, "campaign:99")
		assert.NoError(t, err)
		assert.False(t, allowed, "second attempt inside the window is shed")
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		l := NewSlidingWindowLimiter(client, 1, time.Minute)

		allowed, err := l.Allow(ctx, "campaign:1")
		assert.NoError(t, err)
		assert.True(t, allowed)

		// Exhausting one campaign leaves another untouched
		allowed, err = l.Allow(ctx, "campaign:2")
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("WindowSlides", func(t *testing.T) {
		l := NewSlidingWindowLimiter(client, 1, time.Second)

		allowed, err := l.Allow(ctx, "user:42")
		assert.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = l.Allow(ctx, "user:42")
		assert.NoError(t, err)
		assert.False(t, allowed)

		time.Sleep(1100 * time.Millisecond)

		allowed, err = l.Allow(ctx, "user:42")
		assert.NoError(t, err)
		assert.True(t, allowed, "the window has slid past the first attempt")
	})
}

func TestTokenBucketLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("BurstThenEmpty", func(t *testing.T) {
		l := NewTokenBucketLimiter(rate.Limit(10), 10)

		for i := 0; i < 10; i++ {
			allowed, err := l.Allow(ctx, "charges")
			assert.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := l.Allow(ctx, "charges")
		assert.NoError(t, err)
		assert.False(t, allowed, "bucket is drained")
	})

	t.Run("AllowN", func(t *testing.T) {
		l := NewTokenBucketLimiter(rate.Limit(10), 10)

		allowed, err := l.AllowN(ctx, "charges", 5)
		assert.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = l.AllowN(ctx, "charges", 5)
		assert.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = l.AllowN(ctx, "charges", 1)
		assert.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("BucketIsProcessWide", func(t *testing.T) {
		// The key argument exists only to satisfy RateLimiter; all callers
		// share one bucket
		l := NewTokenBucketLimiter(rate.Limit(5), 5)

		for i := 0; i < 5; i++ {
			allowed, err := l.Allow(ctx, fmt.Sprintf("key-%d", i))
			assert.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := l.Allow(ctx, "another-key")
		assert.NoError(t, err)
		assert.False(t, allowed)
	})
}

func TestMultiDimensionLimiter(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("AllDimensionsWithinLimits", func(t *testing.T) {
		l := NewMultiDimensionLimiter(client)

		allowed, err := l.Allow(ctx, map[string]string{
			"user":     "10",
			"ip":       "203.0.113.7",
			"campaign": "1",
		})
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("OneExhaustedDimensionRejects", func(t *testing.T) {
		l := NewMultiDimensionLimiter(client)
		l.SetLimit("campaign", 1, time.Minute)

		dims := map[string]string{
			"user":     "11",
			"campaign": "7",
		}

		allowed, err := l.Allow(ctx, dims)
		assert.NoError(t, err)
		assert.True(t, allowed)

		// The campaign budget is spent even though the user budget is not
		allowed, err = l.Allow(ctx, dims)
		assert.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("UnknownDimensionIgnored", func(t *testing.T) {
		l := NewMultiDimensionLimiter(client)

		allowed, err := l.Allow(ctx, map[string]string{
			"not_configured": "whatever",
			"user":           "12",
		})
		assert.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NoDimensions", func(t *testing.T) {
		l := NewMultiDimensionLimiter(client)

		allowed, err := l.Allow(ctx, map[string]string{})
		assert.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRateLimiterInterface(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	var l RateLimiter = NewSlidingWindowLimiter(client, 5, time.Minute)
	allowed, err := l.Allow(ctx, "user:1")
	assert.NoError(t, err)
	assert.True(t, allowed)

	l = NewTokenBucketLimiter(rate.Limit(10), 10)
	allowed, err = l.Allow(ctx, "user:1")
	assert.NoError(t, err)
	assert.True(t, allowed)
}
