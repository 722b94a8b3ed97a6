package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *redis.Client {
	s, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		s.Close()
	})

	return client
}

func TestRedisLock(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("AcquireAndRelease", func(t *testing.T) {
		sweep := NewRedisLock(client, "sweep:requests", "owner-a", time.Minute)

		require.NoError(t, sweep.Lock(ctx))

		held, err := sweep.IsHeld(ctx)
		assert.NoError(t, err)
		assert.True(t, held)

		require.NoError(t, sweep.Unlock(ctx))

		held, err = sweep.IsHeld(ctx)
		assert.NoError(t, err)
		assert.False(t, held)
	})

	t.Run("SecondOwnerRejected", func(t *testing.T) {
		first := NewRedisLock(client, "sweep:conflict", "owner-a", time.Minute)
		second := NewRedisLock(client, "sweep:conflict", "owner-b", time.Minute)

		require.NoError(t, first.Lock(ctx))

		err := second.Lock(ctx)
		assert.ErrorIs(t, err, ErrLockFailed)

		held, err := second.IsHeld(ctx)
		assert.NoError(t, err)
		assert.False(t, held)

		require.NoError(t, first.Unlock(ctx))

		// With the first owner gone the second can take over.
		assert.NoError(t, second.Lock(ctx))
		assert.NoError(t, second.Unlock(ctx))
	})

	t.Run("TryLockExhaustsRetries", func(t *testing.T) {
		holder := NewRedisLock(client, "sweep:retry", "owner-a", time.Minute)
		waiter := NewRedisLock(client, "sweep:retry", "owner-b", time.Minute)

		require.NoError(t, holder.Lock(ctx))

		start := time.Now()
		err := waiter.TryLock(ctx, 2, 50*time.Millisecond)
		elapsed := time.Since(start)

		assert.ErrorIs(t, err, ErrLockFailed)
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "should have slept between attempts")

		require.NoError(t, holder.Unlock(ctx))
		assert.NoError(t, waiter.Lock(ctx))
		assert.NoError(t, waiter.Unlock(ctx))
	})

	t.Run("ExtendKeepsLockAlive", func(t *testing.T) {
		sweep := NewRedisLock(client, "sweep:extend", "owner-a", 100*time.Millisecond)

		require.NoError(t, sweep.Lock(ctx))
		require.NoError(t, sweep.Extend(ctx, time.Minute))

		time.Sleep(150 * time.Millisecond)
		held, err := sweep.IsHeld(ctx)
		assert.NoError(t, err)
		assert.True(t, held, "extended lock should outlive its original TTL")

		assert.NoError(t, sweep.Unlock(ctx))
	})

	t.Run("ExtendWithoutHolding", func(t *testing.T) {
		sweep := NewRedisLock(client, "sweep:extend-miss", "owner-a", time.Minute)

		err := sweep.Extend(ctx, time.Minute)
		assert.ErrorIs(t, err, ErrLockNotHeld)
	})

	t.Run("UnlockWithoutHolding", func(t *testing.T) {
		sweep := NewRedisLock(client, "sweep:unlock-miss", "owner-a", time.Minute)

		err := sweep.Unlock(ctx)
		assert.ErrorIs(t, err, ErrLockNotHeld)
	})

	t.Run("UnlockByWrongOwner", func(t *testing.T) {
		first := NewRedisLock(client, "sweep:wrong-owner", "owner-a", time.Minute)
		second := NewRedisLock(client, "sweep:wrong-owner", "owner-b", time.Minute)

		require.NoError(t, first.Lock(ctx))

		err := second.Unlock(ctx)
		assert.ErrorIs(t, err, ErrLockNotHeld)

		held, err := first.IsHeld(ctx)
		assert.NoError(t, err)
		assert.True(t, held, "wrong owner must not release the lock")

		assert.NoError(t, first.Unlock(ctx))
	})

	t.Run("TryLockCancelledContext", func(t *testing.T) {
		holder := NewRedisLock(client, "sweep:cancel", "owner-a", time.Minute)
		waiter := NewRedisLock(client, "sweep:cancel", "owner-b", time.Minute)

		require.NoError(t, holder.Lock(ctx))

		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()

		err := waiter.TryLock(cancelCtx, 3, 50*time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)

		assert.NoError(t, holder.Unlock(ctx))
	})
}
