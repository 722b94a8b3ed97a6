// Package lock provides a Redis-backed mutex used to single-flight
// cross-instance work such as the stale booking request sweep.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockFailed the lock is held by another owner
	ErrLockFailed = errors.New("failed to acquire lock")
	// ErrLockNotHeld the lock is not held by this owner
	ErrLockNotHeld = errors.New("lock not held")
)

// Release and extend must only touch the key when the stored owner token
// still matches, otherwise a slow holder could clobber a successor's lock.
var (
	releaseScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`)
	extendScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
)

// RedisLock is a TTL-bounded mutex keyed in Redis. The owner token
// distinguishes holders so an expired holder cannot release a lock that
// has since been re-acquired by someone else.
type RedisLock struct {
	client redis.Cmdable
	key    string
	owner  string
	ttl    time.Duration
}

// NewRedisLock creates a lock on key. The owner token should be unique per
// acquisition attempt (a UUID works).
func NewRedisLock(client redis.Cmdable, key, owner string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		owner:  owner,
		ttl:    ttl,
	}
}

// Lock acquires the lock, returning ErrLockFailed when another owner holds it.
func (l *RedisLock) Lock(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockFailed
	}
	return nil
}

// TryLock attempts Lock up to maxRetries times, sleeping retryDelay between
// attempts. Returns ErrLockFailed when every attempt found the lock held.
func (l *RedisLock) TryLock(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		err := l.Lock(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrLockFailed) {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock if this owner still holds it.
func (l *RedisLock) Unlock(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Int()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend pushes the expiry out to ttl from now if this owner still holds
// the lock. Long sweeps call this between batches.
func (l *RedisLock) Extend(ctx context.Context, ttl time.Duration) error {
	extended, err := extendScript.Run(ctx, l.client, []string{l.key}, l.owner, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if extended == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// IsHeld reports whether this owner currently holds the lock.
func (l *RedisLock) IsHeld(ctx context.Context) (bool, error) {
	value, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return value == l.owner, nil
}
