package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Reserve outcome codes returned by the charge reservation script.
const (
	ReserveOK        = 0 // slot acquired, caller may charge
	ReserveDuplicate = 1 // a final result is already cached for this key
	ReserveInFlight  = 2 // another worker holds the slot for this key
)

const (
	// ChargeReserveScript checks the cached result for an idempotency key
	// and, if none exists, takes the single in-flight slot for that key.
	// Both checks must happen atomically or two workers could charge the
	// same campaign and offer at once. Keying by the idempotency key keeps
	// distinct offers under one campaign independent of each other.
	ChargeReserveScript = `
		local result_key = KEYS[1]
		local inflight_key = KEYS[2]

		local holder = ARGV[1]
		local ttl_ms = tonumber(ARGV[2])

		local cached = redis.call('GET', result_key)
		if cached then
			return {1, cached}
		end

		local ok = redis.call('SET', inflight_key, holder, 'NX', 'PX', ttl_ms)
		if not ok then
			return {2, ''}
		end

		return {0, ''}
	`

	// ChargeCompleteScript caches the final result and releases the
	// in-flight slot when still held by the caller.
	ChargeCompleteScript = `
		local result_key = KEYS[1]
		local inflight_key = KEYS[2]

		local holder = ARGV[1]
		local result = ARGV[2]
		local result_ttl = tonumber(ARGV[3])

		redis.call('SET', result_key, result, 'EX', result_ttl)

		if redis.call('GET', inflight_key) == holder then
			redis.call('DEL', inflight_key)
		end

		return 1
	`

	// ChargeReleaseScript frees the in-flight slot without caching a
	// result, used when the attempt ends in a retryable error.
	ChargeReleaseScript = `
		local inflight_key = KEYS[1]
		local holder = ARGV[1]

		if redis.call('GET', inflight_key) == holder then
			return redis.call('DEL', inflight_key)
		end

		return 0
	`
)

// ChargeScripts runs the charge reservation scripts against Redis.
type ChargeScripts struct {
	client redis.Cmdable

	reserveScript  *redis.Script
	completeScript *redis.Script
	releaseScript  *redis.Script
}

// NewChargeScripts creates a charge script runner
func NewChargeScripts(client redis.Cmdable) *ChargeScripts {
	return &ChargeScripts{
		client:         client,
		reserveScript:  redis.NewScript(ChargeReserveScript),
		completeScript: redis.NewScript(ChargeCompleteScript),
		releaseScript:  redis.NewScript(ChargeReleaseScript),
	}
}

// LoadScripts preloads all scripts into the Redis script cache
func (cs *ChargeScripts) LoadScripts(ctx context.Context) error {
	scripts := []*redis.Script{
		cs.reserveScript,
		cs.completeScript,
		cs.releaseScript,
	}

	for _, script := range scripts {
		if err := script.Load(ctx, cs.client).Err(); err != nil {
			return fmt.Errorf("failed to load lua script: %w", err)
		}
	}

	return nil
}

// Reserve attempts to take the charge slot for an idempotency key. It
// returns one of the Reserve* codes and, for ReserveDuplicate, the cached
// result.
func (cs *ChargeScripts) Reserve(ctx context.Context, idempotencyKey, holder string, inflightTTL time.Duration) (int, string, error) {
	keys := []string{resultKey(idempotencyKey), inflightKey(idempotencyKey)}
	args := []interface{}{holder, inflightTTL.Milliseconds()}

	result, err := cs.reserveScript.Run(ctx, cs.client, keys, args...).Result()
	if err != nil {
		return ReserveInFlight, "", err
	}

	code, cached, err := parsePair(result)
	if err != nil {
		return ReserveInFlight, "", err
	}

	return code, cached, nil
}

// Complete caches the final charge result and frees the in-flight slot.
func (cs *ChargeScripts) Complete(ctx context.Context, idempotencyKey, holder, result string, resultTTL time.Duration) error {
	keys := []string{resultKey(idempotencyKey), inflightKey(idempotencyKey)}
	args := []interface{}{holder, result, int(resultTTL.Seconds())}

	return cs.completeScript.Run(ctx, cs.client, keys, args...).Err()
}

// Release frees the in-flight slot without caching anything, so a later
// attempt for the same campaign and offer can proceed.
func (cs *ChargeScripts) Release(ctx context.Context, idempotencyKey, holder string) error {
	return cs.releaseScript.Run(ctx, cs.client, []string{inflightKey(idempotencyKey)}, holder).Err()
}

// GetResult reads the cached charge result for an idempotency key. It
// returns an empty string when no result is cached.
func (cs *ChargeScripts) GetResult(ctx context.Context, idempotencyKey string) (string, error) {
	val, err := cs.client.Get(ctx, resultKey(idempotencyKey)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func resultKey(idempotencyKey string) string {
	return "charge:result:" + idempotencyKey
}

func inflightKey(idempotencyKey string) string {
	return "charge:inflight:" + idempotencyKey
}

func parsePair(result interface{}) (int, string, error) {
	pair, ok := result.([]interface{})
	if !ok || len(pair) < 2 {
		return 0, "", fmt.Errorf("invalid script result: %v", result)
	}

	code, ok := pair[0].(int64)
	if !ok {
		return 0, "", fmt.Errorf("invalid script result code: %v", pair[0])
	}

	cached, _ := pair[1].(string)
	return int(code), cached, nil
}
