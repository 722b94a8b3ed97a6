package bloom

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/redis/go-redis/v9"
)

// CountingBloomFilter is a Redis-backed counting bloom filter. Counters use
// 4 bits each so membership can be removed again, which a plain bloom filter
// cannot do. All instances sharing the same Redis see the same filter.
type CountingBloomFilter struct {
	redis     redis.Cmdable
	keyPrefix string
	m         uint64 // counter array size
	k         uint8  // number of hash functions
	maxCount  uint8  // counter saturation value
}

// Config configures a counting bloom filter
type Config struct {
	KeyPrefix         string
	ExpectedElements  uint64
	FalsePositiveRate float64
	MaxCount          uint8
}

// NewCountingBloomFilter creates a new counting bloom filter
func NewCountingBloomFilter(redis redis.Cmdable, config Config) *CountingBloomFilter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "cbf"
	}
	if config.ExpectedElements == 0 {
		config.ExpectedElements = 100000
	}
	if config.FalsePositiveRate == 0 {
		config.FalsePositiveRate = 0.01
	}
	if config.MaxCount == 0 {
		config.MaxCount = 15 // 4 bits per counter
	}

	m := optimalM(config.ExpectedElements, config.FalsePositiveRate)
	k := optimalK(m, config.ExpectedElements)

	return &CountingBloomFilter{
		redis:     redis,
		keyPrefix: config.KeyPrefix,
		m:         m,
		k:         k,
		maxCount:  config.MaxCount,
	}
}

// counterScript reads a 4-bit counter, applies a delta clamped to
// [0, max], writes it back and returns the new value. Keys are sharded
// by bucket so the script stays single-key for cluster mode.
const counterScript = `
	local bucket_key = KEYS[1]
	local offset = tonumber(ARGV[1]) * 4
	local delta = tonumber(ARGV[2])
	local max = tonumber(ARGV[3])

	local val = redis.call('GETBIT', bucket_key, offset) * 8 +
		redis.call('GETBIT', bucket_key, offset + 1) * 4 +
		redis.call('GETBIT', bucket_key, offset + 2) * 2 +
		redis.call('GETBIT', bucket_key, offset + 3)

	local next = val + delta
	if next < 0 then next = 0 end
	if next > max then next = max end

	if next ~= val then
		redis.call('SETBIT', bucket_key, offset, math.floor(next / 8) % 2)
		redis.call('SETBIT', bucket_key, offset + 1, math.floor(next / 4) % 2)
		redis.call('SETBIT', bucket_key, offset + 2, math.floor(next / 2) % 2)
		redis.call('SETBIT', bucket_key, offset + 3, next % 2)
	end

	return next
`

// Add adds an element to the filter
func (cbf *CountingBloomFilter) Add(ctx context.Context, element string) error {
	return cbf.apply(ctx, element, 1)
}

// Remove removes one occurrence of an element from the filter
func (cbf *CountingBloomFilter) Remove(ctx context.Context, element string) error {
	return cbf.apply(ctx, element, -1)
}

func (cbf *CountingBloomFilter) apply(ctx context.Context, element string, delta int) error {
	for _, hash := range cbf.getHashes(element) {
		bucketKey, bitOffset := cbf.slot(hash)

		err := cbf.redis.Eval(ctx, counterScript, []string{bucketKey}, bitOffset, delta, cbf.maxCount).Err()
		if err != nil {
			return err
		}
	}

	return nil
}

// Test reports whether an element might be in the filter. A false result
// is definite, a true result may be a false positive.
func (cbf *CountingBloomFilter) Test(ctx context.Context, element string) (bool, error) {
	for _, hash := range cbf.getHashes(element) {
		bucketKey, bitOffset := cbf.slot(hash)

		val, err := cbf.redis.Eval(ctx, counterScript, []string{bucketKey}, bitOffset, 0, cbf.maxCount).Int()
		if err != nil {
			return false, err
		}

		if val == 0 {
			return false, nil
		}
	}

	return true, nil
}

// Clear removes all elements from the filter
func (cbf *CountingBloomFilter) Clear(ctx context.Context) error {
	keys, err := cbf.redis.Keys(ctx, cbf.keyPrefix+":*").Result()
	if err != nil {
		return err
	}

	if len(keys) > 0 {
		return cbf.redis.Del(ctx, keys...).Err()
	}

	return nil
}

func (cbf *CountingBloomFilter) slot(hash uint64) (string, uint64) {
	bucketIndex := (hash % cbf.m) / 8
	bitOffset := (hash % cbf.m) % 8
	return fmt.Sprintf("%s:%d", cbf.keyPrefix, bucketIndex), bitOffset
}

// getHashes derives k hash values via double hashing over two FNV variants
func (cbf *CountingBloomFilter) getHashes(element string) []uint64 {
	h1 := fnv.New64a()
	h1.Write([]byte(element))
	hash1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write([]byte(element + "salt"))
	hash2 := h2.Sum64()

	hashes := make([]uint64, cbf.k)
	for i := uint8(0); i < cbf.k; i++ {
		hashes[i] = hash1 + uint64(i)*hash2
	}

	return hashes
}

func optimalM(n uint64, p float64) uint64 {
	return uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Log(2) * math.Log(2))))
}

func optimalK(m, n uint64) uint8 {
	k := math.Ceil(float64(m) / float64(n) * math.Log(2))
	if k > 255 {
		k = 255
	}
	return uint8(k)
}
