package retryqueue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Operation a queued operation awaiting replay
type Operation struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
	RetryCount int             `json:"retry_count"`
}

// Store durable storage for the pending operation list. The queue always
// persists the full ordered list; ordering is the store's contract.
type Store interface {
	// Load the pending operations
	Load(ctx context.Context) ([]*Operation, error)

	// Save replaces the pending operations
	Save(ctx context.Context, ops []*Operation) error
}

// RedisStore Redis-backed operation store
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis store under the given queue name
func NewRedisStore(client *redis.Client, queueName string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    "retryqueue:" + queueName,
	}
}

// Load loads the pending operations
func (s *RedisStore) Load(ctx context.Context) ([]*Operation, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var ops []*Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

// Save replaces the pending operations
func (s *RedisStore) Save(ctx context.Context, ops []*Operation) error {
	if len(ops) == 0 {
		return s.client.Del(ctx, s.key).Err()
	}

	data, err := json.Marshal(ops)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

// MemoryStore in-memory operation store for tests and single-process use
type MemoryStore struct {
	mutex sync.Mutex
	ops   []*Operation
}

// NewMemoryStore creates a memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load loads the pending operations
func (s *MemoryStore) Load(ctx context.Context) ([]*Operation, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ops := make([]*Operation, len(s.ops))
	copy(ops, s.ops)
	return ops, nil
}

// Save replaces the pending operations
func (s *MemoryStore) Save(ctx context.Context, ops []*Operation) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.ops = make([]*Operation, len(ops))
	copy(s.ops, ops)
	return nil
}
