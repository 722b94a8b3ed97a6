package retryqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"autobook/pkg/log"
)

// Handler replays one operation. Handlers own their idempotency; an
// operation may be replayed after a crash that lost the ack.
type Handler func(ctx context.Context, data json.RawMessage) error

// DropFunc is called when an operation exhausts its retries
type DropFunc func(op *Operation, err error)

// Config retry queue configuration
type Config struct {
	// MaxRetries attempts before an operation is dropped
	MaxRetries int
	// DrainInterval periodic fallback drain tick
	DrainInterval time.Duration
	// OnDrop is called for every dropped operation so failures surface
	// instead of disappearing
	OnDrop DropFunc
}

// Queue durable client-side retry queue. Operations enqueued while offline
// are persisted and drained once connectivity returns.
type Queue struct {
	store    Store
	handlers map[string]Handler
	mutex    sync.RWMutex

	// storeMu serializes load-modify-save cycles on the store so a drain
	// cannot overwrite an operation appended concurrently by Enqueue
	storeMu sync.Mutex

	online   atomic.Bool
	draining atomic.Bool

	maxRetries    int
	drainInterval time.Duration
	onDrop        DropFunc
}

// NewQueue creates a retry queue over the given store
func NewQueue(store Store, config Config) *Queue {
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.DrainInterval == 0 {
		config.DrainInterval = 30 * time.Second
	}

	q := &Queue{
		store:         store,
		handlers:      make(map[string]Handler),
		maxRetries:    config.MaxRetries,
		drainInterval: config.DrainInterval,
		onDrop:        config.OnDrop,
	}
	q.online.Store(true)
	return q
}

// Register registers the handler for an operation type
func (q *Queue) Register(opType string, handler Handler) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.handlers[opType] = handler
}

func (q *Queue) handler(opType string) (Handler, bool) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()
	h, ok := q.handlers[opType]
	return h, ok
}

// Enqueue persists an operation and, when online, drains immediately
func (q *Queue) Enqueue(ctx context.Context, opType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode operation payload: %w", err)
	}

	op := &Operation{
		ID:        uuid.NewString(),
		Type:      opType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	q.storeMu.Lock()
	ops, err := q.store.Load(ctx)
	if err != nil {
		q.storeMu.Unlock()
		return fmt.Errorf("failed to load pending operations: %w", err)
	}

	if err := q.store.Save(ctx, append(ops, op)); err != nil {
		q.storeMu.Unlock()
		return fmt.Errorf("failed to persist operation: %w", err)
	}
	q.storeMu.Unlock()

	if q.online.Load() {
		return q.Drain(ctx)
	}
	return nil
}

// SetOnline flips connectivity. The offline to online transition drains
// everything accumulated while offline.
func (q *Queue) SetOnline(ctx context.Context, online bool) {
	wasOnline := q.online.Swap(online)
	if online && !wasOnline {
		log.Info("Retry queue back online, draining")
		if err := q.Drain(ctx); err != nil {
			log.WithFields(map[string]interface{}{
				"error": err.Error(),
			}).Error("Failed to drain retry queue")
		}
	}
}

// Start runs the periodic fallback drain until the context is cancelled
func (q *Queue) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(q.drainInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !q.online.Load() {
					continue
				}
				if err := q.Drain(ctx); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err.Error(),
					}).Error("Periodic retry queue drain failed")
				}
			}
		}
	}()
}

// Drain replays pending operations in order. Drains are serialized; a
// drain started while one is running is a no-op. Operations enqueued
// while a drain runs are picked up before it finishes, so the final save
// never discards them.
func (q *Queue) Drain(ctx context.Context) error {
	if !q.draining.CompareAndSwap(false, true) {
		return nil
	}
	defer q.draining.Store(false)

	q.storeMu.Lock()
	ops, err := q.store.Load(ctx)
	q.storeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to load pending operations: %w", err)
	}

	seen := make(map[string]bool, len(ops))
	var remaining []*Operation

	for len(ops) > 0 {
		for _, op := range ops {
			seen[op.ID] = true

			handler, ok := q.handler(op.Type)
			if !ok {
				// No handler registered yet, keep the operation for later
				remaining = append(remaining, op)
				continue
			}

			if err := handler(ctx, op.Data); err != nil {
				op.RetryCount++
				if op.RetryCount >= q.maxRetries {
					log.WithFields(map[string]interface{}{
						"operation_id": op.ID,
						"type":         op.Type,
						"retries":      op.RetryCount,
						"error":        err.Error(),
					}).Error("Operation dropped after exhausting retries")

					if q.onDrop != nil {
						q.onDrop(op, err)
					}
					continue
				}

				log.WithFields(map[string]interface{}{
					"operation_id": op.ID,
					"type":         op.Type,
					"retries":      op.RetryCount,
				}).Warn("Operation failed, will retry")
				remaining = append(remaining, op)
				continue
			}
		}

		// An Enqueue that raced this drain appended to the store while its
		// own Drain call was a no-op. Process those arrivals too; once a
		// load shows nothing new, persist what remains in the same critical
		// section so the save cannot clobber a concurrent append.
		q.storeMu.Lock()
		current, err := q.store.Load(ctx)
		if err != nil {
			q.storeMu.Unlock()
			return fmt.Errorf("failed to load pending operations: %w", err)
		}

		ops = ops[:0]
		for _, op := range current {
			if !seen[op.ID] {
				ops = append(ops, op)
			}
		}

		if len(ops) == 0 {
			err = q.store.Save(ctx, remaining)
			q.storeMu.Unlock()
			if err != nil {
				return fmt.Errorf("failed to persist remaining operations: %w", err)
			}
			return nil
		}
		q.storeMu.Unlock()
	}

	return nil
}

// PendingCount returns the number of operations awaiting replay
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	ops, err := q.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(ops), nil
}
