// Package queue carries fulfillment requests from the charge path to the
// booking consumer. The Kafka-backed implementation is used in deployment;
// the in-memory one serves local runs and tests.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned once Close has been called.
var ErrQueueClosed = errors.New("queue is closed")

// topicBuffer bounds how many undelivered messages a topic holds before
// publishers fall back to background delivery.
const topicBuffer = 1000

// MessageQueue is the transport between the charge service and the
// fulfillment consumer.
type MessageQueue interface {
	Publish(ctx context.Context, topic string, message []byte) error
	Consume(ctx context.Context, topic string) ([]byte, error)
	Close() error
}

// MemoryMessageQueue delivers messages over per-topic channels within a
// single process.
type MemoryMessageQueue struct {
	mu     sync.RWMutex
	topics map[string]chan []byte
	closed bool
}

// NewMemoryMessageQueue creates an in-memory message queue.
func NewMemoryMessageQueue() *MemoryMessageQueue {
	return &MemoryMessageQueue{
		topics: make(map[string]chan []byte),
	}
}

// Publish enqueues a message on the topic. When the topic buffer is full
// the publish completes in the background so a slow consumer does not
// stall the charge path.
func (q *MemoryMessageQueue) Publish(ctx context.Context, topic string, message []byte) error {
	ch, err := q.topicChan(topic)
	if err != nil {
		return err
	}

	select {
	case ch <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		go func() {
			select {
			case ch <- message:
			case <-ctx.Done():
			}
		}()
		return nil
	}
}

// Consume blocks until a message arrives on the topic or the context ends.
func (q *MemoryMessageQueue) Consume(ctx context.Context, topic string) ([]byte, error) {
	ch, err := q.topicChan(topic)
	if err != nil {
		return nil, err
	}

	select {
	case message := <-ch:
		return message, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// topicChan gets or lazily creates the channel backing a topic.
func (q *MemoryMessageQueue) topicChan(topic string) (chan []byte, error) {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	ch, ok := q.topics[topic]
	q.mu.RUnlock()
	if ok {
		return ch, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	if ch, ok := q.topics[topic]; ok {
		return ch, nil
	}
	ch = make(chan []byte, topicBuffer)
	q.topics[topic] = ch
	return ch, nil
}

// Close closes every topic channel. Further publishes and consumes return
// ErrQueueClosed.
func (q *MemoryMessageQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	for _, ch := range q.topics {
		close(ch)
	}
	return nil
}
