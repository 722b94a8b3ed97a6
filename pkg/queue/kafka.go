package queue

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig Kafka queue configuration
type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// KafkaMessageQueue Kafka-backed message queue implementation
type KafkaMessageQueue struct {
	brokers []string
	groupID string
	writer  *kafka.Writer
	readers map[string]*kafka.Reader
	mu      sync.Mutex
	closed  bool
}

// NewKafkaMessageQueue creates a Kafka message queue
func NewKafkaMessageQueue(config KafkaConfig) *KafkaMessageQueue {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaMessageQueue{
		brokers: config.Brokers,
		groupID: config.GroupID,
		writer:  writer,
		readers: make(map[string]*kafka.Reader),
	}
}

// Publish publishes a message to a topic
func (q *KafkaMessageQueue) Publish(ctx context.Context, topic string, message []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	return q.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Value: message,
		Time:  time.Now(),
	})
}

// Consume consumes a message from a topic
func (q *KafkaMessageQueue) Consume(ctx context.Context, topic string) ([]byte, error) {
	reader, err := q.readerFor(topic)
	if err != nil {
		return nil, err
	}

	msg, err := reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	return msg.Value, nil
}

// readerFor gets or creates the consumer-group reader for a topic
func (q *KafkaMessageQueue) readerFor(topic string) (*kafka.Reader, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if reader, ok := q.readers[topic]; ok {
		return reader, nil
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           q.brokers,
		GroupID:           q.groupID,
		Topic:             topic,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	})
	q.readers[topic] = reader
	return reader, nil
}

// Close closes the writer and all readers
func (q *KafkaMessageQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true

	err := q.writer.Close()
	for _, reader := range q.readers {
		if closeErr := reader.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
