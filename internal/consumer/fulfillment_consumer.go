package consumer

import (
	"context"
	"time"

	"autobook/internal/service/fulfillment"
	"autobook/pkg/log"
	"autobook/pkg/queue"
)

// FulfillmentConsumer consumes fulfillment triggers and runs the stale
// request sweeper.
type FulfillmentConsumer struct {
	fulfillmentService fulfillment.FulfillmentService
	messageQueue       queue.MessageQueue
	topic              string
	sweepInterval      time.Duration
	stopCh             chan struct{}
}

// NewFulfillmentConsumer creates a fulfillment consumer
func NewFulfillmentConsumer(fulfillmentService fulfillment.FulfillmentService, messageQueue queue.MessageQueue, topic string, sweepInterval time.Duration) *FulfillmentConsumer {
	if sweepInterval == 0 {
		sweepInterval = time.Minute
	}
	return &FulfillmentConsumer{
		fulfillmentService: fulfillmentService,
		messageQueue:       messageQueue,
		topic:              topic,
		sweepInterval:      sweepInterval,
		stopCh:             make(chan struct{}),
	}
}

// Start starts the consumer and the sweeper
func (c *FulfillmentConsumer) Start(ctx context.Context) {
	log.Info("Starting fulfillment consumer")

	go c.consumeLoop(ctx)
	go c.sweepLoop(ctx)
}

func (c *FulfillmentConsumer) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-c.stopCh:
			log.Info("Fulfillment consumer stopped")
			return
		case <-ctx.Done():
			log.Info("Fulfillment consumer context cancelled")
			return
		default:
			// Consume message with timeout
			consumeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			messageData, err := c.messageQueue.Consume(consumeCtx, c.topic)
			cancel()

			if err != nil {
				if err == context.DeadlineExceeded {
					// Timeout is normal, continue
					continue
				}
				log.WithFields(map[string]interface{}{
					"error": err.Error(),
				}).Error("Failed to consume fulfillment message")
				time.Sleep(1 * time.Second)
				continue
			}

			// Failures are left in pending for the sweeper; the message
			// itself is not retried here
			if err := c.fulfillmentService.ConsumeFulfillmentMessage(ctx, messageData); err != nil {
				log.WithFields(map[string]interface{}{
					"error": err.Error(),
				}).Error("Failed to process fulfillment message")
			}
		}
	}
}

func (c *FulfillmentConsumer) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.fulfillmentService.ReclaimStale(ctx); err != nil {
				log.WithFields(map[string]interface{}{
					"error": err.Error(),
				}).Error("Stale booking request sweep failed")
			}
		}
	}
}

// Stop stops the consumer
func (c *FulfillmentConsumer) Stop() {
	close(c.stopCh)
}
