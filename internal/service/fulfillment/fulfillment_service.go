package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"autobook/internal/model"
	"autobook/internal/payment"
	"autobook/internal/repository"
	"autobook/internal/service/gateway"
	"autobook/pkg/lock"
	"autobook/pkg/log"
	"autobook/pkg/queue"
	"autobook/pkg/snowflake"
)

// Config fulfillment worker configuration
type Config struct {
	// MaxAttempts bounds transient booking retries. Once a request has
	// burned through its attempts it is failed and refunded.
	MaxAttempts int
	// StaleAfter is how long a pending request may sit untouched before
	// the sweeper republishes it.
	StaleAfter time.Duration
	// SweepBatch requests republished per sweep
	SweepBatch int
}

// DefaultConfig default fulfillment configuration
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		StaleAfter:  5 * time.Minute,
		SweepBatch:  100,
	}
}

// FulfillmentService drives booking requests to a terminal outcome
type FulfillmentService interface {
	// Process one booking request end to end
	ProcessRequest(ctx context.Context, requestID uint64) error

	// Consume fulfillment message (asynchronous)
	ConsumeFulfillmentMessage(ctx context.Context, messageData []byte) error

	// Republish stale pending requests
	ReclaimStale(ctx context.Context) error
}

// fulfillmentService fulfillment implementation
type fulfillmentService struct {
	requestRepo      repository.BookingRequestRepository
	bookingRepo      repository.BookingRepository
	campaignRepo     repository.CampaignRepository
	intentRepo       repository.IntentRepository
	tripRepo         repository.TripRepository
	notificationRepo repository.NotificationRepository
	gateway          *gateway.Gateway
	airline          AirlineClient
	fulfillQueue     queue.MessageQueue
	redisClient      *redis.Client
	idGenerator      *snowflake.IDGenerator
	topic            string
	config           Config
}

// NewFulfillmentService creates a fulfillment service
func NewFulfillmentService(
	requestRepo repository.BookingRequestRepository,
	bookingRepo repository.BookingRepository,
	campaignRepo repository.CampaignRepository,
	intentRepo repository.IntentRepository,
	tripRepo repository.TripRepository,
	notificationRepo repository.NotificationRepository,
	gw *gateway.Gateway,
	airline AirlineClient,
	fulfillQueue queue.MessageQueue,
	redisClient *redis.Client,
	idGenerator *snowflake.IDGenerator,
	topic string,
	config Config,
) FulfillmentService {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.StaleAfter == 0 {
		config.StaleAfter = DefaultConfig().StaleAfter
	}
	if config.SweepBatch == 0 {
		config.SweepBatch = DefaultConfig().SweepBatch
	}

	return &fulfillmentService{
		requestRepo:      requestRepo,
		bookingRepo:      bookingRepo,
		campaignRepo:     campaignRepo,
		intentRepo:       intentRepo,
		tripRepo:         tripRepo,
		notificationRepo: notificationRepo,
		gateway:          gw,
		airline:          airline,
		fulfillQueue:     fulfillQueue,
		redisClient:      redisClient,
		idGenerator:      idGenerator,
		topic:            topic,
		config:           config,
	}
}

// ConsumeFulfillmentMessage consumes a fulfillment trigger
func (s *fulfillmentService) ConsumeFulfillmentMessage(ctx context.Context, messageData []byte) error {
	var msg model.FulfillmentMessage
	if err := json.Unmarshal(messageData, &msg); err != nil {
		log.WithFields(map[string]interface{}{
			"error": err.Error(),
		}).Error("Failed to parse fulfillment message")
		return err
	}

	return s.ProcessRequest(ctx, msg.BookingRequestID)
}

// ProcessRequest drives one booking request toward done or failed. Safe
// against duplicate queue deliveries: only the worker that wins the
// conditional pending -> processing claim proceeds.
func (s *fulfillmentService) ProcessRequest(ctx context.Context, requestID uint64) error {
	log.WithFields(map[string]interface{}{
		"booking_request_id": requestID,
	}).Info("Start processing booking request")

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	if request.IsTerminal() {
		log.WithFields(map[string]interface{}{
			"booking_request_id": requestID,
			"status":             request.Status,
		}).Info("Booking request already resolved")
		return nil
	}

	claimed, err := s.requestRepo.ClaimForProcessing(ctx, requestID)
	if err != nil {
		return err
	}
	if !claimed {
		log.WithFields(map[string]interface{}{
			"booking_request_id": requestID,
		}).Info("Booking request claimed by another worker")
		return nil
	}
	request.Attempts++

	campaign, err := s.campaignRepo.GetByID(ctx, request.CampaignID)
	if err != nil {
		return s.requeue(ctx, request, fmt.Sprintf("failed to load campaign: %v", err))
	}
	if campaign == nil {
		// The campaign record is gone but the money is captured; the
		// request must still reach a terminal state
		return s.failAndRefund(ctx, request, nil, "campaign record missing")
	}

	intent, err := s.intentRepo.GetByRef(ctx, request.PaymentIntentRef)
	if err != nil {
		return s.requeue(ctx, request, fmt.Sprintf("failed to load intent: %v", err))
	}

	offer, err := request.Offer()
	if err != nil {
		return s.failAndRefund(ctx, request, intent, fmt.Sprintf("corrupt offer snapshot: %v", err))
	}

	traveler, err := request.Traveler()
	if err != nil {
		return s.failAndRefund(ctx, request, intent, fmt.Sprintf("corrupt traveler snapshot: %v", err))
	}

	confirmation, err := s.airline.Book(ctx, &BookingOrder{
		RequestRef: fmt.Sprintf("%d", request.ID),
		Offer:      offer,
		Traveler:   traveler,
	})
	if err != nil {
		if IsPermanentBookingError(err) {
			return s.failAndRefund(ctx, request, intent, err.Error())
		}
		if request.Attempts >= s.config.MaxAttempts {
			log.WithFields(map[string]interface{}{
				"booking_request_id": request.ID,
				"attempts":           request.Attempts,
			}).Warn("Booking retries exhausted")
			return s.failAndRefund(ctx, request, intent, fmt.Sprintf("retries exhausted: %v", err))
		}
		return s.requeue(ctx, request, err.Error())
	}

	return s.recordBooking(ctx, request, campaign, offer, confirmation)
}

// recordBooking lands the booking and the done transition together, then
// updates the trip's best price and notifies the owner.
func (s *fulfillmentService) recordBooking(ctx context.Context, request *model.BookingRequest, campaign *model.Campaign, offer *model.FlightOfferSnapshot, confirmation *BookingConfirmation) error {
	booking := &model.Booking{
		ID:               uint64(s.idGenerator.NextID()),
		BookingRequestID: request.ID,
		TripID:           campaign.TripID,
		UserID:           campaign.UserID,
		Source:           model.BookingSourceAuto,
		Status:           "booked",
		Price:            offer.Price,
		Currency:         offer.Currency,
		ConfirmationCode: confirmation.ConfirmationCode,
		FlightDetails:    confirmation.FlightDetails,
	}

	landed, err := s.bookingRepo.CreateWithDone(ctx, booking)
	if err != nil {
		// The airline holds the booking under our dedupe reference, so a
		// retry re-reads the same confirmation instead of double booking
		return s.requeue(ctx, request, fmt.Sprintf("failed to record booking: %v", err))
	}
	if !landed {
		log.WithFields(map[string]interface{}{
			"booking_request_id": request.ID,
		}).Info("Booking already recorded by another worker")
		return nil
	}

	if lowered, err := s.tripRepo.LowerBestPrice(ctx, campaign.TripID, offer.Price); err != nil {
		log.WithFields(map[string]interface{}{
			"trip_id": campaign.TripID,
			"error":   err.Error(),
		}).Warn("Failed to update trip best price")
	} else if lowered {
		log.WithFields(map[string]interface{}{
			"trip_id": campaign.TripID,
			"price":   offer.Price,
		}).Info("Trip best price lowered")
	}

	s.notify(ctx, campaign, model.NotificationTypeBookingSuccess,
		fmt.Sprintf("flight %s %s booked at %.2f %s, confirmation %s",
			offer.Airline, offer.FlightNumber, offer.PriceDecimal(), offer.Currency, confirmation.ConfirmationCode),
		booking)

	log.WithFields(map[string]interface{}{
		"booking_request_id": request.ID,
		"booking_id":         booking.ID,
		"confirmation_code":  confirmation.ConfirmationCode,
	}).Info("Booking request fulfilled")

	return nil
}

// requeue returns the request to pending for a later retry
func (s *fulfillmentService) requeue(ctx context.Context, request *model.BookingRequest, reason string) error {
	log.WithFields(map[string]interface{}{
		"booking_request_id": request.ID,
		"attempts":           request.Attempts,
		"reason":             reason,
	}).Warn("Booking attempt failed, requeueing")

	if err := s.requestRepo.Requeue(ctx, request.ID, reason); err != nil {
		log.WithFields(map[string]interface{}{
			"booking_request_id": request.ID,
			"error":              err.Error(),
		}).Error("Failed to requeue booking request")
		return err
	}
	return nil
}

// failAndRefund marks the request failed, refunds the captured charge and
// notifies the owner. A failed refund raises an operator alert; the money
// is never silently kept.
func (s *fulfillmentService) failAndRefund(ctx context.Context, request *model.BookingRequest, intent *model.PaymentIntent, reason string) error {
	marked, err := s.requestRepo.MarkFailed(ctx, request.ID, reason)
	if err != nil {
		return err
	}
	if !marked {
		return nil
	}

	log.WithFields(map[string]interface{}{
		"booking_request_id": request.ID,
		"reason":             reason,
	}).Warn("Booking request failed, refunding charge")

	campaign, _ := s.campaignRepo.GetByID(ctx, request.CampaignID)

	if intent != nil {
		refundErr := s.gateway.Refund(ctx, intent.Provider, &payment.RefundRequest{
			IntentRef:      intent.IntentRef,
			IdempotencyKey: "refund:" + intent.IdempotencyKey,
			Reason:         reason,
		})
		if refundErr != nil {
			log.WithFields(map[string]interface{}{
				"booking_request_id": request.ID,
				"intent_ref":         intent.IntentRef,
				"error":              refundErr.Error(),
			}).Error("Refund failed, manual intervention required")

			s.notifyOperator(ctx, campaign, request, intent, refundErr)
		} else if err := s.intentRepo.MarkRefunded(ctx, intent.IntentRef); err != nil {
			log.WithFields(map[string]interface{}{
				"intent_ref": intent.IntentRef,
				"error":      err.Error(),
			}).Error("Failed to record refund")
		}
	} else {
		log.WithFields(map[string]interface{}{
			"booking_request_id": request.ID,
		}).Error("No payment intent for failed request, manual intervention required")
		s.notifyOperator(ctx, campaign, request, nil, fmt.Errorf("payment intent missing"))
	}

	if campaign != nil {
		s.notify(ctx, campaign, model.NotificationTypeBookingFailed,
			fmt.Sprintf("automatic booking failed: %s; the charge was refunded", reason), nil)
	}

	return nil
}

func (s *fulfillmentService) notify(ctx context.Context, campaign *model.Campaign, notifType, message string, data interface{}) {
	notification := &model.Notification{
		ID:      uint64(s.idGenerator.NextID()),
		TripID:  campaign.TripID,
		UserID:  campaign.UserID,
		Type:    notifType,
		Message: message,
	}
	if data != nil {
		notification.Data, _ = json.Marshal(data)
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		log.WithFields(map[string]interface{}{
			"trip_id": notification.TripID,
			"type":    notifType,
			"error":   err.Error(),
		}).Warn("Failed to create notification")
	}
}

func (s *fulfillmentService) notifyOperator(ctx context.Context, campaign *model.Campaign, request *model.BookingRequest, intent *model.PaymentIntent, cause error) {
	notification := &model.Notification{
		ID:      uint64(s.idGenerator.NextID()),
		Type:    model.NotificationTypeOperatorAlert,
		Message: fmt.Sprintf("booking request %d needs manual refund: %v", request.ID, cause),
	}
	if campaign != nil {
		notification.TripID = campaign.TripID
		notification.UserID = campaign.UserID
	}
	if intent != nil {
		notification.Data, _ = json.Marshal(map[string]string{
			"intent_ref": intent.IntentRef,
			"provider":   intent.Provider,
		})
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		log.WithFields(map[string]interface{}{
			"booking_request_id": request.ID,
			"error":              err.Error(),
		}).Error("Failed to create operator alert")
	}
}

// ReclaimStale republishes fulfillment triggers for pending requests that
// lost their message. One instance sweeps at a time, guarded by a Redis
// lock.
func (s *fulfillmentService) ReclaimStale(ctx context.Context) error {
	sweepLock := lock.NewRedisLock(s.redisClient, "fulfillment:sweep", uuid.NewString(), 30*time.Second)
	if err := sweepLock.Lock(ctx); err != nil {
		if err == lock.ErrLockFailed {
			return nil
		}
		return err
	}
	defer sweepLock.Unlock(ctx)

	staleBefore := time.Now().Add(-s.config.StaleAfter)
	requests, err := s.requestRepo.ListStalePending(ctx, staleBefore, s.config.SweepBatch)
	if err != nil {
		return err
	}

	if len(requests) == 0 {
		return nil
	}

	log.WithFields(map[string]interface{}{
		"count": len(requests),
	}).Info("Republishing stale booking requests")

	for _, request := range requests {
		msg := &model.FulfillmentMessage{
			BookingRequestID: request.ID,
			Timestamp:        time.Now().Unix(),
			TraceID:          uuid.NewString(),
		}
		msgData, _ := json.Marshal(msg)

		if err := s.fulfillQueue.Publish(ctx, s.topic, msgData); err != nil {
			log.WithFields(map[string]interface{}{
				"booking_request_id": request.ID,
				"error":              err.Error(),
			}).Error("Failed to republish fulfillment message")
		}
	}

	return nil
}
