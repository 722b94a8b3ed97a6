package charge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/google/uuid"

	"autobook/internal/model"
	"autobook/internal/payment"
	"autobook/internal/repository"
	"autobook/internal/service/gateway"
	"autobook/pkg/bloom"
	"autobook/pkg/limiter"
	"autobook/pkg/log"
	"autobook/pkg/pause"
	"autobook/pkg/queue"
	"autobook/pkg/snowflake"
	"autobook/pkg/utils"
)

// Charge outcome statuses
const (
	StatusCaptured            = "captured"
	StatusChallengeRequired   = "challenge_required"
	StatusDeclined            = "declined"
	StatusRejected            = "rejected"
	StatusPaused              = "paused"
	StatusInProgress          = "in_progress"
	StatusProviderUnavailable = "provider_unavailable"
)

// ChargeScripts is the Redis reservation surface the orchestrator needs.
type ChargeScripts interface {
	Reserve(ctx context.Context, idempotencyKey, holder string, inflightTTL time.Duration) (int, string, error)
	Complete(ctx context.Context, idempotencyKey, holder, result string, resultTTL time.Duration) error
	Release(ctx context.Context, idempotencyKey, holder string) error
	GetResult(ctx context.Context, idempotencyKey string) (string, error)
}

// Reserve codes, mirrored from the Redis script runner
const (
	reserveOK        = 0
	reserveDuplicate = 1
	reserveInFlight  = 2
)

// ChargeService charge orchestration interface
type ChargeService interface {
	// Execute a charge attempt for an offer under a campaign
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)

	// Query the recorded outcome for a campaign/offer pair
	QueryChargeResult(ctx context.Context, campaignID uint64, offerID string) (*ChargeResult, error)

	// Rebuild the campaign existence filter from the database
	PrewarmCampaignFilter(ctx context.Context) error

	// Track campaign lifecycle in the existence filter
	TrackCampaign(ctx context.Context, campaignID uint64) error
	UntrackCampaign(ctx context.Context, campaignID uint64) error
}

// chargeService charge orchestration implementation
type chargeService struct {
	campaignRepo   repository.CampaignRepository
	instrumentRepo repository.InstrumentRepository
	intentRepo     repository.IntentRepository
	requestRepo    repository.BookingRequestRepository
	gateway        *gateway.Gateway
	scripts        ChargeScripts
	filter         *bloom.CountingBloomFilter
	pauses         *pause.Manager
	rateLimiter    *limiter.MultiDimensionLimiter
	fulfillQueue   queue.MessageQueue
	localCache     *bigcache.BigCache
	idGen          *snowflake.IDGenerator
	topic          string
}

// NewChargeService creates a charge service
func NewChargeService(
	campaignRepo repository.CampaignRepository,
	instrumentRepo repository.InstrumentRepository,
	intentRepo repository.IntentRepository,
	requestRepo repository.BookingRequestRepository,
	gw *gateway.Gateway,
	scripts ChargeScripts,
	filter *bloom.CountingBloomFilter,
	pauses *pause.Manager,
	rateLimiter *limiter.MultiDimensionLimiter,
	fulfillQueue queue.MessageQueue,
	localCache *bigcache.BigCache,
	idGen *snowflake.IDGenerator,
	topic string,
) ChargeService {
	return &chargeService{
		campaignRepo:   campaignRepo,
		instrumentRepo: instrumentRepo,
		intentRepo:     intentRepo,
		requestRepo:    requestRepo,
		gateway:        gw,
		scripts:        scripts,
		filter:         filter,
		pauses:         pauses,
		rateLimiter:    rateLimiter,
		fulfillQueue:   fulfillQueue,
		localCache:     localCache,
		idGen:          idGen,
		topic:          topic,
	}
}

// ChargeRequest charge request
type ChargeRequest struct {
	CampaignID uint64        `json:"campaign_id" binding:"required"`
	Offer      OfferPayload  `json:"offer" binding:"required"`
	Traveler   *TravelerData `json:"traveler,omitempty"`
	IP         string        `json:"-"`
	UserID     uint64        `json:"-"`
}

// OfferPayload priced offer submitted for charging
type OfferPayload struct {
	OfferID       string  `json:"offer_id" binding:"required"`
	Price         float64 `json:"price" binding:"required,gt=0"` // decimal major units
	Currency      string  `json:"currency" binding:"required,len=3"`
	Airline       string  `json:"airline"`
	FlightNumber  string  `json:"flight_number"`
	Route         string  `json:"route"`
	DepartureDate string  `json:"departure_date"`
	ReturnDate    *string `json:"return_date,omitempty"`
}

// TravelerData traveler details captured with the charge
type TravelerData struct {
	FullName      string `json:"full_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	DateOfBirth   string `json:"date_of_birth,omitempty"`
	PassportLast4 string `json:"passport_last4,omitempty"`
}

// ChargeResult charge result
type ChargeResult struct {
	Status           string             `json:"status"`
	IdempotencyKey   string             `json:"idempotency_key"`
	IntentRef        string             `json:"intent_ref,omitempty"`
	BookingRequestID uint64             `json:"booking_request_id,omitempty"`
	Code             utils.ResponseCode `json:"code"`
	Message          string             `json:"message,omitempty"`
	NextAction       json.RawMessage    `json:"next_action,omitempty"`
}

// Charge executes one charge attempt end to end
func (s *chargeService) Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error) {
	startTime := time.Now()
	key := IdempotencyKey(req.CampaignID, req.Offer.OfferID)

	log.WithFields(map[string]interface{}{
		"campaign_id": req.CampaignID,
		"offer_id":    req.Offer.OfferID,
		"key":         utils.MaskString(key, 4, 4, '*'),
	}).Info("Start processing charge request")

	// Step 1: local result cache
	if cached, err := s.localCache.Get(key); err == nil {
		var result ChargeResult
		if json.Unmarshal(cached, &result) == nil {
			log.WithFields(map[string]interface{}{
				"campaign_id": req.CampaignID,
			}).Info("Return charge result from local cache")
			return &result, nil
		}
	}

	// Step 2: kill switch
	if s.pauses.IsPaused(ctx, req.CampaignID) {
		state := s.pauses.GetState(ctx, req.CampaignID)
		return &ChargeResult{
			Status:         StatusPaused,
			IdempotencyKey: key,
			Code:           utils.CodeBookingPaused,
			Message:        state.Reason,
		}, nil
	}

	// Step 3: campaign existence filter
	if exists, err := s.filter.Test(ctx, campaignFilterKey(req.CampaignID)); err == nil && !exists {
		log.WithFields(map[string]interface{}{
			"campaign_id": req.CampaignID,
		}).Warn("Campaign filter rejected charge")
		return s.rejectResult(key, &Rejection{
			Code:    utils.CodeCampaignNotFound,
			Message: "campaign not found",
		}), nil
	}

	// Step 4: multi-dimension rate limit
	dimensions := map[string]string{
		"global":   "charges",
		"campaign": fmt.Sprintf("%d", req.CampaignID),
	}
	if req.IP != "" {
		dimensions["ip"] = req.IP
	}
	if req.UserID != 0 {
		dimensions["user"] = fmt.Sprintf("%d", req.UserID)
	}

	if allowed, err := s.rateLimiter.Allow(ctx, dimensions); err != nil || !allowed {
		log.WithFields(map[string]interface{}{
			"campaign_id": req.CampaignID,
			"ip":          req.IP,
		}).Warn("Charge rate limit exceeded")
		return &ChargeResult{
			Status:         StatusRejected,
			IdempotencyKey: key,
			Code:           utils.CodeRateLimit,
			Message:        "too many charge attempts, try again later",
		}, nil
	}

	// Step 5: reserve the charge slot (idempotency + single in-flight per offer)
	holder := uuid.NewString()
	code, cached, err := s.scripts.Reserve(ctx, key, holder, 2*time.Minute)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeRedisError, "charge reservation failed")
	}

	switch code {
	case reserveDuplicate:
		var result ChargeResult
		if err := json.Unmarshal([]byte(cached), &result); err != nil {
			return nil, utils.WrapError(err, utils.CodeRedisError, "corrupt cached charge result")
		}
		s.cacheLocal(key, &result)
		log.WithFields(map[string]interface{}{
			"campaign_id": req.CampaignID,
		}).Info("Return idempotent charge result")
		return &result, nil

	case reserveInFlight:
		return &ChargeResult{
			Status:         StatusInProgress,
			IdempotencyKey: key,
			Code:           utils.CodeSuccess,
			Message:        "a charge for this offer is already in flight",
		}, nil
	}

	// The slot is ours; from here every exit either completes or releases it

	// Step 6: load campaign and instrument
	campaign, err := s.campaignRepo.GetByID(ctx, req.CampaignID)
	if err != nil {
		s.release(ctx, key, req.CampaignID, holder)
		return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to load campaign")
	}

	var instrument *model.PaymentInstrument
	if campaign != nil {
		instrument, err = s.instrumentRepo.GetByRef(ctx, campaign.InstrumentRef)
		if err != nil {
			s.release(ctx, key, req.CampaignID, holder)
			return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to load instrument")
		}
	}

	offer := s.offerSnapshot(&req.Offer)

	// Step 7: deterministic authorization
	if rejection := Authorize(campaign, instrument, offer, time.Now()); rejection != nil {
		result := s.rejectResult(key, rejection)
		s.complete(ctx, key, req.CampaignID, holder, result)
		log.WithFields(map[string]interface{}{
			"campaign_id": req.CampaignID,
			"code":        int(rejection.Code),
			"reason":      rejection.Message,
		}).Info("Charge rejected before provider contact")
		return result, nil
	}

	// Step 8: charge through the gateway
	chargeReq := &payment.ChargeRequest{
		IdempotencyKey: key,
		Amount:         offer.Price,
		Currency:       offer.Currency,
		CustomerRef:    instrument.CustomerRef,
		InstrumentRef:  instrument.InstrumentRef,
		Description:    fmt.Sprintf("auto-booking %s %s", offer.Airline, offer.FlightNumber),
		Metadata: map[string]string{
			"campaign_id": fmt.Sprintf("%d", campaign.ID),
			"offer_id":    offer.OfferID,
		},
	}

	intentResult, err := s.gateway.Charge(ctx, chargeReq)
	if err != nil {
		// The slot is released without caching so a later attempt can
		// retry once the provider recovers
		s.release(ctx, key, req.CampaignID, holder)

		if payment.IsInvalid(err) {
			return nil, utils.WrapError(err, utils.CodeInternalError, "charge request malformed")
		}

		log.WithFields(map[string]interface{}{
			"campaign_id": req.CampaignID,
			"error":       err.Error(),
		}).Error("All payment providers unavailable")
		return &ChargeResult{
			Status:         StatusProviderUnavailable,
			IdempotencyKey: key,
			Code:           utils.CodeProviderUnavailable,
			Message:        "payment providers unavailable, the attempt was not resolved",
		}, nil
	}

	// Step 9: persist the outcome
	result, err := s.recordOutcome(ctx, key, campaign, offer, req.Traveler, intentResult)
	if err != nil {
		s.release(ctx, key, req.CampaignID, holder)
		return nil, err
	}

	// Step 10: cache the terminal result
	s.complete(ctx, key, req.CampaignID, holder, result)

	log.WithFields(map[string]interface{}{
		"campaign_id": req.CampaignID,
		"status":      result.Status,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Charge request processed")

	return result, nil
}

// recordOutcome writes the provider outcome durably and, for captures,
// creates the fulfillment record and publishes its trigger.
func (s *chargeService) recordOutcome(ctx context.Context, key string, campaign *model.Campaign, offer *model.FlightOfferSnapshot, traveler *TravelerData, intentResult *payment.IntentResult) (*ChargeResult, error) {
	intent := &model.PaymentIntent{
		IntentRef:      intentResult.IntentRef,
		Provider:       intentResult.Provider,
		CampaignID:     campaign.ID,
		Amount:         offer.Price,
		Currency:       offer.Currency,
		Status:         intentResult.Status,
		IdempotencyKey: key,
		NextAction:     intentResult.NextAction,
	}
	if intentResult.FailureCode != "" {
		failureCode := intentResult.FailureCode
		intent.FailureCode = &failureCode
	}

	switch intentResult.Status {
	case model.IntentStatusSucceeded:
		return s.recordCapture(ctx, key, campaign, offer, traveler, intent)

	case model.IntentStatusRequiresAction:
		if err := s.intentRepo.Create(ctx, intent); err != nil {
			return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to record challenge intent")
		}
		return &ChargeResult{
			Status:         StatusChallengeRequired,
			IdempotencyKey: key,
			IntentRef:      intent.IntentRef,
			Code:           utils.CodeChallengeRequired,
			Message:        "issuer requires customer authentication; no booking was made",
			NextAction:     intentResult.NextAction,
		}, nil

	default:
		if err := s.intentRepo.Create(ctx, intent); err != nil {
			return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to record declined intent")
		}
		return &ChargeResult{
			Status:         StatusDeclined,
			IdempotencyKey: key,
			IntentRef:      intent.IntentRef,
			Code:           utils.CodePaymentDeclined,
			Message:        fmt.Sprintf("payment declined: %s", intentResult.FailureCode),
		}, nil
	}
}

// recordCapture lands the intent and booking request in one transaction,
// then publishes the fulfillment trigger fire-and-forget.
func (s *chargeService) recordCapture(ctx context.Context, key string, campaign *model.Campaign, offer *model.FlightOfferSnapshot, traveler *TravelerData, intent *model.PaymentIntent) (*ChargeResult, error) {
	offerData, err := json.Marshal(offer)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "failed to encode offer snapshot")
	}

	var travelerData []byte
	if traveler != nil {
		travelerData, _ = json.Marshal(traveler)
	}

	request := &model.BookingRequest{
		ID:               uint64(s.idGen.NextID()),
		CampaignID:       campaign.ID,
		OfferSnapshot:    offerData,
		TravelerSnapshot: travelerData,
		Status:           model.BookingRequestStatusPending,
	}

	if err := s.requestRepo.CreateWithIntent(ctx, request, intent); err != nil {
		// Funds are captured but the fulfillment record is gone. Refund
		// immediately; eating the money silently is the one unacceptable
		// outcome.
		log.WithFields(map[string]interface{}{
			"campaign_id": campaign.ID,
			"intent_ref":  intent.IntentRef,
			"error":       err.Error(),
		}).Error("Captured charge could not be recorded, refunding")

		refundErr := s.gateway.Refund(ctx, intent.Provider, &payment.RefundRequest{
			IntentRef:      intent.IntentRef,
			IdempotencyKey: "refund:" + key,
			Reason:         "booking record write failed",
		})
		if refundErr != nil {
			log.WithFields(map[string]interface{}{
				"intent_ref": intent.IntentRef,
				"error":      refundErr.Error(),
			}).Error("Compensating refund failed, manual intervention required")
		}

		return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to record captured charge")
	}

	// Fire-and-forget: a publish failure is fine, the sweeper republishes
	// stale pending requests
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
		}).Warn("Failed to publish fulfillment message, sweeper will recover")
	}

	return &ChargeResult{
		Status:           StatusCaptured,
		IdempotencyKey:   key,
		IntentRef:        intent.IntentRef,
		BookingRequestID: request.ID,
		Code:             utils.CodeSuccess,
		Message:          "charge captured, booking in progress",
	}, nil
}

// QueryChargeResult returns the recorded outcome for a campaign/offer pair
func (s *chargeService) QueryChargeResult(ctx context.Context, campaignID uint64, offerID string) (*ChargeResult, error) {
	key := IdempotencyKey(campaignID, offerID)

	if cached, err := s.localCache.Get(key); err == nil {
		var result ChargeResult
		if json.Unmarshal(cached, &result) == nil {
			return &result, nil
		}
	}

	if cached, err := s.scripts.GetResult(ctx, key); err == nil && cached != "" {
		var result ChargeResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			s.cacheLocal(key, &result)
			return &result, nil
		}
	}

	// Fall through to the durable record
	intent, err := s.intentRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeDatabaseError, "failed to query intent")
	}
	if intent == nil {
		return nil, nil
	}

	result := &ChargeResult{
		IdempotencyKey: key,
		IntentRef:      intent.IntentRef,
	}

	switch intent.Status {
	case model.IntentStatusSucceeded:
		result.Status = StatusCaptured
		result.Code = utils.CodeSuccess
		if request, err := s.requestRepo.GetByIntentRef(ctx, intent.IntentRef); err == nil && request != nil {
			result.BookingRequestID = request.ID
		}
	case model.IntentStatusRequiresAction:
		result.Status = StatusChallengeRequired
		result.Code = utils.CodeChallengeRequired
		result.NextAction = intent.NextAction
	default:
		result.Status = StatusDeclined
		result.Code = utils.CodePaymentDeclined
		if intent.FailureCode != nil {
			result.Message = fmt.Sprintf("payment declined: %s", *intent.FailureCode)
		}
	}

	return result, nil
}

// PrewarmCampaignFilter rebuilds the existence filter from the database
func (s *chargeService) PrewarmCampaignFilter(ctx context.Context) error {
	ids, err := s.campaignRepo.ListActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active campaigns: %w", err)
	}

	if err := s.filter.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear campaign filter: %w", err)
	}

	for _, id := range ids {
		if err := s.filter.Add(ctx, campaignFilterKey(id)); err != nil {
			return fmt.Errorf("failed to add campaign %d to filter: %w", id, err)
		}
	}

	log.Infof("Campaign filter prewarmed with %d active campaigns", len(ids))
	return nil
}

// TrackCampaign adds a campaign to the existence filter
func (s *chargeService) TrackCampaign(ctx context.Context, campaignID uint64) error {
	return s.filter.Add(ctx, campaignFilterKey(campaignID))
}

// UntrackCampaign removes a campaign from the existence filter
func (s *chargeService) UntrackCampaign(ctx context.Context, campaignID uint64) error {
	return s.filter.Remove(ctx, campaignFilterKey(campaignID))
}

func (s *chargeService) offerSnapshot(payload *OfferPayload) *model.FlightOfferSnapshot {
	return &model.FlightOfferSnapshot{
		OfferID:       payload.OfferID,
		Price:         PriceToMinorUnits(payload.Price, payload.Currency),
		Currency:      payload.Currency,
		Airline:       payload.Airline,
		FlightNumber:  payload.FlightNumber,
		Route:         payload.Route,
		DepartureDate: payload.DepartureDate,
		ReturnDate:    payload.ReturnDate,
	}
}

func (s *chargeService) rejectResult(key string, rejection *Rejection) *ChargeResult {
	return &ChargeResult{
		Status:         StatusRejected,
		IdempotencyKey: key,
		Code:           rejection.Code,
		Message:        rejection.Message,
	}
}

// complete caches a terminal result in Redis and locally
func (s *chargeService) complete(ctx context.Context, key string, campaignID uint64, holder string, result *ChargeResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}

	if err := s.scripts.Complete(ctx, key, holder, string(data), 24*time.Hour); err != nil {
		log.WithFields(map[string]interface{}{
			"campaign_id": campaignID,
			"error":       err.Error(),
		}).Warn("Failed to cache charge result in redis")
	}
	s.cacheLocal(key, result)
}

func (s *chargeService) release(ctx context.Context, key string, campaignID uint64, holder string) {
	if err := s.scripts.Release(ctx, key, holder); err != nil {
		log.WithFields(map[string]interface{}{
			"campaign_id": campaignID,
			"error":       err.Error(),
		}).Warn("Failed to release charge slot")
	}
}

func (s *chargeService) cacheLocal(key string, result *ChargeResult) {
	if data, err := json.Marshal(result); err == nil {
		s.localCache.Set(key, data)
	}
}

func campaignFilterKey(campaignID uint64) string {
	return fmt.Sprintf("campaign:%d", campaignID)
}
