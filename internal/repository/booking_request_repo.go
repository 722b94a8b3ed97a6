package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"autobook/internal/model"
)

// BookingRequestRepository booking request repository interface
type BookingRequestRepository interface {
	// Create booking request and its payment intent in one transaction
	CreateWithIntent(ctx context.Context, request *model.BookingRequest, intent *model.PaymentIntent) error

	// Get booking request by ID
	GetByID(ctx context.Context, id uint64) (*model.BookingRequest, error)

	// Get booking request by payment intent ref (nil when no prior charge)
	GetByIntentRef(ctx context.Context, intentRef string) (*model.BookingRequest, error)

	// Claim request for processing (pending_booking -> processing, attempts+1)
	ClaimForProcessing(ctx context.Context, id uint64) (bool, error)

	// Requeue request after a transient failure (processing -> pending_booking)
	Requeue(ctx context.Context, id uint64, errMsg string) error

	// Mark request done (processing -> done)
	MarkDone(ctx context.Context, id uint64) (bool, error)

	// Mark request failed (processing -> failed)
	MarkFailed(ctx context.Context, id uint64, errMsg string) (bool, error)

	// List pending requests not touched since the given time
	ListStalePending(ctx context.Context, staleBefore time.Time, limit int) ([]*model.BookingRequest, error)

	// List requests for a campaign
	ListByCampaign(ctx context.Context, campaignID uint64) ([]*model.BookingRequest, error)
}

// bookingRequestRepository booking request repository implementation
type bookingRequestRepository struct {
	db *gorm.DB
}

// NewBookingRequestRepository creates a booking request repository
func NewBookingRequestRepository(db *gorm.DB) BookingRequestRepository {
	return &bookingRequestRepository{db: db}
}

// CreateWithIntent creates the booking request and the captured payment
// intent record in one transaction. Either both land or neither does, so a
// captured charge can never exist without its fulfillment record.
func (r *bookingRequestRepository) CreateWithIntent(ctx context.Context, request *model.BookingRequest, intent *model.PaymentIntent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(intent).Error; err != nil {
			return err
		}

		request.PaymentIntentRef = intent.IntentRef
		if err := tx.Create(request).Error; err != nil {
			return err
		}

		return nil
	})
}

// GetByID gets a booking request by ID
func (r *bookingRequestRepository) GetByID(ctx context.Context, id uint64) (*model.BookingRequest, error) {
	var request model.BookingRequest
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("booking request not found")
		}
		return nil, err
	}
	return &request, nil
}

// GetByIntentRef gets a booking request by payment intent ref
func (r *bookingRequestRepository) GetByIntentRef(ctx context.Context, intentRef string) (*model.BookingRequest, error) {
	var request model.BookingRequest
	err := r.db.WithContext(ctx).
		Where("payment_intent_ref = ?", intentRef).
		First(&request).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Return nil for not found (not an error for idempotency check)
		}
		return nil, err
	}
	return &request, nil
}

// ClaimForProcessing atomically claims a pending request. Duplicate queue
// deliveries lose the conditional update and see false.
func (r *bookingRequestRepository) ClaimForProcessing(ctx context.Context, id uint64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.BookingRequest{}).
		Where("id = ? AND status = ?", id, model.BookingRequestStatusPending).
		Updates(map[string]interface{}{
			"status":   model.BookingRequestStatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Requeue returns a processing request to pending_booking after a
// transient booking failure.
func (r *bookingRequestRepository) Requeue(ctx context.Context, id uint64, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&model.BookingRequest{}).
		Where("id = ? AND status = ?", id, model.BookingRequestStatusProcessing).
		Updates(map[string]interface{}{
			"status":        model.BookingRequestStatusPending,
			"error_message": errMsg,
		}).Error
}

// MarkDone marks a processing request done
func (r *bookingRequestRepository) MarkDone(ctx context.Context, id uint64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.BookingRequest{}).
		Where("id = ? AND status = ?", id, model.BookingRequestStatusProcessing).
		Update("status", model.BookingRequestStatusDone)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFailed marks a processing request failed
func (r *bookingRequestRepository) MarkFailed(ctx context.Context, id uint64, errMsg string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.BookingRequest{}).
		Where("id = ? AND status = ?", id, model.BookingRequestStatusProcessing).
		Updates(map[string]interface{}{
			"status":        model.BookingRequestStatusFailed,
			"error_message": errMsg,
		})

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListStalePending lists pending requests whose last update is older than
// staleBefore, for the sweeper to republish.
func (r *bookingRequestRepository) ListStalePending(ctx context.Context, staleBefore time.Time, limit int) ([]*model.BookingRequest, error) {
	var requests []*model.BookingRequest

	err := r.db.WithContext(ctx).
		Where("status = ?", model.BookingRequestStatusPending).
		Where("updated_at < ?", staleBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&requests).Error

	return requests, err
}

// ListByCampaign lists booking requests for a campaign
func (r *bookingRequestRepository) ListByCampaign(ctx context.Context, campaignID uint64) ([]*model.BookingRequest, error) {
	var requests []*model.BookingRequest
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&requests).Error

	return requests, err
}
