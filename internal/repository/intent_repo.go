package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"autobook/internal/model"
)

// IntentRepository payment intent repository interface
type IntentRepository interface {
	// Create intent record
	Create(ctx context.Context, intent *model.PaymentIntent) error

	// Get intent by idempotency key (nil when no prior attempt)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.PaymentIntent, error)

	// Get intent by provider ref
	GetByRef(ctx context.Context, intentRef string) (*model.PaymentIntent, error)

	// Update intent status and failure code
	UpdateStatus(ctx context.Context, intentRef, status string, failureCode *string) error

	// Mark intent refunded
	MarkRefunded(ctx context.Context, intentRef string) error

	// List intents for a campaign
	ListByCampaign(ctx context.Context, campaignID uint64) ([]*model.PaymentIntent, error)
}

// intentRepository payment intent repository implementation
type intentRepository struct {
	db *gorm.DB
}

// NewIntentRepository creates an intent repository
func NewIntentRepository(db *gorm.DB) IntentRepository {
	return &intentRepository{db: db}
}

// Create creates an intent record
func (r *intentRepository) Create(ctx context.Context, intent *model.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

// GetByIdempotencyKey gets an intent by idempotency key (for replay detection)
func (r *intentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.PaymentIntent, error) {
	var intent model.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&intent).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Return nil for not found (not an error for idempotency check)
		}
		return nil, err
	}
	return &intent, nil
}

// GetByRef gets an intent by provider ref
func (r *intentRepository) GetByRef(ctx context.Context, intentRef string) (*model.PaymentIntent, error) {
	var intent model.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("intent_ref = ?", intentRef).
		First(&intent).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("payment intent not found")
		}
		return nil, err
	}
	return &intent, nil
}

// UpdateStatus updates intent status and failure code
func (r *intentRepository) UpdateStatus(ctx context.Context, intentRef, status string, failureCode *string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if failureCode != nil {
		updates["failure_code"] = failureCode
	}

	return r.db.WithContext(ctx).
		Model(&model.PaymentIntent{}).
		Where("intent_ref = ?", intentRef).
		Updates(updates).Error
}

// MarkRefunded marks an intent refunded
func (r *intentRepository) MarkRefunded(ctx context.Context, intentRef string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.PaymentIntent{}).
		Where("intent_ref = ?", intentRef).
		Update("refunded_at", &now).Error
}

// ListByCampaign lists intents for a campaign
func (r *intentRepository) ListByCampaign(ctx context.Context, campaignID uint64) ([]*model.PaymentIntent, error) {
	var intents []*model.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC").
		Find(&intents).Error

	return intents, err
}
