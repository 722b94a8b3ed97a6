package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"autobook/internal/model"
)

// InstrumentRepository payment instrument repository interface
type InstrumentRepository interface {
	// Create instrument
	Create(ctx context.Context, instrument *model.PaymentInstrument) error

	// Get instrument by provider ref, nil when unknown
	GetByRef(ctx context.Context, instrumentRef string) (*model.PaymentInstrument, error)

	// List instruments for a user
	ListByUser(ctx context.Context, userID uint64) ([]*model.PaymentInstrument, error)

	// Delete instrument by provider ref
	DeleteByRef(ctx context.Context, instrumentRef string) error
}

// instrumentRepository payment instrument repository implementation
type instrumentRepository struct {
	db *gorm.DB
}

// NewInstrumentRepository creates an instrument repository
func NewInstrumentRepository(db *gorm.DB) InstrumentRepository {
	return &instrumentRepository{db: db}
}

// Create creates an instrument
func (r *instrumentRepository) Create(ctx context.Context, instrument *model.PaymentInstrument) error {
	return r.db.WithContext(ctx).Create(instrument).Error
}

// GetByRef gets an instrument by provider ref
func (r *instrumentRepository) GetByRef(ctx context.Context, instrumentRef string) (*model.PaymentInstrument, error) {
	var instrument model.PaymentInstrument
	err := r.db.WithContext(ctx).
		Where("instrument_ref = ?", instrumentRef).
		First(&instrument).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // A vanished instrument is a charge rejection, not an error
		}
		return nil, err
	}
	return &instrument, nil
}

// ListByUser lists instruments for a user
func (r *instrumentRepository) ListByUser(ctx context.Context, userID uint64) ([]*model.PaymentInstrument, error) {
	var instruments []*model.PaymentInstrument
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&instruments).Error

	return instruments, err
}

// DeleteByRef deletes an instrument by provider ref
func (r *instrumentRepository) DeleteByRef(ctx context.Context, instrumentRef string) error {
	return r.db.WithContext(ctx).
		Where("instrument_ref = ?", instrumentRef).
		Delete(&model.PaymentInstrument{}).Error
}
