package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"autobook/internal/model"
)

// TripRepository trip repository interface
type TripRepository interface {
	// Create trip
	Create(ctx context.Context, trip *model.Trip) error

	// Get trip by ID
	GetByID(ctx context.Context, id uint64) (*model.Trip, error)

	// List trips for a user
	ListByUser(ctx context.Context, userID uint64) ([]*model.Trip, error)

	// Lower best price if the new price beats the current one
	LowerBestPrice(ctx context.Context, id uint64, price int64) (bool, error)
}

// tripRepository trip repository implementation
type tripRepository struct {
	db *gorm.DB
}

// NewTripRepository creates a trip repository
func NewTripRepository(db *gorm.DB) TripRepository {
	return &tripRepository{db: db}
}

// Create creates a trip
func (r *tripRepository) Create(ctx context.Context, trip *model.Trip) error {
	return r.db.WithContext(ctx).Create(trip).Error
}

// GetByID gets a trip by ID
func (r *tripRepository) GetByID(ctx context.Context, id uint64) (*model.Trip, error) {
	var trip model.Trip
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&trip).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("trip not found")
		}
		return nil, err
	}
	return &trip, nil
}

// ListByUser lists trips for a user
func (r *tripRepository) ListByUser(ctx context.Context, userID uint64) ([]*model.Trip, error) {
	var trips []*model.Trip
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&trips).Error

	return trips, err
}

// LowerBestPrice lowers the trip best price when the new price is strictly
// better. The condition runs in SQL so concurrent bookings cannot race the
// price upward.
func (r *tripRepository) LowerBestPrice(ctx context.Context, id uint64, price int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Trip{}).
		Where("id = ? AND (best_price IS NULL OR best_price > ?)", id, price).
		Update("best_price", price)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
