package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"autobook/internal/model"
)

// BookingRepository booking repository interface
type BookingRepository interface {
	// Create booking and mark its request done in one transaction
	CreateWithDone(ctx context.Context, booking *model.Booking) (bool, error)

	// Get booking by ID
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)

	// Get booking by booking request ID (nil when not yet booked)
	GetByBookingRequestID(ctx context.Context, requestID uint64) (*model.Booking, error)

	// List bookings for a user
	ListUserBookings(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Booking, int64, error)

	// List bookings for a trip
	ListByTrip(ctx context.Context, tripID uint64) ([]*model.Booking, error)
}

// bookingRepository booking repository implementation
type bookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository creates a booking repository
func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

// CreateWithDone creates the booking and moves its request from processing
// to done in one transaction. The conditional status update loses to a
// concurrent worker, in which case nothing is written and false is returned.
func (r *bookingRepository) CreateWithDone(ctx context.Context, booking *model.Booking) (bool, error) {
	claimed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.BookingRequest{}).
			Where("id = ? AND status = ?", booking.BookingRequestID, model.BookingRequestStatusProcessing).
			Update("status", model.BookingRequestStatusDone)

		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return nil
		}

		if err := tx.Create(booking).Error; err != nil {
			return err
		}

		claimed = true
		return nil
	})

	return claimed, err
}

// GetByID gets a booking by ID
func (r *bookingRepository) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("booking not found")
		}
		return nil, err
	}
	return &booking, nil
}

// GetByBookingRequestID gets a booking by its booking request ID
func (r *bookingRepository) GetByBookingRequestID(ctx context.Context, requestID uint64) (*model.Booking, error) {
	var booking model.Booking
	err := r.db.WithContext(ctx).
		Where("booking_request_id = ?", requestID).
		First(&booking).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // Return nil for not found (not an error for idempotency check)
		}
		return nil, err
	}
	return &booking, nil
}

// ListUserBookings lists bookings for a user
func (r *bookingRepository) ListUserBookings(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Booking, int64, error) {
	var bookings []*model.Booking
	var total int64

	offset := (page - 1) * pageSize

	db := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("user_id = ?", userID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&bookings).Error

	return bookings, total, err
}

// ListByTrip lists bookings for a trip
func (r *bookingRepository) ListByTrip(ctx context.Context, tripID uint64) ([]*model.Booking, error) {
	var bookings []*model.Booking
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("created_at DESC").
		Find(&bookings).Error

	return bookings, err
}
