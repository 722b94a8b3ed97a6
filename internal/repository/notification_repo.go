package repository

import (
	"context"

	"gorm.io/gorm"

	"autobook/internal/model"
)

// NotificationRepository notification repository interface
type NotificationRepository interface {
	// Create notification
	Create(ctx context.Context, notification *model.Notification) error

	// List notifications for a user
	ListByUser(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Notification, int64, error)

	// List notifications for a trip, scoped to its owner
	ListByTrip(ctx context.Context, tripID, userID uint64) ([]*model.Notification, error)

	// Mark notification read
	MarkRead(ctx context.Context, id, userID uint64) error
}

// notificationRepository notification repository implementation
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create creates a notification
func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// ListByUser lists notifications for a user
func (r *notificationRepository) ListByUser(ctx context.Context, userID uint64, page, pageSize int) ([]*model.Notification, int64, error) {
	var notifications []*model.Notification
	var total int64

	offset := (page - 1) * pageSize

	db := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_id = ?", userID)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&notifications).Error

	return notifications, total, err
}

// ListByTrip lists notifications for a trip, scoped to its owner
func (r *notificationRepository) ListByTrip(ctx context.Context, tripID, userID uint64) ([]*model.Notification, error) {
	var notifications []*model.Notification
	err := r.db.WithContext(ctx).
		Where("trip_id = ? AND user_id = ?", tripID, userID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

// MarkRead marks a notification read
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uint64) error {
	return r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true).Error
}
