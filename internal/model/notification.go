package model

import (
	"time"
)

// Notification asynchronous message to the trip owner. Created exactly once
// per terminal BookingRequest outcome, plus operator alerts for failures
// that must never be silently dropped.
type Notification struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	TripID    uint64    `gorm:"type:bigint unsigned;not null;index" json:"trip_id"`
	UserID    uint64    `gorm:"type:bigint unsigned;not null;index" json:"user_id"`
	Type      string    `gorm:"type:varchar(32);not null;index" json:"type"`
	Message   string    `gorm:"type:varchar(500);not null" json:"message"`
	Data      []byte    `gorm:"type:text" json:"-"`
	Read      bool      `gorm:"type:tinyint(1);not null;default:0" json:"read"`
	CreatedAt time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName set name
func (Notification) TableName() string {
	return "notifications"
}

// Notification type const
const (
	NotificationTypeBookingSuccess = "auto_booking_success"
	NotificationTypeBookingFailed  = "auto_booking_failed"
	NotificationTypeOperatorAlert  = "operator_alert"
)
