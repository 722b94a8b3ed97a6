package model

import (
	"time"
)

// Trip user-visible trip aggregate. The fulfillment step lowers BestPrice
// whenever a confirmed booking beats the previous best.
type Trip struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64    `gorm:"type:bigint unsigned;not null;index" json:"user_id"`
	Origin      string    `gorm:"type:varchar(8);not null" json:"origin"`
	Destination string    `gorm:"type:varchar(8);not null" json:"destination"`
	BestPrice   *int64    `gorm:"type:bigint" json:"best_price,omitempty"` // minor units, nil until first booking
	Currency    string    `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt   time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (Trip) TableName() string {
	return "trips"
}
