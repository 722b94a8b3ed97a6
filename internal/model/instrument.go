package model

import (
	"time"
)

// PaymentInstrument stored payment method reference. Tokenization happens
// upstream; only opaque provider refs and display data live here.
type PaymentInstrument struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64    `gorm:"type:bigint unsigned;not null;index" json:"user_id"`
	CustomerRef   string    `gorm:"type:varchar(64);not null" json:"customer_ref"`
	InstrumentRef string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"instrument_ref"`
	Brand         string    `gorm:"type:varchar(20)" json:"brand"`
	Last4         string    `gorm:"type:varchar(4)" json:"last4"`
	ExpiryMonth   int       `gorm:"type:tinyint;not null" json:"expiry_month"`
	ExpiryYear    int       `gorm:"type:smallint;not null" json:"expiry_year"`
	CreatedAt     time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (PaymentInstrument) TableName() string {
	return "payment_instruments"
}

// ExpiresBefore check instrument expiry precedes the given (year, month).
// An instrument expiring in the current month is still usable.
func (i *PaymentInstrument) ExpiresBefore(year int, month time.Month) bool {
	if i.ExpiryYear != year {
		return i.ExpiryYear < year
	}
	return i.ExpiryMonth < int(month)
}
