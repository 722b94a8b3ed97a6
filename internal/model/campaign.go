package model

import (
	"time"
)

// Campaign standing authorization to auto-purchase a matching flight offer.
// Campaigns are created by users; the orchestrator only reads them.
type Campaign struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint64    `gorm:"type:bigint unsigned;not null;index" json:"user_id"`
	TripID        uint64    `gorm:"type:bigint unsigned;not null;index" json:"trip_id"`
	MaxPrice      int64     `gorm:"type:bigint;not null" json:"max_price"` // budget ceiling in minor units
	Currency      string    `gorm:"type:varchar(3);not null" json:"currency"`
	InstrumentRef string    `gorm:"type:varchar(64);not null" json:"instrument_ref"`
	Status        string    `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	CreatedAt     time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (Campaign) TableName() string {
	return "campaigns"
}

// Campaign status const
const (
	CampaignStatusActive    = "active"
	CampaignStatusCancelled = "cancelled"
)

// IsActive check campaign is active
func (c *Campaign) IsActive() bool {
	return c.Status == CampaignStatusActive
}

// MaxPriceDecimal get budget ceiling in major units
func (c *Campaign) MaxPriceDecimal() float64 {
	return float64(c.MaxPrice) / 100
}
