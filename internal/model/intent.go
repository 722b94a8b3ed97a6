package model

import (
	"time"
)

// PaymentIntent record of a charge attempt against a provider. Created only
// by the payment gateway path; immutable once terminal.
type PaymentIntent struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	IntentRef      string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"intent_ref"` // provider-side intent id
	Provider       string     `gorm:"type:varchar(16);not null" json:"provider"`
	CampaignID     uint64     `gorm:"type:bigint unsigned;not null;index" json:"campaign_id"`
	Amount         int64      `gorm:"type:bigint;not null" json:"amount"` // minor units
	Currency       string     `gorm:"type:varchar(3);not null" json:"currency"`
	Status         string     `gorm:"type:varchar(20);not null;index" json:"status"`
	IdempotencyKey string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"idempotency_key"`
	FailureCode    *string    `gorm:"type:varchar(64)" json:"failure_code,omitempty"`
	NextAction     []byte     `gorm:"type:text" json:"-"` // raw challenge payload when requires_action
	RefundedAt     *time.Time `gorm:"type:timestamp" json:"refunded_at,omitempty"`
	CreatedAt      time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (PaymentIntent) TableName() string {
	return "payment_intents"
}

// Provider name const
const (
	ProviderPrimary   = "stripe"
	ProviderSecondary = "adyen"
)

// Canonical intent status const
const (
	IntentStatusSucceeded      = "succeeded"
	IntentStatusRequiresAction = "requires_action"
	IntentStatusFailed         = "failed"
)

// IsSucceeded check intent captured funds
func (p *PaymentIntent) IsSucceeded() bool {
	return p.Status == IntentStatusSucceeded
}

// IsTerminal check intent reached a final state
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status == IntentStatusSucceeded || p.Status == IntentStatusFailed
}
