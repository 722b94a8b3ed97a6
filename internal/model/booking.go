package model

import (
	"encoding/json"
	"time"
)

// BookingRequest durable record of a captured charge awaiting fulfillment.
// Created exactly once per successful charge. Status only moves forward,
// except for the bounded processing -> pending_booking requeue; done and
// failed are terminal and only the fulfillment step writes them.
type BookingRequest struct {
	ID               uint64    `gorm:"primaryKey" json:"id"` // snowflake, assigned by the orchestrator
	CampaignID       uint64    `gorm:"type:bigint unsigned;not null;index" json:"campaign_id"`
	PaymentIntentRef string    `gorm:"type:varchar(64);not null;index" json:"payment_intent_ref"`
	OfferSnapshot    []byte    `gorm:"type:text;not null" json:"-"`
	TravelerSnapshot []byte    `gorm:"type:text" json:"-"`
	Status           int8      `gorm:"type:tinyint;not null;default:1;index" json:"status"`
	Attempts         int       `gorm:"type:int;not null;default:0" json:"attempts"`
	ErrorMessage     *string   `gorm:"type:varchar(500)" json:"error_message,omitempty"`
	CreatedAt        time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (BookingRequest) TableName() string {
	return "booking_requests"
}

// BookingRequest status const
const (
	BookingRequestStatusPending    = 1 // pending_booking
	BookingRequestStatusProcessing = 2
	BookingRequestStatusDone       = 3
	BookingRequestStatusFailed     = 4
)

// IsPending check request awaits a fulfillment worker
func (r *BookingRequest) IsPending() bool {
	return r.Status == BookingRequestStatusPending
}

// IsTerminal check request reached done or failed
func (r *BookingRequest) IsTerminal() bool {
	return r.Status == BookingRequestStatusDone || r.Status == BookingRequestStatusFailed
}

// Offer decode the offer snapshot
func (r *BookingRequest) Offer() (*FlightOfferSnapshot, error) {
	var offer FlightOfferSnapshot
	if err := json.Unmarshal(r.OfferSnapshot, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

// Traveler decode the traveler snapshot
func (r *BookingRequest) Traveler() (*TravelerSnapshot, error) {
	if len(r.TravelerSnapshot) == 0 {
		return &TravelerSnapshot{}, nil
	}
	var traveler TravelerSnapshot
	if err := json.Unmarshal(r.TravelerSnapshot, &traveler); err != nil {
		return nil, err
	}
	return &traveler, nil
}

// Booking confirmed airline booking. Created exactly once, only on a done
// transition of its BookingRequest.
type Booking struct {
	ID               uint64    `gorm:"primaryKey" json:"id"`
	BookingRequestID uint64    `gorm:"type:bigint unsigned;not null;uniqueIndex" json:"booking_request_id"`
	TripID           uint64    `gorm:"type:bigint unsigned;not null;index" json:"trip_id"`
	UserID           uint64    `gorm:"type:bigint unsigned;not null;index" json:"user_id"`
	Source           string    `gorm:"type:varchar(10);not null;default:'auto'" json:"source"`
	Status           string    `gorm:"type:varchar(20);not null;default:'booked'" json:"status"`
	Price            int64     `gorm:"type:bigint;not null" json:"price"` // captured price, minor units
	Currency         string    `gorm:"type:varchar(3);not null" json:"currency"`
	ConfirmationCode string    `gorm:"type:varchar(32)" json:"confirmation_code"`
	FlightDetails    []byte    `gorm:"type:text" json:"-"`
	CreatedAt        time.Time `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName set name
func (Booking) TableName() string {
	return "bookings"
}

// Booking source const
const (
	BookingSourceAuto   = "auto"
	BookingSourceManual = "manual"
)

// PriceDecimal get captured price in major units
func (b *Booking) PriceDecimal() float64 {
	return float64(b.Price) / 100
}
