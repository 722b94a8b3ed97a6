package model

import (
	"time"
)

// User traveler account
type User struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	FullName     string     `gorm:"type:varchar(100);not null" json:"full_name"`
	Phone        *string    `gorm:"type:varchar(20)" json:"phone,omitempty"`
	Status       int8       `gorm:"type:tinyint;not null;default:1;index" json:"status"`
	LastLoginAt  *time.Time `gorm:"type:timestamp" json:"last_login_at,omitempty"`
	LastLoginIP  *string    `gorm:"type:varchar(45)" json:"last_login_ip,omitempty"`
	CreatedAt    time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName set name
func (User) TableName() string {
	return "users"
}

// UserStatus user status const
const (
	UserStatusNormal   = 1
	UserStatusDisabled = 2
	UserStatusDeleted  = 3
)

// IsActive check if user is active
func (u *User) IsActive() bool {
	return u.Status == UserStatusNormal
}
