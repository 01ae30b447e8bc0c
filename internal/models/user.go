package models

import (
	"time"
)

// User is a read-only projection of the account table. Account creation and
// authentication live in the app backend; this service only resolves webhook
// customer emails to internal user IDs.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email" gorm:"unique;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UnknownUserID is recorded on payment-history rows when the customer email
// could not be resolved, so failed-payment analytics are never dropped.
const UnknownUserID uint = 0
