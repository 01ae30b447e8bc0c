package models

import "time"

const (
	PlanBasic = "basic"
	PlanPro   = "pro"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
	SubscriptionStatusExpired   = "expired"

	// SubscriptionStatusNone marks a carrier row created by the credit ledger
	// for a user who bought credits before ever subscribing. A later
	// subscription.created event upgrades the row in place.
	SubscriptionStatusNone = "none"
)

// Subscription holds the one-per-user subscription state and the authoritative
// credit balance. The balance column is only ever changed through the ledger's
// atomic add-credits operation, never by a read-modify-write.
type Subscription struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	UserID             uint       `json:"user_id" gorm:"uniqueIndex;not null"`
	PlanType           string     `json:"plan_type"`
	Status             string     `json:"status" gorm:"not null;default:'none';index"`
	MonthlyCredits     int        `json:"monthly_credits"`
	CurrentCredits     int        `json:"current_credits" gorm:"not null;default:0"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	DodoSubscriptionID string     `json:"dodo_subscription_id" gorm:"index"`
	DodoCustomerID     string     `json:"dodo_customer_id"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
