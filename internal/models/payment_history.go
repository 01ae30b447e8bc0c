package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PaymentTypeCredits      = "credits"
	PaymentTypeSubscription = "subscription"
)

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// PaymentHistory is the append-only audit record for every payment attempt.
// The unique index on (DodoPaymentID, Status) is the storage-level
// idempotency backstop behind the explicit pre-check: two concurrent
// deliveries of the same event can both pass the pre-check, but only one
// insert wins. Uniqueness is scoped per status so a recorded failed attempt
// never blocks the later successful payment with the same external id.
type PaymentHistory struct {
	ID               uint              `json:"id" gorm:"primaryKey"`
	UserID           uint              `json:"user_id" gorm:"index"`
	PaymentType      string            `json:"payment_type" gorm:"not null"`
	Amount           float64           `json:"amount"`
	Status           string            `json:"status" gorm:"not null;index;uniqueIndex:ux_payment_history_payment_status,priority:2"`
	DodoPaymentID    string            `json:"dodo_payment_id" gorm:"not null;uniqueIndex:ux_payment_history_payment_status,priority:1"`
	CreditsPurchased int               `json:"credits_purchased"`
	PlanType         string            `json:"plan_type"`
	PaymentMethod    string            `json:"payment_method"`
	Metadata         datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}
