package models

import "time"

const (
	TransactionTypePurchase           = "purchase"
	TransactionTypeSubscriptionCredit = "subscription_credit"
)

// CreditTransaction is the append-only ledger entry written alongside every
// balance change. Rows are never updated or deleted; they are the source of
// truth for reconciliation and support.
type CreditTransaction struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"user_id" gorm:"not null;index"`
	Amount        int       `json:"amount" gorm:"not null"`
	Type          string    `json:"type" gorm:"not null"`
	DodoPaymentID string    `json:"dodo_payment_id" gorm:"index"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}
