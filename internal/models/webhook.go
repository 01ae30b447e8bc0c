package models

import "strings"

// Dodo Payments webhook event types handled by this service. Unlisted types
// are acknowledged and ignored so future provider events never pile up
// delivery retries.
const (
	EventSubscriptionActive    = "subscription.active"
	EventSubscriptionCreated   = "subscription.created"
	EventSubscriptionRenewed   = "subscription.renewed"
	EventSubscriptionCancelled = "subscription.cancelled"
	EventSubscriptionExpired   = "subscription.expired"
	EventPaymentSucceeded      = "payment.succeeded"
	EventPaymentCompleted      = "payment.completed"
	EventPaymentFailed         = "payment.failed"
)

// WebhookEvent is the inbound envelope: { "type": "...", "data": { ... } }.
type WebhookEvent struct {
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

type WebhookCustomer struct {
	Email string `json:"email"`
}

// WebhookEventData carries the union of fields the handled event types use.
type WebhookEventData struct {
	PaymentID      string          `json:"payment_id"`
	SubscriptionID string          `json:"subscription_id"`
	ProductID      string          `json:"product_id"`
	CustomerID     string          `json:"customer_id"`
	Customer       WebhookCustomer `json:"customer"`
	CustomerEmail  string          `json:"customer_email"`
	TotalAmount    float64         `json:"total_amount"`
	PaymentMethod  string          `json:"payment_method"`
	FailureReason  string          `json:"failure_reason"`
}

// Email returns the customer email, preferring the nested customer object
// over the flat field, normalized for case-insensitive lookups.
func (d *WebhookEventData) Email() string {
	email := d.Customer.Email
	if email == "" {
		email = d.CustomerEmail
	}
	return strings.ToLower(strings.TrimSpace(email))
}
