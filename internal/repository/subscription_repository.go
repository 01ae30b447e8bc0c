package repository

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/upscpath/payments-backend/internal/models"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{
		db: db,
	}
}

// Upsert creates or replaces the user's subscription state, keyed on user_id
// so a user never holds more than one subscription row. The credit balance
// column is deliberately not in the update set: only the ledger touches it.
func (r *SubscriptionRepository) Upsert(sub *models.Subscription) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"plan_type":            sub.PlanType,
			"status":               sub.Status,
			"monthly_credits":      sub.MonthlyCredits,
			"started_at":           sub.StartedAt,
			"expires_at":           sub.ExpiresAt,
			"cancelled_at":         nil,
			"dodo_subscription_id": sub.DodoSubscriptionID,
			"dodo_customer_id":     sub.DodoCustomerID,
			"updated_at":           time.Now(),
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID and balance are populated after the upsert.
	return r.db.Where("user_id = ?", sub.UserID).First(sub).Error
}

func (r *SubscriptionRepository) GetByDodoSubscriptionID(dodoSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("dodo_subscription_id = ?", dodoSubscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// ExtendExpiry moves the expiry window forward on renewal. Status is left
// untouched so a renewal can never reactivate a cancelled subscription.
func (r *SubscriptionRepository) ExtendExpiry(id uint, expiresAt time.Time) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ?", id).
		Update("expires_at", expiresAt).Error
}

// MarkCancelled soft-cancels the subscription. Credits are retained.
func (r *SubscriptionRepository) MarkCancelled(id uint, cancelledAt time.Time) error {
	return r.db.Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.SubscriptionStatusCancelled,
			"cancelled_at": cancelledAt,
		}).Error
}
