package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/upscpath/payments-backend/internal/models"
)

type PaymentHistoryRepository struct {
	db *gorm.DB
}

func NewPaymentHistoryRepository(db *gorm.DB) *PaymentHistoryRepository {
	return &PaymentHistoryRepository{
		db: db,
	}
}

// ExistsByPaymentID is the explicit idempotency pre-check run before any
// state is mutated for a payment-shaped event. Only completed rows count: a
// recorded failed attempt must not block the later successful payment that
// carries the same external id.
func (r *PaymentHistoryRepository) ExistsByPaymentID(dodoPaymentID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.PaymentHistory{}).
		Where("dodo_payment_id = ? AND status = ?", dodoPaymentID, models.PaymentStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

// CreateIfNotExists appends a payment-history row, relying on the unique
// index on (dodo_payment_id, status) to swallow duplicates. Returns whether
// the row was actually inserted; false means a duplicate delivery already
// recorded it.
func (r *PaymentHistoryRepository) CreateIfNotExists(history *models.PaymentHistory) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "dodo_payment_id"},
			{Name: "status"},
		},
		DoNothing: true,
	}).Create(history)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *PaymentHistoryRepository) GetUserHistory(userID uint) ([]models.PaymentHistory, error) {
	var history []models.PaymentHistory
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&history).Error
	return history, err
}
