package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/upscpath/payments-backend/internal/models"
)

// errDuplicatePayment aborts the transaction when the payment-history insert
// loses the unique-index race to a concurrent duplicate delivery.
var errDuplicatePayment = errors.New("payment already recorded")

type CreditLedgerRepository struct {
	db *gorm.DB
}

func NewCreditLedgerRepository(db *gorm.DB) *CreditLedgerRepository {
	return &CreditLedgerRepository{
		db: db,
	}
}

// AddCredits applies a signed credit delta and appends the matching ledger
// entry in a single database transaction. The balance change is an in-place
// SQL increment, never a read-modify-write, so concurrent webhook deliveries
// for the same user cannot lose an update. Returns the new balance.
func (r *CreditLedgerRepository) AddCredits(userID uint, delta int, transactionType, dodoPaymentID, description string) (int, error) {
	var balance int

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = applyCredits(tx, userID, delta, transactionType, dodoPaymentID, description)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// AddCreditsWithHistory applies the credit delta and appends the payment
// history row in the same transaction. The history insert runs last, so when
// a concurrent duplicate delivery already committed the row the unique-index
// conflict rolls the whole credit back: applied is false and no balance,
// ledger, or history state changed.
func (r *CreditLedgerRepository) AddCreditsWithHistory(userID uint, delta int, transactionType, description string, history *models.PaymentHistory) (int, bool, error) {
	var balance int

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = applyCredits(tx, userID, delta, transactionType, history.DodoPaymentID, description)
		if err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "dodo_payment_id"},
				{Name: "status"},
			},
			DoNothing: true,
		}).Create(history)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errDuplicatePayment
		}
		return nil
	})
	if errors.Is(err, errDuplicatePayment) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// applyCredits performs the balance upsert-increment and the ledger append
// inside the caller's transaction, returning the resulting balance. If the
// user has no subscription row yet the upsert creates a plan-less carrier row
// to hold the balance.
func applyCredits(tx *gorm.DB, userID uint, delta int, transactionType, dodoPaymentID, description string) (int, error) {
	carrier := &models.Subscription{
		UserID:         userID,
		Status:         models.SubscriptionStatusNone,
		CurrentCredits: delta,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"current_credits": gorm.Expr("current_credits + excluded.current_credits"),
		}),
	}).Create(carrier).Error; err != nil {
		return 0, err
	}

	entry := &models.CreditTransaction{
		UserID:        userID,
		Amount:        delta,
		Type:          transactionType,
		DodoPaymentID: dodoPaymentID,
		Description:   description,
	}
	if err := tx.Create(entry).Error; err != nil {
		return 0, err
	}

	var sub models.Subscription
	if err := tx.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return 0, err
	}
	return sub.CurrentCredits, nil
}

// HasTransactionForPayment reports whether a ledger entry already references
// the external payment ID. This is the idempotency guard for renewal events,
// which credit the account without writing payment history.
func (r *CreditLedgerRepository) HasTransactionForPayment(dodoPaymentID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.CreditTransaction{}).
		Where("dodo_payment_id = ?", dodoPaymentID).
		Count(&count).Error
	return count > 0, err
}

func (r *CreditLedgerRepository) GetUserTransactions(userID uint) ([]models.CreditTransaction, error) {
	var entries []models.CreditTransaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}
