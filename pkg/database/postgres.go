package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/upscpath/payments-backend/internal/models"
)

func NewDatabase(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate keeps the ledger tables in sync. The users table is owned by the
// app backend; migrating it here only matters for local development.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.CreditTransaction{},
		&models.PaymentHistory{},
	)
}
