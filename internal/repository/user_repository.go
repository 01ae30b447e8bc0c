package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/upscpath/payments-backend/internal/models"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// GetByEmail resolves a Dodo customer email to an internal user.
// The lookup is case-insensitive; returns gorm.ErrRecordNotFound when the
// email has no matching account.
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
