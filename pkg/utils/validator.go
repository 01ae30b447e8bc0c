package utils

import (
	"github.com/go-playground/validator/v10"

	"github.com/upscpath/payments-backend/internal/models"
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	// Custom validations
	v.RegisterValidation("plan_type", validatePlanType)

	return &Validator{
		validate: v,
	}
}

func (v *Validator) Struct(s interface{}) error {
	return v.validate.Struct(s)
}

func validatePlanType(fl validator.FieldLevel) bool {
	plan := fl.Field().String()
	supportedPlans := map[string]bool{
		models.PlanBasic: true,
		models.PlanPro:   true,
	}
	return supportedPlans[plan]
}
