package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/upscpath/payments-backend/internal/models"
	"github.com/upscpath/payments-backend/pkg/utils"
)

type DodoConfig struct {
	WebhookSecret string
	// CreditPackages maps a Dodo product ID to the one-time credit amount it
	// grants. Payments for product IDs outside this table are ignored.
	CreditPackages map[string]int
	// PlanProducts maps a Dodo product ID to a subscription plan type.
	PlanProducts map[string]string `validate:"dive,plan_type"`
}

type PlanConfig struct {
	// MonthlyCredits is the credit allotment granted on subscription creation
	// and on every renewal.
	MonthlyCredits map[string]int `validate:"required"`
	// Prices is the monthly price per plan, used for payment-history rows
	// when the event does not carry an amount.
	Prices map[string]float64
}

type ArchiveConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

func (c ArchiveConfig) Enabled() bool {
	return c.AccountID != "" && c.Bucket != ""
}

type AlertConfig struct {
	ResendAPIKey string
	FromAddress  string
	ToAddress    string
}

func (c AlertConfig) Enabled() bool {
	return c.ResendAPIKey != "" && c.ToAddress != ""
}

type Config struct {
	Port        string
	DatabaseURL string `validate:"required"`
	Dodo        DodoConfig
	Plans       PlanConfig
	Archive     ArchiveConfig
	Alerts      AlertConfig
}

// LoadConfig reads deployment configuration from the environment. The
// product and plan tables are JSON-valued variables so product IDs can be
// rotated per deployment without a code change.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	cfg.Dodo.WebhookSecret = os.Getenv("DODO_WEBHOOK_SECRET")
	if err := jsonEnv("DODO_CREDIT_PACKAGES", &cfg.Dodo.CreditPackages, map[string]int{}); err != nil {
		return nil, err
	}
	if err := jsonEnv("DODO_PLAN_PRODUCTS", &cfg.Dodo.PlanProducts, map[string]string{}); err != nil {
		return nil, err
	}
	if err := jsonEnv("PLAN_MONTHLY_CREDITS", &cfg.Plans.MonthlyCredits, map[string]int{
		models.PlanBasic: 200,
		models.PlanPro:   400,
	}); err != nil {
		return nil, err
	}
	if err := jsonEnv("PLAN_PRICES", &cfg.Plans.Prices, map[string]float64{
		models.PlanBasic: 299,
		models.PlanPro:   499,
	}); err != nil {
		return nil, err
	}

	cfg.Archive.AccountID = os.Getenv("R2_ACCOUNT_ID")
	cfg.Archive.AccessKeyID = os.Getenv("R2_ACCESS_KEY_ID")
	cfg.Archive.SecretAccessKey = os.Getenv("R2_SECRET_ACCESS_KEY")
	cfg.Archive.Bucket = os.Getenv("R2_WEBHOOK_BUCKET")

	cfg.Alerts.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.Alerts.FromAddress = getEnv("ALERT_FROM_ADDRESS", "alerts@upscpath.in")
	cfg.Alerts.ToAddress = os.Getenv("ALERT_TO_ADDRESS")

	if err := utils.NewValidator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for product, plan := range cfg.Dodo.PlanProducts {
		if _, ok := cfg.Plans.MonthlyCredits[plan]; !ok {
			return nil, fmt.Errorf("plan %q (product %s) has no monthly credit allotment", plan, product)
		}
	}

	return cfg, nil
}

// PackageCredits resolves a product ID to its one-time credit amount.
func (c DodoConfig) PackageCredits(productID string) (int, bool) {
	credits, ok := c.CreditPackages[productID]
	return credits, ok
}

// PlanFor resolves a product ID to a subscription plan type.
func (c DodoConfig) PlanFor(productID string) (string, bool) {
	plan, ok := c.PlanProducts[productID]
	return plan, ok
}

// CreditsFor returns the monthly credit allotment for a plan.
func (c PlanConfig) CreditsFor(plan string) (int, bool) {
	credits, ok := c.MonthlyCredits[plan]
	return credits, ok
}

// PriceFor returns the monthly price for a plan, zero if unknown.
func (c PlanConfig) PriceFor(plan string) float64 {
	return c.Prices[plan]
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func jsonEnv[T any](key string, dst *T, fallback T) error {
	raw := os.Getenv(key)
	if raw == "" {
		*dst = fallback
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	return nil
}
