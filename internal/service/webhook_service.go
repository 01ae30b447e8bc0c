package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/upscpath/payments-backend/internal/config"
	"github.com/upscpath/payments-backend/internal/models"
	"github.com/upscpath/payments-backend/internal/repository"
)

// subscriptionPeriod is the expiry window granted on provisioning and on
// every renewal.
const subscriptionPeriod = 30 * 24 * time.Hour

// ReconciliationNotifier receives events that were dropped because they
// cannot be attributed automatically and need manual follow-up.
type ReconciliationNotifier interface {
	NotifyUnresolvedEvent(eventType, customerEmail, reason string)
}

type WebhookService struct {
	cfg              *config.Config
	userRepo         *repository.UserRepository
	subscriptionRepo *repository.SubscriptionRepository
	ledgerRepo       *repository.CreditLedgerRepository
	historyRepo      *repository.PaymentHistoryRepository
	notifier         ReconciliationNotifier
	logger           *zap.SugaredLogger
}

func NewWebhookService(
	cfg *config.Config,
	userRepo *repository.UserRepository,
	subscriptionRepo *repository.SubscriptionRepository,
	ledgerRepo *repository.CreditLedgerRepository,
	historyRepo *repository.PaymentHistoryRepository,
	notifier ReconciliationNotifier,
	logger *zap.SugaredLogger,
) *WebhookService {
	return &WebhookService{
		cfg:              cfg,
		userRepo:         userRepo,
		subscriptionRepo: subscriptionRepo,
		ledgerRepo:       ledgerRepo,
		historyRepo:      historyRepo,
		notifier:         notifier,
		logger:           logger,
	}
}

// HandleEvent routes a parsed webhook event to its handler. A nil return
// acknowledges the delivery (200); an error asks the provider to retry (500).
// Every handler must be safe to invoke more than once for the same event.
func (s *WebhookService) HandleEvent(event *models.WebhookEvent) error {
	switch event.Type {
	case models.EventSubscriptionActive, models.EventSubscriptionCreated:
		return s.handleSubscriptionCreated(&event.Data)
	case models.EventSubscriptionRenewed:
		return s.handleSubscriptionRenewed(&event.Data)
	case models.EventSubscriptionCancelled, models.EventSubscriptionExpired:
		return s.handleSubscriptionCancelled(&event.Data)
	case models.EventPaymentCompleted, models.EventPaymentSucceeded:
		return s.handlePaymentCompleted(&event.Data)
	case models.EventPaymentFailed:
		return s.handlePaymentFailed(&event.Data)
	default:
		// Unknown types are acknowledged so the provider does not retry them.
		s.logger.Infow("ignoring unhandled webhook event", "type", event.Type)
		return nil
	}
}

func (s *WebhookService) handleSubscriptionCreated(data *models.WebhookEventData) error {
	paymentID := data.PaymentID
	if paymentID == "" {
		paymentID = fallbackPaymentID(models.EventSubscriptionCreated, data)
	}

	applied, err := s.historyRepo.ExistsByPaymentID(paymentID)
	if err != nil {
		return err
	}
	if applied {
		s.logger.Infow("duplicate subscription payment, skipping", "dodo_payment_id", paymentID)
		return nil
	}

	user, err := s.resolveUser(models.EventSubscriptionCreated, data)
	if err != nil || user == nil {
		return err
	}

	plan, ok := s.cfg.Dodo.PlanFor(data.ProductID)
	if !ok {
		s.logger.Warnw("subscription event for unmapped product, skipping",
			"product_id", data.ProductID, "email", data.Email())
		s.notify(models.EventSubscriptionCreated, data.Email(), "product "+data.ProductID+" has no plan mapping")
		return nil
	}
	monthlyCredits, _ := s.cfg.Plans.CreditsFor(plan)

	now := time.Now()
	expiresAt := now.Add(subscriptionPeriod)
	sub := &models.Subscription{
		UserID:             user.ID,
		PlanType:           plan,
		Status:             models.SubscriptionStatusActive,
		MonthlyCredits:     monthlyCredits,
		StartedAt:          &now,
		ExpiresAt:          &expiresAt,
		DodoSubscriptionID: data.SubscriptionID,
		DodoCustomerID:     data.CustomerID,
	}
	if err := s.subscriptionRepo.Upsert(sub); err != nil {
		return err
	}

	amount := data.TotalAmount
	if amount == 0 {
		amount = s.cfg.Plans.PriceFor(plan)
	}
	// Credit and history commit together: a concurrent duplicate delivery
	// that already wrote the history row rolls this credit back entirely.
	balance, credited, err := s.ledgerRepo.AddCreditsWithHistory(
		user.ID,
		monthlyCredits,
		models.TransactionTypeSubscriptionCredit,
		fmt.Sprintf("Monthly credit allotment for %s plan", plan),
		&models.PaymentHistory{
			UserID:        user.ID,
			PaymentType:   models.PaymentTypeSubscription,
			Amount:        amount,
			Status:        models.PaymentStatusCompleted,
			DodoPaymentID: paymentID,
			PlanType:      plan,
			PaymentMethod: data.PaymentMethod,
		},
	)
	if err != nil {
		return err
	}
	if !credited {
		s.logger.Infow("concurrent duplicate subscription payment, skipping",
			"dodo_payment_id", paymentID, "user_id", user.ID)
		return nil
	}

	s.logger.Infow("subscription provisioned",
		"user_id", user.ID, "plan", plan, "credits", monthlyCredits, "balance", balance)
	return nil
}

func (s *WebhookService) handleSubscriptionRenewed(data *models.WebhookEventData) error {
	if data.PaymentID != "" {
		applied, err := s.ledgerRepo.HasTransactionForPayment(data.PaymentID)
		if err != nil {
			return err
		}
		if applied {
			s.logger.Infow("duplicate renewal payment, skipping", "dodo_payment_id", data.PaymentID)
			return nil
		}
	} else {
		s.logger.Warnw("renewal event without payment id, cannot deduplicate",
			"dodo_subscription_id", data.SubscriptionID)
	}

	sub, err := s.subscriptionRepo.GetByDodoSubscriptionID(data.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Retrying will not conjure the subscription; acknowledge and flag.
			s.logger.Errorw("renewal for unknown subscription",
				"dodo_subscription_id", data.SubscriptionID, "email", data.Email())
			s.notify(models.EventSubscriptionRenewed, data.Email(),
				"renewal for unknown subscription "+data.SubscriptionID)
			return nil
		}
		return err
	}

	if sub.Status == models.SubscriptionStatusCancelled || sub.Status == models.SubscriptionStatusExpired {
		// Only a fresh subscription.created reactivates a terminated
		// subscription; a straggling renewal must not resurrect it.
		s.logger.Warnw("renewal for terminated subscription, skipping",
			"dodo_subscription_id", data.SubscriptionID, "status", sub.Status)
		return nil
	}

	monthlyCredits, ok := s.cfg.Plans.CreditsFor(sub.PlanType)
	if !ok {
		monthlyCredits = sub.MonthlyCredits
	}

	if err := s.subscriptionRepo.ExtendExpiry(sub.ID, time.Now().Add(subscriptionPeriod)); err != nil {
		return err
	}

	balance, err := s.ledgerRepo.AddCredits(
		sub.UserID,
		monthlyCredits,
		models.TransactionTypeSubscriptionCredit,
		data.PaymentID,
		fmt.Sprintf("Monthly credit renewal for %s plan", sub.PlanType),
	)
	if err != nil {
		return err
	}

	s.logger.Infow("subscription renewed",
		"user_id", sub.UserID, "plan", sub.PlanType, "credits", monthlyCredits, "balance", balance)
	return nil
}

func (s *WebhookService) handleSubscriptionCancelled(data *models.WebhookEventData) error {
	sub, err := s.subscriptionRepo.GetByDodoSubscriptionID(data.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warnw("cancellation for unknown subscription, skipping",
				"dodo_subscription_id", data.SubscriptionID)
			return nil
		}
		return err
	}

	if sub.Status == models.SubscriptionStatusCancelled {
		return nil
	}

	// Credits already granted are retained.
	if err := s.subscriptionRepo.MarkCancelled(sub.ID, time.Now()); err != nil {
		return err
	}
	s.logger.Infow("subscription cancelled", "user_id", sub.UserID, "plan", sub.PlanType)
	return nil
}

func (s *WebhookService) handlePaymentCompleted(data *models.WebhookEventData) error {
	// Subscription payments are credited by the subscription lifecycle
	// handlers; crediting them here too would double-apply the same payment.
	if data.SubscriptionID != "" {
		s.logger.Debugw("payment belongs to a subscription flow, skipping",
			"dodo_payment_id", data.PaymentID, "dodo_subscription_id", data.SubscriptionID)
		return nil
	}
	if data.PaymentID == "" {
		s.logger.Warnw("payment event without payment id, skipping", "email", data.Email())
		return nil
	}

	applied, err := s.historyRepo.ExistsByPaymentID(data.PaymentID)
	if err != nil {
		return err
	}
	if applied {
		s.logger.Infow("duplicate payment, skipping", "dodo_payment_id", data.PaymentID)
		return nil
	}

	user, err := s.resolveUser(models.EventPaymentCompleted, data)
	if err != nil || user == nil {
		return err
	}

	credits, ok := s.cfg.Dodo.PackageCredits(data.ProductID)
	if !ok {
		s.logger.Warnw("payment for unknown credit package, skipping",
			"product_id", data.ProductID, "dodo_payment_id", data.PaymentID)
		return nil
	}

	// Credit and history commit together: two deliveries racing past the
	// pre-check still apply the credit exactly once, because the loser's
	// history insert aborts its transaction.
	balance, credited, err := s.ledgerRepo.AddCreditsWithHistory(
		user.ID,
		credits,
		models.TransactionTypePurchase,
		fmt.Sprintf("Purchased %d credit package", credits),
		&models.PaymentHistory{
			UserID:           user.ID,
			PaymentType:      models.PaymentTypeCredits,
			Amount:           data.TotalAmount,
			Status:           models.PaymentStatusCompleted,
			DodoPaymentID:    data.PaymentID,
			CreditsPurchased: credits,
			PaymentMethod:    data.PaymentMethod,
		},
	)
	if err != nil {
		return err
	}
	if !credited {
		s.logger.Infow("concurrent duplicate payment, skipping",
			"dodo_payment_id", data.PaymentID, "user_id", user.ID)
		return nil
	}

	s.logger.Infow("credit purchase applied",
		"user_id", user.ID, "credits", credits, "balance", balance)
	return nil
}

func (s *WebhookService) handlePaymentFailed(data *models.WebhookEventData) error {
	// Failed payments are recorded even when the customer cannot be resolved,
	// under the sentinel user, so failure analytics stay complete.
	userID := models.UnknownUserID
	if email := data.Email(); email != "" {
		if user, err := s.userRepo.GetByEmail(email); err == nil {
			userID = user.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	paymentID := data.PaymentID
	if paymentID == "" {
		paymentID = fallbackPaymentID(models.EventPaymentFailed, data)
	}

	paymentType := models.PaymentTypeCredits
	if data.SubscriptionID != "" {
		paymentType = models.PaymentTypeSubscription
	}

	_, err := s.historyRepo.CreateIfNotExists(&models.PaymentHistory{
		UserID:        userID,
		PaymentType:   paymentType,
		Amount:        data.TotalAmount,
		Status:        models.PaymentStatusFailed,
		DodoPaymentID: paymentID,
		PaymentMethod: data.PaymentMethod,
		Metadata: datatypes.JSONMap{
			"failure_reason": data.FailureReason,
		},
	})
	if err != nil {
		return err
	}

	s.logger.Infow("failed payment recorded",
		"user_id", userID, "dodo_payment_id", paymentID, "reason", data.FailureReason)
	return nil
}

// resolveUser maps the event's customer email to a user. A nil user with nil
// error means the event was logged and dropped: there is no automated
// recovery for an account that does not exist yet.
func (s *WebhookService) resolveUser(eventType string, data *models.WebhookEventData) (*models.User, error) {
	email := data.Email()
	if email == "" {
		s.logger.Errorw("webhook event without customer email", "type", eventType)
		s.notify(eventType, "", "event carries no customer email")
		return nil, nil
	}

	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Errorw("no user for webhook customer email", "type", eventType, "email", email)
			s.notify(eventType, email, "no account matches customer email")
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (s *WebhookService) notify(eventType, email, reason string) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyUnresolvedEvent(eventType, email, reason)
}

// fallbackPaymentID derives a deterministic idempotency key for events that
// arrive without a payment id, so re-deliveries still dedupe.
func fallbackPaymentID(eventType string, data *models.WebhookEventData) string {
	sum := sha256.Sum256([]byte(eventType + "|" + data.SubscriptionID + "|" + data.ProductID + "|" + data.Email() + "|" + data.FailureReason))
	return "hash:" + hex.EncodeToString(sum[:])
}
