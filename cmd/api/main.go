package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/upscpath/payments-backend/internal/config"
	"github.com/upscpath/payments-backend/internal/controller"
	"github.com/upscpath/payments-backend/internal/handler"
	"github.com/upscpath/payments-backend/internal/repository"
	"github.com/upscpath/payments-backend/internal/service"
	"github.com/upscpath/payments-backend/pkg/database"
	"github.com/upscpath/payments-backend/pkg/email"
	"github.com/upscpath/payments-backend/pkg/logger"
	"github.com/upscpath/payments-backend/pkg/storage"
)

func main() {
	// Load .env when present; deployments set the environment directly.
	_ = godotenv.Load()

	zlog, err := logger.New()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		zlog.Fatalw("failed to load configuration", "error", err)
	}
	if cfg.Dodo.WebhookSecret == "" {
		zlog.Warn("DODO_WEBHOOK_SECRET is not set, webhook signatures will not be verified")
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatalw("failed to connect to database", "error", err)
	}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	ledgerRepo := repository.NewCreditLedgerRepository(db)
	historyRepo := repository.NewPaymentHistoryRepository(db)

	// Reconciliation alerts
	var notifier service.ReconciliationNotifier
	if cfg.Alerts.Enabled() {
		notifier = email.NewAlertMailer(cfg.Alerts, zlog)
	} else {
		zlog.Warn("ALERT_TO_ADDRESS is not set, reconciliation alerts are disabled")
	}

	// Payload archive
	var archive *storage.PayloadArchive
	if cfg.Archive.Enabled() {
		archive, err = storage.NewPayloadArchive(cfg.Archive)
		if err != nil {
			zlog.Fatalw("failed to initialize payload archive", "error", err)
		}
	}

	// Services
	webhookService := service.NewWebhookService(
		cfg,
		userRepo,
		subscriptionRepo,
		ledgerRepo,
		historyRepo,
		notifier,
		zlog,
	)

	// Handlers
	webhookController := controller.NewWebhookController(webhookService)
	webhookHandler := handler.NewWebhookHandler(webhookController, cfg.Dodo.WebhookSecret, archive, zlog)

	// Router
	app := fiber.New()
	app.Use(recover.New())
	app.Use(fiberlogger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Post("/payments/webhook", webhookHandler.HandleDodoWebhook)

	zlog.Infow("starting payments webhook service", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Fatalw("server stopped", "error", err)
	}
}
