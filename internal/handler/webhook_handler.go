package handler

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/upscpath/payments-backend/internal/controller"
	"github.com/upscpath/payments-backend/internal/models"
	"github.com/upscpath/payments-backend/pkg/storage"
	"github.com/upscpath/payments-backend/pkg/webhook"
)

type WebhookHandler struct {
	webhookController *controller.WebhookController
	webhookSecret     string
	archive           *storage.PayloadArchive
	logger            *zap.SugaredLogger
}

func NewWebhookHandler(webhookController *controller.WebhookController, webhookSecret string, archive *storage.PayloadArchive, logger *zap.SugaredLogger) *WebhookHandler {
	return &WebhookHandler{
		webhookController: webhookController,
		webhookSecret:     webhookSecret,
		archive:           archive,
		logger:            logger,
	}
}

// HandleDodoWebhook processes one webhook delivery. Responses follow the
// provider's retry contract: 2xx acknowledges (including benign no-ops),
// 4xx rejects without retry value, 5xx asks for a retry.
func (h *WebhookHandler) HandleDodoWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	if h.webhookSecret != "" {
		valid := webhook.VerifySignature(
			payload,
			c.Get("webhook-id"),
			c.Get("webhook-timestamp"),
			c.Get("webhook-signature"),
			h.webhookSecret,
		)
		if !valid {
			h.logger.Warnw("rejected webhook with invalid signature", "ip", c.IP())
			return c.Status(fiber.StatusUnauthorized).JSON(models.WebhookError("invalid webhook signature"))
		}
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.WebhookError("invalid webhook payload"))
	}
	if strings.TrimSpace(event.Type) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(models.WebhookError("missing event type"))
	}

	h.archivePayload(c, event.Type, payload)

	if err := h.webhookController.HandleEvent(&event); err != nil {
		h.logger.Errorw("webhook processing failed", "type", event.Type, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(models.WebhookError("webhook processing failed"))
	}

	return c.JSON(models.WebhookSuccess(event.Type))
}

// archivePayload stores the raw delivery for audit and replay. Best effort:
// an archive failure must never fail the delivery.
func (h *WebhookHandler) archivePayload(c *fiber.Ctx, eventType string, payload []byte) {
	if h.archive == nil {
		return
	}
	if err := h.archive.Store(c.Context(), eventType, c.Get("webhook-id"), payload); err != nil {
		h.logger.Warnw("failed to archive webhook payload", "type", eventType, "error", err)
	}
}
