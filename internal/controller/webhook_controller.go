package controller

import (
	"github.com/upscpath/payments-backend/internal/models"
	"github.com/upscpath/payments-backend/internal/service"
)

type WebhookController struct {
	webhookService *service.WebhookService
}

func NewWebhookController(webhookService *service.WebhookService) *WebhookController {
	return &WebhookController{
		webhookService: webhookService,
	}
}

func (c *WebhookController) HandleEvent(event *models.WebhookEvent) error {
	return c.webhookService.HandleEvent(event)
}
