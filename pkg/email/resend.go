package email

import (
	"fmt"

	"github.com/resendlabs/resend-go"
	"go.uber.org/zap"

	"github.com/upscpath/payments-backend/internal/config"
)

// AlertMailer emails the ops inbox about webhook events that were dropped
// and need manual reconciliation.
type AlertMailer struct {
	client *resend.Client
	from   string
	to     string
	logger *zap.SugaredLogger
}

func NewAlertMailer(cfg config.AlertConfig, logger *zap.SugaredLogger) *AlertMailer {
	return &AlertMailer{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.FromAddress,
		to:     cfg.ToAddress,
		logger: logger,
	}
}

func (m *AlertMailer) NotifyUnresolvedEvent(eventType, customerEmail, reason string) {
	if customerEmail == "" {
		customerEmail = "(none)"
	}

	html := fmt.Sprintf(
		"<p>A Dodo webhook event could not be applied and needs manual reconciliation.</p>"+
			"<ul><li>Event: %s</li><li>Customer email: %s</li><li>Reason: %s</li></ul>",
		eventType, customerEmail, reason,
	)

	params := &resend.SendEmailRequest{
		From:    "UPSCPath Payments <" + m.from + ">",
		To:      []string{m.to},
		Subject: "Unreconciled payment webhook: " + eventType,
		Html:    html,
	}

	resp, err := m.client.Emails.Send(params)
	if err != nil {
		m.logger.Errorw("failed to send reconciliation alert", "event", eventType, "error", err)
		return
	}
	m.logger.Infow("sent reconciliation alert", "event", eventType, "email_id", resp.Id)
}
