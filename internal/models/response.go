package models

// WebhookResponse is the JSON body returned to the payment provider.
type WebhookResponse struct {
	Success bool   `json:"success"`
	Event   string `json:"event,omitempty"`
	Error   string `json:"error,omitempty"`
}

func WebhookSuccess(event string) WebhookResponse {
	return WebhookResponse{
		Success: true,
		Event:   event,
	}
}

func WebhookError(err string) WebhookResponse {
	return WebhookResponse{
		Success: false,
		Error:   err,
	}
}
