package wire

import (
	"notary-booking/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireWebhook(r chi.Router, webhookHandler *adaptor.WebhookHandler) {
	// ==================== PUBLIC ROUTES ====================
	// External senders authenticate per request via signatures, not sessions.

	// POST /webhooks/ghl - CRM events
	r.Post("/webhooks/ghl", webhookHandler.ReceiveGHL)

	// POST /webhooks/stripe - payment processor events
	r.Post("/webhooks/stripe", webhookHandler.ReceiveStripe)
}
