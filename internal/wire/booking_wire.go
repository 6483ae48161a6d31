package wire

import (
	"notary-booking/internal/adaptor"
	"notary-booking/pkg/middleware"
	"notary-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	handler *adaptor.Handler,
	config *utils.Config,
	log *zap.Logger,
) {
	// ==================== ADMIN ROUTES ====================
	// Operator surface, behind the API key.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.APIKey(config.Admin.APIKeyHash, log))

		// GET /api/admin/bookings/{bookingId} - booking with payment history
		r.Get("/bookings/{bookingId}", handler.Booking.GetBooking)

		// POST /api/admin/bookings/{bookingId}/actions - manual follow-up actions
		r.Post("/bookings/{bookingId}/actions", handler.Booking.PostManualAction)

		// GET /api/admin/payments/pending - urgency-scored pending list
		r.Get("/payments/pending", handler.Booking.GetPendingPayments)

		// POST /api/admin/webhooks/{id}/replay - re-run a stored webhook event
		r.Post("/webhooks/{id}/replay", handler.Webhook.Replay)
	})
}
