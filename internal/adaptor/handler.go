package adaptor

import (
	"notary-booking/internal/data/repository"
	"notary-booking/internal/usecase"
	"notary-booking/pkg/cache"
	"notary-booking/pkg/utils"

	"go.uber.org/zap"
)

type Handler struct {
	Webhook *WebhookHandler
	Booking *BookingHandler
}

func NewHandler(service *usecase.Service, repo *repository.Repository, deduper *cache.Deduper, config *utils.Config, log *zap.Logger) *Handler {
	return &Handler{
		Webhook: NewWebhookHandler(service.Webhook, repo.WebhookEvent, deduper, config.Webhook, log),
		Booking: NewBookingHandler(service.Reconcile, service.Pending, repo, log),
	}
}
