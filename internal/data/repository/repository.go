package repository

import (
	"notary-booking/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Booking         BookingRepository
	PaymentAction   PaymentActionRepository
	WorkflowTrigger WorkflowTriggerRepository
	WebhookEvent    WebhookEventRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Booking:         NewBookingRepository(db, log),
		PaymentAction:   NewPaymentActionRepository(db, log),
		WorkflowTrigger: NewWorkflowTriggerRepository(db, log),
		WebhookEvent:    NewWebhookEventRepository(db, log),
	}
}
