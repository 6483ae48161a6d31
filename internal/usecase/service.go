package usecase

import (
	"notary-booking/internal/crm"
	"notary-booking/internal/data/repository"
	"notary-booking/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Reconcile ReconcileService
	Webhook   WebhookService
	Pending   PendingPaymentService
}

func NewService(repo *repository.Repository, config *utils.Config, dispatcher crm.Dispatcher, crmClient crm.Client, log *zap.Logger) *Service {
	reconcile := NewReconcileService(repo, dispatcher, log)
	return &Service{
		Reconcile: reconcile,
		Webhook:   NewWebhookService(repo, reconcile, dispatcher, crmClient, log),
		Pending:   NewPendingPaymentService(repo, config.Urgency.BatchSize, log),
	}
}
