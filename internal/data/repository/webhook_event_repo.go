package repository

import (
	"context"
	"fmt"

	"notary-booking/internal/data/entity"
	"notary-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type WebhookEventRepository interface {
	Create(ctx context.Context, event *entity.WebhookEvent) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.WebhookEvent, error)
	MarkOutcome(ctx context.Context, id uuid.UUID, status entity.WebhookEventStatus, lastError *string) error
}

type webhookEventRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewWebhookEventRepository(db database.PgxIface, log *zap.Logger) WebhookEventRepository {
	return &webhookEventRepository{
		db:  db,
		log: log.With(zap.String("repository", "webhook_event")),
	}
}

func (r *webhookEventRepository) Create(ctx context.Context, event *entity.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (id, source, event_type, external_event_id, payload,
			verified, trace_id, status, last_error, processed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.Source,
		event.EventType,
		event.ExternalEventID,
		event.Payload,
		event.Verified,
		event.TraceID,
		event.Status,
		event.LastError,
		event.ProcessedAt,
	)
	if err != nil {
		r.log.Error("Failed to store webhook event",
			zap.Error(err),
			zap.String("source", string(event.Source)),
			zap.String("event_type", event.EventType),
			zap.String("trace_id", event.TraceID),
		)
		return fmt.Errorf("store webhook event %s: %w", event.TraceID, err)
	}

	return nil
}

func (r *webhookEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.WebhookEvent, error) {
	query := `
		SELECT id, source, event_type, external_event_id, payload, verified,
		       trace_id, status, last_error, processed_at, created_at
		FROM webhook_events
		WHERE id = $1
	`

	var e entity.WebhookEvent
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID,
		&e.Source,
		&e.EventType,
		&e.ExternalEventID,
		&e.Payload,
		&e.Verified,
		&e.TraceID,
		&e.Status,
		&e.LastError,
		&e.ProcessedAt,
		&e.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find webhook event",
			zap.Error(err),
			zap.String("event_id", id.String()),
		)
		return nil, fmt.Errorf("find webhook event %s: %w", id.String(), err)
	}

	return &e, nil
}

func (r *webhookEventRepository) MarkOutcome(ctx context.Context, id uuid.UUID, status entity.WebhookEventStatus, lastError *string) error {
	query := `UPDATE webhook_events SET status = $2, last_error = $3, processed_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, status, lastError)
	if err != nil {
		r.log.Error("Failed to mark webhook event outcome",
			zap.Error(err),
			zap.String("event_id", id.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("mark webhook event %s as %s: %w", id.String(), string(status), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("webhook event %s not found", id.String())
	}

	return nil
}
