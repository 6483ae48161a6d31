package repository

import (
	"context"
	"fmt"

	"notary-booking/internal/data/entity"
	"notary-booking/pkg/database"

	"go.uber.org/zap"
)

type WorkflowTriggerRepository interface {
	Create(ctx context.Context, trigger *entity.WorkflowTrigger) error
	FindByBookingID(ctx context.Context, bookingID string) ([]*entity.WorkflowTrigger, error)
	MarkCompleted(ctx context.Context, bookingID, workflowName string) error
	MarkFailed(ctx context.Context, bookingID, workflowName, reason string) error
}

type workflowTriggerRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewWorkflowTriggerRepository(db database.PgxIface, log *zap.Logger) WorkflowTriggerRepository {
	return &workflowTriggerRepository{
		db:  db,
		log: log.With(zap.String("repository", "workflow_trigger")),
	}
}

func (r *workflowTriggerRepository) Create(ctx context.Context, trigger *entity.WorkflowTrigger) error {
	query := `
		INSERT INTO workflow_triggers (id, booking_id, workflow_name, status, completed_at, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := r.db.Exec(ctx, query,
		trigger.ID,
		trigger.BookingID,
		trigger.WorkflowName,
		trigger.Status,
		trigger.CompletedAt,
		trigger.LastError,
	)
	if err != nil {
		r.log.Error("Failed to create workflow trigger",
			zap.Error(err),
			zap.String("booking_id", trigger.BookingID),
			zap.String("workflow", trigger.WorkflowName),
		)
		return fmt.Errorf("create workflow trigger %s for booking %s: %w", trigger.WorkflowName, trigger.BookingID, err)
	}

	return nil
}

func (r *workflowTriggerRepository) FindByBookingID(ctx context.Context, bookingID string) ([]*entity.WorkflowTrigger, error) {
	query := `
		SELECT id, booking_id, workflow_name, status, completed_at, last_error, created_at
		FROM workflow_triggers
		WHERE booking_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to find workflow triggers",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		return nil, fmt.Errorf("find workflow triggers for booking %s: %w", bookingID, err)
	}
	defer rows.Close()

	var triggers []*entity.WorkflowTrigger
	for rows.Next() {
		var t entity.WorkflowTrigger
		err := rows.Scan(
			&t.ID,
			&t.BookingID,
			&t.WorkflowName,
			&t.Status,
			&t.CompletedAt,
			&t.LastError,
			&t.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan workflow trigger row", zap.Error(err))
			return nil, fmt.Errorf("scan workflow trigger row: %w", err)
		}
		triggers = append(triggers, &t)
	}

	return triggers, nil
}

func (r *workflowTriggerRepository) MarkCompleted(ctx context.Context, bookingID, workflowName string) error {
	query := `
		UPDATE workflow_triggers
		SET status = 'completed', completed_at = NOW()
		WHERE booking_id = $1 AND workflow_name = $2 AND status = 'pending'
	`

	_, err := r.db.Exec(ctx, query, bookingID, workflowName)
	if err != nil {
		r.log.Error("Failed to mark workflow completed",
			zap.Error(err),
			zap.String("booking_id", bookingID),
			zap.String("workflow", workflowName),
		)
		return fmt.Errorf("mark workflow %s completed for booking %s: %w", workflowName, bookingID, err)
	}

	return nil
}

func (r *workflowTriggerRepository) MarkFailed(ctx context.Context, bookingID, workflowName, reason string) error {
	query := `
		UPDATE workflow_triggers
		SET status = 'failed', last_error = $3
		WHERE booking_id = $1 AND workflow_name = $2 AND status = 'pending'
	`

	_, err := r.db.Exec(ctx, query, bookingID, workflowName, reason)
	if err != nil {
		r.log.Error("Failed to mark workflow failed",
			zap.Error(err),
			zap.String("booking_id", bookingID),
			zap.String("workflow", workflowName),
		)
		return fmt.Errorf("mark workflow %s failed for booking %s: %w", workflowName, bookingID, err)
	}

	return nil
}
