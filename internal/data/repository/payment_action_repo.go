package repository

import (
	"context"
	"fmt"

	"notary-booking/internal/data/entity"
	"notary-booking/pkg/database"

	"go.uber.org/zap"
)

type PaymentActionRepository interface {
	Create(ctx context.Context, action *entity.PaymentAction) error
	FindByBookingID(ctx context.Context, bookingID string, limit int) ([]*entity.PaymentAction, error)
	CountByBookingAndType(ctx context.Context, bookingID string, actionType entity.ActionType) (int64, error)
}

type paymentActionRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentActionRepository(db database.PgxIface, log *zap.Logger) PaymentActionRepository {
	return &paymentActionRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_action")),
	}
}

func (r *paymentActionRepository) Create(ctx context.Context, action *entity.PaymentAction) error {
	query := `
		INSERT INTO payment_actions (id, booking_id, action_type, amount, failure_reason,
			processor_id, reminder_type, notes, trace_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`

	_, err := r.db.Exec(ctx, query,
		action.ID,
		action.BookingID,
		action.ActionType,
		action.Amount,
		action.FailureReason,
		action.ProcessorID,
		action.ReminderType,
		action.Notes,
		action.TraceID,
	)
	if err != nil {
		r.log.Error("Failed to create payment action",
			zap.Error(err),
			zap.String("booking_id", action.BookingID),
			zap.String("action_type", string(action.ActionType)),
		)
		return fmt.Errorf("create payment action for booking %s: %w", action.BookingID, err)
	}

	return nil
}

func (r *paymentActionRepository) FindByBookingID(ctx context.Context, bookingID string, limit int) ([]*entity.PaymentAction, error) {
	query := `
		SELECT id, booking_id, action_type, amount, failure_reason, processor_id,
		       reminder_type, notes, trace_id, created_at
		FROM payment_actions
		WHERE booking_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, bookingID, limit)
	if err != nil {
		r.log.Error("Failed to find payment actions",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		return nil, fmt.Errorf("find payment actions for booking %s: %w", bookingID, err)
	}
	defer rows.Close()

	var actions []*entity.PaymentAction
	for rows.Next() {
		var a entity.PaymentAction
		err := rows.Scan(
			&a.ID,
			&a.BookingID,
			&a.ActionType,
			&a.Amount,
			&a.FailureReason,
			&a.ProcessorID,
			&a.ReminderType,
			&a.Notes,
			&a.TraceID,
			&a.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan payment action row", zap.Error(err))
			return nil, fmt.Errorf("scan payment action row: %w", err)
		}
		actions = append(actions, &a)
	}

	return actions, nil
}

func (r *paymentActionRepository) CountByBookingAndType(ctx context.Context, bookingID string, actionType entity.ActionType) (int64, error) {
	query := `SELECT COUNT(*) FROM payment_actions WHERE booking_id = $1 AND action_type = $2`

	var count int64
	err := r.db.QueryRow(ctx, query, bookingID, actionType).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count payment actions",
			zap.Error(err),
			zap.String("booking_id", bookingID),
			zap.String("action_type", string(actionType)),
		)
		return 0, fmt.Errorf("count payment actions for booking %s: %w", bookingID, err)
	}

	return count, nil
}
