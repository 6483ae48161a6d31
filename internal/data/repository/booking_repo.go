package repository

import (
	"context"
	"fmt"
	"time"

	"notary-booking/internal/data/entity"
	"notary-booking/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TransitionParams describes one payment status change applied atomically
// with its audit row. From acts as an optimistic guard: the update only
// lands if the row still carries that status.
type TransitionParams struct {
	BookingID       string
	From            entity.PaymentStatus
	To              entity.PaymentStatus
	PaidAt          *time.Time
	PaymentIntentID *string
	Action          *entity.PaymentAction
}

type BookingRepository interface {
	FindByBookingID(ctx context.Context, bookingID string) (*entity.Booking, error)
	FindByContactID(ctx context.Context, contactID string) (*entity.Booking, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Booking, error)

	// TransitionPayment applies the status change and inserts the audit row
	// in one transaction. applied is false when the optimistic status check
	// matched no row, meaning a concurrent event got there first.
	TransitionPayment(ctx context.Context, p TransitionParams) (booking *entity.Booking, applied bool, err error)

	// RecordReminder bumps reminder counters and appends the audit row for
	// manual actions that do not change payment status.
	RecordReminder(ctx context.Context, bookingID string, increment bool, action *entity.PaymentAction) (*entity.Booking, error)

	ListPendingPayments(ctx context.Context, limit int, includeExpired bool) ([]*entity.Booking, error)
	FindPendingBatch(ctx context.Context, cursor uuid.UUID, limit int) ([]*entity.Booking, error)
	UpdateUrgency(ctx context.Context, id uuid.UUID, level entity.UrgencyLevel, hoursOld int) error
}

const bookingColumns = `
	id, booking_id, ghl_contact_id, customer_name, customer_email, customer_phone,
	service_name, payment_amount, payment_status, appointment_status, scheduled_at,
	timezone, payment_intent_id, payment_url, payment_expires_at, paid_at,
	reminders_sent, last_reminder_at, urgency_level, hours_old, lead_source, notes,
	created_at, updated_at`

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.BookingID,
		&b.GHLContactID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.CustomerPhone,
		&b.ServiceName,
		&b.PaymentAmount,
		&b.PaymentStatus,
		&b.AppointmentStatus,
		&b.ScheduledAt,
		&b.Timezone,
		&b.PaymentIntentID,
		&b.PaymentURL,
		&b.PaymentExpiresAt,
		&b.PaidAt,
		&b.RemindersSent,
		&b.LastReminderAt,
		&b.UrgencyLevel,
		&b.HoursOld,
		&b.LeadSource,
		&b.Notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) findByColumn(ctx context.Context, column, value string) (*entity.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM bookings WHERE %s = $1`, bookingColumns, column)

	booking, err := scanBooking(r.db.QueryRow(ctx, query, value))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking",
			zap.Error(err),
			zap.String("column", column),
			zap.String("value", value),
		)
		return nil, fmt.Errorf("find booking by %s %s: %w", column, value, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByBookingID(ctx context.Context, bookingID string) (*entity.Booking, error) {
	return r.findByColumn(ctx, "booking_id", bookingID)
}

func (r *bookingRepository) FindByContactID(ctx context.Context, contactID string) (*entity.Booking, error) {
	return r.findByColumn(ctx, "ghl_contact_id", contactID)
}

func (r *bookingRepository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Booking, error) {
	return r.findByColumn(ctx, "payment_intent_id", paymentIntentID)
}

func (r *bookingRepository) TransitionPayment(ctx context.Context, p TransitionParams) (*entity.Booking, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Optimistic status check: the WHERE clause only matches when the row
	// still carries the expected status, so two racing webhooks cannot both
	// apply conflicting transitions.
	query := fmt.Sprintf(`
		UPDATE bookings
		SET payment_status = $3,
		    paid_at = COALESCE($4, paid_at),
		    payment_intent_id = COALESCE($5, payment_intent_id),
		    updated_at = NOW()
		WHERE booking_id = $1 AND payment_status = $2
		RETURNING %s`, bookingColumns)

	booking, err := scanBooking(tx.QueryRow(ctx, query,
		p.BookingID, p.From, p.To, p.PaidAt, p.PaymentIntentID))
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		r.log.Error("Failed to update payment status",
			zap.Error(err),
			zap.String("booking_id", p.BookingID),
			zap.String("from", string(p.From)),
			zap.String("to", string(p.To)),
		)
		return nil, false, fmt.Errorf("transition booking %s to %s: %w", p.BookingID, string(p.To), err)
	}

	if err := insertPaymentActionTx(ctx, tx, p.Action); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit transition for booking %s: %w", p.BookingID, err)
	}

	return booking, true, nil
}

func (r *bookingRepository) RecordReminder(ctx context.Context, bookingID string, increment bool, action *entity.PaymentAction) (*entity.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reminder tx: %w", err)
	}
	defer tx.Rollback(ctx)

	bump := 0
	if increment {
		bump = 1
	}

	query := fmt.Sprintf(`
		UPDATE bookings
		SET reminders_sent = reminders_sent + $2,
		    last_reminder_at = NOW(),
		    updated_at = NOW()
		WHERE booking_id = $1
		RETURNING %s`, bookingColumns)

	booking, err := scanBooking(tx.QueryRow(ctx, query, bookingID, bump))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to record reminder",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		return nil, fmt.Errorf("record reminder for booking %s: %w", bookingID, err)
	}

	if err := insertPaymentActionTx(ctx, tx, action); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reminder for booking %s: %w", bookingID, err)
	}

	return booking, nil
}

func (r *bookingRepository) ListPendingPayments(ctx context.Context, limit int, includeExpired bool) ([]*entity.Booking, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM bookings
		WHERE payment_status = 'pending' AND ($2 OR payment_expires_at > NOW())
		ORDER BY created_at ASC
		LIMIT $1`, bookingColumns)

	rows, err := r.db.Query(ctx, query, limit, includeExpired)
	if err != nil {
		r.log.Error("Failed to list pending payments", zap.Error(err), zap.Int("limit", limit))
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, nil
}

func (r *bookingRepository) FindPendingBatch(ctx context.Context, cursor uuid.UUID, limit int) ([]*entity.Booking, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM bookings
		WHERE payment_status = 'pending' AND id > $1
		ORDER BY id ASC
		LIMIT $2`, bookingColumns)

	rows, err := r.db.Query(ctx, query, cursor, limit)
	if err != nil {
		r.log.Error("Failed to find pending batch",
			zap.Error(err),
			zap.String("cursor", cursor.String()),
		)
		return nil, fmt.Errorf("find pending batch after %s: %w", cursor.String(), err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking row", zap.Error(err))
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, nil
}

func (r *bookingRepository) UpdateUrgency(ctx context.Context, id uuid.UUID, level entity.UrgencyLevel, hoursOld int) error {
	query := `UPDATE bookings SET urgency_level = $2, hours_old = $3, updated_at = NOW() WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, level, hoursOld)
	if err != nil {
		r.log.Error("Failed to update urgency",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("urgency", string(level)),
		)
		return fmt.Errorf("update urgency for booking %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking %s not found", id.String())
	}

	return nil
}

func insertPaymentActionTx(ctx context.Context, tx pgx.Tx, action *entity.PaymentAction) error {
	if action == nil {
		return nil
	}

	query := `
		INSERT INTO payment_actions (id, booking_id, action_type, amount, failure_reason,
			processor_id, reminder_type, notes, trace_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`

	_, err := tx.Exec(ctx, query,
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
		return fmt.Errorf("insert payment action %s for booking %s: %w", string(action.ActionType), action.BookingID, err)
	}

	return nil
}
