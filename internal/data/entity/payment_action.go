package entity

import (
	"github.com/google/uuid"
)

type ActionType string

const (
	ActionPaymentCompleted  ActionType = "payment_completed"
	ActionPaymentFailed     ActionType = "payment_failed"
	ActionPaymentExpired    ActionType = "payment_expired"
	ActionPaymentProcessing ActionType = "payment_processing"
	ActionPaymentCanceled   ActionType = "payment_canceled"
	ActionDisputeCreated    ActionType = "dispute_created"
	ActionSendReminder      ActionType = "send_reminder"
	ActionMarkContacted     ActionType = "mark_contacted"
	ActionMarkExpired       ActionType = "mark_expired"
	ActionReopenPayment     ActionType = "reopen_payment"
	ActionStatusChange      ActionType = "status_change"
)

// PaymentAction is the append-only audit trail for a booking. Rows are
// immutable once written.
type PaymentAction struct {
	BaseSimple
	BookingID     string     `db:"booking_id"`
	ActionType    ActionType `db:"action_type"`
	Amount        *float64   `db:"amount"`
	FailureReason *string    `db:"failure_reason"`
	ProcessorID   *string    `db:"processor_id"` // payment intent / charge id
	ReminderType  *string    `db:"reminder_type"`
	Notes         *string    `db:"notes"`
	TraceID       string     `db:"trace_id"`
}

// NewPaymentAction builds an audit row for the given booking and action.
func NewPaymentAction(bookingID string, actionType ActionType, traceID string) *PaymentAction {
	return &PaymentAction{
		BaseSimple: BaseSimple{ID: uuid.New()},
		BookingID:  bookingID,
		ActionType: actionType,
		TraceID:    traceID,
	}
}
