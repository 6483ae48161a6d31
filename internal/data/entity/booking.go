package entity

import (
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusExpired   PaymentStatus = "expired"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

type Booking struct {
	Base
	BookingID         string            `db:"booking_id"` // HMNP-<ts>-<rand>, immutable
	GHLContactID      string            `db:"ghl_contact_id"`
	CustomerName      string            `db:"customer_name"`
	CustomerEmail     string            `db:"customer_email"`
	CustomerPhone     string            `db:"customer_phone"`
	ServiceName       string            `db:"service_name"`
	PaymentAmount     float64           `db:"payment_amount"`
	PaymentStatus     PaymentStatus     `db:"payment_status"`
	AppointmentStatus AppointmentStatus `db:"appointment_status"`
	ScheduledAt       time.Time         `db:"scheduled_at"`
	Timezone          string            `db:"timezone"`
	PaymentIntentID   *string           `db:"payment_intent_id"`
	PaymentURL        *string           `db:"payment_url"`
	PaymentExpiresAt  time.Time         `db:"payment_expires_at"`
	PaidAt            *time.Time        `db:"paid_at"`
	RemindersSent     int               `db:"reminders_sent"`
	LastReminderAt    *time.Time        `db:"last_reminder_at"`
	UrgencyLevel      UrgencyLevel      `db:"urgency_level"` // cache, see ScoreUrgency
	HoursOld          int               `db:"hours_old"`     // cache
	LeadSource        string            `db:"lead_source"`
	Notes             *string           `db:"notes"`
}

// CanTransitionTo reports whether a payment status change is legal.
// Lifecycle is monotonic: pending may move to any terminal status,
// completed is final. Reopening failed/expired back to pending is only
// allowed through an explicit manual recovery action.
func (s PaymentStatus) CanTransitionTo(to PaymentStatus, manual bool) bool {
	if s == to {
		return false
	}

	switch s {
	case PaymentStatusPending:
		return to == PaymentStatusCompleted || to == PaymentStatusFailed || to == PaymentStatusExpired
	case PaymentStatusCompleted:
		return false
	case PaymentStatusFailed, PaymentStatusExpired:
		return manual && to == PaymentStatusPending
	default:
		return false
	}
}

// Terminal reports whether no automatic event may change the status further.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusExpired
}
