package response

import (
	"time"

	"notary-booking/internal/data/entity"
)

type BookingResponse struct {
	BookingID         string                   `json:"booking_id"`
	GHLContactID      string                   `json:"ghl_contact_id"`
	CustomerName      string                   `json:"customer_name"`
	CustomerEmail     string                   `json:"customer_email"`
	CustomerPhone     string                   `json:"customer_phone"`
	ServiceName       string                   `json:"service_name"`
	PaymentAmount     float64                  `json:"payment_amount"`
	PaymentStatus     entity.PaymentStatus     `json:"payment_status"`
	AppointmentStatus entity.AppointmentStatus `json:"appointment_status"`
	ScheduledAt       time.Time                `json:"scheduled_at"`
	Timezone          string                   `json:"timezone"`
	LeadSource        string                   `json:"lead_source"`
	PaymentInfo       PaymentInfo              `json:"payment_info"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// PaymentInfo carries the live urgency view of an unpaid booking.
type PaymentInfo struct {
	UrgencyLevel   entity.UrgencyLevel `json:"urgency_level"`
	HoursOld       int                 `json:"hours_old"`
	RemindersSent  int                 `json:"reminders_sent"`
	LastReminderAt *time.Time          `json:"last_reminder_at,omitempty"`
	ExpiresAt      time.Time           `json:"expires_at"`
	PaidAt         *time.Time          `json:"paid_at,omitempty"`
}

type PaymentActionResponse struct {
	ActionType    entity.ActionType `json:"action_type"`
	Amount        *float64          `json:"amount,omitempty"`
	FailureReason *string           `json:"failure_reason,omitempty"`
	ProcessorID   *string           `json:"processor_id,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
	TraceID       string            `json:"trace_id"`
	Timestamp     time.Time         `json:"timestamp"`
}

type WorkflowTriggerResponse struct {
	WorkflowName string                `json:"workflow_name"`
	Status       entity.WorkflowStatus `json:"status"`
	TriggeredAt  time.Time             `json:"triggered_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

type BookingDetailResponse struct {
	BookingResponse
	PaymentActions   []PaymentActionResponse   `json:"payment_actions"`
	WorkflowTriggers []WorkflowTriggerResponse `json:"workflow_triggers"`
}

type PendingSummary struct {
	TotalPending     int                         `json:"total_pending"`
	TotalValue       float64                     `json:"total_value"`
	UrgencyBreakdown map[entity.UrgencyLevel]int `json:"urgency_breakdown"`
	OldestHours      int                         `json:"oldest_booking_hours"`
}

type PendingPaymentsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Summary  PendingSummary    `json:"summary"`
}

// BookingToResponse recomputes urgency from the clock rather than trusting
// the cached column.
func BookingToResponse(b *entity.Booking, now time.Time) BookingResponse {
	return BookingResponse{
		BookingID:         b.BookingID,
		GHLContactID:      b.GHLContactID,
		CustomerName:      b.CustomerName,
		CustomerEmail:     b.CustomerEmail,
		CustomerPhone:     b.CustomerPhone,
		ServiceName:       b.ServiceName,
		PaymentAmount:     b.PaymentAmount,
		PaymentStatus:     b.PaymentStatus,
		AppointmentStatus: b.AppointmentStatus,
		ScheduledAt:       b.ScheduledAt,
		Timezone:          b.Timezone,
		LeadSource:        b.LeadSource,
		PaymentInfo: PaymentInfo{
			UrgencyLevel:   entity.ScoreUrgency(b.CreatedAt, b.PaymentAmount, now),
			HoursOld:       entity.HoursSince(b.CreatedAt, now),
			RemindersSent:  b.RemindersSent,
			LastReminderAt: b.LastReminderAt,
			ExpiresAt:      b.PaymentExpiresAt,
			PaidAt:         b.PaidAt,
		},
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func PaymentActionToResponse(a *entity.PaymentAction) PaymentActionResponse {
	return PaymentActionResponse{
		ActionType:    a.ActionType,
		Amount:        a.Amount,
		FailureReason: a.FailureReason,
		ProcessorID:   a.ProcessorID,
		Notes:         a.Notes,
		TraceID:       a.TraceID,
		Timestamp:     a.CreatedAt,
	}
}

func WorkflowTriggerToResponse(t *entity.WorkflowTrigger) WorkflowTriggerResponse {
	return WorkflowTriggerResponse{
		WorkflowName: t.WorkflowName,
		Status:       t.Status,
		TriggeredAt:  t.CreatedAt,
		CompletedAt:  t.CompletedAt,
	}
}
