package request

type ManualActionRequest struct {
	Action       string  `json:"action" validate:"required,oneof=send_reminder mark_contacted mark_expired reopen_payment"`
	ReminderType *string `json:"reminder_type,omitempty" validate:"omitempty,oneof=email sms phone"`
	Notes        *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type PendingPaymentsQuery struct {
	Limit          int  `json:"limit" validate:"min=1,max=200"`
	IncludeExpired bool `json:"include_expired"`
}
