package entity

import (
	"time"
)

type WorkflowStatus string

const (
	WorkflowStatusPending   WorkflowStatus = "pending"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusFailed    WorkflowStatus = "failed"
)

// WorkflowTrigger records a CRM workflow invocation for a booking and its
// eventual completion as reported back by the CRM.
type WorkflowTrigger struct {
	BaseSimple
	BookingID    string         `db:"booking_id"`
	WorkflowName string         `db:"workflow_name"`
	Status       WorkflowStatus `db:"status"`
	CompletedAt  *time.Time     `db:"completed_at"`
	LastError    *string        `db:"last_error"`
}
