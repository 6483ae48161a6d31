package entity

import (
	"time"
)

type Source string

const (
	SourceGHL    Source = "ghl"
	SourceStripe Source = "stripe"
)

type WebhookEventStatus string

const (
	WebhookEventReceived  WebhookEventStatus = "received"
	WebhookEventProcessed WebhookEventStatus = "processed"
	WebhookEventSkipped   WebhookEventStatus = "skipped"
	WebhookEventFailed    WebhookEventStatus = "failed"
)

// WebhookEvent stores every inbound webhook that passed ingress pre-checks,
// raw payload included, so failed events can be replayed by an operator.
type WebhookEvent struct {
	BaseSimple
	Source          Source             `db:"source"`
	EventType       string             `db:"event_type"`
	ExternalEventID *string            `db:"external_event_id"`
	Payload         []byte             `db:"payload"`
	Verified        bool               `db:"verified"`
	TraceID         string             `db:"trace_id"`
	Status          WebhookEventStatus `db:"status"`
	LastError       *string            `db:"last_error"`
	ProcessedAt     *time.Time         `db:"processed_at"`
}
