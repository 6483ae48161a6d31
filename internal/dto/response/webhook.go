package response

import "time"

// WebhookAck is what external senders get back once pre-checks pass,
// regardless of how processing went.
type WebhookAck struct {
	Success   bool      `json:"success"`
	TraceID   string    `json:"traceId"`
	Timestamp time.Time `json:"timestamp"`
}
