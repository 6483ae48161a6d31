package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notary-booking/internal/data/repository"
	"notary-booking/pkg/mq"

	"go.uber.org/zap"
)

const (
	applyTimeout = 30 * time.Second
	maxAttempts  = 3
)

// Worker drains the CRM sync queue and applies each job against the CRM
// API. Failures are retried with backoff inside the worker and then
// dropped with an error log - a stuck CRM must never back up the queue
// into the webhook path.
type Worker struct {
	consumer *mq.Consumer
	client   Client
	triggers repository.WorkflowTriggerRepository
	log      *zap.Logger
}

func NewWorker(consumer *mq.Consumer, client Client, triggers repository.WorkflowTriggerRepository, log *zap.Logger) *Worker {
	return &Worker{
		consumer: consumer,
		client:   client,
		triggers: triggers,
		log:      log.With(zap.String("worker", "crm_sync")),
	}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.consumer.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("open deliveries: %w", err)
	}

	w.log.Info("CRM sync worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			var job SyncJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				w.log.Error("Dropping malformed CRM sync job", zap.Error(err))
				_ = d.Ack(false)
				continue
			}

			w.process(ctx, job)
			_ = d.Ack(false)
		}
	}
}

func (w *Worker) process(ctx context.Context, job SyncJob) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		applyCtx, cancel := context.WithTimeout(ctx, applyTimeout)
		lastErr = w.apply(applyCtx, job)
		cancel()

		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}

		w.log.Warn("CRM sync attempt failed",
			zap.Error(lastErr),
			zap.String("kind", job.Kind),
			zap.String("contact_id", job.ContactID),
			zap.Int("attempt", attempt),
		)

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}

	// A trigger that failed all attempts never started; mark its record so
	// the booking detail view shows it. Success stays pending - the CRM
	// reports actual completion through a WorkflowComplete webhook.
	if job.Kind == JobTriggerWorkflow && job.BookingID != "" && lastErr != nil {
		w.recordWorkflowOutcome(ctx, job, lastErr)
	}

	if lastErr != nil {
		w.log.Error("CRM sync job failed after retries",
			zap.Error(lastErr),
			zap.String("kind", job.Kind),
			zap.String("booking_id", job.BookingID),
			zap.String("contact_id", job.ContactID),
		)
		return
	}

	w.log.Info("CRM sync job applied",
		zap.String("kind", job.Kind),
		zap.String("booking_id", job.BookingID),
		zap.String("contact_id", job.ContactID),
	)
}

func (w *Worker) apply(ctx context.Context, job SyncJob) error {
	switch job.Kind {
	case JobAddTag:
		return w.client.AddTag(ctx, job.ContactID, job.Tag)
	case JobRemoveTag:
		return w.client.RemoveTag(ctx, job.ContactID, job.Tag)
	case JobTriggerWorkflow:
		return w.client.TriggerWorkflow(ctx, job.ContactID, job.WorkflowName)
	case JobUpdateCustomField:
		return w.client.UpdateCustomField(ctx, job.ContactID, job.FieldKey, job.FieldValue)
	default:
		return fmt.Errorf("unknown job kind %s", job.Kind)
	}
}

func (w *Worker) recordWorkflowOutcome(ctx context.Context, job SyncJob, applyErr error) {
	err := w.triggers.MarkFailed(ctx, job.BookingID, job.WorkflowName, applyErr.Error())
	if err != nil {
		w.log.Error("Failed to record workflow outcome",
			zap.Error(err),
			zap.String("booking_id", job.BookingID),
			zap.String("workflow", job.WorkflowName),
		)
	}
}
