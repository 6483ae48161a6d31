package crm

import (
	"context"

	"notary-booking/internal/data/entity"
	"notary-booking/internal/data/repository"
	"notary-booking/pkg/mq"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job kinds carried on the sync queue.
const (
	JobAddTag            = "add_tag"
	JobRemoveTag         = "remove_tag"
	JobTriggerWorkflow   = "trigger_workflow"
	JobUpdateCustomField = "update_custom_field"
)

// SyncJob is one outbound CRM mutation. Jobs are applied by the worker
// independently of the webhook request that produced them.
type SyncJob struct {
	Kind         string `json:"kind"`
	BookingID    string `json:"booking_id"`
	ContactID    string `json:"contact_id"`
	Tag          string `json:"tag,omitempty"`
	WorkflowName string `json:"workflow_name,omitempty"`
	FieldKey     string `json:"field_key,omitempty"`
	FieldValue   string `json:"field_value,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
}

// Dispatcher reflects local booking state onto the CRM contact. Calls
// only enqueue work; a publish failure is the caller's signal to log,
// never to roll anything back.
type Dispatcher interface {
	SyncStatus(ctx context.Context, bookingID, contactID string, newStatus entity.PaymentStatus) error
	TriggerWorkflow(ctx context.Context, bookingID, contactID, workflowName string) error
	AddTag(ctx context.Context, bookingID, contactID, tag string) error
	RemoveTag(ctx context.Context, bookingID, contactID, tag string) error
}

type amqpDispatcher struct {
	pub      *mq.Publisher
	triggers repository.WorkflowTriggerRepository
	log      *zap.Logger
}

func NewDispatcher(pub *mq.Publisher, triggers repository.WorkflowTriggerRepository, log *zap.Logger) Dispatcher {
	return &amqpDispatcher{
		pub:      pub,
		triggers: triggers,
		log:      log.With(zap.String("service", "crm_dispatcher")),
	}
}

// statusSyncPlan maps a payment status to the tag and workflow changes the
// CRM contact should receive.
type statusSyncPlan struct {
	addTags    []string
	removeTags []string
	workflow   string
}

func planForStatus(status entity.PaymentStatus) statusSyncPlan {
	switch status {
	case entity.PaymentStatusCompleted:
		return statusSyncPlan{
			addTags:    []string{"status:payment_completed", "status:service_scheduled"},
			removeTags: []string{"status:booking_pendingpayment"},
			workflow:   "booking-confirmation-system",
		}
	case entity.PaymentStatusFailed:
		return statusSyncPlan{
			addTags:  []string{"status:payment_failed"},
			workflow: "failed-payment-recovery",
		}
	case entity.PaymentStatusExpired:
		return statusSyncPlan{
			addTags:  []string{"status:payment_expired"},
			workflow: "abandoned-booking-recovery",
		}
	case entity.PaymentStatusPending:
		return statusSyncPlan{
			addTags:    []string{"status:booking_pendingpayment"},
			removeTags: []string{"status:payment_failed", "status:payment_expired"},
		}
	default:
		return statusSyncPlan{}
	}
}

func (d *amqpDispatcher) SyncStatus(ctx context.Context, bookingID, contactID string, newStatus entity.PaymentStatus) error {
	plan := planForStatus(newStatus)

	for _, tag := range plan.removeTags {
		if err := d.RemoveTag(ctx, bookingID, contactID, tag); err != nil {
			return err
		}
	}
	for _, tag := range plan.addTags {
		if err := d.AddTag(ctx, bookingID, contactID, tag); err != nil {
			return err
		}
	}
	if plan.workflow != "" {
		if err := d.TriggerWorkflow(ctx, bookingID, contactID, plan.workflow); err != nil {
			return err
		}
	}

	return nil
}

func (d *amqpDispatcher) TriggerWorkflow(ctx context.Context, bookingID, contactID, workflowName string) error {
	// Record the pending trigger first so the worker can mark the outcome.
	// Lead workflows fire before any booking exists; those get no record.
	if bookingID != "" {
		trigger := &entity.WorkflowTrigger{
			BaseSimple:   entity.BaseSimple{ID: uuid.New()},
			BookingID:    bookingID,
			WorkflowName: workflowName,
			Status:       entity.WorkflowStatusPending,
		}
		if err := d.triggers.Create(ctx, trigger); err != nil {
			d.log.Error("Failed to record workflow trigger",
				zap.Error(err),
				zap.String("booking_id", bookingID),
				zap.String("workflow", workflowName),
			)
			// Still enqueue: the CRM side effect matters more than the record.
		}
	}

	return d.publish(ctx, SyncJob{
		Kind:         JobTriggerWorkflow,
		BookingID:    bookingID,
		ContactID:    contactID,
		WorkflowName: workflowName,
	})
}

func (d *amqpDispatcher) AddTag(ctx context.Context, bookingID, contactID, tag string) error {
	return d.publish(ctx, SyncJob{
		Kind:      JobAddTag,
		BookingID: bookingID,
		ContactID: contactID,
		Tag:       tag,
	})
}

func (d *amqpDispatcher) RemoveTag(ctx context.Context, bookingID, contactID, tag string) error {
	return d.publish(ctx, SyncJob{
		Kind:      JobRemoveTag,
		BookingID: bookingID,
		ContactID: contactID,
		Tag:       tag,
	})
}

func (d *amqpDispatcher) publish(ctx context.Context, job SyncJob) error {
	if err := d.pub.PublishJSON(ctx, "crm.sync."+job.Kind, job); err != nil {
		d.log.Error("Failed to publish CRM sync job",
			zap.Error(err),
			zap.String("kind", job.Kind),
			zap.String("booking_id", job.BookingID),
			zap.String("contact_id", job.ContactID),
		)
		return err
	}

	d.log.Debug("CRM sync job enqueued",
		zap.String("kind", job.Kind),
		zap.String("booking_id", job.BookingID),
		zap.String("contact_id", job.ContactID),
	)
	return nil
}
