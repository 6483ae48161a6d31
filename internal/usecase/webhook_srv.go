package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"notary-booking/internal/crm"
	"notary-booking/internal/data/entity"
	"notary-booking/internal/data/repository"

	"go.uber.org/zap"
)

// GHL event vocabulary. The set is closed on purpose: a new upstream event
// type lands in the default branch (warn + ack) until someone adds it here.
type GHLEventType string

const (
	GHLContactCreate     GHLEventType = "ContactCreate"
	GHLContactUpdate     GHLEventType = "ContactUpdate"
	GHLTagAdd            GHLEventType = "TagAdd"
	GHLTagRemove         GHLEventType = "TagRemove"
	GHLFormSubmit        GHLEventType = "FormSubmit"
	GHLCustomFieldUpdate GHLEventType = "CustomFieldUpdate"
	GHLWorkflowComplete  GHLEventType = "WorkflowComplete"
)

// Stripe event vocabulary.
type StripeEventType string

const (
	StripePaymentSucceeded  StripeEventType = "payment_intent.succeeded"
	StripePaymentFailed     StripeEventType = "payment_intent.payment_failed"
	StripePaymentProcessing StripeEventType = "payment_intent.processing"
	StripePaymentCanceled   StripeEventType = "payment_intent.canceled"
	StripeDisputeCreated    StripeEventType = "charge.dispute.created"
)

// InboundEvent is a webhook that passed ingress pre-checks.
type InboundEvent struct {
	Source   entity.Source
	Type     string
	Payload  []byte
	TraceID  string
	Verified bool
}

type WebhookService interface {
	// Route dispatches the event to its handler. The returned error means a
	// processing failure the operator may want to replay; unknown event
	// types and unknown bookings are acknowledged nil.
	Route(ctx context.Context, evt InboundEvent) error
}

type webhookService struct {
	repo       *repository.Repository
	reconciler ReconcileService
	dispatcher crm.Dispatcher
	crmClient  crm.Client
	log        *zap.Logger
}

func NewWebhookService(repo *repository.Repository, reconciler ReconcileService, dispatcher crm.Dispatcher, crmClient crm.Client, log *zap.Logger) WebhookService {
	return &webhookService{
		repo:       repo,
		reconciler: reconciler,
		dispatcher: dispatcher,
		crmClient:  crmClient,
		log:        log.With(zap.String("service", "webhook")),
	}
}

func (s *webhookService) Route(ctx context.Context, evt InboundEvent) error {
	switch evt.Source {
	case entity.SourceGHL:
		return s.routeGHL(ctx, evt)
	case entity.SourceStripe:
		return s.routeStripe(ctx, evt)
	default:
		s.log.Warn("Event from unknown source acknowledged",
			zap.String("source", string(evt.Source)),
			zap.String("trace_id", evt.TraceID),
		)
		return nil
	}
}

// ==================== GHL ====================

type ghlPayload struct {
	Type      string `json:"type"`
	ContactID string `json:"contactId"`
	Tag       string `json:"tag"`
	Source    string `json:"source"`
	Contact   struct {
		ID    string   `json:"id"`
		Email string   `json:"email"`
		Tags  []string `json:"tags"`
	} `json:"contact"`
	Form struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"form"`
	FormData     map[string]any `json:"formData"`
	FieldName    string         `json:"fieldName"`
	FieldValue   string         `json:"fieldValue"`
	WorkflowName string         `json:"workflowName"`
}

// Tags whose arrival should start a CRM workflow.
var tagWorkflows = map[string]string{
	"status:booking_pendingpayment": "enhanced-payment-followup-automation",
	"status:payment_failed":         "failed-payment-recovery",
	"status:booking_abandoned":      "abandoned-booking-recovery",
	"status:reschedule_requested":   "rescheduling-automation",
	"status:no_show":                "no-show-recovery-system",
	"service:emergency":             "emergency-service-response",
	"service:completed":             "post-service-followup",
	"lead:new":                      "lead-qualification-and-booking",
	"source:facebook_ads":           "facebook-google-ad-lead-automation",
	"source:google_ads":             "facebook-google-ad-lead-automation",
}

// Status tags that mirror a payment status change made inside the CRM.
var tagStatuses = map[string]entity.PaymentStatus{
	"status:payment_completed": entity.PaymentStatusCompleted,
	"status:payment_failed":    entity.PaymentStatusFailed,
	"status:payment_expired":   entity.PaymentStatusExpired,
}

func (s *webhookService) routeGHL(ctx context.Context, evt InboundEvent) error {
	var p ghlPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("decode ghl payload: %w", err)
	}
	if p.ContactID == "" {
		p.ContactID = p.Contact.ID
	}

	switch GHLEventType(evt.Type) {
	case GHLContactCreate:
		return s.handleContactCreate(ctx, evt, p)
	case GHLContactUpdate:
		s.log.Info("Contact updated",
			zap.String("contact_id", p.ContactID),
			zap.String("trace_id", evt.TraceID),
		)
		return nil
	case GHLTagAdd:
		return s.handleTagAdd(ctx, evt, p)
	case GHLTagRemove:
		return s.handleTagRemove(ctx, evt, p)
	case GHLFormSubmit:
		return s.handleFormSubmit(ctx, evt, p)
	case GHLCustomFieldUpdate:
		s.log.Info("Custom field updated",
			zap.String("contact_id", p.ContactID),
			zap.String("field", p.FieldName),
			zap.String("trace_id", evt.TraceID),
		)
		return nil
	case GHLWorkflowComplete:
		return s.handleWorkflowComplete(ctx, evt, p)
	default:
		s.log.Warn("Unknown GHL event type acknowledged",
			zap.String("event_type", evt.Type),
			zap.String("contact_id", p.ContactID),
			zap.String("trace_id", evt.TraceID),
		)
		return nil
	}
}

func (s *webhookService) handleContactCreate(ctx context.Context, evt InboundEvent, p ghlPayload) error {
	workflow := "lead-nurturing-sequence"
	switch p.Source {
	case "facebook_ads", "google_ads":
		workflow = "facebook-google-ad-lead-automation"
	case "website_form":
		workflow = "lead-magnet-automation"
	}

	s.log.Info("New contact created",
		zap.String("contact_id", p.ContactID),
		zap.String("source", p.Source),
		zap.String("trace_id", evt.TraceID),
	)

	if err := s.dispatcher.TriggerWorkflow(ctx, "", p.ContactID, workflow); err != nil {
		s.log.Error("Failed to enqueue lead workflow",
			zap.Error(err),
			zap.String("contact_id", p.ContactID),
			zap.String("trace_id", evt.TraceID),
		)
	}
	return nil
}

func (s *webhookService) handleTagAdd(ctx context.Context, evt InboundEvent, p ghlPayload) error {
	s.log.Info("Tag added to contact",
		zap.String("contact_id", p.ContactID),
		zap.String("tag", p.Tag),
		zap.String("trace_id", evt.TraceID),
	)

	if workflow, ok := tagWorkflows[p.Tag]; ok {
		bookingID := s.bookingIDForContact(ctx, p.ContactID)
		if err := s.dispatcher.TriggerWorkflow(ctx, bookingID, p.ContactID, workflow); err != nil {
			s.log.Error("Failed to enqueue tag workflow",
				zap.Error(err),
				zap.String("tag", p.Tag),
				zap.String("trace_id", evt.TraceID),
			)
		}
	}

	newStatus, ok := tagStatuses[p.Tag]
	if !ok {
		return nil
	}

	// A status tag mutates the booking; unverified senders don't get that.
	if !evt.Verified {
		s.log.Warn("Unverified GHL event may not change payment status",
			zap.String("tag", p.Tag),
			zap.String("contact_id", p.ContactID),
			zap.String("trace_id", evt.TraceID),
		)
		return nil
	}

	return s.reconcileAck(ctx, CorrelationKey{Type: CorrelationContactID, Value: p.ContactID}, newStatus, Evidence{TraceID: evt.TraceID})
}

func (s *webhookService) handleTagRemove(ctx context.Context, evt InboundEvent, p ghlPayload) error {
	s.log.Info("Tag removed from contact",
		zap.String("contact_id", p.ContactID),
		zap.String("tag", p.Tag),
		zap.String("trace_id", evt.TraceID),
	)

	// Dropping the pending-payment tag usually means the payment landed in
	// the CRM first. Ask the CRM and reconcile if so.
	if p.Tag != "status:booking_pendingpayment" || !evt.Verified {
		return nil
	}

	contact, err := s.crmClient.GetContact(ctx, p.ContactID)
	if err != nil {
		s.log.Error("Failed to re-check contact after tag removal",
			zap.Error(err),
			zap.String("contact_id", p.ContactID),
			zap.String("trace_id", evt.TraceID),
		)
		return nil
	}

	for _, tag := range contact.Tags {
		if tag == "status:payment_completed" {
			return s.reconcileAck(ctx,
				CorrelationKey{Type: CorrelationContactID, Value: p.ContactID},
				entity.PaymentStatusCompleted,
				Evidence{TraceID: evt.TraceID})
		}
	}
	return nil
}

func (s *webhookService) handleFormSubmit(ctx context.Context, evt InboundEvent, p ghlPayload) error {
	s.log.Info("Form submitted",
		zap.String("contact_id", p.ContactID),
		zap.String("form_id", p.Form.ID),
		zap.String("trace_id", evt.TraceID),
	)

	bookingID := s.bookingIDForContact(ctx, p.ContactID)

	if p.Form.ID == "quote-request-form" {
		_ = s.dispatcher.AddTag(ctx, bookingID, p.ContactID, "status:quote_requested")
		_ = s.dispatcher.TriggerWorkflow(ctx, bookingID, p.ContactID, "quote-request-automation")
	}

	if _, ok := p.FormData["serviceType"]; ok {
		_ = s.dispatcher.AddTag(ctx, bookingID, p.ContactID, "lead:qualified")
		_ = s.dispatcher.TriggerWorkflow(ctx, bookingID, p.ContactID, "form-to-booking-automation")
	}

	return nil
}

func (s *webhookService) handleWorkflowComplete(ctx context.Context, evt InboundEvent, p ghlPayload) error {
	bookingID := s.bookingIDForContact(ctx, p.ContactID)
	if bookingID == "" {
		s.log.Warn("Workflow completion for contact without booking",
			zap.String("contact_id", p.ContactID),
			zap.String("workflow", p.WorkflowName),
			zap.String("trace_id", evt.TraceID),
		)
		return nil
	}

	if err := s.repo.WorkflowTrigger.MarkCompleted(ctx, bookingID, p.WorkflowName); err != nil {
		return err
	}

	s.log.Info("Workflow completed",
		zap.String("booking_id", bookingID),
		zap.String("workflow", p.WorkflowName),
		zap.String("trace_id", evt.TraceID),
	)
	return nil
}

func (s *webhookService) bookingIDForContact(ctx context.Context, contactID string) string {
	if contactID == "" {
		return ""
	}
	booking, err := s.repo.Booking.FindByContactID(ctx, contactID)
	if err != nil || booking == nil {
		return ""
	}
	return booking.BookingID
}

// ==================== Stripe ====================

type stripePayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeObject `json:"object"`
	} `json:"data"`
}

type stripeObject struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	AmountReceived   int64             `json:"amount_received"`
	Metadata         map[string]string `json:"metadata"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	PaymentIntent string `json:"payment_intent"`
	DisputeReason string `json:"dispute_reason"`
}

func (s *webhookService) routeStripe(ctx context.Context, evt InboundEvent) error {
	var p stripePayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return fmt.Errorf("decode stripe payload: %w", err)
	}
	obj := p.Data.Object

	eventType := StripeEventType(evt.Type)

	// Every Stripe handler below can move money-adjacent state, so the
	// strict policy applies to all of them: unverified events are logged
	// and dropped.
	if !evt.Verified {
		s.log.Warn("Unverified payment event rejected",
			zap.String("event_type", evt.Type),
			zap.String("object_id", obj.ID),
			zap.String("trace_id", evt.TraceID),
		)
		return nil
	}

	switch eventType {
	case StripePaymentSucceeded:
		amount := float64(obj.AmountReceived) / 100
		return s.reconcileAck(ctx, stripeCorrelation(obj), entity.PaymentStatusCompleted, Evidence{
			Amount:      &amount,
			ProcessorID: &obj.ID,
			TraceID:     evt.TraceID,
		})

	case StripePaymentFailed:
		ev := Evidence{ProcessorID: &obj.ID, TraceID: evt.TraceID}
		if obj.LastPaymentError != nil {
			ev.FailureReason = &obj.LastPaymentError.Message
		}
		return s.reconcileAck(ctx, stripeCorrelation(obj), entity.PaymentStatusFailed, ev)

	case StripePaymentProcessing:
		s.log.Info("Payment processing",
			zap.String("payment_intent", obj.ID),
			zap.Float64("amount", float64(obj.Amount)/100),
			zap.String("trace_id", evt.TraceID),
		)
		return nil

	case StripePaymentCanceled:
		return s.handlePaymentCanceled(ctx, evt, obj)

	case StripeDisputeCreated:
		return s.handleDisputeCreated(ctx, evt, obj)

	default:
		s.log.Warn("Unknown Stripe event type acknowledged",
			zap.String("event_type", evt.Type),
			zap.String("trace_id", evt.TraceID),
		)
		return nil
	}
}

func (s *webhookService) handlePaymentCanceled(ctx context.Context, evt InboundEvent, obj stripeObject) error {
	// Cancellation does not end the payment window; the booking stays
	// pending and the contact gets routed into abandoned-booking recovery.
	booking, err := s.reconciler.RecordObservation(ctx, stripeCorrelation(obj), entity.ActionPaymentCanceled, Evidence{
		ProcessorID: &obj.ID,
		TraceID:     evt.TraceID,
	})
	if errors.Is(err, ErrBookingNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if booking.GHLContactID != "" {
		if err := s.dispatcher.AddTag(ctx, booking.BookingID, booking.GHLContactID, "status:booking_abandoned"); err != nil {
			s.log.Error("Failed to enqueue abandoned tag",
				zap.Error(err),
				zap.String("booking_id", booking.BookingID),
				zap.String("trace_id", evt.TraceID),
			)
		}
	}
	return nil
}

func (s *webhookService) handleDisputeCreated(ctx context.Context, evt InboundEvent, obj stripeObject) error {
	s.log.Warn("Charge dispute created",
		zap.String("charge_id", obj.ID),
		zap.Float64("amount", float64(obj.Amount)/100),
		zap.String("reason", obj.DisputeReason),
		zap.String("trace_id", evt.TraceID),
	)

	key := CorrelationKey{Type: CorrelationPaymentIntent, Value: obj.PaymentIntent}
	if key.Value == "" {
		return nil
	}

	reason := obj.DisputeReason
	_, err := s.reconciler.RecordObservation(ctx, key, entity.ActionDisputeCreated, Evidence{
		ProcessorID:   &obj.ID,
		FailureReason: &reason,
		TraceID:       evt.TraceID,
	})
	if errors.Is(err, ErrBookingNotFound) {
		return nil
	}
	return err
}

// stripeCorrelation prefers the bookingId the checkout flow stamped into
// metadata, falling back to the payment intent id.
func stripeCorrelation(obj stripeObject) CorrelationKey {
	if bookingID := strings.TrimSpace(obj.Metadata["bookingId"]); bookingID != "" {
		return CorrelationKey{Type: CorrelationBookingID, Value: bookingID}
	}
	return CorrelationKey{Type: CorrelationPaymentIntent, Value: obj.ID}
}

// reconcileAck collapses the reconcile error taxonomy into the webhook
// contract: not-found and illegal transitions are acknowledged (already
// logged with context), store failures propagate for the replay path.
func (s *webhookService) reconcileAck(ctx context.Context, key CorrelationKey, status entity.PaymentStatus, ev Evidence) error {
	_, err := s.reconciler.Reconcile(ctx, key, status, ev)
	if errors.Is(err, ErrBookingNotFound) || errors.Is(err, ErrIllegalTransition) {
		return nil
	}
	return err
}
