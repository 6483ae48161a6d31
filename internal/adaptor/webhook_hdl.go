package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"notary-booking/internal/data/entity"
	"notary-booking/internal/data/repository"
	"notary-booking/internal/dto/response"
	"notary-booking/internal/usecase"
	"notary-booking/pkg/signature"
	"notary-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventDeduper reports whether an external event id was already delivered.
// Satisfied by cache.Deduper.
type EventDeduper interface {
	Seen(ctx context.Context, source, eventID string) (bool, error)
}

type WebhookHandler struct {
	service usecase.WebhookService
	events  repository.WebhookEventRepository
	deduper EventDeduper
	config  utils.WebhookConfig
	log     *zap.Logger
}

func NewWebhookHandler(service usecase.WebhookService, events repository.WebhookEventRepository, deduper EventDeduper, config utils.WebhookConfig, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		events:  events,
		deduper: deduper,
		config:  config,
		log:     log.With(zap.String("handler", "webhook")),
	}
}

// ReceiveGHL handles POST /webhooks/ghl
func (h *WebhookHandler) ReceiveGHL(w http.ResponseWriter, r *http.Request) {
	rawBody, traceID, ok := h.readBody(w, r)
	if !ok {
		return
	}

	// GHL signs with a plain HMAC when a secret is configured; an absent
	// header is tolerated but the event stays unverified. A header that is
	// present and wrong is rejected outright.
	sigHeader := r.Header.Get("x-ghl-signature")
	if sigHeader == "" {
		sigHeader = r.Header.Get("x-webhook-signature")
	}

	verified := false
	if sigHeader != "" {
		if !signature.Verify(rawBody, sigHeader, h.config.GHLSecret) {
			h.log.Warn("GHL signature verification failed",
				zap.String("trace_id", traceID),
				zap.String("remote_addr", r.RemoteAddr),
			)
			utils.ResponseUnauthorized(w, "Invalid signature")
			return
		}
		verified = true
	} else {
		h.log.Warn("GHL webhook without signature accepted as unverified",
			zap.String("trace_id", traceID),
		)
	}

	if tsHeader := r.Header.Get("x-timestamp"); tsHeader != "" {
		ts, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil || !signature.ValidateTimestamp(ts, h.config.ToleranceSeconds) {
			h.log.Warn("GHL webhook timestamp outside replay window",
				zap.String("timestamp", tsHeader),
				zap.String("trace_id", traceID),
			)
			utils.ResponseBadRequest(w, "Timestamp outside allowed window", nil)
			return
		}
	}

	var envelope struct {
		Type    string `json:"type"`
		EventID string `json:"webhookId"`
	}
	// Body already passed pre-checks; a decode failure from here on is a
	// processing problem, not a sender problem.
	_ = json.Unmarshal(rawBody, &envelope)

	h.accept(w, r.Context(), entity.SourceGHL, envelope.Type, envelope.EventID, rawBody, traceID, verified)
}

// ReceiveStripe handles POST /webhooks/stripe
func (h *WebhookHandler) ReceiveStripe(w http.ResponseWriter, r *http.Request) {
	rawBody, traceID, ok := h.readBody(w, r)
	if !ok {
		return
	}

	tolerance := time.Duration(h.config.ToleranceSeconds) * time.Second
	verified := signature.VerifyStripe(rawBody, r.Header.Get("x-stripe-signature"), h.config.StripeSecret, tolerance)
	if !verified {
		h.log.Warn("Stripe signature verification failed",
			zap.String("trace_id", traceID),
			zap.String("remote_addr", r.RemoteAddr),
		)
		utils.ResponseUnauthorized(w, "Invalid signature")
		return
	}

	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	_ = json.Unmarshal(rawBody, &envelope)

	h.accept(w, r.Context(), entity.SourceStripe, envelope.Type, envelope.ID, rawBody, traceID, verified)
}

// readBody runs the shared pre-checks: content type, then size. The raw
// bytes are captured before any parsing so signatures verify against what
// was actually sent.
func (h *WebhookHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	traceID := utils.GenerateTraceID()

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") &&
		!strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		h.log.Warn("Webhook with unsupported content type",
			zap.String("content_type", contentType),
			zap.String("trace_id", traceID),
		)
		utils.ResponseBadRequest(w, "Unsupported content type", nil)
		return nil, traceID, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.log.Warn("Webhook body too large",
				zap.Int64("limit", maxErr.Limit),
				zap.String("trace_id", traceID),
			)
			utils.ResponsePayloadTooLarge(w, "Request body too large")
			return nil, traceID, false
		}
		utils.ResponseBadRequest(w, "Failed to read request body", nil)
		return nil, traceID, false
	}

	return rawBody, traceID, true
}

// accept persists the event, deduplicates it, routes it, and acknowledges
// with 200 no matter how processing went. Retrying senders get nothing to
// retry about once pre-checks have passed.
func (h *WebhookHandler) accept(w http.ResponseWriter, ctx context.Context, source entity.Source, eventType, externalID string, rawBody []byte, traceID string, verified bool) {
	event := &entity.WebhookEvent{
		BaseSimple: entity.BaseSimple{ID: uuid.New()},
		Source:     source,
		EventType:  eventType,
		Payload:    rawBody,
		Verified:   verified,
		TraceID:    traceID,
		Status:     entity.WebhookEventReceived,
	}
	if externalID != "" {
		event.ExternalEventID = &externalID
	}

	if externalID != "" {
		seen, err := h.deduper.Seen(ctx, string(source), externalID)
		if err != nil {
			// Redis being down degrades to at-least-once; the reconciler is
			// idempotent either way.
			h.log.Error("Dedup check failed, processing anyway",
				zap.Error(err),
				zap.String("trace_id", traceID),
			)
		} else if seen {
			h.log.Info("Duplicate webhook event skipped",
				zap.String("source", string(source)),
				zap.String("external_event_id", externalID),
				zap.String("trace_id", traceID),
			)
			event.Status = entity.WebhookEventSkipped
			if err := h.events.Create(ctx, event); err != nil {
				h.log.Error("Failed to store skipped webhook event", zap.Error(err), zap.String("trace_id", traceID))
			}
			h.ack(w, traceID)
			return
		}
	}

	if err := h.events.Create(ctx, event); err != nil {
		h.log.Error("Failed to store webhook event", zap.Error(err), zap.String("trace_id", traceID))
	}

	// A sender that hangs up early must not abort a mutation mid-flight.
	h.route(context.WithoutCancel(ctx), event)
	h.ack(w, traceID)
}

// route runs the event through the router and records the outcome on the
// stored event row.
func (h *WebhookHandler) route(ctx context.Context, event *entity.WebhookEvent) {
	err := h.service.Route(ctx, usecase.InboundEvent{
		Source:   event.Source,
		Type:     event.EventType,
		Payload:  event.Payload,
		TraceID:  event.TraceID,
		Verified: event.Verified,
	})

	status := entity.WebhookEventProcessed
	var lastError *string
	if err != nil {
		h.log.Error("Webhook processing failed",
			zap.Error(err),
			zap.String("source", string(event.Source)),
			zap.String("event_type", event.EventType),
			zap.String("trace_id", event.TraceID),
		)
		status = entity.WebhookEventFailed
		msg := err.Error()
		lastError = &msg
	}

	if err := h.events.MarkOutcome(ctx, event.ID, status, lastError); err != nil {
		h.log.Error("Failed to mark webhook outcome", zap.Error(err), zap.String("trace_id", event.TraceID))
	}
}

// Replay handles POST /api/admin/webhooks/{id}/replay (admin only). It
// re-runs a stored event through the router, signature checks skipped: the
// operator vouches for it.
func (h *WebhookHandler) Replay(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid event ID", nil)
		return
	}

	event, err := h.events.FindByID(r.Context(), id)
	if err != nil {
		h.log.Error("Failed to load webhook event for replay", zap.Error(err), zap.String("event_id", id.String()))
		utils.ResponseInternalError(w, "Internal server error")
		return
	}
	if event == nil {
		utils.ResponseNotFound(w, "Webhook event not found")
		return
	}

	h.log.Info("Replaying webhook event",
		zap.String("event_id", id.String()),
		zap.String("source", string(event.Source)),
		zap.String("event_type", event.EventType),
		zap.String("trace_id", event.TraceID),
	)

	h.route(r.Context(), event)
	utils.ResponseSuccess(w, "success", nil)
}

func (h *WebhookHandler) ack(w http.ResponseWriter, traceID string) {
	ack := response.WebhookAck{
		Success:   true,
		TraceID:   traceID,
		Timestamp: time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(ack)
}
