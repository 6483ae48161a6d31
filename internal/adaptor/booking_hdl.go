package adaptor

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"notary-booking/internal/data/entity"
	"notary-booking/internal/data/repository"
	"notary-booking/internal/dto/request"
	"notary-booking/internal/dto/response"
	"notary-booking/internal/usecase"
	"notary-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const actionHistoryLimit = 50

type BookingHandler struct {
	reconcile usecase.ReconcileService
	pending   usecase.PendingPaymentService
	repo      *repository.Repository
	log       *zap.Logger
}

func NewBookingHandler(reconcile usecase.ReconcileService, pending usecase.PendingPaymentService, repo *repository.Repository, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		reconcile: reconcile,
		pending:   pending,
		repo:      repo,
		log:       log.With(zap.String("handler", "booking")),
	}
}

// GetBooking handles GET /api/admin/bookings/{bookingId} (admin only)
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	if bookingID == "" {
		utils.ResponseBadRequest(w, "Booking ID is required", nil)
		return
	}

	booking, err := h.repo.Booking.FindByBookingID(r.Context(), bookingID)
	if err != nil {
		h.handleServiceError(w, err, "get booking")
		return
	}
	if booking == nil {
		utils.ResponseNotFound(w, "Booking not found")
		return
	}

	actions, err := h.repo.PaymentAction.FindByBookingID(r.Context(), bookingID, actionHistoryLimit)
	if err != nil {
		h.handleServiceError(w, err, "get booking actions")
		return
	}

	triggers, err := h.repo.WorkflowTrigger.FindByBookingID(r.Context(), bookingID)
	if err != nil {
		h.handleServiceError(w, err, "get booking workflows")
		return
	}

	detail := response.BookingDetailResponse{
		BookingResponse:  response.BookingToResponse(booking, time.Now()),
		PaymentActions:   make([]response.PaymentActionResponse, 0, len(actions)),
		WorkflowTriggers: make([]response.WorkflowTriggerResponse, 0, len(triggers)),
	}
	for _, a := range actions {
		detail.PaymentActions = append(detail.PaymentActions, response.PaymentActionToResponse(a))
	}
	for _, t := range triggers {
		detail.WorkflowTriggers = append(detail.WorkflowTriggers, response.WorkflowTriggerToResponse(t))
	}

	utils.ResponseSuccess(w, "success", detail)
}

// GetPendingPayments handles GET /api/admin/pending-payments (admin only)
func (h *BookingHandler) GetPendingPayments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	req := request.PendingPaymentsQuery{
		Limit:          utils.ParseInt(query.Get("limit"), 50),
		IncludeExpired: query.Get("include_expired") == "true",
	}
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	resp, err := h.pending.ListPending(r.Context(), req.Limit, req.IncludeExpired)
	if err != nil {
		h.handleServiceError(w, err, "list pending payments")
		return
	}

	utils.ResponseSuccess(w, "success", resp)
}

// PostManualAction handles POST /api/admin/bookings/{bookingId}/actions (admin only)
func (h *BookingHandler) PostManualAction(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")
	if bookingID == "" {
		utils.ResponseBadRequest(w, "Booking ID is required", nil)
		return
	}

	var req request.ManualActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	ev := usecase.Evidence{
		ReminderType: req.ReminderType,
		Notes:        req.Notes,
		TraceID:      utils.GenerateTraceID(),
		Manual:       true,
	}
	key := usecase.CorrelationKey{Type: usecase.CorrelationBookingID, Value: bookingID}

	var (
		booking *entity.Booking
		err     error
	)
	switch req.Action {
	case "send_reminder":
		booking, err = h.reconcile.RecordReminderAction(r.Context(), bookingID, entity.ActionSendReminder, ev)
	case "mark_contacted":
		booking, err = h.reconcile.RecordReminderAction(r.Context(), bookingID, entity.ActionMarkContacted, ev)
	case "mark_expired":
		booking, err = h.reconcile.Reconcile(r.Context(), key, entity.PaymentStatusExpired, ev)
	case "reopen_payment":
		booking, err = h.reconcile.Reconcile(r.Context(), key, entity.PaymentStatusPending, ev)
	default:
		utils.ResponseBadRequest(w, "Unknown action", nil)
		return
	}
	if err != nil {
		h.handleServiceError(w, err, "apply manual action")
		return
	}

	h.log.Info("Manual action applied",
		zap.String("booking_id", bookingID),
		zap.String("action", req.Action),
		zap.String("trace_id", ev.TraceID),
	)

	utils.ResponseSuccess(w, "success", response.BookingToResponse(booking, time.Now()))
}

// handleServiceError maps usecase errors onto HTTP responses
func (h *BookingHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, usecase.ErrBookingNotFound):
		h.log.Warn(operation+" failed - not found", zap.Error(err))
		utils.ResponseNotFound(w, "Booking not found")

	case errors.Is(err, usecase.ErrIllegalTransition):
		h.log.Warn(operation+" failed - illegal transition", zap.Error(err))
		utils.ResponseBadRequest(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrTransitionConflict):
		h.log.Warn(operation+" failed - concurrent conflict", zap.Error(err))
		utils.ResponseBadRequest(w, "Booking changed concurrently, retry the action", nil)

	default:
		h.log.Error("Failed to "+operation, zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
	}
}
