package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notary-booking/internal/crm"
	"notary-booking/internal/data/entity"
	"notary-booking/internal/data/repository"

	"go.uber.org/zap"
)

// Callers must tell these apart: an absent booking is expected noise from
// the external systems, an illegal transition is an operator alert, and
// anything else is a store failure worth replaying.
var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrIllegalTransition  = errors.New("illegal payment status transition")
	ErrTransitionConflict = errors.New("conflicting concurrent transition")
)

type CorrelationType string

const (
	CorrelationBookingID     CorrelationType = "booking_id"
	CorrelationContactID     CorrelationType = "ghl_contact_id"
	CorrelationPaymentIntent CorrelationType = "payment_intent_id"
)

// CorrelationKey locates the booking a webhook event refers to. The value
// is a foreign, opaque string - stored and matched, never validated.
type CorrelationKey struct {
	Type  CorrelationType
	Value string
}

// Evidence is what the triggering event knew, written into the audit row.
type Evidence struct {
	Amount        *float64
	FailureReason *string
	ProcessorID   *string
	ReminderType  *string
	Notes         *string
	TraceID       string
	Manual        bool
}

type ReconcileService interface {
	// Reconcile drives one payment status change. Safe to invoke twice with
	// the same event: re-applying the current status is a successful no-op.
	Reconcile(ctx context.Context, key CorrelationKey, newStatus entity.PaymentStatus, ev Evidence) (*entity.Booking, error)

	// RecordReminderAction handles manual follow-up actions that touch
	// reminder counters but not the payment status.
	RecordReminderAction(ctx context.Context, bookingID string, actionType entity.ActionType, ev Evidence) (*entity.Booking, error)

	// RecordObservation appends an audit row without mutating the booking
	// (processing notices, disputes).
	RecordObservation(ctx context.Context, key CorrelationKey, actionType entity.ActionType, ev Evidence) (*entity.Booking, error)
}

type reconcileService struct {
	repo       *repository.Repository
	dispatcher crm.Dispatcher
	log        *zap.Logger
}

func NewReconcileService(repo *repository.Repository, dispatcher crm.Dispatcher, log *zap.Logger) ReconcileService {
	return &reconcileService{
		repo:       repo,
		dispatcher: dispatcher,
		log:        log.With(zap.String("service", "reconcile")),
	}
}

func (s *reconcileService) findByKey(ctx context.Context, key CorrelationKey) (*entity.Booking, error) {
	switch key.Type {
	case CorrelationBookingID:
		return s.repo.Booking.FindByBookingID(ctx, key.Value)
	case CorrelationContactID:
		return s.repo.Booking.FindByContactID(ctx, key.Value)
	case CorrelationPaymentIntent:
		return s.repo.Booking.FindByPaymentIntentID(ctx, key.Value)
	default:
		return nil, fmt.Errorf("unknown correlation type %s", string(key.Type))
	}
}

func (s *reconcileService) Reconcile(ctx context.Context, key CorrelationKey, newStatus entity.PaymentStatus, ev Evidence) (*entity.Booking, error) {
	booking, err := s.findByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup booking by %s %s: %w", string(key.Type), key.Value, err)
	}
	if booking == nil {
		s.log.Warn("Webhook references unknown booking",
			zap.String("correlation_type", string(key.Type)),
			zap.String("correlation_key", key.Value),
			zap.String("new_status", string(newStatus)),
			zap.String("trace_id", ev.TraceID),
		)
		return nil, ErrBookingNotFound
	}

	// Deliveries are at-least-once; a repeat of an applied transition is
	// success, not an error, and writes no second audit row.
	if booking.PaymentStatus == newStatus {
		s.log.Info("Transition already applied, no-op",
			zap.String("booking_id", booking.BookingID),
			zap.String("status", string(newStatus)),
			zap.String("trace_id", ev.TraceID),
		)
		return booking, nil
	}

	applied, result, err := s.tryTransition(ctx, booking, newStatus, ev)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the optimistic check to a concurrent event. Re-read once
		// and re-evaluate from the fresh status.
		fresh, err := s.repo.Booking.FindByBookingID(ctx, booking.BookingID)
		if err != nil || fresh == nil {
			return nil, fmt.Errorf("re-read booking %s after conflict: %w", booking.BookingID, err)
		}
		if fresh.PaymentStatus == newStatus {
			return fresh, nil
		}
		applied, result, err = s.tryTransition(ctx, fresh, newStatus, ev)
		if err != nil {
			return nil, err
		}
		if !applied {
			s.log.Error("Transition lost two optimistic checks",
				zap.String("booking_id", booking.BookingID),
				zap.String("new_status", string(newStatus)),
				zap.String("trace_id", ev.TraceID),
			)
			return nil, ErrTransitionConflict
		}
	}

	s.log.Info("Payment status reconciled",
		zap.String("booking_id", result.BookingID),
		zap.String("from", string(booking.PaymentStatus)),
		zap.String("to", string(newStatus)),
		zap.String("trace_id", ev.TraceID),
	)

	// Local state is durable; CRM sync is eventually consistent and must
	// never affect the outcome the caller sees.
	s.dispatchSync(ctx, result, newStatus, ev.TraceID)

	return result, nil
}

func (s *reconcileService) tryTransition(ctx context.Context, booking *entity.Booking, newStatus entity.PaymentStatus, ev Evidence) (bool, *entity.Booking, error) {
	if !booking.PaymentStatus.CanTransitionTo(newStatus, ev.Manual) {
		s.log.Error("Illegal payment status transition rejected",
			zap.String("booking_id", booking.BookingID),
			zap.String("current_status", string(booking.PaymentStatus)),
			zap.String("new_status", string(newStatus)),
			zap.Bool("manual", ev.Manual),
			zap.String("trace_id", ev.TraceID),
		)
		return false, nil, fmt.Errorf("%s -> %s for booking %s: %w",
			string(booking.PaymentStatus), string(newStatus), booking.BookingID, ErrIllegalTransition)
	}

	action := entity.NewPaymentAction(booking.BookingID, actionForTransition(newStatus, ev.Manual), ev.TraceID)
	action.Amount = ev.Amount
	action.FailureReason = ev.FailureReason
	action.ProcessorID = ev.ProcessorID
	action.Notes = ev.Notes

	params := repository.TransitionParams{
		BookingID:       booking.BookingID,
		From:            booking.PaymentStatus,
		To:              newStatus,
		PaymentIntentID: ev.ProcessorID,
		Action:          action,
	}
	if newStatus == entity.PaymentStatusCompleted {
		now := time.Now()
		params.PaidAt = &now
	}

	result, applied, err := s.repo.Booking.TransitionPayment(ctx, params)
	if err != nil {
		return false, nil, err
	}
	return applied, result, nil
}

func (s *reconcileService) RecordReminderAction(ctx context.Context, bookingID string, actionType entity.ActionType, ev Evidence) (*entity.Booking, error) {
	action := entity.NewPaymentAction(bookingID, actionType, ev.TraceID)
	action.ReminderType = ev.ReminderType
	action.Notes = ev.Notes

	increment := actionType == entity.ActionSendReminder
	booking, err := s.repo.Booking.RecordReminder(ctx, bookingID, increment, action)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	s.log.Info("Manual action recorded",
		zap.String("booking_id", bookingID),
		zap.String("action", string(actionType)),
		zap.String("trace_id", ev.TraceID),
	)
	return booking, nil
}

func (s *reconcileService) RecordObservation(ctx context.Context, key CorrelationKey, actionType entity.ActionType, ev Evidence) (*entity.Booking, error) {
	booking, err := s.findByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup booking by %s %s: %w", string(key.Type), key.Value, err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	action := entity.NewPaymentAction(booking.BookingID, actionType, ev.TraceID)
	action.Amount = ev.Amount
	action.FailureReason = ev.FailureReason
	action.ProcessorID = ev.ProcessorID
	action.Notes = ev.Notes

	if err := s.repo.PaymentAction.Create(ctx, action); err != nil {
		return nil, err
	}

	return booking, nil
}

func (s *reconcileService) dispatchSync(ctx context.Context, booking *entity.Booking, newStatus entity.PaymentStatus, traceID string) {
	if booking.GHLContactID == "" {
		return
	}

	// Detach from the request so a client disconnect cannot cancel the
	// enqueue mid-way.
	if err := s.dispatcher.SyncStatus(context.WithoutCancel(ctx), booking.BookingID, booking.GHLContactID, newStatus); err != nil {
		s.log.Error("CRM sync dispatch failed, local state unaffected",
			zap.Error(err),
			zap.String("booking_id", booking.BookingID),
			zap.String("contact_id", booking.GHLContactID),
			zap.String("status", string(newStatus)),
			zap.String("trace_id", traceID),
		)
	}
}

func actionForTransition(to entity.PaymentStatus, manual bool) entity.ActionType {
	switch to {
	case entity.PaymentStatusCompleted:
		return entity.ActionPaymentCompleted
	case entity.PaymentStatusFailed:
		return entity.ActionPaymentFailed
	case entity.PaymentStatusExpired:
		if manual {
			return entity.ActionMarkExpired
		}
		return entity.ActionPaymentExpired
	case entity.PaymentStatusPending:
		return entity.ActionReopenPayment
	default:
		return entity.ActionStatusChange
	}
}
