package usecase

import (
	"context"
	"time"

	"notary-booking/internal/data/entity"
	"notary-booking/internal/data/repository"
	"notary-booking/internal/dto/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PendingPaymentService interface {
	// ListPending returns pending bookings with urgency recomputed from the
	// clock and an aggregate summary for the operator dashboard.
	ListPending(ctx context.Context, limit int, includeExpired bool) (*response.PendingPaymentsResponse, error)

	// Rescore walks all pending bookings in keyset batches and persists
	// urgency values that drifted since the last pass.
	Rescore(ctx context.Context) (int, error)

	// Run rescoring on a fixed interval until the context is canceled.
	Run(ctx context.Context, interval time.Duration)
}

type pendingPaymentService struct {
	repo      *repository.Repository
	batchSize int
	log       *zap.Logger
}

func NewPendingPaymentService(repo *repository.Repository, batchSize int, log *zap.Logger) PendingPaymentService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &pendingPaymentService{
		repo:      repo,
		batchSize: batchSize,
		log:       log.With(zap.String("service", "pending_payment")),
	}
}

func (s *pendingPaymentService) ListPending(ctx context.Context, limit int, includeExpired bool) (*response.PendingPaymentsResponse, error) {
	bookings, err := s.repo.Booking.ListPendingPayments(ctx, limit, includeExpired)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	resp := &response.PendingPaymentsResponse{
		Bookings: make([]response.BookingResponse, 0, len(bookings)),
		Summary: response.PendingSummary{
			UrgencyBreakdown: map[entity.UrgencyLevel]int{},
		},
	}

	for _, b := range bookings {
		br := response.BookingToResponse(b, now)
		resp.Bookings = append(resp.Bookings, br)

		resp.Summary.TotalPending++
		resp.Summary.TotalValue += b.PaymentAmount
		resp.Summary.UrgencyBreakdown[br.PaymentInfo.UrgencyLevel]++
		if br.PaymentInfo.HoursOld > resp.Summary.OldestHours {
			resp.Summary.OldestHours = br.PaymentInfo.HoursOld
		}
	}

	return resp, nil
}

func (s *pendingPaymentService) Rescore(ctx context.Context) (int, error) {
	var (
		cursor  uuid.UUID
		updated int
	)
	now := time.Now()

	for {
		batch, err := s.repo.Booking.FindPendingBatch(ctx, cursor, s.batchSize)
		if err != nil {
			return updated, err
		}
		if len(batch) == 0 {
			return updated, nil
		}

		for _, b := range batch {
			cursor = b.ID

			level := entity.ScoreUrgency(b.CreatedAt, b.PaymentAmount, now)
			hours := entity.HoursSince(b.CreatedAt, now)
			if level == b.UrgencyLevel && hours == b.HoursOld {
				continue
			}

			if err := s.repo.Booking.UpdateUrgency(ctx, b.ID, level, hours); err != nil {
				s.log.Error("Failed to persist urgency",
					zap.Error(err),
					zap.String("booking_id", b.BookingID),
				)
				continue
			}

			if level != b.UrgencyLevel {
				s.log.Info("Urgency escalated",
					zap.String("booking_id", b.BookingID),
					zap.String("from", string(b.UrgencyLevel)),
					zap.String("to", string(level)),
					zap.Int("hours_old", hours),
				)
			}
			updated++
		}

		if len(batch) < s.batchSize {
			return updated, nil
		}
	}
}

func (s *pendingPaymentService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Urgency rescoring stopped")
			return
		case <-ticker.C:
			updated, err := s.Rescore(ctx)
			if err != nil {
				s.log.Error("Urgency rescoring pass failed", zap.Error(err))
				continue
			}
			if updated > 0 {
				s.log.Info("Urgency rescoring pass finished", zap.Int("updated", updated))
			}
		}
	}
}
