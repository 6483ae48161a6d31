package usecase

import (
	"context"
	"testing"
	"time"

	"notary-booking/internal/data/entity"
)

func TestListPendingSummary(t *testing.T) {
	fresh := pendingBooking("HMNP-30-AAAA", "contact-30")
	fresh.CreatedAt = time.Now().Add(-30 * time.Minute)
	fresh.PaymentAmount = 100

	old := pendingBooking("HMNP-31-BBBB", "contact-31")
	old.CreatedAt = time.Now().Add(-50 * time.Hour)
	old.PaymentAmount = 250

	paid := pendingBooking("HMNP-32-CCCC", "contact-32")
	paid.PaymentStatus = entity.PaymentStatusCompleted

	repo, _ := testRepository(newFakeBookingRepo(fresh, old, paid))
	svc := NewPendingPaymentService(repo, 100, testLogger())

	resp, err := svc.ListPending(context.Background(), 50, true)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}

	if resp.Summary.TotalPending != 2 {
		t.Errorf("TotalPending = %d, want 2", resp.Summary.TotalPending)
	}
	if resp.Summary.TotalValue != 350 {
		t.Errorf("TotalValue = %v, want 350", resp.Summary.TotalValue)
	}
	if resp.Summary.UrgencyBreakdown[entity.UrgencyCritical] != 1 {
		t.Errorf("breakdown = %v, want one critical", resp.Summary.UrgencyBreakdown)
	}
	if resp.Summary.UrgencyBreakdown[entity.UrgencyNew] != 1 {
		t.Errorf("breakdown = %v, want one new", resp.Summary.UrgencyBreakdown)
	}
	if resp.Summary.OldestHours < 49 {
		t.Errorf("OldestHours = %d, want at least 49", resp.Summary.OldestHours)
	}
}

func TestRescorePersistsDrift(t *testing.T) {
	stale := pendingBooking("HMNP-33-DDDD", "contact-33")
	stale.CreatedAt = time.Now().Add(-26 * time.Hour)
	stale.UrgencyLevel = entity.UrgencyNew
	stale.HoursOld = 0

	bookings := newFakeBookingRepo(stale)
	repo, _ := testRepository(bookings)
	svc := NewPendingPaymentService(repo, 100, testLogger())

	updated, err := svc.Rescore(context.Background())
	if err != nil {
		t.Fatalf("Rescore() error = %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}

	b, _ := bookings.FindByBookingID(context.Background(), "HMNP-33-DDDD")
	if b.UrgencyLevel != entity.UrgencyHigh {
		t.Errorf("urgency = %s, want high", b.UrgencyLevel)
	}
	if b.HoursOld < 26 {
		t.Errorf("HoursOld = %d, want at least 26", b.HoursOld)
	}

	// A second pass with nothing drifted is a no-op.
	updated, err = svc.Rescore(context.Background())
	if err != nil {
		t.Fatalf("Rescore() second pass error = %v", err)
	}
	if updated != 0 {
		t.Errorf("second pass updated = %d, want 0", updated)
	}
}
