package adaptor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"notary-booking/internal/data/entity"
	"notary-booking/internal/data/repository"
	"notary-booking/internal/dto/response"
	"notary-booking/internal/usecase"

	"go.uber.org/zap"
)

type fakeReconcile struct {
	lastAction entity.ActionType
	lastStatus entity.PaymentStatus
	lastManual bool
	booking    *entity.Booking
	err        error
}

func (f *fakeReconcile) Reconcile(ctx context.Context, key usecase.CorrelationKey, newStatus entity.PaymentStatus, ev usecase.Evidence) (*entity.Booking, error) {
	f.lastStatus = newStatus
	f.lastManual = ev.Manual
	return f.booking, f.err
}

func (f *fakeReconcile) RecordReminderAction(ctx context.Context, bookingID string, actionType entity.ActionType, ev usecase.Evidence) (*entity.Booking, error) {
	f.lastAction = actionType
	return f.booking, f.err
}

func (f *fakeReconcile) RecordObservation(ctx context.Context, key usecase.CorrelationKey, actionType entity.ActionType, ev usecase.Evidence) (*entity.Booking, error) {
	return f.booking, f.err
}

type fakePending struct {
	resp *response.PendingPaymentsResponse
}

func (f *fakePending) ListPending(ctx context.Context, limit int, includeExpired bool) (*response.PendingPaymentsResponse, error) {
	return f.resp, nil
}

func (f *fakePending) Rescore(ctx context.Context) (int, error) { return 0, nil }

func (f *fakePending) Run(ctx context.Context, interval time.Duration) {}

func newBookingTestHandler(reconcile *fakeReconcile, pending *fakePending) *BookingHandler {
	if pending == nil {
		pending = &fakePending{resp: &response.PendingPaymentsResponse{}}
	}
	return NewBookingHandler(reconcile, pending, &repository.Repository{}, zap.NewNop())
}

func postAction(h *BookingHandler, bookingID string, payload string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/bookings/"+bookingID+"/actions", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	req = withChiParam(req, "bookingId", bookingID)
	rec := httptest.NewRecorder()
	h.PostManualAction(rec, req)
	return rec
}

func TestPostManualActionSendReminder(t *testing.T) {
	reconcile := &fakeReconcile{booking: &entity.Booking{BookingID: "HMNP-20-AAAA", PaymentStatus: entity.PaymentStatusPending}}
	h := newBookingTestHandler(reconcile, nil)

	rec := postAction(h, "HMNP-20-AAAA", `{"action":"send_reminder","reminder_type":"email"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if reconcile.lastAction != entity.ActionSendReminder {
		t.Errorf("action = %s, want send_reminder", reconcile.lastAction)
	}
}

func TestPostManualActionReopenIsManual(t *testing.T) {
	reconcile := &fakeReconcile{booking: &entity.Booking{BookingID: "HMNP-21-BBBB", PaymentStatus: entity.PaymentStatusPending}}
	h := newBookingTestHandler(reconcile, nil)

	rec := postAction(h, "HMNP-21-BBBB", `{"action":"reopen_payment"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if reconcile.lastStatus != entity.PaymentStatusPending || !reconcile.lastManual {
		t.Errorf("reopen must reconcile to pending with the manual flag, got %s manual=%v",
			reconcile.lastStatus, reconcile.lastManual)
	}
}

func TestPostManualActionValidation(t *testing.T) {
	h := newBookingTestHandler(&fakeReconcile{}, nil)

	tests := []struct {
		name    string
		payload string
	}{
		{"unknown action", `{"action":"delete_booking"}`},
		{"missing action", `{}`},
		{"bad reminder type", `{"action":"send_reminder","reminder_type":"carrier_pigeon"}`},
		{"malformed json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postAction(h, "HMNP-22-CCCC", tt.payload)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestPostManualActionUnknownBooking(t *testing.T) {
	reconcile := &fakeReconcile{err: usecase.ErrBookingNotFound}
	h := newBookingTestHandler(reconcile, nil)

	rec := postAction(h, "HMNP-GONE", `{"action":"mark_expired"}`)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPostManualActionIllegalTransition(t *testing.T) {
	reconcile := &fakeReconcile{err: usecase.ErrIllegalTransition}
	h := newBookingTestHandler(reconcile, nil)

	rec := postAction(h, "HMNP-23-DDDD", `{"action":"mark_expired"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetPendingPayments(t *testing.T) {
	pending := &fakePending{resp: &response.PendingPaymentsResponse{
		Bookings: []response.BookingResponse{{BookingID: "HMNP-24-EEEE"}},
		Summary: response.PendingSummary{
			TotalPending:     1,
			TotalValue:       250,
			UrgencyBreakdown: map[entity.UrgencyLevel]int{entity.UrgencyHigh: 1},
		},
	}}
	h := newBookingTestHandler(&fakeReconcile{}, pending)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/pending-payments?limit=10", nil)
	rec := httptest.NewRecorder()
	h.GetPendingPayments(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var envelope struct {
		Status bool                             `json:"status"`
		Data   response.PendingPaymentsResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Status || envelope.Data.Summary.TotalPending != 1 {
		t.Errorf("response = %+v", envelope)
	}
}
