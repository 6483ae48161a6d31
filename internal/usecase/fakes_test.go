package usecase

import (
	"context"
	"errors"
	"sync"

	"notary-booking/internal/crm"
	"notary-booking/internal/data/entity"
	"notary-booking/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*entity.Booking
	actions  []*entity.PaymentAction

	// When > 0, TransitionPayment reports applied=false that many times
	// before behaving normally, simulating a lost optimistic check.
	loseTransitions int
}

func newFakeBookingRepo(bookings ...*entity.Booking) *fakeBookingRepo {
	r := &fakeBookingRepo{bookings: map[string]*entity.Booking{}}
	for _, b := range bookings {
		r.bookings[b.BookingID] = b
	}
	return r
}

func (r *fakeBookingRepo) FindByBookingID(ctx context.Context, bookingID string) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBookingRepo) FindByContactID(ctx context.Context, contactID string) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.GHLContactID == contactID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.PaymentIntentID != nil && *b.PaymentIntentID == paymentIntentID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) TransitionPayment(ctx context.Context, p repository.TransitionParams) (*entity.Booking, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loseTransitions > 0 {
		r.loseTransitions--
		return nil, false, nil
	}

	b, ok := r.bookings[p.BookingID]
	if !ok || b.PaymentStatus != p.From {
		return nil, false, nil
	}

	b.PaymentStatus = p.To
	if p.PaidAt != nil {
		b.PaidAt = p.PaidAt
	}
	if p.PaymentIntentID != nil {
		b.PaymentIntentID = p.PaymentIntentID
	}
	if p.Action != nil {
		r.actions = append(r.actions, p.Action)
	}

	copied := *b
	return &copied, true, nil
}

func (r *fakeBookingRepo) RecordReminder(ctx context.Context, bookingID string, increment bool, action *entity.PaymentAction) (*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, nil
	}
	if increment {
		b.RemindersSent++
	}
	if action != nil {
		r.actions = append(r.actions, action)
	}

	copied := *b
	return &copied, nil
}

func (r *fakeBookingRepo) ListPendingPayments(ctx context.Context, limit int, includeExpired bool) ([]*entity.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.bookings {
		if b.PaymentStatus == entity.PaymentStatusPending && len(out) < limit {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) FindPendingBatch(ctx context.Context, cursor uuid.UUID, limit int) ([]*entity.Booking, error) {
	return r.ListPendingPayments(ctx, limit, true)
}

func (r *fakeBookingRepo) UpdateUrgency(ctx context.Context, id uuid.UUID, level entity.UrgencyLevel, hoursOld int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.ID == id {
			b.UrgencyLevel = level
			b.HoursOld = hoursOld
			return nil
		}
	}
	return errors.New("booking not found")
}

func (r *fakeBookingRepo) actionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.actions)
}

type fakePaymentActionRepo struct {
	mu      sync.Mutex
	actions []*entity.PaymentAction
}

func (r *fakePaymentActionRepo) Create(ctx context.Context, action *entity.PaymentAction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, action)
	return nil
}

func (r *fakePaymentActionRepo) FindByBookingID(ctx context.Context, bookingID string, limit int) ([]*entity.PaymentAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.PaymentAction
	for _, a := range r.actions {
		if a.BookingID == bookingID && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakePaymentActionRepo) CountByBookingAndType(ctx context.Context, bookingID string, actionType entity.ActionType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.actions {
		if a.BookingID == bookingID && a.ActionType == actionType {
			n++
		}
	}
	return n, nil
}

type fakeWorkflowTriggerRepo struct {
	mu        sync.Mutex
	triggers  []*entity.WorkflowTrigger
	completed []string
}

func (r *fakeWorkflowTriggerRepo) Create(ctx context.Context, trigger *entity.WorkflowTrigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers = append(r.triggers, trigger)
	return nil
}

func (r *fakeWorkflowTriggerRepo) FindByBookingID(ctx context.Context, bookingID string) ([]*entity.WorkflowTrigger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.WorkflowTrigger
	for _, t := range r.triggers {
		if t.BookingID == bookingID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeWorkflowTriggerRepo) MarkCompleted(ctx context.Context, bookingID, workflowName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, bookingID+"/"+workflowName)
	return nil
}

func (r *fakeWorkflowTriggerRepo) MarkFailed(ctx context.Context, bookingID, workflowName, reason string) error {
	return nil
}

type fakeWebhookEventRepo struct {
	mu     sync.Mutex
	events []*entity.WebhookEvent
}

func (r *fakeWebhookEventRepo) Create(ctx context.Context, event *entity.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeWebhookEventRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeWebhookEventRepo) MarkOutcome(ctx context.Context, id uuid.UUID, status entity.WebhookEventStatus, lastError *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.Status = status
			e.LastError = lastError
		}
	}
	return nil
}

// dispatchCall records one Dispatcher invocation.
type dispatchCall struct {
	kind      string
	bookingID string
	contactID string
	value     string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
}

func (d *fakeDispatcher) SyncStatus(ctx context.Context, bookingID, contactID string, newStatus entity.PaymentStatus) error {
	d.record(dispatchCall{kind: "sync_status", bookingID: bookingID, contactID: contactID, value: string(newStatus)})
	return nil
}

func (d *fakeDispatcher) TriggerWorkflow(ctx context.Context, bookingID, contactID, workflowName string) error {
	d.record(dispatchCall{kind: "trigger_workflow", bookingID: bookingID, contactID: contactID, value: workflowName})
	return nil
}

func (d *fakeDispatcher) AddTag(ctx context.Context, bookingID, contactID, tag string) error {
	d.record(dispatchCall{kind: "add_tag", bookingID: bookingID, contactID: contactID, value: tag})
	return nil
}

func (d *fakeDispatcher) RemoveTag(ctx context.Context, bookingID, contactID, tag string) error {
	d.record(dispatchCall{kind: "remove_tag", bookingID: bookingID, contactID: contactID, value: tag})
	return nil
}

func (d *fakeDispatcher) record(c dispatchCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *fakeDispatcher) callsOf(kind string) []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []dispatchCall
	for _, c := range d.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

type fakeCRMClient struct {
	contact *crm.Contact
}

func (c *fakeCRMClient) GetContact(ctx context.Context, contactID string) (*crm.Contact, error) {
	if c.contact == nil {
		return nil, errors.New("contact not found")
	}
	return c.contact, nil
}

func (c *fakeCRMClient) AddTag(ctx context.Context, contactID, tag string) error    { return nil }
func (c *fakeCRMClient) RemoveTag(ctx context.Context, contactID, tag string) error { return nil }
func (c *fakeCRMClient) TriggerWorkflow(ctx context.Context, contactID, workflowName string) error {
	return nil
}
func (c *fakeCRMClient) UpdateCustomField(ctx context.Context, contactID, key, value string) error {
	return nil
}

func testRepository(bookings *fakeBookingRepo) (*repository.Repository, *fakeWorkflowTriggerRepo) {
	triggers := &fakeWorkflowTriggerRepo{}
	return &repository.Repository{
		Booking:         bookings,
		PaymentAction:   &fakePaymentActionRepo{},
		WorkflowTrigger: triggers,
		WebhookEvent:    &fakeWebhookEventRepo{},
	}, triggers
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
