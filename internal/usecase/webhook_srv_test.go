package usecase

import (
	"context"
	"testing"

	"notary-booking/internal/crm"
	"notary-booking/internal/data/entity"
)

func newWebhookFixture(t *testing.T, bookings *fakeBookingRepo, client crm.Client) (WebhookService, *fakeDispatcher, *fakeWorkflowTriggerRepo) {
	t.Helper()
	repo, triggers := testRepository(bookings)
	dispatcher := &fakeDispatcher{}
	reconciler := NewReconcileService(repo, dispatcher, testLogger())
	if client == nil {
		client = &fakeCRMClient{}
	}
	return NewWebhookService(repo, reconciler, dispatcher, client, testLogger()), dispatcher, triggers
}

func TestRouteStripeSucceededCompletesBooking(t *testing.T) {
	bookings := newFakeBookingRepo(pendingBooking("HMNP-10-AAAA", "contact-10"))
	svc, dispatcher, _ := newWebhookFixture(t, bookings, nil)

	payload := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {
			"id": "pi_10",
			"amount_received": 17500,
			"metadata": {"bookingId": "HMNP-10-AAAA"}
		}}
	}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:   entity.SourceStripe,
		Type:     "payment_intent.succeeded",
		Payload:  payload,
		TraceID:  "trace-s1",
		Verified: true,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	booking, _ := bookings.FindByBookingID(context.Background(), "HMNP-10-AAAA")
	if booking.PaymentStatus != entity.PaymentStatusCompleted {
		t.Errorf("status = %s, want completed", booking.PaymentStatus)
	}
	if booking.PaymentIntentID == nil || *booking.PaymentIntentID != "pi_10" {
		t.Error("payment intent id should be recorded from the event")
	}
	if len(dispatcher.callsOf("sync_status")) != 1 {
		t.Error("completed transition should dispatch a CRM sync")
	}
}

func TestRouteStripeUnverifiedDropped(t *testing.T) {
	bookings := newFakeBookingRepo(pendingBooking("HMNP-11-BBBB", "contact-11"))
	svc, _, _ := newWebhookFixture(t, bookings, nil)

	payload := []byte(`{
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_11", "metadata": {"bookingId": "HMNP-11-BBBB"}}}
	}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:  entity.SourceStripe,
		Type:    "payment_intent.succeeded",
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	booking, _ := bookings.FindByBookingID(context.Background(), "HMNP-11-BBBB")
	if booking.PaymentStatus != entity.PaymentStatusPending {
		t.Errorf("unverified event changed status to %s", booking.PaymentStatus)
	}
}

func TestRouteStripeFailedRecordsReason(t *testing.T) {
	b := pendingBooking("HMNP-12-CCCC", "contact-12")
	intent := "pi_12"
	b.PaymentIntentID = &intent
	bookings := newFakeBookingRepo(b)
	svc, _, _ := newWebhookFixture(t, bookings, nil)

	// No bookingId metadata: correlation falls back to the intent id.
	payload := []byte(`{
		"type": "payment_intent.payment_failed",
		"data": {"object": {
			"id": "pi_12",
			"last_payment_error": {"message": "card_declined"}
		}}
	}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:   entity.SourceStripe,
		Type:     "payment_intent.payment_failed",
		Payload:  payload,
		Verified: true,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	booking, _ := bookings.FindByBookingID(context.Background(), "HMNP-12-CCCC")
	if booking.PaymentStatus != entity.PaymentStatusFailed {
		t.Errorf("status = %s, want failed", booking.PaymentStatus)
	}

	bookings.mu.Lock()
	defer bookings.mu.Unlock()
	if len(bookings.actions) != 1 {
		t.Fatalf("recorded %d actions, want 1", len(bookings.actions))
	}
	action := bookings.actions[0]
	if action.FailureReason == nil || *action.FailureReason != "card_declined" {
		t.Error("failure reason should carry the processor message")
	}
}

func TestRouteStripeUnknownBookingAcked(t *testing.T) {
	svc, _, _ := newWebhookFixture(t, newFakeBookingRepo(), nil)

	payload := []byte(`{
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_unknown"}}
	}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:   entity.SourceStripe,
		Type:     "payment_intent.succeeded",
		Payload:  payload,
		Verified: true,
	})
	if err != nil {
		t.Errorf("unknown booking should be acknowledged, got %v", err)
	}
}

func TestRouteUnknownEventTypesAcked(t *testing.T) {
	svc, _, _ := newWebhookFixture(t, newFakeBookingRepo(), nil)

	events := []InboundEvent{
		{Source: entity.SourceGHL, Type: "SomethingNew", Payload: []byte(`{}`), Verified: true},
		{Source: entity.SourceStripe, Type: "invoice.created", Payload: []byte(`{}`), Verified: true},
		{Source: entity.Source("fax"), Type: "anything", Payload: []byte(`{}`)},
	}
	for _, evt := range events {
		if err := svc.Route(context.Background(), evt); err != nil {
			t.Errorf("Route(%s/%s) = %v, want nil", evt.Source, evt.Type, err)
		}
	}
}

func TestRouteGHLTagAddStatusTag(t *testing.T) {
	bookings := newFakeBookingRepo(pendingBooking("HMNP-13-DDDD", "contact-13"))
	svc, dispatcher, _ := newWebhookFixture(t, bookings, nil)

	payload := []byte(`{"type":"TagAdd","contactId":"contact-13","tag":"status:payment_failed"}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:   entity.SourceGHL,
		Type:     "TagAdd",
		Payload:  payload,
		Verified: true,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	booking, _ := bookings.FindByBookingID(context.Background(), "HMNP-13-DDDD")
	if booking.PaymentStatus != entity.PaymentStatusFailed {
		t.Errorf("status = %s, want failed", booking.PaymentStatus)
	}

	// The same tag is also mapped to a recovery workflow.
	wf := dispatcher.callsOf("trigger_workflow")
	if len(wf) != 1 {
		t.Fatalf("triggered %d workflows, want 1", len(wf))
	}
	if wf[0].value != "failed-payment-recovery" {
		t.Errorf("tag workflow = %s", wf[0].value)
	}
}

func TestRouteGHLTagAddUnverifiedStatusTag(t *testing.T) {
	bookings := newFakeBookingRepo(pendingBooking("HMNP-14-EEEE", "contact-14"))
	svc, _, _ := newWebhookFixture(t, bookings, nil)

	payload := []byte(`{"type":"TagAdd","contactId":"contact-14","tag":"status:payment_completed"}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:  entity.SourceGHL,
		Type:    "TagAdd",
		Payload: payload,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	booking, _ := bookings.FindByBookingID(context.Background(), "HMNP-14-EEEE")
	if booking.PaymentStatus != entity.PaymentStatusPending {
		t.Errorf("unverified tag changed status to %s", booking.PaymentStatus)
	}
}

func TestRouteGHLTagRemoveChecksContact(t *testing.T) {
	bookings := newFakeBookingRepo(pendingBooking("HMNP-15-FFFF", "contact-15"))
	client := &fakeCRMClient{contact: &crm.Contact{
		ID:   "contact-15",
		Tags: []string{"status:payment_completed"},
	}}
	svc, _, _ := newWebhookFixture(t, bookings, client)

	payload := []byte(`{"type":"TagRemove","contactId":"contact-15","tag":"status:booking_pendingpayment"}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:   entity.SourceGHL,
		Type:     "TagRemove",
		Payload:  payload,
		Verified: true,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	booking, _ := bookings.FindByBookingID(context.Background(), "HMNP-15-FFFF")
	if booking.PaymentStatus != entity.PaymentStatusCompleted {
		t.Errorf("status = %s, want completed after contact re-check", booking.PaymentStatus)
	}
}

func TestRouteGHLContactCreateTriggersLeadWorkflow(t *testing.T) {
	svc, dispatcher, triggers := newWebhookFixture(t, newFakeBookingRepo(), nil)

	payload := []byte(`{"type":"ContactCreate","contactId":"contact-16","source":"facebook_ads"}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:   entity.SourceGHL,
		Type:     "ContactCreate",
		Payload:  payload,
		Verified: true,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	wf := dispatcher.callsOf("trigger_workflow")
	if len(wf) != 1 || wf[0].value != "facebook-google-ad-lead-automation" {
		t.Errorf("workflow calls = %v", wf)
	}

	// Lead workflows have no booking yet, so no trigger record is written.
	triggers.mu.Lock()
	defer triggers.mu.Unlock()
	if len(triggers.triggers) != 0 {
		t.Errorf("recorded %d triggers for a bookingless workflow, want 0", len(triggers.triggers))
	}
}

func TestRouteGHLWorkflowComplete(t *testing.T) {
	bookings := newFakeBookingRepo(pendingBooking("HMNP-17-GGGG", "contact-17"))
	svc, _, triggers := newWebhookFixture(t, bookings, nil)

	payload := []byte(`{"type":"WorkflowComplete","contactId":"contact-17","workflowName":"enhanced-payment-followup-automation"}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:   entity.SourceGHL,
		Type:     "WorkflowComplete",
		Payload:  payload,
		Verified: true,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	triggers.mu.Lock()
	defer triggers.mu.Unlock()
	want := "HMNP-17-GGGG/enhanced-payment-followup-automation"
	if len(triggers.completed) != 1 || triggers.completed[0] != want {
		t.Errorf("completed = %v, want [%s]", triggers.completed, want)
	}
}

func TestRouteStripeCanceledTagsAbandoned(t *testing.T) {
	b := pendingBooking("HMNP-18-HHHH", "contact-18")
	intent := "pi_18"
	b.PaymentIntentID = &intent
	bookings := newFakeBookingRepo(b)
	svc, dispatcher, _ := newWebhookFixture(t, bookings, nil)

	payload := []byte(`{"type":"payment_intent.canceled","data":{"object":{"id":"pi_18"}}}`)

	err := svc.Route(context.Background(), InboundEvent{
		Source:   entity.SourceStripe,
		Type:     "payment_intent.canceled",
		Payload:  payload,
		Verified: true,
	})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	booking, _ := bookings.FindByBookingID(context.Background(), "HMNP-18-HHHH")
	if booking.PaymentStatus != entity.PaymentStatusPending {
		t.Errorf("cancellation changed status to %s, want still pending", booking.PaymentStatus)
	}

	tags := dispatcher.callsOf("add_tag")
	if len(tags) != 1 || tags[0].value != "status:booking_abandoned" {
		t.Errorf("tag calls = %v", tags)
	}
}
