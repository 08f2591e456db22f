package service

import (
	"context"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	bookingserrors "plotbook/internal/bookings/errors"
	"plotbook/internal/bookings/validator"
	"plotbook/internal/events"
	"plotbook/pkg/config"
	apperrors "plotbook/pkg/errors"
	"plotbook/pkg/logger"
	"plotbook/pkg/model"
)

type fakeBookingStore struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
}

func newFakeBookingStore(bookings ...*model.Booking) *fakeBookingStore {
	f := &fakeBookingStore{bookings: make(map[string]*model.Booking)}
	for _, b := range bookings {
		f.bookings[b.ID] = b
	}
	return f
}

func (f *fakeBookingStore) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (f *fakeBookingStore) UpdateFields(ctx context.Context, id string, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	for k, v := range set {
		switch k {
		case "payment_status":
			b.PaymentStatus = v.(model.PaymentStatus)
		case "payment_id":
			b.PaymentID = v.(string)
		case "order_id":
			b.OrderID = v.(string)
		case "amount":
			b.Amount = v.(int64)
		}
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Close() error { return nil }

func testBooking(status model.BookingStatus) *model.Booking {
	return &model.Booking{
		ID:            primitive.NewObjectID().Hex(),
		PlotID:        primitive.NewObjectID().Hex(),
		ProjectID:     primitive.NewObjectID().Hex(),
		HoldID:        primitive.NewObjectID().Hex(),
		BrokerID:      "broker-1",
		BookingStatus: status,
		PaymentStatus: model.PaymentPending,
	}
}

func newTestPaymentService(store *fakeBookingStore, pub *recordingPublisher) PaymentService {
	log := logger.Discard()
	cfg := &config.Config{Log: log}
	return NewPaymentService(store, validator.NewBookingValidator(log), pub, cfg)
}

func TestRecord_UpdatesPaymentFields(t *testing.T) {
	booking := testBooking(model.BookingOnHold)
	store := newFakeBookingStore(booking)
	pub := &recordingPublisher{}
	svc := newTestPaymentService(store, pub)

	updated, err := svc.Record(context.Background(), booking.ID, &model.PaymentRecord{
		PaymentID: "TXN1",
		OrderID:   "ORD1",
		Amount:    500000,
		Status:    model.PaymentPaid,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if updated.PaymentStatus != model.PaymentPaid {
		t.Errorf("expected payment paid, got %s", updated.PaymentStatus)
	}
	if updated.PaymentID != "TXN1" || updated.OrderID != "ORD1" || updated.Amount != 500000 {
		t.Errorf("payment fields not persisted: %+v", updated)
	}
	if updated.BookingStatus != model.BookingOnHold {
		t.Errorf("recording a payment must not move booking status, got %s", updated.BookingStatus)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 1 || pub.events[0].Type != events.TypePaymentRecorded {
		t.Errorf("expected a payment.recorded event, got %+v", pub.events)
	}
}

func TestRecord_FailedAttemptKeepsBookingAlive(t *testing.T) {
	booking := testBooking(model.BookingOnHold)
	store := newFakeBookingStore(booking)
	svc := newTestPaymentService(store, &recordingPublisher{})

	updated, err := svc.Record(context.Background(), booking.ID, &model.PaymentRecord{
		PaymentID: "TXN2",
		Amount:    500000,
		Status:    model.PaymentFailed,
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if updated.PaymentStatus != model.PaymentFailed {
		t.Errorf("expected payment failed, got %s", updated.PaymentStatus)
	}
	if updated.BookingStatus != model.BookingOnHold {
		t.Errorf("a failed payment must not cancel the booking, got %s", updated.BookingStatus)
	}
}

func TestRecord_TerminalBooking(t *testing.T) {
	booking := testBooking(model.BookingCancelled)
	store := newFakeBookingStore(booking)
	svc := newTestPaymentService(store, &recordingPublisher{})

	_, err := svc.Record(context.Background(), booking.ID, &model.PaymentRecord{
		PaymentID: "TXN3",
		Amount:    500000,
		Status:    model.PaymentPaid,
	})
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestRecord_UnknownBooking(t *testing.T) {
	svc := newTestPaymentService(newFakeBookingStore(), &recordingPublisher{})

	_, err := svc.Record(context.Background(), primitive.NewObjectID().Hex(), &model.PaymentRecord{
		PaymentID: "TXN4",
		Amount:    500000,
		Status:    model.PaymentPaid,
	})
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRecord_InvalidPayload(t *testing.T) {
	booking := testBooking(model.BookingOnHold)
	svc := newTestPaymentService(newFakeBookingStore(booking), &recordingPublisher{})

	_, err := svc.Record(context.Background(), booking.ID, &model.PaymentRecord{
		PaymentID: "",
		Amount:    0,
		Status:    model.PaymentPaid,
	})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
