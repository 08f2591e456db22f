package service

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	bookingserrors "plotbook/internal/bookings/errors"
	"plotbook/internal/bookings/validator"
	"plotbook/internal/events"
	"plotbook/pkg/config"
	apperrors "plotbook/pkg/errors"
	"plotbook/pkg/model"
)

// BookingStore is the slice of the booking repository payment recording
// needs. Payments never touch booking status, so there is no transition
// method here.
type BookingStore interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	UpdateFields(ctx context.Context, id string, set bson.M) error
}

type PaymentService interface {
	Record(ctx context.Context, bookingID string, record *model.PaymentRecord) (*model.Booking, error)
}

type paymentService struct {
	bookings  BookingStore
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewPaymentService(
	bookings BookingStore,
	v *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) PaymentService {
	return &paymentService{
		bookings:  bookings,
		validator: v,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Record books a payment attempt against a booking: a pure data update of
// payment fields. Confirming the booking afterwards is a separate status
// transition, so a paid-but-unconfirmed booking is a valid intermediate
// state and the confirm step can be retried.
func (s *paymentService) Record(ctx context.Context, bookingID string, record *model.PaymentRecord) (*model.Booking, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if err := s.validator.ValidatePayment(record); err != nil {
		s.cfg.Log.Warn("Payment record validation failed", "booking_id", bookingID, "error", err)
		return nil, apperrors.Validation("Invalid payment record", map[string]any{"error": err.Error()})
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	if booking.BookingStatus.IsTerminal() {
		return nil, apperrors.InvalidState("Cannot record a payment on a terminal booking")
	}

	set := bson.M{
		"payment_status": record.Status,
		"payment_id":     record.PaymentID,
		"amount":         record.Amount,
	}
	if record.OrderID != "" {
		set["order_id"] = record.OrderID
	}

	if err := s.bookings.UpdateFields(ctx, bookingID, set); err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		}
		s.cfg.Log.Error("Failed to record payment", "booking_id", bookingID, "error", err)
		return nil, apperrors.Internal("Failed to record payment", err)
	}

	s.cfg.Log.Info("Payment recorded",
		"booking_id", bookingID,
		"payment_id", record.PaymentID,
		"amount", record.Amount,
		"status", record.Status,
	)

	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypePaymentRecorded,
		PlotID:    booking.PlotID,
		ProjectID: booking.ProjectID,
		BookingID: bookingID,
		BrokerID:  booking.BrokerID,
	})

	updated, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, apperrors.Internal("Failed to reload booking after payment", err)
	}
	return updated, nil
}
