package service

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "plotbook/internal/bookings/errors"
	"plotbook/internal/bookings/repository"
	"plotbook/internal/bookings/validator"
	"plotbook/internal/events"
	plotserrors "plotbook/internal/plots/errors"
	"plotbook/pkg/clock"
	"plotbook/pkg/config"
	apperrors "plotbook/pkg/errors"
	"plotbook/pkg/model"
	"plotbook/pkg/sanitizer"
)

// HoldConverter converts an active hold, losing with InvalidState when the
// hold is no longer active. Implemented by the hold service.
type HoldConverter interface {
	Convert(ctx context.Context, holdID string) (*model.Hold, error)
}

// PlotStore is the slice of the plot repository the state machine needs.
type PlotStore interface {
	FindByID(ctx context.Context, id string) (*model.Plot, error)
	SetAllocationStatus(ctx context.Context, id string, from, to model.AllocationStatus) error
}

type BookingService interface {
	Create(ctx context.Context, create *model.BookingCreate) (*model.Booking, error)
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	ListByProject(ctx context.Context, projectID string, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByBroker(ctx context.Context, brokerID string, limit int, offset int64) ([]*model.Booking, int64, error)
	UpdateStatus(ctx context.Context, id string, update *model.BookingStatusUpdate) (*model.Booking, error)
	UpdateDetails(ctx context.Context, id string, update *model.BookingDetailsUpdate) error
	CancelExpired(ctx context.Context, holdID string) error
}

type bookingService struct {
	repo      repository.BookingRepository
	holds     HoldConverter
	plots     PlotStore
	validator *validator.BookingValidator
	publisher events.Publisher
	clk       clock.Clock
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	holds HoldConverter,
	plots PlotStore,
	v *validator.BookingValidator,
	publisher events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		holds:     holds,
		plots:     plots,
		validator: v,
		publisher: publisher,
		clk:       clk,
		cfg:       cfg,
	}
}

// Create converts a hold into a booking. The hold's conditional
// active→converted update is the race decider: of two concurrent creates on
// the same hold, exactly one wins.
func (s *bookingService) Create(ctx context.Context, create *model.BookingCreate) (*model.Booking, error) {
	s.sanitizeCustomer(&create.Customer)
	if err := s.validator.ValidateCreate(create); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "hold_id", create.HoldID, "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	var booking *model.Booking
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		hold, err := s.holds.Convert(sessCtx, create.HoldID)
		if err != nil {
			return err
		}

		plot, err := s.plots.FindByID(sessCtx, hold.PlotID)
		if err != nil {
			return apperrors.Internal("Failed to load plot for booking", err)
		}

		expiresAt := hold.ExpiresAt
		booking = &model.Booking{
			PlotID:        hold.PlotID,
			ProjectID:     hold.ProjectID,
			HoldID:        hold.ID,
			BrokerID:      hold.BrokerID,
			Plot:          plot.Summary(),
			Customer:      create.Customer,
			BookingDate:   s.clk.Now(),
			BookingStatus: model.BookingOnHold,
			PaymentStatus: model.PaymentPending,
			Notes:         create.Notes,
			HoldExpiresAt: &expiresAt,
		}

		if err := s.repo.Create(sessCtx, booking); err != nil {
			if errors.Is(err, bookingserrors.ErrDuplicateHoldBooking) {
				return apperrors.InvalidState("Hold has already been converted to a booking")
			}
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeInternal) {
			s.cfg.Log.Error("Failed to create booking", "hold_id", create.HoldID, "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Booking created",
		"id", booking.ID,
		"plot_id", booking.PlotID,
		"hold_id", booking.HoldID,
		"broker_id", booking.BrokerID,
	)

	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeBookingCreated,
		PlotID:    booking.PlotID,
		ProjectID: booking.ProjectID,
		HoldID:    booking.HoldID,
		BookingID: booking.ID,
		BrokerID:  booking.BrokerID,
	})

	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}

	return booking, nil
}

func (s *bookingService) ListByProject(ctx context.Context, projectID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if projectID == "" {
		return nil, 0, apperrors.InvalidInput("Project ID cannot be empty")
	}
	return s.list(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByProject(ctx, projectID) },
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByProject(ctx, projectID, limit, offset)
		},
	)
}

func (s *bookingService) ListByBroker(ctx context.Context, brokerID string, limit int, offset int64) ([]*model.Booking, int64, error) {
	if brokerID == "" {
		return nil, 0, apperrors.InvalidInput("Broker ID cannot be empty")
	}
	return s.list(ctx,
		func(ctx context.Context) (int64, error) { return s.repo.CountByBroker(ctx, brokerID) },
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByBroker(ctx, brokerID, limit, offset)
		},
	)
}

func (s *bookingService) list(
	ctx context.Context,
	countFn func(context.Context) (int64, error),
	findFn func(context.Context) ([]*model.Booking, error),
) ([]*model.Booking, int64, error) {
	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = countFn(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = findFn(ctx)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return bookings, count, nil
}

// UpdateStatus drives the state machine. Legal transitions:
// pending|reserved|on_hold → confirmed, confirmed → completed, and any
// non-terminal state → cancelled. Confirming marks the payment paid and books
// the plot; completing sells it; cancelling frees it.
func (s *bookingService) UpdateStatus(ctx context.Context, id string, update *model.BookingStatusUpdate) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if err := s.validator.ValidateStatusUpdate(update); err != nil {
		s.cfg.Log.Warn("Booking status update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid status update", map[string]any{"error": err.Error()})
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.BookingStatus.IsTerminal() {
		return nil, apperrors.InvalidState("Booking is in a terminal state")
	}

	switch update.Status {
	case model.BookingConfirmed:
		err = s.confirm(ctx, booking)
	case model.BookingCompleted:
		err = s.complete(ctx, booking)
	case model.BookingCancelled:
		err = s.cancel(ctx, booking, update.CancelledReason)
	default:
		return nil, apperrors.InvalidState("Unsupported status transition target: " + string(update.Status))
	}
	if err != nil {
		return nil, err
	}

	return s.GetByID(ctx, id)
}

func (s *bookingService) confirm(ctx context.Context, booking *model.Booking) error {
	allowedFrom := []model.BookingStatus{model.BookingPending, model.BookingReserved, model.BookingOnHold}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		set := bson.M{
			"booking_status": model.BookingConfirmed,
			"payment_status": model.PaymentPaid,
		}
		if err := s.repo.UpdateStatus(sessCtx, booking.ID, allowedFrom, set); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusConflict) {
				return apperrors.InvalidState("Booking cannot be confirmed from its current state")
			}
			return apperrors.Internal("Failed to confirm booking", err)
		}
		if err := s.plots.SetAllocationStatus(sessCtx, booking.PlotID, model.PlotOnHold, model.PlotBooked); err != nil {
			if errors.Is(err, plotserrors.ErrStatusConflict) {
				return apperrors.Conflict("Plot is no longer on hold")
			}
			return apperrors.Internal("Failed to update plot status", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Booking confirmed", "id", booking.ID, "plot_id", booking.PlotID)
	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeBookingConfirmed,
		PlotID:    booking.PlotID,
		ProjectID: booking.ProjectID,
		BookingID: booking.ID,
		BrokerID:  booking.BrokerID,
	})
	return nil
}

func (s *bookingService) complete(ctx context.Context, booking *model.Booking) error {
	if booking.BookingStatus != model.BookingConfirmed {
		return apperrors.InvalidState("Only confirmed bookings can be completed")
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		set := bson.M{"booking_status": model.BookingCompleted}
		if err := s.repo.UpdateStatus(sessCtx, booking.ID, []model.BookingStatus{model.BookingConfirmed}, set); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusConflict) {
				return apperrors.InvalidState("Booking is no longer confirmed")
			}
			return apperrors.Internal("Failed to complete booking", err)
		}
		if err := s.plots.SetAllocationStatus(sessCtx, booking.PlotID, model.PlotBooked, model.PlotSold); err != nil {
			if errors.Is(err, plotserrors.ErrStatusConflict) {
				return apperrors.Conflict("Plot is not in booked state")
			}
			return apperrors.Internal("Failed to update plot status", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Booking completed", "id", booking.ID, "plot_id", booking.PlotID)
	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeBookingCompleted,
		PlotID:    booking.PlotID,
		ProjectID: booking.ProjectID,
		BookingID: booking.ID,
		BrokerID:  booking.BrokerID,
	})
	return nil
}

func (s *bookingService) cancel(ctx context.Context, booking *model.Booking, reason string) error {
	nonTerminal := []model.BookingStatus{
		model.BookingPending, model.BookingReserved, model.BookingOnHold, model.BookingConfirmed,
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		set := bson.M{
			"booking_status":   model.BookingCancelled,
			"cancelled_reason": reason,
		}
		if err := s.repo.UpdateStatus(sessCtx, booking.ID, nonTerminal, set); err != nil {
			if errors.Is(err, bookingserrors.ErrStatusConflict) {
				return apperrors.InvalidState("Booking is already in a terminal state")
			}
			return apperrors.Internal("Failed to cancel booking", err)
		}
		return s.freePlot(sessCtx, booking.PlotID)
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Booking cancelled", "id", booking.ID, "plot_id", booking.PlotID, "reason", reason)
	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeBookingCancelled,
		PlotID:    booking.PlotID,
		ProjectID: booking.ProjectID,
		BookingID: booking.ID,
		BrokerID:  booking.BrokerID,
		Reason:    reason,
	})
	return nil
}

// freePlot returns the plot to available from whatever allocated state
// cancellation finds it in.
func (s *bookingService) freePlot(ctx context.Context, plotID string) error {
	plot, err := s.plots.FindByID(ctx, plotID)
	if err != nil {
		return apperrors.Internal("Failed to load plot for cancellation", err)
	}
	if plot.AllocationStatus == model.PlotAvailable {
		return nil
	}

	if err := s.plots.SetAllocationStatus(ctx, plotID, plot.AllocationStatus, model.PlotAvailable); err != nil {
		if errors.Is(err, plotserrors.ErrStatusConflict) {
			return apperrors.Conflict("Plot status changed during cancellation")
		}
		return apperrors.Internal("Failed to free plot", err)
	}
	return nil
}

// UpdateDetails patches non-status fields. Terminal bookings only accept
// notes-only patches, which keeps the audit trail writable after the fact.
func (s *bookingService) UpdateDetails(ctx context.Context, id string, update *model.BookingDetailsUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Booking ID cannot be empty")
	}
	if update.Customer != nil {
		s.sanitizeCustomer(update.Customer)
	}
	if err := s.validator.ValidateDetailsUpdate(update); err != nil {
		s.cfg.Log.Warn("Booking details update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid details update", map[string]any{"error": err.Error()})
	}

	booking, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if booking.BookingStatus.IsTerminal() && !update.IsNotesOnly() {
		return apperrors.InvalidState("Terminal bookings accept notes-only updates")
	}

	set := bson.M{}
	if update.Amount != nil {
		set["amount"] = *update.Amount
	}
	if update.PaymentID != nil {
		set["payment_id"] = *update.PaymentID
	}
	if update.OrderID != nil {
		set["order_id"] = *update.OrderID
	}
	if update.Notes != nil {
		set["notes"] = *update.Notes
	}
	if update.Customer != nil {
		set["customer"] = update.Customer
	}
	if len(set) == 0 {
		return apperrors.InvalidInput("Update contains no fields")
	}

	if err := s.repo.UpdateFields(ctx, id, set); err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Booking", id)
		}
		s.cfg.Log.Error("Failed to update booking details", "id", id, "error", err)
		return apperrors.Internal("Failed to update booking details", err)
	}

	s.cfg.Log.Info("Booking details updated", "id", id)
	return nil
}

// CancelExpired cancels the on_hold booking linked to an expired hold.
// Called by the sweeper; NotFound means the hold never converted or the
// booking already moved on, both fine.
func (s *bookingService) CancelExpired(ctx context.Context, holdID string) error {
	booking, err := s.repo.FindOnHoldByHoldID(ctx, holdID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return apperrors.NotFound("On-hold booking for hold")
		}
		return apperrors.Internal("Failed to look up booking for expired hold", err)
	}

	set := bson.M{
		"booking_status":   model.BookingCancelled,
		"cancelled_reason": "hold expired",
	}
	if err := s.repo.UpdateStatus(ctx, booking.ID, []model.BookingStatus{model.BookingOnHold}, set); err != nil {
		if errors.Is(err, bookingserrors.ErrStatusConflict) {
			// Confirmed or cancelled between lookup and update.
			s.cfg.Log.Debug("Booking no longer on hold, skipping auto-cancel", "id", booking.ID)
			return nil
		}
		return apperrors.Internal("Failed to auto-cancel booking", err)
	}

	s.cfg.Log.Info("Booking auto-cancelled after hold expiry", "id", booking.ID, "hold_id", holdID)
	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeBookingCancelled,
		PlotID:    booking.PlotID,
		ProjectID: booking.ProjectID,
		BookingID: booking.ID,
		BrokerID:  booking.BrokerID,
		Reason:    "hold expired",
	})
	return nil
}

func (s *bookingService) sanitizeCustomer(c *model.Customer) {
	c.Name = sanitizer.NormalizeName(c.Name)
	c.Email = sanitizer.NormalizeEmail(c.Email)
	c.Address = sanitizer.NormalizeAddress(c.Address)
	if normalized := sanitizer.NormalizePhone(c.Phone); normalized != "" {
		c.Phone = normalized
	}
	if c.AlternatePhone != "" {
		if normalized := sanitizer.NormalizePhone(c.AlternatePhone); normalized != "" {
			c.AlternatePhone = normalized
		}
	}
}
