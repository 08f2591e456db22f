package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"plotbook/internal/bookings/validator"
	holdserrors "plotbook/internal/holds/errors"
	holdservice "plotbook/internal/holds/service"
	paymentservice "plotbook/internal/payments/service"
	"plotbook/pkg/clock"
	mongotx "plotbook/pkg/db/mongo"
	"plotbook/pkg/model"
)

// memHoldRepo backs the real hold service in the full lifecycle test.
type memHoldRepo struct {
	mu    sync.Mutex
	holds map[string]*model.Hold
}

func newMemHoldRepo() *memHoldRepo {
	return &memHoldRepo{holds: make(map[string]*model.Hold)}
}

func (m *memHoldRepo) Create(ctx context.Context, hold *model.Hold) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.holds {
		if h.PlotID == hold.PlotID && h.Status == model.HoldActive {
			return fmt.Errorf("%w: plot %s", holdserrors.ErrDuplicateActiveHold, hold.PlotID)
		}
	}
	hold.ID = primitive.NewObjectID().Hex()
	c := *hold
	m.holds[hold.ID] = &c
	return nil
}

func (m *memHoldRepo) FindByID(ctx context.Context, id string) (*model.Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[id]
	if !ok {
		return nil, holdserrors.ErrNotFound
	}
	c := *h
	return &c, nil
}

func (m *memHoldRepo) FindActiveByPlot(ctx context.Context, plotID string) (*model.Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.holds {
		if h.PlotID == plotID && h.Status == model.HoldActive {
			c := *h
			return &c, nil
		}
	}
	return nil, holdserrors.ErrNotFound
}

func (m *memHoldRepo) FindActiveByProject(ctx context.Context, projectID string, limit int, offset int64) ([]*model.Hold, error) {
	return nil, nil
}

func (m *memHoldRepo) CountActiveByProject(ctx context.Context, projectID string) (int64, error) {
	return 0, nil
}

func (m *memHoldRepo) FindExpired(ctx context.Context, now time.Time, limit int) ([]*model.Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Hold
	for _, h := range m.holds {
		if h.Status == model.HoldActive && !h.ExpiresAt.After(now) {
			c := *h
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memHoldRepo) UpdateStatus(ctx context.Context, id string, from, to model.HoldStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[id]
	if !ok || h.Status != from {
		return holdserrors.ErrStatusConflict
	}
	h.Status = to
	return nil
}

func (m *memHoldRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	var sessCtx mongo.SessionContext
	return fn(sessCtx)
}

type fixedHoldTimes struct{}

func (fixedHoldTimes) HoldTime(ctx context.Context, projectID string) (time.Duration, error) {
	return 24 * time.Hour, nil
}

// TestPlotLifecycle walks one plot from available through hold, booking,
// payment, confirmation and completion, checking the allocation status at
// every step.
func TestPlotLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	clk := clock.NewSystem()
	pub := &recordingPublisher{}

	plot := &model.Plot{
		ID:               primitive.NewObjectID().Hex(),
		ProjectID:        primitive.NewObjectID().Hex(),
		PlotNumber:       "B-204",
		Area:             2400,
		AreaUnit:         "sqyd",
		Price:            4800000,
		AllocationStatus: model.PlotAvailable,
	}
	plots := newFakePlotStore(plot)
	holdRepo := newMemHoldRepo()
	bookingRepo := newFakeBookingRepo()
	v := validator.NewBookingValidator(cfg.Log)

	holds := holdservice.NewHoldService(holdRepo, plots, fixedHoldTimes{}, pub, clk, cfg)
	bookings := NewBookingService(bookingRepo, holds, plots, v, pub, clk, cfg)
	payments := paymentservice.NewPaymentService(bookingRepo, v, pub, cfg)

	hold, err := holds.Place(ctx, plot.ID, "broker-7")
	if err != nil {
		t.Fatalf("place failed: %v", err)
	}
	if got := plots.status(plot.ID); got != model.PlotOnHold {
		t.Fatalf("expected on_hold after place, got %s", got)
	}

	booking, err := bookings.Create(ctx, &model.BookingCreate{
		HoldID: hold.ID,
		Customer: model.Customer{
			Name:  "A. Kumar",
			Email: "a.kumar@example.com",
			Phone: "+919876543210",
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if booking.BookingStatus != model.BookingOnHold {
		t.Fatalf("expected booking on_hold, got %s", booking.BookingStatus)
	}

	// The converted hold is out of play for everyone else.
	if _, err := bookings.Create(ctx, &model.BookingCreate{
		HoldID:   hold.ID,
		Customer: booking.Customer,
	}); err == nil {
		t.Fatal("expected second create on the same hold to fail")
	}

	paid, err := payments.Record(ctx, booking.ID, &model.PaymentRecord{
		PaymentID: "TXN1",
		Amount:    500000,
		Status:    model.PaymentPaid,
	})
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if paid.BookingStatus != model.BookingOnHold {
		t.Fatalf("payment must not advance booking status, got %s", paid.BookingStatus)
	}

	confirmed, err := bookings.UpdateStatus(ctx, booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingConfirmed})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.PaymentStatus != model.PaymentPaid {
		t.Errorf("expected paid after confirm, got %s", confirmed.PaymentStatus)
	}
	if got := plots.status(plot.ID); got != model.PlotBooked {
		t.Fatalf("expected plot booked, got %s", got)
	}

	completed, err := bookings.UpdateStatus(ctx, booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingCompleted})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.BookingStatus != model.BookingCompleted {
		t.Errorf("expected completed, got %s", completed.BookingStatus)
	}
	if got := plots.status(plot.ID); got != model.PlotSold {
		t.Fatalf("expected plot sold, got %s", got)
	}

	// Sold is a terminal plot state: no new holds.
	if _, err := holds.Place(ctx, plot.ID, "broker-8"); err == nil {
		t.Fatal("expected hold on a sold plot to fail")
	}
}
