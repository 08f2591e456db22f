package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "plotbook/internal/bookings/errors"
	"plotbook/internal/bookings/validator"
	"plotbook/internal/events"
	plotserrors "plotbook/internal/plots/errors"
	"plotbook/pkg/clock"
	"plotbook/pkg/config"
	mongotx "plotbook/pkg/db/mongo"
	apperrors "plotbook/pkg/errors"
	"plotbook/pkg/logger"
	"plotbook/pkg/model"
)

// fakeBookingRepo keeps bookings in memory and mirrors the collection
// guarantees the service relies on: one booking per hold, and status updates
// conditional on the current state.
type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[string]*model.Booking)}
}

func (f *fakeBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.HoldID == booking.HoldID {
			return fmt.Errorf("%w: hold %s", bookingserrors.ErrDuplicateHoldBooking, booking.HoldID)
		}
	}
	booking.ID = primitive.NewObjectID().Hex()
	booking.CreatedAt = time.Now().UTC()
	c := *booking
	f.bookings[booking.ID] = &c
	return nil
}

func (f *fakeBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	c := *b
	return &c, nil
}

func (f *fakeBookingRepo) FindOnHoldByHoldID(ctx context.Context, holdID string) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.HoldID == holdID && b.BookingStatus == model.BookingOnHold {
			c := *b
			return &c, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (f *fakeBookingRepo) FindByProject(ctx context.Context, projectID string, limit int, offset int64) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.ProjectID == projectID {
			c := *b
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) CountByProject(ctx context.Context, projectID string) (int64, error) {
	out, _ := f.FindByProject(ctx, projectID, 0, 0)
	return int64(len(out)), nil
}

func (f *fakeBookingRepo) FindByBroker(ctx context.Context, brokerID string, limit int, offset int64) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.BrokerID == brokerID {
			c := *b
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeBookingRepo) CountByBroker(ctx context.Context, brokerID string) (int64, error) {
	out, _ := f.FindByBroker(ctx, brokerID, 0, 0)
	return int64(len(out)), nil
}

func (f *fakeBookingRepo) UpdateStatus(ctx context.Context, id string, allowedFrom []model.BookingStatus, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return bookingserrors.ErrStatusConflict
	}
	allowed := false
	for _, from := range allowedFrom {
		if b.BookingStatus == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return bookingserrors.ErrStatusConflict
	}
	applyBookingSet(b, set)
	return nil
}

func (f *fakeBookingRepo) UpdateFields(ctx context.Context, id string, set bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	applyBookingSet(b, set)
	return nil
}

func (f *fakeBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	var sessCtx mongo.SessionContext
	return fn(sessCtx)
}

func applyBookingSet(b *model.Booking, set bson.M) {
	for k, v := range set {
		switch k {
		case "booking_status":
			b.BookingStatus = v.(model.BookingStatus)
		case "payment_status":
			b.PaymentStatus = v.(model.PaymentStatus)
		case "cancelled_reason":
			b.CancelledReason = v.(string)
		case "amount":
			b.Amount = v.(int64)
		case "payment_id":
			b.PaymentID = v.(string)
		case "order_id":
			b.OrderID = v.(string)
		case "notes":
			b.Notes = v.(string)
		case "customer":
			b.Customer = *(v.(*model.Customer))
		}
	}
	b.UpdatedAt = time.Now().UTC()
}

// fakeHoldConverter hands out the hold exactly once, the way the conditional
// active→converted update does in the hold service.
type fakeHoldConverter struct {
	mu        sync.Mutex
	hold      *model.Hold
	converted bool
}

func (f *fakeHoldConverter) Convert(ctx context.Context, holdID string) (*model.Hold, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold == nil || f.hold.ID != holdID {
		return nil, apperrors.NotFoundWithID("Hold", holdID)
	}
	if f.converted {
		return nil, apperrors.InvalidState("Hold is not active")
	}
	f.converted = true
	c := *f.hold
	c.Status = model.HoldConverted
	return &c, nil
}

type fakePlotStore struct {
	mu    sync.Mutex
	plots map[string]*model.Plot
}

func newFakePlotStore(plots ...*model.Plot) *fakePlotStore {
	f := &fakePlotStore{plots: make(map[string]*model.Plot)}
	for _, p := range plots {
		f.plots[p.ID] = p
	}
	return f
}

func (f *fakePlotStore) FindByID(ctx context.Context, id string) (*model.Plot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plots[id]
	if !ok {
		return nil, plotserrors.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakePlotStore) SetAllocationStatus(ctx context.Context, id string, from, to model.AllocationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plots[id]
	if !ok || p.AllocationStatus != from {
		return plotserrors.ErrStatusConflict
	}
	p.AllocationStatus = to
	return nil
}

func (f *fakePlotStore) status(id string) model.AllocationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plots[id].AllocationStatus
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

func (p *recordingPublisher) byType(t string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Log:                  logger.Discard(),
		DefaultHoldTimeHours: 24,
	}
}

type bookingFixture struct {
	svc    BookingService
	repo   *fakeBookingRepo
	plots  *fakePlotStore
	holds  *fakeHoldConverter
	pub    *recordingPublisher
	plot   *model.Plot
	hold   *model.Hold
	create *model.BookingCreate
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	plot := &model.Plot{
		ID:               primitive.NewObjectID().Hex(),
		ProjectID:        primitive.NewObjectID().Hex(),
		PlotNumber:       "A-101",
		Area:             1500,
		AreaUnit:         "sqft",
		Price:            3200000,
		AllocationStatus: model.PlotOnHold,
	}
	hold := &model.Hold{
		ID:        primitive.NewObjectID().Hex(),
		PlotID:    plot.ID,
		ProjectID: plot.ProjectID,
		BrokerID:  "broker-1",
		Status:    model.HoldActive,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}

	repo := newFakeBookingRepo()
	plots := newFakePlotStore(plot)
	holds := &fakeHoldConverter{hold: hold}
	pub := &recordingPublisher{}
	cfg := testConfig()

	svc := NewBookingService(repo, holds, plots, validator.NewBookingValidator(cfg.Log), pub, clock.NewSystem(), cfg)

	return &bookingFixture{
		svc:   svc,
		repo:  repo,
		plots: plots,
		holds: holds,
		pub:   pub,
		plot:  plot,
		hold:  hold,
		create: &model.BookingCreate{
			HoldID: hold.ID,
			Customer: model.Customer{
				Name:    "A. Kumar",
				Email:   "a.kumar@example.com",
				Phone:   "+919876543210",
				Address: "12 MG Road, Pune",
			},
		},
	}
}

func TestCreate_ConvertsHold(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if booking.BookingStatus != model.BookingOnHold {
		t.Errorf("expected on_hold, got %s", booking.BookingStatus)
	}
	if booking.PaymentStatus != model.PaymentPending {
		t.Errorf("expected payment pending, got %s", booking.PaymentStatus)
	}
	if booking.BrokerID != fx.hold.BrokerID {
		t.Errorf("expected broker inherited from hold, got %s", booking.BrokerID)
	}
	if booking.Plot.PlotNumber != fx.plot.PlotNumber {
		t.Errorf("expected denormalized plot summary, got %+v", booking.Plot)
	}
	if booking.HoldExpiresAt == nil || !booking.HoldExpiresAt.Equal(fx.hold.ExpiresAt) {
		t.Errorf("expected hold expiry carried over, got %v", booking.HoldExpiresAt)
	}
	if ev := fx.pub.byType(events.TypeBookingCreated); len(ev) != 1 {
		t.Errorf("expected 1 booking.created event, got %d", len(ev))
	}
}

func TestCreate_ConcurrentSameHold_OneWins(t *testing.T) {
	fx := newBookingFixture(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes, losses int

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			create := *fx.create
			_, err := fx.svc.Create(context.Background(), &create)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.IsCode(err, apperrors.CodeInvalidState):
				losses++
			default:
				t.Errorf("unexpected error kind: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || losses != 1 {
		t.Errorf("expected 1 winner and 1 loser, got %d and %d", successes, losses)
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	fx := newBookingFixture(t)
	fx.create.Customer.Email = "not-an-email"

	_, err := fx.svc.Create(context.Background(), fx.create)
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestUpdateStatus_ConfirmSetsPaidAndBooksPlot(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingConfirmed})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if updated.BookingStatus != model.BookingConfirmed {
		t.Errorf("expected confirmed, got %s", updated.BookingStatus)
	}
	if updated.PaymentStatus != model.PaymentPaid {
		t.Errorf("confirming must mark payment paid, got %s", updated.PaymentStatus)
	}
	if got := fx.plots.status(fx.plot.ID); got != model.PlotBooked {
		t.Errorf("expected plot booked, got %s", got)
	}
	if ev := fx.pub.byType(events.TypeBookingConfirmed); len(ev) != 1 {
		t.Errorf("expected 1 booking.confirmed event, got %d", len(ev))
	}
}

func TestUpdateStatus_CompleteRequiresConfirmed(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingCompleted})
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Errorf("expected invalid state completing an unconfirmed booking, got %v", err)
	}
}

func TestUpdateStatus_CompleteSellsPlot(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingConfirmed}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	updated, err := fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingCompleted})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if updated.BookingStatus != model.BookingCompleted {
		t.Errorf("expected completed, got %s", updated.BookingStatus)
	}
	if got := fx.plots.status(fx.plot.ID); got != model.PlotSold {
		t.Errorf("expected plot sold, got %s", got)
	}
}

func TestUpdateStatus_CancelRequiresReason(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingCancelled})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error without a reason, got %v", err)
	}
}

func TestUpdateStatus_CancelFreesPlot(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingConfirmed}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	updated, err := fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingCancelled, CancelledReason: "customer backed out"})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if updated.BookingStatus != model.BookingCancelled {
		t.Errorf("expected cancelled, got %s", updated.BookingStatus)
	}
	if updated.CancelledReason != "customer backed out" {
		t.Errorf("expected reason persisted, got %q", updated.CancelledReason)
	}
	if got := fx.plots.status(fx.plot.ID); got != model.PlotAvailable {
		t.Errorf("cancelling must free the plot, got %s", got)
	}
	if ev := fx.pub.byType(events.TypeBookingCancelled); len(ev) != 1 {
		t.Errorf("expected 1 booking.cancelled event, got %d", len(ev))
	}
}

func TestUpdateStatus_TerminalIsImmutable(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingCancelled, CancelledReason: "duplicate entry"}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	_, err = fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingConfirmed})
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Errorf("expected invalid state on a cancelled booking, got %v", err)
	}
}

func TestUpdateDetails_TerminalAcceptsNotesOnly(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingCancelled, CancelledReason: "duplicate entry"}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	notes := "refund processed on 2026-03-12"
	if err := fx.svc.UpdateDetails(context.Background(), booking.ID,
		&model.BookingDetailsUpdate{Notes: &notes}); err != nil {
		t.Errorf("notes-only patch on terminal booking should pass, got %v", err)
	}

	amount := int64(100)
	err = fx.svc.UpdateDetails(context.Background(), booking.ID,
		&model.BookingDetailsUpdate{Amount: &amount})
	if !apperrors.IsCode(err, apperrors.CodeInvalidState) {
		t.Errorf("expected invalid state patching amount on terminal booking, got %v", err)
	}

	stored, err := fx.svc.GetByID(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Notes != notes {
		t.Errorf("expected notes persisted, got %q", stored.Notes)
	}
}

func TestUpdateDetails_EmptyPatch(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err = fx.svc.UpdateDetails(context.Background(), booking.ID, &model.BookingDetailsUpdate{})
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected invalid input for empty patch, got %v", err)
	}
}

func TestCancelExpired_CancelsOnHoldBooking(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := fx.svc.CancelExpired(context.Background(), fx.hold.ID); err != nil {
		t.Fatalf("cancel expired failed: %v", err)
	}

	stored, err := fx.svc.GetByID(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.BookingStatus != model.BookingCancelled {
		t.Errorf("expected cancelled, got %s", stored.BookingStatus)
	}
	if stored.CancelledReason != "hold expired" {
		t.Errorf("expected reason 'hold expired', got %q", stored.CancelledReason)
	}
}

func TestCancelExpired_NoBookingForHold(t *testing.T) {
	fx := newBookingFixture(t)

	err := fx.svc.CancelExpired(context.Background(), primitive.NewObjectID().Hex())
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCancelExpired_SkipsConfirmedBooking(t *testing.T) {
	fx := newBookingFixture(t)

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := fx.svc.UpdateStatus(context.Background(), booking.ID,
		&model.BookingStatusUpdate{Status: model.BookingConfirmed}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	// The sweeper hands over a hold whose booking already confirmed. The
	// lookup only matches on_hold bookings, so nothing changes.
	err = fx.svc.CancelExpired(context.Background(), fx.hold.ID)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected not found for confirmed booking, got %v", err)
	}

	stored, _ := fx.svc.GetByID(context.Background(), booking.ID)
	if stored.BookingStatus != model.BookingConfirmed {
		t.Errorf("confirmed booking must be untouched, got %s", stored.BookingStatus)
	}
}

func TestCreate_SanitizesCustomer(t *testing.T) {
	fx := newBookingFixture(t)
	fx.create.Customer.Name = "  a.   kumar "
	fx.create.Customer.Email = " A.Kumar@Example.COM "
	fx.create.Customer.Phone = "09876543210"

	booking, err := fx.svc.Create(context.Background(), fx.create)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if booking.Customer.Name != "a. kumar" {
		t.Errorf("expected collapsed name, got %q", booking.Customer.Name)
	}
	if booking.Customer.Email != "a.kumar@example.com" {
		t.Errorf("expected lowercased email, got %q", booking.Customer.Email)
	}
	if booking.Customer.Phone != "+919876543210" {
		t.Errorf("expected E.164 phone, got %q", booking.Customer.Phone)
	}
}
