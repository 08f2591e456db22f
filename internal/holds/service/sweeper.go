package service

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"plotbook/internal/events"
	holdserrors "plotbook/internal/holds/errors"
	"plotbook/internal/holds/repository"
	plotserrors "plotbook/internal/plots/errors"
	"plotbook/pkg/clock"
	"plotbook/pkg/config"
	apperrors "plotbook/pkg/errors"
	"plotbook/pkg/model"
)

// BookingCanceller cancels the booking linked to an expired hold. Implemented
// by the booking service; wired in main to avoid a package cycle.
type BookingCanceller interface {
	CancelExpired(ctx context.Context, holdID string) error
}

// Sweeper expires overdue holds in the background. It deliberately races
// request handlers: every transition it makes is a conditional update, and a
// lost race just means someone else handled that hold first.
type Sweeper struct {
	repo      repository.HoldRepository
	plots     PlotStore
	bookings  BookingCanceller
	publisher events.Publisher
	clk       clock.Clock
	cfg       *config.Config
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewSweeper(
	repo repository.HoldRepository,
	plots PlotStore,
	bookings BookingCanceller,
	publisher events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
) *Sweeper {
	return &Sweeper{
		repo:      repo,
		plots:     plots,
		bookings:  bookings,
		publisher: publisher,
		clk:       clk,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the sweep loop. Call Stop to terminate it.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		s.cfg.Log.Info("Hold sweeper started", "interval", s.cfg.SweepInterval)

		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stopCh:
				s.cfg.Log.Info("Hold sweeper stopped")
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// Sweep runs one expiry pass. Exported so tests and operational tooling can
// trigger a cycle directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.clk.Now()

	expired, err := s.repo.FindExpired(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		s.cfg.Log.Error("Sweep failed to list expired holds", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	swept := 0
	for _, hold := range expired {
		if s.sweepOne(ctx, hold) {
			swept++
		}
	}

	s.cfg.Log.Info("Sweep cycle completed", "expired_found", len(expired), "swept", swept)
}

func (s *Sweeper) sweepOne(ctx context.Context, hold *model.Hold) bool {
	// The expire and the plot release commit together; a crash between them
	// would otherwise strand the plot in on_hold with no active hold left to
	// sweep.
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.UpdateStatus(sessCtx, hold.ID, model.HoldActive, model.HoldExpired); err != nil {
			return err
		}
		if err := s.plots.SetAllocationStatus(sessCtx, hold.PlotID, model.PlotOnHold, model.PlotAvailable); err != nil {
			if errors.Is(err, plotserrors.ErrStatusConflict) {
				s.cfg.Log.Debug("Plot no longer on hold, skipping release", "plot_id", hold.PlotID)
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, holdserrors.ErrStatusConflict) {
			// Converted or released between the listing and now.
			s.cfg.Log.Debug("Hold no longer active, skipping", "hold_id", hold.ID)
		} else {
			s.cfg.Log.Error("Failed to expire hold", "hold_id", hold.ID, "error", err)
		}
		return false
	}

	if err := s.bookings.CancelExpired(ctx, hold.ID); err != nil {
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			s.cfg.Log.Error("Failed to cancel booking for expired hold", "hold_id", hold.ID, "error", err)
		}
	}

	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeHoldExpired,
		PlotID:    hold.PlotID,
		ProjectID: hold.ProjectID,
		HoldID:    hold.ID,
		BrokerID:  hold.BrokerID,
	})

	return true
}
