package service

import (
	"context"
	"errors"
	"sync"
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

// PlotStore is the slice of the plot repository the hold manager needs: the
// lookup and the compare-and-set write path.
type PlotStore interface {
	FindByID(ctx context.Context, id string) (*model.Plot, error)
	SetAllocationStatus(ctx context.Context, id string, from, to model.AllocationStatus) error
}

// HoldTimeResolver resolves the configured hold window for a project.
type HoldTimeResolver interface {
	HoldTime(ctx context.Context, projectID string) (time.Duration, error)
}

type HoldService interface {
	Place(ctx context.Context, plotID, brokerID string) (*model.Hold, error)
	Release(ctx context.Context, plotID string) (*model.Hold, error)
	Convert(ctx context.Context, holdID string) (*model.Hold, error)
	GetByID(ctx context.Context, id string) (*model.Hold, error)
	ListActiveByProject(ctx context.Context, projectID string, limit int, offset int64) ([]*model.Hold, int64, error)
}

type holdService struct {
	repo      repository.HoldRepository
	plots     PlotStore
	holdTimes HoldTimeResolver
	publisher events.Publisher
	clk       clock.Clock
	cfg       *config.Config
}

func NewHoldService(
	repo repository.HoldRepository,
	plots PlotStore,
	holdTimes HoldTimeResolver,
	publisher events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
) HoldService {
	return &holdService{
		repo:      repo,
		plots:     plots,
		holdTimes: holdTimes,
		publisher: publisher,
		clk:       clk,
		cfg:       cfg,
	}
}

// Place claims a plot for a broker. The plot status CAS decides the winner
// under concurrency; the losing request gets a Conflict it can surface as
// "plot no longer available".
func (s *holdService) Place(ctx context.Context, plotID, brokerID string) (*model.Hold, error) {
	if plotID == "" {
		return nil, apperrors.InvalidInput("Plot ID cannot be empty")
	}
	if brokerID == "" {
		return nil, apperrors.InvalidInput("Broker identity is required to place a hold")
	}

	plot, err := s.findPlot(ctx, plotID)
	if err != nil {
		return nil, err
	}
	if plot.Archived {
		return nil, apperrors.Conflict("Plot is archived and cannot be held")
	}

	holdTime, err := s.holdTimes.HoldTime(ctx, plot.ProjectID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	hold := &model.Hold{
		PlotID:    plotID,
		ProjectID: plot.ProjectID,
		BrokerID:  brokerID,
		Status:    model.HoldActive,
		ExpiresAt: now.Add(holdTime),
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.plots.SetAllocationStatus(sessCtx, plotID, model.PlotAvailable, model.PlotOnHold); err != nil {
			if errors.Is(err, plotserrors.ErrStatusConflict) {
				return apperrors.Conflict("Plot is not available for hold")
			}
			return apperrors.Internal("Failed to update plot status", err)
		}
		if err := s.repo.Create(sessCtx, hold); err != nil {
			if errors.Is(err, holdserrors.ErrDuplicateActiveHold) {
				return apperrors.Conflict("Plot already has an active hold")
			}
			return apperrors.Internal("Failed to create hold", err)
		}
		return nil
	})
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeConflict) {
			s.cfg.Log.Error("Failed to place hold", "plot_id", plotID, "broker_id", brokerID, "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Hold placed",
		"hold_id", hold.ID,
		"plot_id", plotID,
		"broker_id", brokerID,
		"expires_at", hold.ExpiresAt,
	)

	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeHoldPlaced,
		PlotID:    plotID,
		ProjectID: plot.ProjectID,
		HoldID:    hold.ID,
		BrokerID:  brokerID,
	})

	return hold, nil
}

// Release voluntarily gives up the active hold on a plot. Once the hold has
// been converted and the plot booked or sold there is nothing left to release;
// that case is a Conflict rather than a NotFound so callers can tell "never
// held" apart from "too late".
func (s *holdService) Release(ctx context.Context, plotID string) (*model.Hold, error) {
	if plotID == "" {
		return nil, apperrors.InvalidInput("Plot ID cannot be empty")
	}

	hold, err := s.repo.FindActiveByPlot(ctx, plotID)
	if err != nil {
		if errors.Is(err, holdserrors.ErrNotFound) {
			plot, plotErr := s.findPlot(ctx, plotID)
			if plotErr != nil {
				return nil, plotErr
			}
			if plot.AllocationStatus == model.PlotBooked || plot.AllocationStatus == model.PlotSold {
				return nil, apperrors.Conflict("Plot has already been booked")
			}
			return nil, apperrors.NotFound("Active hold for plot")
		}
		return nil, apperrors.Internal("Failed to look up active hold", err)
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.UpdateStatus(sessCtx, hold.ID, model.HoldActive, model.HoldReleased); err != nil {
			if errors.Is(err, holdserrors.ErrStatusConflict) {
				return apperrors.Conflict("Hold was already released, converted or expired")
			}
			return apperrors.Internal("Failed to release hold", err)
		}
		if err := s.plots.SetAllocationStatus(sessCtx, plotID, model.PlotOnHold, model.PlotAvailable); err != nil {
			if errors.Is(err, plotserrors.ErrStatusConflict) {
				return apperrors.Conflict("Plot is no longer on hold")
			}
			return apperrors.Internal("Failed to update plot status", err)
		}
		return nil
	})
	if err != nil {
		if !apperrors.IsCode(err, apperrors.CodeConflict) {
			s.cfg.Log.Error("Failed to release hold", "hold_id", hold.ID, "plot_id", plotID, "error", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Hold released", "hold_id", hold.ID, "plot_id", plotID)

	s.publisher.Publish(ctx, events.Event{
		Type:      events.TypeHoldReleased,
		PlotID:    plotID,
		ProjectID: hold.ProjectID,
		HoldID:    hold.ID,
		BrokerID:  hold.BrokerID,
	})

	hold.Status = model.HoldReleased
	return hold, nil
}

// Convert flips an active hold to converted. Called by the booking service
// inside its create transaction, so ctx may be a session context. Exactly one
// caller wins the conditional update.
func (s *holdService) Convert(ctx context.Context, holdID string) (*model.Hold, error) {
	hold, err := s.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}

	if !hold.IsActive(s.clk.Now()) {
		return nil, apperrors.InvalidState("Hold is not active")
	}

	if err := s.repo.UpdateStatus(ctx, holdID, model.HoldActive, model.HoldConverted); err != nil {
		if errors.Is(err, holdserrors.ErrStatusConflict) {
			return nil, apperrors.InvalidState("Hold is not active")
		}
		return nil, apperrors.Internal("Failed to convert hold", err)
	}

	hold.Status = model.HoldConverted
	return hold, nil
}

func (s *holdService) GetByID(ctx context.Context, id string) (*model.Hold, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Hold ID cannot be empty")
	}

	hold, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, holdserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Hold", id)
		}
		if errors.Is(err, holdserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid hold ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve hold", err)
	}

	return hold, nil
}

func (s *holdService) ListActiveByProject(ctx context.Context, projectID string, limit int, offset int64) ([]*model.Hold, int64, error) {
	if projectID == "" {
		return nil, 0, apperrors.InvalidInput("Project ID cannot be empty")
	}

	var count int64
	var holds []*model.Hold
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountActiveByProject(ctx, projectID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count active holds", "project_id", projectID, "error", errCount)
			errCount = apperrors.Internal("Failed to count holds", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		holds, errFind = s.repo.FindActiveByProject(ctx, projectID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list active holds", "project_id", projectID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve holds", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return holds, count, nil
}

func (s *holdService) findPlot(ctx context.Context, plotID string) (*model.Plot, error) {
	plot, err := s.plots.FindByID(ctx, plotID)
	if err != nil {
		if errors.Is(err, plotserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Plot", plotID)
		}
		if errors.Is(err, plotserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid plot ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve plot", err)
	}
	return plot, nil
}
